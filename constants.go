package pgclient

import "github.com/lib/pq/oid"

// Version is the current pgclient version
const Version = "1.0.0"

// LOMode is the access mode for creating and opening large objects.
type LOMode int32

// Large object access modes, bit-compatible with libpq's INV_READ and
// INV_WRITE.
const (
	ModeRead      LOMode = 0x40000
	ModeWrite     LOMode = 0x20000
	ModeReadWrite        = ModeRead | ModeWrite
)

// DefaultChunkSize is the transfer size used by large object import and
// export.
const DefaultChunkSize = 8192

// Wire type tags that select a decoding rule. The values come from the
// server catalog (pg_type) and must not be redefined.
const (
	OIDInt2   = OID(oid.T_int2)
	OIDInt4   = OID(oid.T_int4)
	OIDOid    = OID(oid.T_oid)
	OIDFloat4 = OID(oid.T_float4)
	OIDFloat8 = OID(oid.T_float8)
	OIDMoney  = OID(oid.T_money)
)
