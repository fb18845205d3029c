package driver

// Server-side large object calls shared by the backends. They are plain SQL
// function calls, so the same text works for pgx and database/sql.
const (
	SQLLOCreate = "select lo_creat($1)"
	SQLLOOpen   = "select lo_open($1, $2)"
	SQLLOClose  = "select lo_close($1)"
	SQLLORead   = "select loread($1, $2)"
	SQLLOWrite  = "select lowrite($1, $2)"
	SQLLOSeek   = "select lo_lseek64($1, $2, $3)"
	SQLLOTell   = "select lo_tell64($1)"
	SQLLOUnlink = "select lo_unlink($1)"
	SQLLOPut    = "select lo_put($1, $2, $3)"
	SQLLOGet    = "select lo_get($1, $2, $3)"
)
