package pgclient

import "fmt"

// Logger interface for structured logging.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a no-op implementation of Logger.
type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// Option is a functional option for configuring a Conn
type Option func(*internalConfig) error

// internalConfig holds the optional parameters of a Conn
type internalConfig struct {
	logger    Logger
	chunkSize int
	config    Config
}

func newInternalConfig() *internalConfig {
	return &internalConfig{
		logger:    noopLogger{},
		chunkSize: DefaultChunkSize,
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger Logger) Option {
	return func(c *internalConfig) error {
		if logger == nil {
			logger = noopLogger{}
		}
		c.logger = logger
		return nil
	}
}

// WithChunkSize sets the buffer size used when importing and exporting large
// objects. Default: 8192 bytes.
func WithChunkSize(n int) Option {
	return func(c *internalConfig) error {
		if n <= 0 {
			return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, n)
		}
		c.chunkSize = n
		return nil
	}
}

// withConfig records the Config a connection was opened from.
func withConfig(cfg Config) Option {
	return func(c *internalConfig) error {
		c.config = cfg
		return nil
	}
}
