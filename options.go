package klaf

import (
	"log/slog"
	"time"

	"github.com/klaf-go/klaf/internal/logging"
	"github.com/klaf-go/klaf/internal/pagestore"
	"github.com/klaf-go/klaf/internal/pagestore/treeadapter"
)

// Hook is dispatched before and after every public Store operation, per
// §9 ("the outer async/transaction/hook layer wraps each core
// entry point with a lock acquisition, pre-hook dispatch, core call,
// post-hook dispatch, optional commit").
type Hook func(op string)

// Hooks groups the two dispatch points a caller can observe.
type Hooks struct {
	Before Hook
	After  Hook
}

type config struct {
	payloadSize      uint32
	overwrite        bool
	debounceInterval time.Duration
	logger           *slog.Logger
	hooks            Hooks
}

func defaultConfig() config {
	return config{
		payloadSize:      pagestore.DefaultPayloadSize,
		overwrite:        false,
		debounceInterval: treeadapter.DefaultDebounceInterval,
		logger:           logging.Discard(),
	}
}

// Option configures a Store at construction time.
type Option func(*config)

// WithPayloadSize overrides the page payload size used by Create. Ignored
// by Open, which reads the size stored in the file's root chunk.
func WithPayloadSize(n uint32) Option {
	return func(c *config) { c.payloadSize = n }
}

// WithOverwrite allows Create to replace an existing file instead of
// failing with ErrAlreadyExists.
func WithOverwrite(v bool) Option {
	return func(c *config) { c.overwrite = v }
}

// WithDebounceInterval sets the coalescing window for B+Tree node writes.
func WithDebounceInterval(d time.Duration) Option {
	return func(c *config) { c.debounceInterval = d }
}

// WithLogger installs a structured logger for internal diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithLevel installs a JSON logger at the given verbosity, writing to
// os.Stderr. A convenience over WithLogger for callers who don't need a
// custom slog.Handler.
func WithLevel(level logging.Level) Option {
	return func(c *config) { c.logger = logging.New(level, nil) }
}

// WithHooks installs pre/post dispatch hooks around every public
// operation.
func WithHooks(h Hooks) Option {
	return func(c *config) { c.hooks = h }
}
