package pagination

// Default page sizes.
const (
	DefaultPageSize    = 20
	DefaultMaxPageSize = 100
)

// Option configures an Engine.
type Option func(*Engine)

// WithPageSize sets the page size used when a request asks for none.
func WithPageSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// WithMaxPageSize caps requested page sizes.
func WithMaxPageSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPageSize = n
		}
	}
}
