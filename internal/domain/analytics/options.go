package analytics

type options struct {
	countUnrecognized bool
}

// Option configures Aggregate.
type Option func(*options)

// CountUnrecognized makes events with an unrecognized emotion count toward
// the mood score denominator.
func CountUnrecognized() Option {
	return func(o *options) { o.countUnrecognized = true }
}
