package exchange

type Option func(*Options)

type Options struct {
	Limit       int
	Aggregation string
}

// WithLimit caps the number of levels returned per side.
func WithLimit(limit int) Option {
	return func(o *Options) {
		o.Limit = limit
	}
}

// WithAggregation groups book levels by the given price step.
func WithAggregation(aggregation string) Option {
	return func(o *Options) {
		o.Aggregation = aggregation
	}
}

func ApplyOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
