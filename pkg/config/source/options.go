package source

import "context"

type Options struct {
	// data format: json, yaml or toml
	Format string

	// source specific options
	Context context.Context
}

type Option func(o *Options)

func NewOptions(opts ...Option) Options {
	options := Options{
		Context: context.Background(),
	}

	for _, o := range opts {
		o(&options)
	}

	return options
}

// WithFormat sets the source data format
func WithFormat(f string) Option {
	return func(o *Options) {
		if len(f) > 0 && f[0] == '.' {
			o.Format = f[1:]
		} else {
			o.Format = f
		}
	}
}
