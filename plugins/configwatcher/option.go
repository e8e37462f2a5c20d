package configwatcher

import "github.com/bft-labs/pubship"

// WithConfigWatcher returns a pubship Option that enables config file
// watching for the given file.
//
// Usage:
//
//	pub, err := pubship.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        Path: "/etc/pubship/config.toml",
//	    }),
//	)
func WithConfigWatcher(cfg Config) pubship.Option {
	return pubship.WithPlugin(New(cfg))
}

// WithDefaultConfigWatcher returns a pubship Option that watches path
// with default settings (100ms debounce, log-only reporting).
func WithDefaultConfigWatcher(path string) pubship.Option {
	return WithConfigWatcher(DefaultConfig(path))
}
