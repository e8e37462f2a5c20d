package pubship

import (
	"context"

	"github.com/bft-labs/pubship/pkg/log"
)

// Plugin extends the publisher with auxiliary behavior such as config
// drift detection. Plugins are initialized during Start, in registration
// order, and shut down during Shutdown in reverse order.
type Plugin interface {
	// Name returns the plugin identifier used in logs.
	Name() string

	// Initialize starts the plugin. An error here aborts startup.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown stops the plugin and releases its resources.
	Shutdown(ctx context.Context) error
}

// PluginConfig is the subset of publisher configuration handed to
// plugins at initialization.
type PluginConfig struct {
	ProjectID string
	TopicID   string
	Logger    log.Logger
}
