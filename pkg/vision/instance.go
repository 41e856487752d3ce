package vision

import (
	"sync"

	"github.com/minjaecho/defectwatch-backend/pkg/config"
)

var (
	instanceOnce sync.Once
	instance     *Client
	instanceErr  error
)

// Init constructs the process-wide client on first call. The gateway keeps a
// large model resident, so every caller in the process shares one client.
func Init(cfg config.VisionConfig) (*Client, error) {
	instanceOnce.Do(func() {
		instance, instanceErr = NewClient(cfg.BaseURL, cfg.APIKey, WithTimeout(cfg.Timeout))
	})
	return instance, instanceErr
}

// Get returns the shared client, or nil when Init has not succeeded yet.
func Get() *Client {
	return instance
}
