package manager

import (
	"log/slog"
	"sync"
)

var (
	sharedMu sync.Mutex
	shared   *Manager
)

// Shared returns the process-wide Manager, constructing it from cfg on the
// first call. Later calls return the same instance and ignore their
// arguments; use DestroyShared to tear it down so a fresh configuration
// can take effect.
func Shared(cfg Config, logger *slog.Logger) *Manager {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if shared == nil {
		shared = New(cfg, logger)
	}
	return shared
}

// DestroyShared destroys the process-wide Manager, if any. The next Shared
// call constructs a new one.
func DestroyShared() error {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if shared == nil {
		return nil
	}
	err := shared.Destroy()
	shared = nil
	return err
}
