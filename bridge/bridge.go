// Package bridge is the typed registration point through which scripts that
// cannot import the dialog directly (a plain header icon script) drive it.
// One well-known registration function replaces ad hoc global property
// assignment.
package bridge

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-passwordless/dialog"
)

// Controller is the narrow surface exposed to non-core callers.
type Controller interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	ClearSession(ctx context.Context) error
	State() dialog.State
}

var (
	lock    sync.RWMutex
	current Controller
)

// Register publishes the active dialog controller. Registering nil removes
// the current controller.
func Register(c Controller) {
	lock.Lock()
	defer lock.Unlock()
	current = c
}

// Current returns the registered controller, or false when none is
// registered.
func Current() (Controller, bool) {
	lock.RLock()
	defer lock.RUnlock()
	return current, current != nil
}
