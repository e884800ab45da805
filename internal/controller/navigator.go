package controller

import (
	"fmt"
	"sync"
)

// View is a top-level view of the client.
type View string

const (
	ViewMessaging View = "messaging"
	ViewMailbox   View = "mailbox"
)

// Navigator tracks which top-level view is active. Switching views never
// resets controller state and never forces a refetch: returning to a view
// resumes it exactly where it was left.
type Navigator struct {
	mu     sync.Mutex
	active View
}

// NewNavigator starts on the messaging view.
func NewNavigator() *Navigator {
	return &Navigator{active: ViewMessaging}
}

// Active returns the active view.
func (n *Navigator) Active() View {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}

// Activate switches to the given view.
func (n *Navigator) Activate(v View) error {
	if v != ViewMessaging && v != ViewMailbox {
		return fmt.Errorf("unknown view %q", v)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.active = v
	return nil
}
