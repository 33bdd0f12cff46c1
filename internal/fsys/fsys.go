// Package fsys describes what the host environment allows the catalog to do
// with the file system. Environments without a file system (embedded builds,
// sandboxes, read-only snapshots) use Noop so the watcher and the runtime
// provider switch themselves off instead of failing.
package fsys

import (
	"errors"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// ErrUnavailable is returned by capabilities that cannot watch files.
var ErrUnavailable = errors.New("fsys: file system unavailable")

// Capability is chosen once at construction and passed to the components
// that touch the file system.
type Capability interface {
	// Enabled reports whether source files can be read and watched.
	Enabled() bool
	// NewWatcher creates a change notifier.
	NewWatcher() (Notifier, error)
}

// Notifier delivers file system events for added paths.
type Notifier interface {
	Add(path string) error
	Remove(path string) error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
	Close() error
}

// OS is the capability of a process with a real file system.
type OS struct{}

// Enabled always reports true.
func (OS) Enabled() bool { return true }

// NewWatcher creates an fsnotify watcher.
func (OS) NewWatcher() (Notifier, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &notifyWatcher{w: w}, nil
}

// Noop is the capability of an environment without file access.
type Noop struct{}

// Enabled always reports false.
func (Noop) Enabled() bool { return false }

// NewWatcher always fails with ErrUnavailable.
func (Noop) NewWatcher() (Notifier, error) { return nil, ErrUnavailable }

type notifyWatcher struct {
	w *fsnotify.Watcher
}

func (n *notifyWatcher) Add(path string) error         { return n.w.Add(path) }
func (n *notifyWatcher) Remove(path string) error      { return n.w.Remove(path) }
func (n *notifyWatcher) Events() <-chan fsnotify.Event { return n.w.Events }
func (n *notifyWatcher) Errors() <-chan error          { return n.w.Errors }
func (n *notifyWatcher) Close() error                  { return n.w.Close() }
