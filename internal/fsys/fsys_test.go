package fsys

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoop(t *testing.T) {
	var c Capability = Noop{}
	assert.False(t, c.Enabled())

	n, err := c.NewWatcher()
	assert.Nil(t, n)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOS_DeliversEvents(t *testing.T) {
	var c Capability = OS{}
	require.True(t, c.Enabled())

	n, err := c.NewWatcher()
	require.NoError(t, err)
	defer n.Close()

	dir := t.TempDir()
	require.NoError(t, n.Add(dir))

	file := filepath.Join(dir, "Button.tsx")
	require.NoError(t, os.WriteFile(file, []byte("export {}"), 0644))

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-n.Events():
			if ev.Name == file && ev.Has(fsnotify.Create) {
				return
			}
		case err := <-n.Errors():
			t.Fatalf("watcher error: %v", err)
		case <-timeout:
			t.Fatal("no create event received")
		}
	}
}
