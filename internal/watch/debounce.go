package watch

import (
	"sort"
	"sync"
	"time"
)

// DefaultDebounce is the quiet period after the last event before a refresh
const DefaultDebounce = time.Second

// Debouncer collects file changes and triggers callbacks after a delay.
// Callbacks never overlap; a batch that becomes due while one is running
// waits for another quiet period.
type Debouncer struct {
	duration time.Duration
	timer    *time.Timer
	files    map[string]struct{}
	mutex    sync.Mutex
	callback func([]string)
	stopped  bool
	running  bool
	inflight sync.WaitGroup
}

// NewDebouncer creates a new debouncer instance
func NewDebouncer(duration time.Duration) *Debouncer {
	if duration <= 0 {
		duration = DefaultDebounce
	}
	return &Debouncer{
		duration: duration,
		files:    make(map[string]struct{}),
	}
}

// Add adds a file to the pending batch and restarts the quiet period
func (d *Debouncer) Add(file string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.stopped {
		return
	}
	d.files[file] = struct{}{}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, d.flush)
}

// Pending returns the number of files waiting for the next flush
func (d *Debouncer) Pending() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.files)
}

// flush triggers the callback with the accumulated files, sorted
func (d *Debouncer) flush() {
	d.mutex.Lock()
	if d.stopped || len(d.files) == 0 {
		d.mutex.Unlock()
		return
	}
	if d.running {
		d.timer = time.AfterFunc(d.duration, d.flush)
		d.mutex.Unlock()
		return
	}
	files := make([]string, 0, len(d.files))
	for file := range d.files {
		files = append(files, file)
	}
	d.files = make(map[string]struct{})
	callback := d.callback
	d.running = true
	d.inflight.Add(1)
	d.mutex.Unlock()

	defer func() {
		d.mutex.Lock()
		d.running = false
		d.mutex.Unlock()
		d.inflight.Done()
	}()

	sort.Strings(files)
	if callback != nil {
		callback(files)
	}
}

// SetCallback sets the callback function
func (d *Debouncer) SetCallback(callback func([]string)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.callback = callback
}

// Stop cancels the pending timer, drops queued files and waits for a running
// callback to return. Later calls to Add are ignored. Stop must not be called
// from the callback.
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.stopped = true
	d.files = make(map[string]struct{})
	d.mutex.Unlock()

	d.inflight.Wait()
}
