package watch

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_Add(t *testing.T) {
	var mu sync.Mutex
	var calls int
	var files []string

	debouncer := NewDebouncer(50 * time.Millisecond)
	debouncer.SetCallback(func(f []string) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		files = f
	})

	debouncer.Add("b.tsx")
	debouncer.Add("a.tsx")
	debouncer.Add("b.tsx") // Duplicate

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	if calls != 1 {
		t.Fatalf("Expected 1 callback call, got %d", calls)
	}
	if len(files) != 2 || files[0] != "a.tsx" || files[1] != "b.tsx" {
		t.Errorf("Expected sorted unique files [a.tsx b.tsx], got %v", files)
	}
}

func TestDebouncer_MultipleFlushes(t *testing.T) {
	var mu sync.Mutex
	var callCount int

	debouncer := NewDebouncer(30 * time.Millisecond)
	debouncer.SetCallback(func(f []string) {
		mu.Lock()
		defer mu.Unlock()
		callCount++
	})

	debouncer.Add("a.tsx")
	time.Sleep(80 * time.Millisecond)

	debouncer.Add("b.tsx")
	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	if callCount != 2 {
		t.Errorf("Expected 2 callback calls, got %d", callCount)
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	var mu sync.Mutex
	called := false

	debouncer := NewDebouncer(30 * time.Millisecond)
	debouncer.SetCallback(func([]string) {
		mu.Lock()
		defer mu.Unlock()
		called = true
	})

	debouncer.Add("a.tsx")
	debouncer.Stop()
	debouncer.Stop()
	debouncer.Add("b.tsx")

	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if called {
		t.Error("Expected no callback after Stop")
	}
	if debouncer.Pending() != 0 {
		t.Errorf("Expected no pending files, got %d", debouncer.Pending())
	}
}

func TestDebouncer_CallbacksNeverOverlap(t *testing.T) {
	var active, maxActive int32
	var mu sync.Mutex
	var seen []string

	debouncer := NewDebouncer(10 * time.Millisecond)
	debouncer.SetCallback(func(f []string) {
		n := atomic.AddInt32(&active, 1)
		for {
			prev := atomic.LoadInt32(&maxActive)
			if n <= prev || atomic.CompareAndSwapInt32(&maxActive, prev, n) {
				break
			}
		}
		time.Sleep(40 * time.Millisecond)
		mu.Lock()
		seen = append(seen, f...)
		mu.Unlock()
		atomic.AddInt32(&active, -1)
	})

	debouncer.Add("a.tsx")
	time.Sleep(20 * time.Millisecond) // first callback is running
	debouncer.Add("b.tsx")
	time.Sleep(200 * time.Millisecond)
	debouncer.Stop()

	if got := atomic.LoadInt32(&maxActive); got != 1 {
		t.Errorf("Expected at most 1 concurrent callback, got %d", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != "a.tsx" || seen[1] != "b.tsx" {
		t.Errorf("Expected both batches delivered in order, got %v", seen)
	}
}

func TestDebouncer_StopWaitsForCallback(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	debouncer := NewDebouncer(10 * time.Millisecond)
	debouncer.SetCallback(func([]string) {
		close(started)
		<-release
		finished.Store(true)
	})
	debouncer.Add("a.tsx")

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("callback never ran")
	}

	stopped := make(chan struct{})
	go func() {
		debouncer.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while the callback was still running")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the callback finished")
	}
	if !finished.Load() {
		t.Error("Expected callback to finish before Stop returned")
	}
}

func TestNewDebouncer_DefaultDuration(t *testing.T) {
	if d := NewDebouncer(0); d.duration != DefaultDebounce {
		t.Errorf("Expected default duration %v, got %v", DefaultDebounce, d.duration)
	}
}

func BenchmarkDebouncer_Add(b *testing.B) {
	debouncer := NewDebouncer(100 * time.Millisecond)
	debouncer.SetCallback(func(files []string) {})
	defer debouncer.Stop()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		debouncer.Add("Button.tsx")
	}
}
