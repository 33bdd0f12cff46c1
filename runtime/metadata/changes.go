package metadata

import (
	"context"

	"go.uber.org/zap"
)

// ChangeListener receives registry mutations.
type ChangeListener func(ChangeEvent)

// ListenerID identifies a registered ChangeListener.
type ListenerID uint64

// AddChangeListener registers fn and returns an id for removal. Listeners run
// synchronously after the mutation is visible, in registration order.
func (r *Registry) AddChangeListener(fn ChangeListener) ListenerID {
	r.listenerMu.Lock()
	defer r.listenerMu.Unlock()
	r.nextListener++
	id := r.nextListener
	r.listeners[id] = fn
	r.listenerSeq = append(r.listenerSeq, id)
	return id
}

// RemoveChangeListener unregisters a listener. It reports whether id was known.
func (r *Registry) RemoveChangeListener(id ListenerID) bool {
	r.listenerMu.Lock()
	defer r.listenerMu.Unlock()
	if _, ok := r.listeners[id]; !ok {
		return false
	}
	delete(r.listeners, id)
	for i, seq := range r.listenerSeq {
		if seq == id {
			r.listenerSeq = append(r.listenerSeq[:i], r.listenerSeq[i+1:]...)
			break
		}
	}
	return true
}

func (r *Registry) emit(ev ChangeEvent) {
	r.listenerMu.RLock()
	fns := make([]ChangeListener, 0, len(r.listenerSeq))
	for _, id := range r.listenerSeq {
		fns = append(fns, r.listeners[id])
	}
	r.listenerMu.RUnlock()

	for _, fn := range fns {
		r.safeCall(fn, ev)
	}
}

func (r *Registry) safeCall(fn ChangeListener, ev ChangeEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("change listener panicked", zap.String("path", ev.Path), zap.Any("panic", rec))
		}
	}()
	fn(ev)
}

// AppendChange adds an externally produced record to the system-wide log.
// Missing ids and timestamps are filled in.
func (r *Registry) AppendChange(ctx context.Context, rec ChangeRecord) ChangeRecord {
	r.mu.Lock()
	rec = r.appendChangeLocked(rec)
	r.mu.Unlock()
	r.persistChange(ctx, rec)
	return rec
}

// GetChangeHistory returns change records newest-first. An empty path returns
// the global log; otherwise only records for that path. limit <= 0 means
// DefaultChangeLimit.
func (r *Registry) GetChangeHistory(path string, limit int) []ChangeRecord {
	if limit <= 0 {
		limit = DefaultChangeLimit
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ChangeRecord, 0, min(limit, len(r.changes)))
	for i := len(r.changes) - 1; i >= 0 && len(out) < limit; i-- {
		if path == "" || r.changes[i].Path == path {
			out = append(out, r.changes[i])
		}
	}
	return out
}
