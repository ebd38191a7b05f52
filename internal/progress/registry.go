// Package progress keeps the set of active operations' progress and reduces
// it into the cumulative gauge.
package progress

import "statushub/internal/types"

// Observer is told about every registry mutation with the new active set
type Observer interface {
	ProgressChanged(entries []types.ProgressInfo)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(entries []types.ProgressInfo)

func (f ObserverFunc) ProgressChanged(entries []types.ProgressInfo) {
	f(entries)
}

// Registry is a keyed store of active progress. It is not safe for
// concurrent use: the status aggregator's loop is its only writer and
// readers get copies via Snapshot.
type Registry struct {
	entries   map[string]types.ProgressInfo
	order     []string
	observers []Observer
}

func NewRegistry(observers ...Observer) *Registry {
	return &Registry{
		entries:   make(map[string]types.ProgressInfo),
		observers: observers,
	}
}

// Observe registers another observer
func (r *Registry) Observe(observer Observer) {
	r.observers = append(r.observers, observer)
}

// Upsert replaces whatever is stored for info.ID. Entries keep the position
// of their first insertion.
func (r *Registry) Upsert(info types.ProgressInfo) {
	if _, exists := r.entries[info.ID]; !exists {
		r.order = append(r.order, info.ID)
	}
	r.entries[info.ID] = info
	r.notify()
}

// Remove deletes the entry for id. Unknown ids are ignored and do not notify.
func (r *Registry) Remove(id string) bool {
	if _, exists := r.entries[id]; !exists {
		return false
	}

	delete(r.entries, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.notify()

	return true
}

// Clear drops every entry, used when the owning session ends
func (r *Registry) Clear() {
	if len(r.entries) == 0 {
		return
	}
	r.entries = make(map[string]types.ProgressInfo)
	r.order = nil
	r.notify()
}

func (r *Registry) Get(id string) (types.ProgressInfo, bool) {
	info, ok := r.entries[id]
	return info, ok
}

func (r *Registry) Len() int {
	return len(r.entries)
}

// Snapshot returns a copy of the active set in insertion order
func (r *Registry) Snapshot() []types.ProgressInfo {
	snapshot := make([]types.ProgressInfo, 0, len(r.order))
	for _, id := range r.order {
		snapshot = append(snapshot, r.entries[id])
	}
	return snapshot
}

func (r *Registry) notify() {
	if len(r.observers) == 0 {
		return
	}
	snapshot := r.Snapshot()
	for _, observer := range r.observers {
		observer.ProgressChanged(snapshot)
	}
}
