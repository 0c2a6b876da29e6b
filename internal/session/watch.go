package session

import "errors"

// Watch is a user expression re-evaluated at every break. The id is assigned
// at creation and is unique for the session lifetime; removing a watch never
// renumbers the survivors.
type Watch struct {
	ID         int    `json:"id"`
	Expression string `json:"expression"`
	Value      string `json:"value"`
}

// WatchRegistry stores the ordered set of active watches.
//
// Like ProgramRegistry, it is not self-synchronized: callers serialize
// access through the session's lock.
type WatchRegistry struct {
	nextID  int
	watches []*Watch
}

// NewWatchRegistry creates an empty watch registry.
func NewWatchRegistry() *WatchRegistry {
	return &WatchRegistry{}
}

// Add stores a new watch with the next sequential id. The caller evaluates
// the initial value.
func (r *WatchRegistry) Add(expr string) *Watch {
	w := &Watch{ID: r.nextID, Expression: expr}
	r.nextID++
	r.watches = append(r.watches, w)
	return w
}

// Remove removes at most one watch with the given id. It reports whether a
// watch was removed, so the caller can skip broadcasting a redundant event
// for an unknown id.
func (r *WatchRegistry) Remove(id int) bool {
	for i, w := range r.watches {
		if w.ID == id {
			r.watches = append(r.watches[:i], r.watches[i+1:]...)
			return true
		}
	}
	return false
}

// All returns the watches in registration order.
func (r *WatchRegistry) All() []Watch {
	out := make([]Watch, len(r.watches))
	for i, w := range r.watches {
		out[i] = *w
	}
	return out
}

// Entries returns the live watch entries in registration order. The break
// handler refreshes values against such a snapshot so evaluation does not
// run under the session lock; results are applied back under it.
func (r *WatchRegistry) Entries() []*Watch {
	return append([]*Watch{}, r.watches...)
}

// refreshValues evaluates every entry in registration order and returns the
// new values, index-aligned with the entries. A failing evaluation yields
// the error text as the value instead of propagating, except for the
// forced-timeout fault, which aborts the refresh so the break handler sees
// the interruption.
func refreshValues(entries []*Watch, eval func(expr string) (string, error)) ([]string, error) {
	values := make([]string, len(entries))
	for i, w := range entries {
		value, err := eval(w.Expression)
		if err != nil {
			if errors.Is(err, ErrEvalTimeout) {
				return nil, err
			}
			value = err.Error()
		}
		values[i] = value
	}
	return values, nil
}
