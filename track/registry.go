package track

import "sync"

// registry keeps the hooks of one tracker in registration order and maintains
// a prebuilt snapshot of the enabled ones. The snapshot is rebuilt on every
// state change and never mutated afterwards, so resource creation can capture
// it without copying.
//
// Dispatch runs on the host's single loop thread. The lock only exists so
// that inspection surfaces on other goroutines read consistent state.
type registry struct {
	lock     sync.RWMutex
	hooks    []*Hook
	captured *Snapshot
}

func (r *registry) add(h *Hook) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.mustNotHaveDuplicatedHook(h)

	h.seq = len(r.hooks)
	r.hooks = append(r.hooks, h)
}

func (r *registry) mustNotHaveDuplicatedHook(h *Hook) {
	for _, existing := range r.hooks {
		if existing == h {
			panic("duplicated hook")
		}
	}
}

func (r *registry) setEnabled(h *Hook, on bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if on && h.removed {
		h.removed = false
	}

	if h.enabled == on {
		return
	}

	h.enabled = on
	r.rebuild()
}

func (r *registry) markRemoved(h *Hook) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if h.removed {
		return
	}

	h.removed = true
	h.enabled = false
	r.rebuild()
}

// rebuild recomputes the enabled snapshot. Callers must hold the write lock.
func (r *registry) rebuild() {
	var enabled []*Hook

	for _, h := range r.hooks {
		if h.enabled && !h.removed {
			enabled = append(enabled, h)
		}
	}

	if enabled == nil {
		r.captured = nil
		return
	}

	r.captured = &Snapshot{hooks: enabled}
}

// enabledSnapshot returns the snapshot new resources capture. It is nil when
// no hook is enabled.
func (r *registry) enabledSnapshot() *Snapshot {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return r.captured
}

func (r *registry) hookEnabled(h *Hook) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return h.enabled
}

func (r *registry) hookRemoved(h *Hook) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return h.removed
}

func (r *registry) numHooks() int {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return len(r.hooks)
}

// HookView is the read-only description of one registered hook.
type HookView struct {
	Seq     int    `json:"seq"`
	Ops     string `json:"ops"`
	Enabled bool   `json:"enabled"`
	Removed bool   `json:"removed"`
}

func (r *registry) views() []HookView {
	r.lock.RLock()
	defer r.lock.RUnlock()

	out := make([]HookView, 0, len(r.hooks))

	for _, h := range r.hooks {
		out = append(out, HookView{
			Seq:     h.seq,
			Ops:     h.ops(),
			Enabled: h.enabled,
			Removed: h.removed,
		})
	}

	return out
}
