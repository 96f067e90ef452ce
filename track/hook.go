package track

// HookFuncs holds the callbacks of one hook. Any subset may be set; a nil
// callback is simply skipped at dispatch time.
type HookFuncs struct {
	// Init is called when a resource is created, after its id and parent are
	// recorded. ref is the non-owning reference to the host object and may be
	// nil.
	Init func(id AsyncID, kind *Kind, parent AsyncID, ref HandleRef)

	// Before is called immediately before the resource's callback runs. The
	// resource id is already on the context stack.
	Before func(id AsyncID)

	// After is called when the resource's callback has returned. failed
	// reports whether the callback terminated abnormally. The resource id is
	// still on the context stack.
	After func(id AsyncID, failed bool)

	// Destroy is called at most once, when the resource is released.
	Destroy func(id AsyncID)
}

// Hook is one registered observer of resource lifecycles. A Hook starts
// disabled; it only influences resources created while it is enabled.
type Hook struct {
	tracker *Tracker
	funcs   HookFuncs
	seq     int
	enabled bool
	removed bool
}

// Enable opts the hook in for resources created from now on. Enabling is
// idempotent. Enabling a removed hook panics unless the tracker was built
// WithRemovedHookRevival.
func (h *Hook) Enable() *Hook {
	h.mustBeRevivableIfRemoved()
	h.tracker.registry.setEnabled(h, true)

	return h
}

// Disable stops the hook from being captured by future resource creations.
// Resources that already captured the hook keep firing it.
func (h *Hook) Disable() *Hook {
	h.tracker.registry.setEnabled(h, false)

	return h
}

// Scope enables the hook, runs fn, and disables the hook again, also when fn
// panics.
func (h *Hook) Scope(fn func()) {
	h.Enable()
	defer h.Disable()

	fn()
}

// Remove permanently deactivates the hook. Under the default removal mode the
// hook stops firing even for resources that captured it; see RemovalMode.
func (h *Hook) Remove() {
	h.tracker.registry.markRemoved(h)
}

// Enabled reports whether the hook is currently captured by new resources.
func (h *Hook) Enabled() bool {
	return h.tracker.registry.hookEnabled(h)
}

// Removed reports whether the hook has been removed.
func (h *Hook) Removed() bool {
	return h.tracker.registry.hookRemoved(h)
}

// Seq returns the registration sequence number of the hook.
func (h *Hook) Seq() int {
	return h.seq
}

func (h *Hook) mustBeRevivableIfRemoved() {
	if h.Removed() && !h.tracker.reviveRemoved {
		panic("enable of removed hook")
	}
}

// ops summarizes which callbacks the hook carries, for inspection surfaces.
func (h *Hook) ops() string {
	out := ""

	if h.funcs.Init != nil {
		out += "init,"
	}

	if h.funcs.Before != nil {
		out += "before,"
	}

	if h.funcs.After != nil {
		out += "after,"
	}

	if h.funcs.Destroy != nil {
		out += "destroy,"
	}

	if out == "" {
		return out
	}

	return out[:len(out)-1]
}
