package track

// Snapshot is the set of hooks a resource captured at creation time. It is
// immutable: enabling or disabling hooks later never changes an existing
// snapshot. A nil *Snapshot is valid and means no hook was enabled when the
// resource was created.
type Snapshot struct {
	hooks []*Hook
}

// Empty reports whether the snapshot captured no hooks.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.hooks) == 0
}

// Len returns the number of captured hooks.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}

	return len(s.hooks)
}

func (s *Snapshot) list() []*Hook {
	if s == nil {
		return nil
	}

	return s.hooks
}
