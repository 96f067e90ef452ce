package track

import (
	"fmt"
	"sync/atomic"
)

// AsyncID identifies one tracked asynchronous resource. IDs are strictly
// increasing over the lifetime of a Tracker and are never reassigned while the
// resource they denote is still live.
type AsyncID int64

// None is the reserved id that denotes "no resource". It is the parent id of
// root-level resources and the current id when the context stack is empty. No
// real resource ever carries it.
const None AsyncID = 0

func (id AsyncID) String() string {
	if id == None {
		return "none"
	}

	return fmt.Sprintf("%d", int64(id))
}

// idAllocator hands out resource ids. The first id is always 1.
type idAllocator struct {
	nextID int64
}

func (a *idAllocator) allocate() AsyncID {
	id := atomic.AddInt64(&a.nextID, 1)
	if id <= 0 {
		panic("resource id space exhausted")
	}

	return AsyncID(id)
}
