package track

import (
	"fmt"

	"github.com/tebeka/atexit"
)

// FatalError reports a panic raised inside a hook callback. Hook callbacks
// observe the host; a panic in one leaves observers and host in disagreement,
// so the only safe reaction is to stop the process. The dispatcher converts
// the panic into a *FatalError, skips the remaining hooks of the event, and
// hands the error to the caller for escalation.
type FatalError struct {
	// Op is the dispatch operation the hook was serving: "init", "before",
	// "after" or "destroy".
	Op string

	// ID is the resource the event was about.
	ID AsyncID

	// HookSeq is the registration sequence number of the failing hook.
	HookSeq int

	// Reason is the recovered panic value.
	Reason any

	// Stack is the stack trace captured at recovery time.
	Stack []byte
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("hook %d panicked in %s of resource %s: %v",
		e.HookSeq, e.Op, e.ID, e.Reason)
}

// Escalate terminates the process in reaction to a fatal dispatch error. It
// reports the error through the tracker's logger, then exits through the
// atexit machinery so that registered teardown handlers, such as trace
// flushers, still run. A nil err is ignored.
func (t *Tracker) Escalate(err error) {
	if err == nil {
		return
	}

	fatal, ok := err.(*FatalError)
	if !ok {
		t.logger.Printf("fatal: %v", err)
		atexit.Exit(1)

		return
	}

	t.logger.Printf("fatal: %v\n%s", fatal, fatal.Stack)
	atexit.Exit(1)
}
