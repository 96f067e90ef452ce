package track

import (
	"runtime"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Dispatch failure policy", func() {
	var (
		tr    *Tracker
		calm  *journal
		after *journal
	)

	BeforeEach(func() {
		tr = NewTracker()
		calm = &journal{name: "calm"}
		after = &journal{name: "late"}
	})

	It("should convert a hook panic into a fatal error", func() {
		tr.Register(calm.funcs()).Enable()
		tr.Register(HookFuncs{Before: func(AsyncID) {
			panic("observer bug")
		}}).Enable()

		id := tr.NewID()
		stor, _ := tr.EmitInit(id, kindAlpha, nil)

		err := tr.EmitBefore(id, stor)

		var fatal *FatalError
		Expect(err).To(BeAssignableToTypeOf(fatal))

		fatal = err.(*FatalError)
		Expect(fatal.Op).To(Equal("before"))
		Expect(fatal.ID).To(Equal(id))
		Expect(fatal.HookSeq).To(Equal(1))
		Expect(fatal.Reason).To(Equal("observer bug"))
		Expect(fatal.Stack).NotTo(BeEmpty())
		Expect(fatal.Error()).To(ContainSubstring("observer bug"))
	})

	It("should skip the remaining hooks of the event", func() {
		tr.Register(HookFuncs{Init: func(AsyncID, *Kind, AsyncID, HandleRef) {
			panic("observer bug")
		}}).Enable()
		tr.Register(after.funcs()).Enable()

		_, err := tr.EmitInit(tr.NewID(), kindAlpha, nil)

		Expect(err).To(HaveOccurred())
		after.mustBeEmpty()
	})

	It("should restore the stack when an exit hook fails", func() {
		tr.Register(HookFuncs{After: func(AsyncID, bool) {
			panic("observer bug")
		}}).Enable()

		id := tr.NewID()
		stor, _ := tr.EmitInit(id, kindAlpha, nil)
		tr.EmitBefore(id, stor)

		err := tr.EmitAfter(id, stor, false)

		Expect(err).To(HaveOccurred())
		Expect(tr.StackDepth()).To(Equal(0))
		Expect(tr.CurrentID()).To(Equal(None))
	})
})

var _ = Describe("Hook removal", func() {
	var (
		tr *Tracker
		j  *journal
	)

	BeforeEach(func() {
		tr = NewTracker()
		j = &journal{name: "h"}
	})

	It("should suppress captured snapshots by default", func() {
		hook := tr.Register(j.funcs()).Enable()

		id := tr.NewID()
		stor, _ := tr.EmitInit(id, kindAlpha, nil)

		hook.Remove()

		Expect(tr.EmitBefore(id, stor)).To(Succeed())
		Expect(tr.EmitAfter(id, stor, false)).To(Succeed())
		Expect(tr.EmitDestroy(id, stor)).To(Succeed())

		j.mustMatch("h init 1 test.alpha parent=none")
	})

	It("should keep firing captured snapshots when honoring them", func() {
		tr.WithRemovalMode(RemovalHonorsCaptured)
		hook := tr.Register(j.funcs()).Enable()

		id := tr.NewID()
		stor, _ := tr.EmitInit(id, kindAlpha, nil)

		hook.Remove()

		fresh := tr.NewID()
		tr.EmitInit(fresh, kindAlpha, nil)

		Expect(tr.EmitBefore(id, stor)).To(Succeed())
		Expect(tr.EmitAfter(id, stor, false)).To(Succeed())

		j.mustMatch(
			"h init 1 test.alpha parent=none",
			"h before 1",
			"h after 1 failed=false",
		)
	})

	It("should panic on enabling a removed hook", func() {
		hook := tr.Register(HookFuncs{}).Enable()
		hook.Remove()

		Expect(func() {
			hook.Enable()
		}).To(PanicWith("enable of removed hook"))
	})

	It("should allow revival when configured", func() {
		tr.WithRemovedHookRevival(true)
		hook := tr.Register(j.funcs()).Enable()
		hook.Remove()

		hook.Enable()

		Expect(hook.Removed()).To(BeFalse())

		tr.EmitInit(tr.NewID(), kindAlpha, nil)
		j.mustMatch("h init 1 test.alpha parent=none")
	})
})

var _ = Describe("Inherited snapshots", func() {
	It("should observe through the parent's snapshot", func() {
		tr := NewTracker()
		j := &journal{name: "h"}
		hook := tr.Register(j.funcs()).Enable()

		parent := tr.NewID()
		parentStor, _ := tr.EmitInit(parent, kindAlpha, nil)

		hook.Disable()

		child := tr.NewID()
		childStor, err := tr.EmitInitInherited(
			child, kindBeta, parent, parentStor, nil)

		Expect(err).To(BeNil())
		Expect(childStor).To(BeIdenticalTo(parentStor))

		Expect(tr.EmitBefore(child, childStor)).To(Succeed())
		Expect(tr.EmitAfter(child, childStor, false)).To(Succeed())

		j.mustMatch(
			"h init 1 test.alpha parent=none",
			"h init 2 test.beta parent=1",
			"h before 2",
			"h after 2 failed=false",
		)
	})
})

var _ = Describe("Handle references", func() {
	type handle struct {
		payload int
	}

	It("should resolve while the host object is referenced", func() {
		h := &handle{payload: 7}
		ref := NewHandleRef(h)

		Expect(ref.Value()).To(BeIdenticalTo(h))

		runtime.KeepAlive(h)
	})

	It("should report handle liveness in record views", func() {
		tr := NewTracker()
		h := &handle{payload: 3}

		id := tr.NewID()
		tr.EmitInit(id, kindAlpha, NewHandleRef(h))

		rec, ok := tr.LookupByID(id)
		Expect(ok).To(BeTrue())
		Expect(rec.HandleAlive).To(BeTrue())

		runtime.KeepAlive(h)
	})

	It("should not keep the host object alive", func() {
		ref := NewHandleRef(&handle{payload: 9})

		Eventually(func() any {
			runtime.GC()
			return ref.Value()
		}).Should(BeNil())
	})
})
