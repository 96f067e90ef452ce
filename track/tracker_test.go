package track

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Tracker", func() {
	var tr *Tracker

	BeforeEach(func() {
		tr = NewTracker()
	})

	Context("id allocation", func() {
		It("should start at 1 and increase strictly", func() {
			first := tr.NewID()
			second := tr.NewID()
			third := tr.NewID()

			Expect(first).To(Equal(AsyncID(1)))
			Expect(second).To(BeNumerically(">", first))
			Expect(third).To(BeNumerically(">", second))
		})

		It("should report no current resource outside callbacks", func() {
			Expect(tr.CurrentID()).To(Equal(None))
			Expect(tr.CurrentParentID()).To(Equal(None))
			Expect(tr.StackDepth()).To(Equal(0))
		})
	})

	Context("hook registration", func() {
		It("should leave new hooks disabled", func() {
			j := &journal{name: "h"}
			hook := tr.Register(j.funcs())

			id := tr.NewID()
			_, err := tr.EmitInit(id, kindAlpha, nil)

			Expect(err).To(BeNil())
			Expect(hook.Enabled()).To(BeFalse())
			j.mustBeEmpty()
		})

		It("should dispatch hooks in registration order", func() {
			shared := &journal{name: ""}
			first := HookFuncs{Init: func(id AsyncID, _ *Kind, _ AsyncID, _ HandleRef) {
				shared.append("first " + id.String())
			}}
			second := HookFuncs{Init: func(id AsyncID, _ *Kind, _ AsyncID, _ HandleRef) {
				shared.append("second " + id.String())
			}}

			tr.Register(first).Enable()
			tr.Register(second).Enable()

			_, err := tr.EmitInit(tr.NewID(), kindAlpha, nil)

			Expect(err).To(BeNil())
			Expect(shared.lines).To(Equal([]string{"first 1", "second 1"}))
		})

		It("should count hooks including removed ones", func() {
			h1 := tr.Register(HookFuncs{})
			tr.Register(HookFuncs{})
			h1.Remove()

			Expect(tr.NumHooks()).To(Equal(2))
		})
	})

	Context("enable and disable", func() {
		It("should only observe resources created while enabled", func() {
			j := &journal{name: "h"}
			hook := tr.Register(j.funcs())

			quiet := tr.NewID()
			quietStor, _ := tr.EmitInit(quiet, kindAlpha, nil)

			hook.Enable()
			seen := tr.NewID()
			seenStor, _ := tr.EmitInit(seen, kindAlpha, nil)

			hook.Disable()
			late := tr.NewID()
			lateStor, _ := tr.EmitInit(late, kindAlpha, nil)

			Expect(tr.EmitBefore(quiet, quietStor)).To(Succeed())
			Expect(tr.EmitAfter(quiet, quietStor, false)).To(Succeed())
			Expect(tr.EmitBefore(seen, seenStor)).To(Succeed())
			Expect(tr.EmitAfter(seen, seenStor, false)).To(Succeed())
			Expect(tr.EmitBefore(late, lateStor)).To(Succeed())
			Expect(tr.EmitAfter(late, lateStor, false)).To(Succeed())

			j.mustMatch(
				"h init 2 test.alpha parent=none",
				"h before 2",
				"h after 2 failed=false",
			)
		})

		It("should keep firing captured hooks after disable", func() {
			j := &journal{name: "h"}
			hook := tr.Register(j.funcs()).Enable()

			id := tr.NewID()
			stor, _ := tr.EmitInit(id, kindAlpha, nil)

			hook.Disable()

			Expect(tr.EmitBefore(id, stor)).To(Succeed())
			Expect(tr.EmitAfter(id, stor, false)).To(Succeed())
			Expect(tr.EmitDestroy(id, stor)).To(Succeed())

			j.mustMatch(
				"h init 1 test.alpha parent=none",
				"h before 1",
				"h after 1 failed=false",
				"h destroy 1",
			)
		})

		It("should be idempotent", func() {
			j := &journal{name: "h"}
			hook := tr.Register(j.funcs())
			hook.Enable().Enable()

			_, err := tr.EmitInit(tr.NewID(), kindAlpha, nil)

			Expect(err).To(BeNil())
			j.mustMatch("h init 1 test.alpha parent=none")
		})
	})

	Context("scoped enabling", func() {
		It("should disable on normal return", func() {
			j := &journal{name: "h"}
			hook := tr.Register(j.funcs())

			hook.Scope(func() {
				tr.EmitInit(tr.NewID(), kindAlpha, nil)
			})
			tr.EmitInit(tr.NewID(), kindAlpha, nil)

			Expect(hook.Enabled()).To(BeFalse())
			j.mustMatch("h init 1 test.alpha parent=none")
		})

		It("should disable when the body panics", func() {
			hook := tr.Register(HookFuncs{})

			Expect(func() {
				hook.Scope(func() {
					panic("body failure")
				})
			}).To(PanicWith("body failure"))
			Expect(hook.Enabled()).To(BeFalse())
		})
	})

	Context("snapshots", func() {
		It("should capture no snapshot when nothing is enabled", func() {
			stor, err := tr.EmitInit(tr.NewID(), kindAlpha, nil)

			Expect(err).To(BeNil())
			Expect(stor.Empty()).To(BeTrue())
			Expect(stor.Len()).To(Equal(0))
		})

		It("should not let later enables join an old snapshot", func() {
			j := &journal{name: "h"}
			hook := tr.Register(j.funcs())

			id := tr.NewID()
			stor, _ := tr.EmitInit(id, kindAlpha, nil)

			hook.Enable()

			Expect(tr.EmitBefore(id, stor)).To(Succeed())
			Expect(tr.EmitAfter(id, stor, false)).To(Succeed())

			j.mustBeEmpty()
		})
	})

	Context("callback windows", func() {
		It("should expose the executing resource as current", func() {
			id := tr.NewID()
			stor, _ := tr.EmitInit(id, kindAlpha, nil)

			Expect(tr.EmitBefore(id, stor)).To(Succeed())
			Expect(tr.CurrentID()).To(Equal(id))
			Expect(tr.StackDepth()).To(Equal(1))

			Expect(tr.EmitAfter(id, stor, false)).To(Succeed())
			Expect(tr.CurrentID()).To(Equal(None))
		})

		It("should parent nested resources on the executing one", func() {
			outer := tr.NewID()
			outerStor, _ := tr.EmitInit(outer, kindAlpha, nil)

			Expect(tr.EmitBefore(outer, outerStor)).To(Succeed())

			inner := tr.NewID()
			tr.EmitInit(inner, kindBeta, nil)

			rec, ok := tr.LookupByID(inner)
			Expect(ok).To(BeTrue())
			Expect(rec.Parent).To(Equal(outer))

			Expect(tr.EmitAfter(outer, outerStor, false)).To(Succeed())
		})

		It("should track nesting in both hooks and stack", func() {
			j := &journal{name: "h"}
			tr.Register(j.funcs()).Enable()

			outer := tr.NewID()
			outerStor, _ := tr.EmitInit(outer, kindAlpha, nil)
			tr.EmitBefore(outer, outerStor)

			inner := tr.NewID()
			innerStor, _ := tr.EmitInit(inner, kindBeta, nil)
			tr.EmitBefore(inner, innerStor)

			Expect(tr.Stack()).To(Equal([]AsyncID{outer, inner}))

			tr.EmitAfter(inner, innerStor, false)
			tr.EmitAfter(outer, outerStor, false)

			j.mustMatch(
				"h init 1 test.alpha parent=none",
				"h before 1",
				"h init 2 test.beta parent=1",
				"h before 2",
				"h after 2 failed=false",
				"h after 1 failed=false",
			)
		})

		It("should panic on crossed windows", func() {
			a := tr.NewID()
			aStor, _ := tr.EmitInit(a, kindAlpha, nil)
			b := tr.NewID()
			bStor, _ := tr.EmitInit(b, kindAlpha, nil)

			tr.EmitBefore(a, aStor)
			tr.EmitBefore(b, bStor)

			Expect(func() {
				tr.EmitAfter(a, aStor, false)
			}).To(Panic())
		})

		It("should panic on exit without entry", func() {
			id := tr.NewID()
			stor, _ := tr.EmitInit(id, kindAlpha, nil)

			Expect(func() {
				tr.EmitAfter(id, stor, false)
			}).To(Panic())
		})

		It("should panic when a running resource is re-entered", func() {
			id := tr.NewID()
			stor, _ := tr.EmitInit(id, kindAlpha, nil)

			tr.EmitBefore(id, stor)

			Expect(func() {
				tr.EmitBefore(id, stor)
			}).To(Panic())

			tr.EmitAfter(id, stor, false)
		})

		It("should pass the failure flag through", func() {
			j := &journal{name: "h"}
			tr.Register(j.funcs()).Enable()

			id := tr.NewID()
			stor, _ := tr.EmitInit(id, kindAlpha, nil)
			tr.EmitBefore(id, stor)
			tr.EmitAfter(id, stor, true)

			j.mustMatch(
				"h init 1 test.alpha parent=none",
				"h before 1",
				"h after 1 failed=true",
			)
		})
	})

	Context("destruction", func() {
		It("should fire destroy at most once", func() {
			j := &journal{name: "h"}
			tr.Register(j.funcs()).Enable()

			id := tr.NewID()
			stor, _ := tr.EmitInit(id, kindAlpha, nil)

			Expect(tr.EmitDestroy(id, stor)).To(Succeed())
			Expect(tr.EmitDestroy(id, stor)).To(Succeed())

			j.mustMatch(
				"h init 1 test.alpha parent=none",
				"h destroy 1",
			)
		})

		It("should ignore unknown ids", func() {
			Expect(tr.EmitDestroy(AsyncID(42), nil)).To(Succeed())
		})

		It("should panic when the resource is still executing", func() {
			id := tr.NewID()
			stor, _ := tr.EmitInit(id, kindAlpha, nil)

			tr.EmitBefore(id, stor)

			Expect(func() {
				tr.EmitDestroy(id, stor)
			}).To(Panic())

			tr.EmitAfter(id, stor, false)
		})

		It("should release the record", func() {
			id := tr.NewID()
			stor, _ := tr.EmitInit(id, kindAlpha, nil)

			Expect(tr.NumLive()).To(Equal(1))

			tr.EmitDestroy(id, stor)

			Expect(tr.NumLive()).To(Equal(0))
			_, ok := tr.LookupByID(id)
			Expect(ok).To(BeFalse())
		})
	})

	Context("guards", func() {
		It("should reject the none id", func() {
			Expect(func() {
				tr.EmitInit(None, kindAlpha, nil)
			}).To(Panic())
			Expect(func() {
				tr.EmitBefore(None, nil)
			}).To(Panic())
			Expect(func() {
				tr.EmitDestroy(None, nil)
			}).To(Panic())
		})

		It("should reject unregistered kinds", func() {
			rogue := &Kind{Name: "test.rogue"}

			Expect(func() {
				tr.EmitInit(tr.NewID(), rogue, nil)
			}).To(Panic())
		})

		It("should reject duplicated init of one id", func() {
			id := tr.NewID()
			tr.EmitInit(id, kindAlpha, nil)

			Expect(func() {
				tr.EmitInit(id, kindAlpha, nil)
			}).To(Panic())
		})
	})
})
