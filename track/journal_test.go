package track

import (
	"fmt"

	"github.com/onsi/gomega"
)

// journal records every callback a hook receives as one line, so specs can
// compare full dispatch transcripts.
type journal struct {
	name  string
	lines []string
}

func (j *journal) funcs() HookFuncs {
	return HookFuncs{
		Init: func(id AsyncID, kind *Kind, parent AsyncID, _ HandleRef) {
			j.append(fmt.Sprintf("%s init %s %s parent=%s",
				j.name, id, kind, parent))
		},
		Before: func(id AsyncID) {
			j.append(fmt.Sprintf("%s before %s", j.name, id))
		},
		After: func(id AsyncID, failed bool) {
			j.append(fmt.Sprintf("%s after %s failed=%v", j.name, id, failed))
		},
		Destroy: func(id AsyncID) {
			j.append(fmt.Sprintf("%s destroy %s", j.name, id))
		},
	}
}

func (j *journal) append(line string) {
	j.lines = append(j.lines, line)
}

func (j *journal) mustMatch(expected ...string) {
	gomega.ExpectWithOffset(1, j.lines).To(gomega.Equal(expected))
}

func (j *journal) mustBeEmpty() {
	gomega.ExpectWithOffset(1, j.lines).To(gomega.BeEmpty())
}
