package track

import (
	"fmt"
	"sync"
)

// Subsystem groups resource kinds by the part of the host they belong to.
type Subsystem string

// Subsystems used by the packages in this repository. Embedders are free to
// define their own.
const (
	SubsystemTimer Subsystem = "timer"
	SubsystemNet   Subsystem = "net"
	SubsystemFS    Subsystem = "fs"
	SubsystemPool  Subsystem = "pool"
	SubsystemTest  Subsystem = "test"
)

// Kind tags every tracked resource with a registered type name. Kinds are
// created once with RegisterKind and passed around as pointers, so two kinds
// are the same exactly when their pointers are equal.
type Kind struct {
	Name      string
	Subsystem Subsystem
}

func (k *Kind) String() string {
	return k.Name
}

var (
	kindLock   sync.RWMutex
	kindList   []*Kind
	kindByName = make(map[string]*Kind)
)

// RegisterKind registers a resource kind under a unique name. It is intended
// to be called from package variable initializers.
func RegisterKind(name string, sub Subsystem) *Kind {
	kindLock.Lock()
	defer kindLock.Unlock()

	if name == "" {
		panic("kind name must not be empty")
	}

	if _, ok := kindByName[name]; ok {
		panic(fmt.Sprintf("duplicated kind %s", name))
	}

	k := &Kind{Name: name, Subsystem: sub}
	kindByName[name] = k
	kindList = append(kindList, k)

	return k
}

// Kinds returns all registered kinds in registration order.
func Kinds() []*Kind {
	kindLock.RLock()
	defer kindLock.RUnlock()

	return append([]*Kind{}, kindList...)
}

// KindByName looks a kind up by its registered name.
func KindByName(name string) (*Kind, bool) {
	kindLock.RLock()
	defer kindLock.RUnlock()

	k, ok := kindByName[name]

	return k, ok
}

// KindsBySubsystem returns the registered kinds that belong to the given
// subsystem, in registration order.
func KindsBySubsystem(sub Subsystem) []*Kind {
	kindLock.RLock()
	defer kindLock.RUnlock()

	var out []*Kind

	for _, k := range kindList {
		if k.Subsystem == sub {
			out = append(out, k)
		}
	}

	return out
}
