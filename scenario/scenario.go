// Package scenario provides the named bufio stress scenarios.
//
// Scenarios register themselves by name at init time; callers look
// them up, hand them a Fixture, and get back the run's report.
package scenario

import (
	"fmt"
	"sort"

	"github.com/chazu/bufgrind/device"
	"github.com/chazu/bufgrind/harness"
)

// Func is a runnable scenario. It builds a thread set against the
// fixture's device, runs it, and returns the run's report.
type Func func(*Fixture) (*harness.RunReport, error)

// Fixture carries everything a scenario needs to run.
type Fixture struct {
	Dev     device.Device
	Threads int // concurrent programs in the multi-program scenarios
	Gets    int // buffer gets per program
	Blocks  int // blocks dirtied by the writeback scenarios
}

var registry = map[string]Func{}

// Register adds a named scenario. Names must be unique; registering a
// name twice panics.
func Register(name string, fn Func) {
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("scenario: duplicate registration of %s", name))
	}
	registry[name] = fn
}

// Lookup returns the scenario registered under name.
func Lookup(name string) (Func, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Names returns all registered scenario names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
