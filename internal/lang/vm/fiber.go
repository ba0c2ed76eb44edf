package vm

import (
	"github.com/ehrlich-b/mudcore/internal/world/value"
)

// fiber is one suspendable top-level script invocation. Nested script
// calls (OpCall into another script Function) recurse as ordinary Go
// calls within the same fiber's goroutine; only `await` parks it.
type fiber struct {
	doneCh   chan fiberResult
	resumeCh chan struct{}
}

// fiberResult is sent on doneCh each time the fiber's goroutine stops
// running: either because it finished (done=true) or because it parked on
// an await (awaiting holds the Future it's waiting on).
type fiberResult struct {
	awaiting *value.Future
	result   value.Value
	err      error
	done     bool
}

func newFiber() *fiber {
	return &fiber{
		doneCh:   make(chan fiberResult),
		resumeCh: make(chan struct{}),
	}
}

// run is the fiber's goroutine body: execute the top frame to completion,
// reporting the final result. Calls vm.run directly; any OpAwait reached
// while inside that call is handled by awaitValue below, which reports a
// pause on doneCh and blocks this same goroutine on resumeCh.
func (f *fiber) run(vm *VM, frame *Frame) {
	result, err := vm.run(f, frame)
	f.doneCh <- fiberResult{result: result, err: err, done: true}
}

// awaitValue suspends the fiber until its driver calls the Future's Arm
// resume callback, which sends on resumeCh. The await expression's own
// value is always nil: futures resolve by side effect (the awaited
// subsystem writes wherever the script told it to), not by return value.
func (f *fiber) awaitValue(fut *value.Future) value.Value {
	f.doneCh <- fiberResult{awaiting: fut}
	<-f.resumeCh
	return value.NilV()
}
