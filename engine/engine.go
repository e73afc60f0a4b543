// Package engine holds the interpreter's mutable state: globals, the call
// stack, last exit status, and the heap-pinned handle that JIT-compiled
// entries embed raw pointers into.
package engine

import (
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/wudi/opcore/ast"
	"github.com/wudi/opcore/procexec"
)

// FunctionState is one call frame: the locals of an active function
// invocation.
type FunctionState struct {
	vars map[string]*ast.Variable
}

func newFunctionState() *FunctionState {
	return &FunctionState{vars: make(map[string]*ast.Variable)}
}

// Engine is the interpreter's mutable state. It is never copied by value;
// callers reach it only through a Handle.
type Engine struct {
	lastExitStatus int32
	lastReturn     *ast.Variable
	callStack      []*FunctionState
	vars           map[string]*ast.Variable
	createdAt      time.Time
}

func newEngine() *Engine {
	return &Engine{
		vars:      make(map[string]*ast.Variable),
		createdAt: time.Now(),
	}
}

// LookupGlobal implements ast.Env.
func (e *Engine) LookupGlobal(name string) (*ast.Variable, bool) {
	v, ok := e.vars[name]
	return v, ok
}

// LookupLocal implements ast.Env. It requires a non-empty call stack: a
// top-level block has no local frame.
func (e *Engine) LookupLocal(name string) (*ast.Variable, bool) {
	if len(e.callStack) == 0 {
		return nil, false
	}
	v, ok := e.callStack[len(e.callStack)-1].vars[name]
	return v, ok
}

// LastExitStatus implements ast.Env.
func (e *Engine) LastExitStatus() int32 {
	return atomic.LoadInt32(&e.lastExitStatus)
}

// SetLastExitStatus is mutated only by process completions and CheckEq.
func (e *Engine) SetLastExitStatus(v int32) {
	atomic.StoreInt32(&e.lastExitStatus, v)
}

// LastReturnValue reports the value last stored with SetLastReturnValue,
// if any. No current operation, Call included, stores one.
func (e *Engine) LastReturnValue() (*ast.Variable, bool) {
	return e.lastReturn, e.lastReturn != nil
}

func (e *Engine) SetLastReturnValue(v *ast.Variable) {
	e.lastReturn = v
}

// AssignGlobal inserts or replaces vars[name].
func (e *Engine) AssignGlobal(name string, v *ast.Variable) {
	e.vars[name] = v
}

// AssignLocal inserts or replaces name in the top frame. Requires a
// non-empty call stack.
func (e *Engine) AssignLocal(name string, v *ast.Variable) error {
	if len(e.callStack) == 0 {
		return fmt.Errorf("engine: AssignLocal %q with empty call stack", name)
	}
	e.callStack[len(e.callStack)-1].vars[name] = v
	return nil
}

// PushFrame pushes a new, empty frame (entering a user function call).
func (e *Engine) PushFrame() {
	e.callStack = append(e.callStack, newFunctionState())
}

// PopFrame pops the top frame. Callers MUST call this on every exit path
// out of the callee's block, including an EXCEPTION signal.
func (e *Engine) PopFrame() {
	if len(e.callStack) == 0 {
		return
	}
	e.callStack = e.callStack[:len(e.callStack)-1]
}

// StackDepth reports the current call-stack depth (for tests).
func (e *Engine) StackDepth() int {
	return len(e.callStack)
}

// Print writes s (or "(undefined)" if absent) with a trailing newline to
// stdout, per the core's Print semantics.
func (e *Engine) Print(s string, ok bool) {
	if !ok {
		s = "(undefined)"
	}
	fmt.Println(s)
}

// Backtrace writes a native stack backtrace, tagged with the engine's
// uptime, to stderr. EngineBacktrace has no analogue in the interpreter's
// original design; this is its defined shape.
func (e *Engine) Backtrace() {
	log.Printf("engine: backtrace requested, uptime %s", humanize.Time(e.createdAt))
	fmt.Fprint(os.Stderr, string(debug.Stack()))
}

// Exec delegates to the process orchestrator as a singleton group, and
// records the exit status.
func (e *Engine) Exec(info ast.ExecInfo) error {
	status, err := procexec.Exec(e, info)
	if err != nil {
		return err
	}
	e.SetLastExitStatus(status)
	return nil
}

// ParallelExec delegates to the orchestrator with the full group.
func (e *Engine) ParallelExec(group []ast.ExecInfo) error {
	status, err := procexec.RunGroup(e, group)
	if err != nil {
		return err
	}
	e.SetLastExitStatus(status)
	return nil
}

// BackgroundExec spawns and supervises info independently; no exit status
// is recorded.
func (e *Engine) BackgroundExec(info ast.ExecInfo) error {
	return procexec.RunBackground(e, info)
}
