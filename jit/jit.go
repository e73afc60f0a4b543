// Package jit implements the tier-up compiler: once a Block's
// interpreted call counter reaches ast.TierUpThreshold, Compile lowers its
// operation list into a CompiledEntry that the interpreter prefers on
// every subsequent call.
//
// Go offers no supported, stable way to call an arbitrary Go function
// from hand-assembled machine code (see native_call.go). This package
// therefore produces two artifacts from the same lowering pass: a real
// AMD64 byte sequence in executable memory (codegen.go, memory.go) for
// fidelity and inspection, and a safe "shadow program" — a slice of
// closures calling straight back into engine.Engine — which is what
// CompiledEntry.Run actually executes.
package jit

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/wudi/opcore/ast"
	"github.com/wudi/opcore/engine"
)

// ErrCallNotLowerable is returned by Compile when block contains a
// top-level Call operation. Lowering Call via a thunk is possible in
// principle; this package refuses instead, since Call's
// frame-push/eval/frame-pop-on-every-path discipline is exactly the kind
// of re-entrant, exception-unwinding control transfer the interpreter
// already handles correctly and the JIT's thunk model was never extended
// to cover.
var ErrCallNotLowerable = errors.New("jit: block contains a top-level Call operation, refusing to compile")

// BlockRunner re-enters the interpreter's block evaluator for a nested
// Block (an IfElse arm or a Loop body). Injecting this callback, rather
// than importing interp directly, is what lets jit depend only on ast and
// engine: interp, the tree-walker, is the only package that imports jit,
// and it wires this callback once, when interp.New builds its Compiler.
type BlockRunner func(h *engine.Handle, b *ast.Block) (ast.Signal, error)

// step is one unit of the safe shadow program.
type step func(h *engine.Handle) (ast.Signal, error)

// Compiler builds CompiledEntry values for Blocks once they cross the
// tier-up threshold.
type Compiler struct {
	runner BlockRunner
}

// NewCompiler builds a Compiler that re-enters nested blocks through
// runner.
func NewCompiler(runner BlockRunner) *Compiler {
	return &Compiler{runner: runner}
}

// CompiledEntry is the native entry point cached on a Block once
// compiled: one per Block, owning every resource whose address its
// generated machine code bakes in, per the core's resource-pinning
// requirement. It implements ast.CompiledBlock.
type CompiledEntry struct {
	handle *engine.Handle
	prog   []step

	// pinned keeps alive the per-op ExecInfo/Group pointers and the
	// IfElse/Loop sub-Blocks captured during lowering, for as long as
	// this entry lives. The Go closures in prog keep the same data alive
	// on their own; mem's bytes embed no addresses of these objects
	// (generateSkeleton leaves every thunk call site unpatched).
	pinned []interface{}

	mem       *ExecutableMemory
	byteCount int
}

// Compile lowers block's operations into a CompiledEntry bound to h.
func (c *Compiler) Compile(h *engine.Handle, block *ast.Block) (*CompiledEntry, error) {
	for _, op := range block.Ops {
		if op.Kind == ast.OpCall {
			return nil, ErrCallNotLowerable
		}
	}

	prog, pinned := c.lower(block.Ops)

	entry := &CompiledEntry{
		handle: h,
		prog:   prog,
		pinned: pinned,
	}

	if code, err := generateSkeleton(block.Ops); err == nil {
		if mem, merr := AllocateExecutableMemory(len(code)); merr == nil {
			if werr := mem.Write(code); werr == nil {
				entry.mem = mem
				entry.byteCount = len(code)
			} else {
				mem.Free()
			}
		}
	}
	// A failure anywhere in the real-bytes path is non-fatal: Run only
	// ever executes the shadow program above.

	return entry, nil
}

// lower builds the shadow program and the pinned-resource set for ops.
// Break stops lowering further operations, matching the core's "entry
// returns BREAK unconditionally from here" rule.
func (c *Compiler) lower(ops []ast.Operation) ([]step, []interface{}) {
	var prog []step
	var pinned []interface{}

	for i := range ops {
		op := &ops[i]
		switch op.Kind {
		case ast.OpExec:
			info := op.Exec
			pinned = append(pinned, info)
			prog = append(prog, func(h *engine.Handle) (ast.Signal, error) {
				return ast.OK, h.Engine().Exec(*info)
			})
		case ast.OpParallelExec:
			group := op.Group
			pinned = append(pinned, group)
			prog = append(prog, func(h *engine.Handle) (ast.Signal, error) {
				return ast.OK, h.Engine().ParallelExec(group)
			})
		case ast.OpBackgroundExec:
			info := op.Background
			pinned = append(pinned, info)
			prog = append(prog, func(h *engine.Handle) (ast.Signal, error) {
				return ast.OK, h.Engine().BackgroundExec(*info)
			})
		case ast.OpIfElse:
			thenB, elseB := op.Then, op.Else
			pinned = append(pinned, thenB, elseB)
			prog = append(prog, func(h *engine.Handle) (ast.Signal, error) {
				if h.Engine().LastExitStatus() != 0 {
					return c.runner(h, thenB)
				}
				return c.runner(h, elseB)
			})
		case ast.OpLoop:
			body := op.Body
			pinned = append(pinned, body)
			prog = append(prog, func(h *engine.Handle) (ast.Signal, error) {
				for {
					sig, err := c.runner(h, body)
					if err != nil {
						return 0, err
					}
					switch sig {
					case ast.OK, ast.CONTINUE:
						continue
					case ast.BREAK:
						return ast.OK, nil
					default:
						return sig, nil
					}
				}
			})
		case ast.OpBreak:
			prog = append(prog, func(h *engine.Handle) (ast.Signal, error) {
				return ast.BREAK, nil
			})
			return prog, pinned
		case ast.OpAssignGlobal:
			name, src := op.Name, op.Source
			prog = append(prog, func(h *engine.Handle) (ast.Signal, error) {
				v, ok := src.Eval(h.Engine())
				if !ok {
					return 0, fmt.Errorf("jit: AssignGlobal %q: missing source value", name)
				}
				h.Engine().AssignGlobal(name, v)
				return ast.OK, nil
			})
		case ast.OpAssignLocal:
			name, src := op.Name, op.Source
			prog = append(prog, func(h *engine.Handle) (ast.Signal, error) {
				v, ok := src.Eval(h.Engine())
				if !ok {
					return 0, fmt.Errorf("jit: AssignLocal %q: missing source value", name)
				}
				if err := h.Engine().AssignLocal(name, v); err != nil {
					return 0, err
				}
				return ast.OK, nil
			})
		case ast.OpEngineBacktrace:
			prog = append(prog, func(h *engine.Handle) (ast.Signal, error) {
				h.Engine().Backtrace()
				return ast.OK, nil
			})
		case ast.OpPrint:
			src := op.Text
			prog = append(prog, func(h *engine.Handle) (ast.Signal, error) {
				s, ok := src.Eval(h.Engine())
				h.Engine().Print(s, ok)
				return ast.OK, nil
			})
		case ast.OpCheckEq:
			left, right := op.Left, op.Right
			prog = append(prog, func(h *engine.Handle) (ast.Signal, error) {
				lv, lok := left.Eval(h.Engine())
				rv, rok := right.Eval(h.Engine())
				eq := lok && rok && lv.Get().Equal(rv.Get())
				if eq {
					h.Engine().SetLastExitStatus(1)
				} else {
					h.Engine().SetLastExitStatus(0)
				}
				return ast.OK, nil
			})
		}
	}
	return prog, pinned
}

// Run executes the shadow program in order, stopping at the first
// non-OK signal or error, exactly as the interpreted path walks a
// Block's operations.
func (c *CompiledEntry) Run() (ast.Signal, error) {
	for _, st := range c.prog {
		sig, err := st(c.handle)
		if err != nil {
			return 0, err
		}
		if sig != ast.OK {
			return sig, nil
		}
	}
	return ast.OK, nil
}

// Close releases the pinned real-bytes page, if one was allocated.
// Pinned Go-side resources need no explicit release; they are reclaimed
// by the garbage collector once this CompiledEntry is unreachable.
func (c *CompiledEntry) Close() {
	if c.mem != nil {
		_ = c.mem.Free()
		c.mem = nil
	}
}

// Stats returns a human-readable summary of this entry's compiled
// footprint, for diagnostics.
func (c *CompiledEntry) Stats() string {
	return fmt.Sprintf("%d ops, %s machine code, %d pinned resources",
		len(c.prog), humanize.Bytes(uint64(c.byteCount)), len(c.pinned))
}
