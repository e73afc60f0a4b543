// Package interp is the tree-walking interpreter: eval_block/eval_op over
// an ast.Block, dispatching to the process orchestrator and engine state
// mutators, and triggering the JIT once a Block's call counter crosses
// ast.TierUpThreshold.
package interp

import (
	"fmt"

	"github.com/wudi/opcore/ast"
	"github.com/wudi/opcore/engine"
	"github.com/wudi/opcore/jit"
)

// Interpreter walks operation trees and owns the JIT compiler that
// compiles blocks on their behalf. Interpreter holds no per-call state;
// a single Interpreter can evaluate any number of independent engine
// Handles concurrently is NOT claimed here — see the core's
// single-threaded scheduling model — but the same Interpreter value is
// safe to reuse across sequential evaluations.
type Interpreter struct {
	compiler *jit.Compiler
}

// New builds an Interpreter.
func New() *Interpreter {
	in := &Interpreter{}
	in.compiler = jit.NewCompiler(in.runBlock)
	return in
}

// runBlock adapts EvalBlock to jit.BlockRunner, letting compiled entries
// re-enter nested Blocks (IfElse arms, Loop bodies) through the same
// tier-up logic as any other block.
func (in *Interpreter) runBlock(h *engine.Handle, b *ast.Block) (ast.Signal, error) {
	return in.EvalBlock(h, b)
}

// EvalBlock evaluates block against h. If block has a cached compiled
// entry, that entry runs in preference to tree-walking, against the
// Handle it was compiled with (which need not be h). Otherwise the
// operations are walked in order, propagating the first non-OK signal
// or error. On an uncompiled completion (no error), the call counter is
// incremented; crossing ast.TierUpThreshold synthesizes and caches a
// compiled entry for next time.
func (in *Interpreter) EvalBlock(h *engine.Handle, block *ast.Block) (ast.Signal, error) {
	if compiled := block.Compiled(); compiled != nil {
		return compiled.Run()
	}

	sig, err := in.walk(h, block)
	if err != nil {
		return sig, err
	}

	if block.RecordCall() {
		if entry, cerr := in.compiler.Compile(h, block); cerr == nil {
			block.SetCompiled(entry)
		}
		// A refusal (e.g. jit.ErrCallNotLowerable) leaves the block
		// permanently interpreted: RecordCall only reports a crossing
		// once, at callCount == ast.TierUpThreshold.
	}

	return sig, nil
}

func (in *Interpreter) walk(h *engine.Handle, block *ast.Block) (ast.Signal, error) {
	for i := range block.Ops {
		sig, err := in.EvalOp(h, &block.Ops[i])
		if err != nil {
			return sig, err
		}
		if sig != ast.OK {
			return sig, nil
		}
	}
	return ast.OK, nil
}

// EvalOp evaluates a single operation against h.
func (in *Interpreter) EvalOp(h *engine.Handle, op *ast.Operation) (ast.Signal, error) {
	eng := h.Engine()

	switch op.Kind {
	case ast.OpExec:
		return ast.OK, eng.Exec(*op.Exec)

	case ast.OpParallelExec:
		return ast.OK, eng.ParallelExec(op.Group)

	case ast.OpBackgroundExec:
		return ast.OK, eng.BackgroundExec(*op.Background)

	case ast.OpIfElse:
		// Inverted truth convention: non-zero last_exit_status selects
		// the THEN block; zero selects ELSE. Do not "fix" this.
		if eng.LastExitStatus() != 0 {
			return in.EvalBlock(h, op.Then)
		}
		return in.EvalBlock(h, op.Else)

	case ast.OpLoop:
		for {
			sig, err := in.EvalBlock(h, op.Body)
			if err != nil {
				return sig, err
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

	case ast.OpBreak:
		return ast.BREAK, nil

	case ast.OpAssignGlobal:
		v, ok := op.Source.Eval(eng)
		if !ok {
			return 0, fmt.Errorf("interp: AssignGlobal %q: missing source value", op.Name)
		}
		eng.AssignGlobal(op.Name, v)
		return ast.OK, nil

	case ast.OpAssignLocal:
		v, ok := op.Source.Eval(eng)
		if !ok {
			return 0, fmt.Errorf("interp: AssignLocal %q: missing source value", op.Name)
		}
		if err := eng.AssignLocal(op.Name, v); err != nil {
			return 0, err
		}
		return ast.OK, nil

	case ast.OpEngineBacktrace:
		eng.Backtrace()
		return ast.OK, nil

	case ast.OpPrint:
		s, ok := op.Text.Eval(eng)
		eng.Print(s, ok)
		return ast.OK, nil

	case ast.OpCheckEq:
		lv, lok := op.Left.Eval(eng)
		rv, rok := op.Right.Eval(eng)
		if lok && rok && lv.Get().Equal(rv.Get()) {
			eng.SetLastExitStatus(1)
		} else {
			eng.SetLastExitStatus(0)
		}
		return ast.OK, nil

	case ast.OpCall:
		return in.call(h, op.Target)

	default:
		return 0, fmt.Errorf("interp: unrecognised operation kind %d", op.Kind)
	}
}

// call evaluates src; if it yields a Function, pushes a frame, evaluates
// the function's Block, and pops the frame on every exit path — success,
// a non-OK signal from the callee (folded to EXCEPTION per the core's
// error-handling design), or an evaluation error.
func (in *Interpreter) call(h *engine.Handle, src ast.ValueSource) (ast.Signal, error) {
	eng := h.Engine()
	v, ok := src.Eval(eng)
	if !ok {
		return ast.EXCEPTION, nil
	}
	val := v.Get()
	if val.Kind != ast.ValueFunction || val.Function == nil {
		return ast.EXCEPTION, nil
	}

	eng.PushFrame()
	sig, err := in.EvalBlock(h, val.Function)
	eng.PopFrame()

	if err != nil {
		return 0, err
	}
	if sig != ast.OK {
		return ast.EXCEPTION, nil
	}
	return ast.OK, nil
}
