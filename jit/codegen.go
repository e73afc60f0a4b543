package jit

import (
	"fmt"

	"github.com/wudi/opcore/ast"
)

// jumpFixup is a forward reference to patch once every label's final
// position is known.
type jumpFixup struct {
	pos   int
	label string
	near  bool // true: 1-byte rel8 jcc/jmp, false: 4-byte rel32
}

// amd64Generator emits real x86-64 bytes for a Block's control-flow
// skeleton: prologue, epilogue, and the branch/loop structure of IfElse
// and Loop. Calls into the runtime thunks are represented as CALL rel32
// sites whose displacement is left at zero, because Go gives no
// officially supported way to bake a callable address to an arbitrary Go
// function into hand-written machine code (see native_call.go). This
// generator exists for fidelity and inspection; CompiledEntry.Run never
// executes these bytes by default.
type amd64Generator struct {
	code   []byte
	labels map[string]int
	fixups []jumpFixup
}

func newAMD64Generator() *amd64Generator {
	return &amd64Generator{labels: make(map[string]int)}
}

func (g *amd64Generator) emit(b ...byte) { g.code = append(g.code, b...) }

func (g *amd64Generator) label(name string) { g.labels[name] = len(g.code) }

func (g *amd64Generator) prologue() {
	g.emit(0x55)             // push rbp
	g.emit(0x48, 0x89, 0xe5) // mov rbp, rsp
}

func (g *amd64Generator) epilogue(signal ast.Signal) {
	// mov eax, imm32
	g.emit(0xb8, byte(signal), byte(signal>>8), byte(signal>>16), byte(signal>>24))
	g.emit(0x5d) // pop rbp
	g.emit(0xc3) // ret
}

// callThunk emits a placeholder CALL rel32 to name. The displacement is
// never patched: name is recorded only so fixup can check it.
func (g *amd64Generator) callThunk(name string) {
	g.emit(0xe8, 0, 0, 0, 0) // call rel32, patched later
	g.fixups = append(g.fixups, jumpFixup{pos: len(g.code) - 4, label: name, near: false})
}

// jmpIfZero emits a test+je on whatever eax holds, per IfElse's inverted
// truth convention. generateSkeleton emits no load of last_exit_status
// into eax before it.
func (g *amd64Generator) jmpIfZero(label string) {
	g.emit(0x85, 0xc0)      // test eax, eax
	g.emit(0x0f, 0x84, 0, 0, 0, 0) // je rel32
	g.fixups = append(g.fixups, jumpFixup{pos: len(g.code) - 4, label: label, near: false})
}

func (g *amd64Generator) jmp(label string) {
	g.emit(0xe9, 0, 0, 0, 0) // jmp rel32
	g.fixups = append(g.fixups, jumpFixup{pos: len(g.code) - 4, label: label, near: false})
}

// fixup patches every recorded fixup against either a local label or an
// external trampoline address supplied by resolve.
func (g *amd64Generator) fixup(resolve func(label string) (target int, external bool, addr uintptr)) error {
	for _, f := range g.fixups {
		target, external, addr := resolve(f.label)
		var rel int64
		if external {
			// External thunk call sites keep their zero displacement;
			// nothing in this package links them to real addresses,
			// Compile included. Here we just validate the label was
			// recognised.
			if addr == 0 {
				return fmt.Errorf("jit: unresolved external label %q", f.label)
			}
			continue
		}
		rel = int64(target - (f.pos + 4))
		g.code[f.pos] = byte(rel)
		g.code[f.pos+1] = byte(rel >> 8)
		g.code[f.pos+2] = byte(rel >> 16)
		g.code[f.pos+3] = byte(rel >> 24)
	}
	return nil
}

// generateSkeleton emits a representative native entry for block: a
// prologue, one callThunk per top-level operation (local label targets
// only — external thunk addresses are never actually linked in, per the
// package doc), the IfElse/Loop branch skeleton, and an epilogue
// returning OK. It is never a complete, correct translation; see the
// package-level doc comment on amd64Generator.
func generateSkeleton(ops []ast.Operation) ([]byte, error) {
	g := newAMD64Generator()
	g.prologue()
	for i, op := range ops {
		switch op.Kind {
		case ast.OpIfElse:
			elseLabel := fmt.Sprintf("op%d_else", i)
			contLabel := fmt.Sprintf("op%d_cont", i)
			g.jmpIfZero(elseLabel)
			g.callThunk("call_block_wrapper")
			g.jmp(contLabel)
			g.label(elseLabel)
			g.callThunk("call_block_wrapper")
			g.label(contLabel)
		case ast.OpLoop:
			loopLabel := fmt.Sprintf("op%d_loop", i)
			g.label(loopLabel)
			g.callThunk("call_block_wrapper")
			g.jmp(loopLabel)
		case ast.OpBreak:
			g.epilogue(ast.BREAK)
			return g.code, nil
		default:
			g.callThunk(thunkNameFor(op.Kind))
		}
	}
	g.epilogue(ast.OK)
	if err := g.fixup(func(label string) (int, bool, uintptr) {
		if pos, ok := g.labels[label]; ok {
			return pos, false, 0
		}
		return 0, true, 1 // external thunk: resolved symbolically only
	}); err != nil {
		return nil, err
	}
	return g.code, nil
}

func thunkNameFor(k ast.OpKind) string {
	switch k {
	case ast.OpExec:
		return "handle_exec_wrapper"
	case ast.OpParallelExec:
		return "handle_parallel_exec_wrapper"
	case ast.OpBackgroundExec:
		return "handle_background_exec_wrapper"
	case ast.OpAssignGlobal:
		return "handle_global_assign"
	case ast.OpAssignLocal:
		return "handle_local_assign"
	case ast.OpEngineBacktrace:
		return "handle_engine_backtrace"
	case ast.OpPrint:
		return "handle_print"
	case ast.OpCheckEq:
		return "handle_check_eq"
	default:
		return "handle_noop"
	}
}
