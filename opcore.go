// Package opcore is the embedding surface for the core: engine_create/
// engine_destroy/engine_clone, block_load/block_destroy, and
// engine_eval_block, expressed as plain Go functions rather than a C-FFI
// boundary.
package opcore

import (
	"fmt"
	"os"

	"github.com/wudi/opcore/ast"
	"github.com/wudi/opcore/engine"
	"github.com/wudi/opcore/interp"
)

// defaultInterp is the single Interpreter used by EngineEvalBlock. It
// holds no per-call state beyond the JIT compiler's injected block
// runner, so sharing it across every Handle and Block is safe.
var defaultInterp = interp.New()

// EngineCreate returns a fresh engine Handle, analogous to engine_create.
func EngineCreate() *engine.Handle {
	return engine.Create()
}

// EngineDestroy releases a reference to handle, analogous to
// engine_destroy.
func EngineDestroy(handle *engine.Handle) {
	handle.Close()
}

// EngineClone deep-clones handle's engine state, including variables and
// call frames, analogous to engine_clone.
func EngineClone(handle *engine.Handle) *engine.Handle {
	return handle.Clone()
}

// BlockLoad decodes data (a JSON document matching the core's external
// schema) into a Block, analogous to block_load. It returns nil on
// decode failure, having already written a diagnostic to stderr.
func BlockLoad(data []byte) *ast.Block {
	block, err := ast.LoadBlock(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "block_load: %v\n", err)
		return nil
	}
	return block
}

// BlockDestroy exists for symmetry with the embedding surface's
// block_destroy; Blocks are garbage collected once unreachable, so this
// is a no-op kept for callers that mirror the foreign-callable contract
// exactly.
func BlockDestroy(block *ast.Block) {}

// EngineEvalBlock evaluates block against handle and returns the final
// control signal, analogous to engine_eval_block. An evaluation-fatal
// error (a process orchestrator ExecError, or a missing assignment
// source) is reported to stderr and surfaced as EXCEPTION.
func EngineEvalBlock(handle *engine.Handle, block *ast.Block) int32 {
	sig, err := defaultInterp.EvalBlock(handle, block)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine_eval_block: %v\n", err)
		return int32(ast.EXCEPTION)
	}
	return int32(sig)
}
