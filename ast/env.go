package ast

// Env is the narrow lookup surface StringSource and ValueSource evaluate
// against. engine.Engine implements it; keeping it here (rather than in
// engine) lets ast stay a leaf package with no knowledge of call frames,
// process orchestration, or the JIT.
type Env interface {
	LookupGlobal(name string) (*Variable, bool)
	LookupLocal(name string) (*Variable, bool)
	LastExitStatus() int32
}

// CompiledBlock is the narrow surface a Block's JIT cache slot needs. The
// jit package's CompiledEntry implements it; a Block never imports jit
// directly, which is what keeps ast free of a package cycle back to jit
// (which in turn depends on ast and engine).
type CompiledBlock interface {
	Run() (Signal, error)
	Close()
}
