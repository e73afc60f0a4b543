package ast

import "sync"

// TierUpThreshold is the fixed number of interpreted eval_block
// completions after which a Block's compiled entry is synthesized. It is
// not configurable: the core specifies it as a fixed constant, not a
// tunable parameter.
const TierUpThreshold = 3

// Block is an ordered list of Operations plus a JIT cache slot and a call
// counter, both private to this Block instance. Cloning a Block resets
// both: compiled code belongs only to the original.
type Block struct {
	Ops []Operation

	mu        sync.Mutex
	callCount int
	compiled  CompiledBlock
}

// NewBlock wraps ops into a cold Block (no compiled entry, zero counter).
func NewBlock(ops []Operation) *Block {
	return &Block{Ops: ops}
}

// Compiled returns the cached native entry, if any.
func (b *Block) Compiled() CompiledBlock {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.compiled
}

// RecordCall increments the call counter and reports whether it just
// crossed TierUpThreshold. Only the interpreter's uncompiled path calls
// this, so it runs at most once per eval_block completion.
func (b *Block) RecordCall() (crossedThreshold bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.compiled != nil {
		return false
	}
	b.callCount++
	return b.callCount == TierUpThreshold
}

// CallCount reports the current counter value (for tests and diagnostics).
func (b *Block) CallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.callCount
}

// SetCompiled installs a compiled entry, replacing and closing any
// previous one. Pass nil to decompile.
func (b *Block) SetCompiled(cb CompiledBlock) {
	b.mu.Lock()
	prev := b.compiled
	b.compiled = cb
	b.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
}

// Clone deep-clones the operation tree: a fresh Block with its own,
// cold JIT cache and counter, and independently addressable sub-Blocks
// (If/Else/Loop bodies) and Function values so the clone's own JIT never
// aliases the original's.
func (b *Block) Clone() *Block {
	ops := make([]Operation, len(b.Ops))
	for i, op := range b.Ops {
		ops[i] = op.clone()
	}
	return NewBlock(ops)
}

func (op Operation) clone() Operation {
	out := op
	if op.Exec != nil {
		e := *op.Exec
		out.Exec = &e
	}
	if op.Group != nil {
		out.Group = append([]ExecInfo(nil), op.Group...)
	}
	if op.Background != nil {
		e := *op.Background
		out.Background = &e
	}
	if op.Then != nil {
		out.Then = op.Then.Clone()
	}
	if op.Else != nil {
		out.Else = op.Else.Clone()
	}
	if op.Body != nil {
		out.Body = op.Body.Clone()
	}
	out.Source = op.Source.clone()
	out.Left = op.Left.clone()
	out.Right = op.Right.clone()
	out.Target = op.Target.clone()
	return out
}

func (v ValueSource) clone() ValueSource {
	out := v
	if v.Kind == ValueSourcePlain {
		out.Plain = v.Plain.DeepClone()
	}
	if v.String != nil {
		s := v.String.clone()
		out.String = &s
	}
	return out
}

func (s StringSource) clone() StringSource {
	out := s
	if s.Value != nil {
		v := s.Value.clone()
		out.Value = &v
	}
	if s.Join != nil {
		out.Join = make([]StringSource, len(s.Join))
		for i, j := range s.Join {
			out.Join[i] = j.clone()
		}
	}
	return out
}
