package ast

import (
	"strconv"
	"sync"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueInteger
	ValueFloat
	ValueString
	ValueFunction
)

// Value is the small tagged union every Variable cell holds: Null, an
// Integer, a Float, a String, or a Function closing over a Block. It carries
// no array/object/reference kinds — those belong to a general-purpose type
// system this engine deliberately does not have.
type Value struct {
	Kind     ValueKind
	Integer  int64
	Float    float64
	Str      string
	Function *Block
}

func Null() Value                { return Value{Kind: ValueNull} }
func Integer(i int64) Value      { return Value{Kind: ValueInteger, Integer: i} }
func Float(f float64) Value      { return Value{Kind: ValueFloat, Float: f} }
func String(s string) Value      { return Value{Kind: ValueString, Str: s} }
func Function(b *Block) Value    { return Value{Kind: ValueFunction, Function: b} }

// ToString projects a Value to its string form per the core's formatting
// rules: "(null)" for Null, decimal for Integer, Go's default float
// formatting for Float, the raw contents for String, and the literal
// "<Function>" for Function.
func (v Value) ToString() string {
	switch v.Kind {
	case ValueNull:
		return "(null)"
	case ValueInteger:
		return strconv.FormatInt(v.Integer, 10)
	case ValueFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case ValueString:
		return v.Str
	case ValueFunction:
		return "<Function>"
	default:
		return "(null)"
	}
}

// Equal is structural equality over the scalar variants. Function equality
// is undefined and always reports false; CheckEq is never exercised against
// a Function operand by a well-formed program.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case ValueNull:
		return true
	case ValueInteger:
		return v.Integer == other.Integer
	case ValueFloat:
		return v.Float == other.Float
	case ValueString:
		return v.Str == other.Str
	default:
		return false
	}
}

// DeepClone returns a Value independent of v: scalars are copied by value
// already, and a Function's Block is cloned so the copy gets its own,
// cold JIT cache.
func (v Value) DeepClone() Value {
	if v.Kind == ValueFunction && v.Function != nil {
		return Value{Kind: ValueFunction, Function: v.Function.Clone()}
	}
	return v
}

// Variable is a shared-mutable cell holding exactly one Value. Copying a
// *Variable pointer aliases the same cell (shallow clone); DeepClone
// produces an independent cell. A Variable always holds a fully
// constructed Value.
type Variable struct {
	mu    sync.Mutex
	value Value
}

// NewVariable wraps v in a fresh cell.
func NewVariable(v Value) *Variable {
	return &Variable{value: v}
}

func (vr *Variable) Get() Value {
	vr.mu.Lock()
	defer vr.mu.Unlock()
	return vr.value
}

func (vr *Variable) Set(v Value) {
	vr.mu.Lock()
	defer vr.mu.Unlock()
	vr.value = v
}

// DeepClone builds a new, independent Variable from vr's current value.
func (vr *Variable) DeepClone() *Variable {
	return NewVariable(vr.Get().DeepClone())
}
