package ast

import "strings"

// StringSourceKind tags a StringSource variant.
type StringSourceKind int

const (
	StringPlain StringSourceKind = iota
	StringGlobalVariable
	StringLocalVariable
	StringFromValue
	StringJoin
)

// StringSource is a lazy string producer. Evaluation returns an absent
// result (ok == false) exactly when a named variable lookup misses; callers
// decide per-operation what an absent string means (Print substitutes
// "(undefined)"; an assignment source instead treats it as fatal).
type StringSource struct {
	Kind StringSourceKind
	Plain string
	Name  string
	Value *ValueSource
	Join  []StringSource
}

func PlainString(s string) StringSource { return StringSource{Kind: StringPlain, Plain: s} }

// Eval resolves the string this source produces against env.
func (s StringSource) Eval(env Env) (string, bool) {
	switch s.Kind {
	case StringPlain:
		return s.Plain, true
	case StringGlobalVariable:
		v, ok := env.LookupGlobal(s.Name)
		if !ok {
			return "", false
		}
		return v.Get().ToString(), true
	case StringLocalVariable:
		v, ok := env.LookupLocal(s.Name)
		if !ok {
			return "", false
		}
		return v.Get().ToString(), true
	case StringFromValue:
		if s.Value == nil {
			return "", false
		}
		v, ok := s.Value.Eval(env)
		if !ok {
			return "", false
		}
		return v.Get().ToString(), true
	case StringJoin:
		var b strings.Builder
		for _, part := range s.Join {
			str, ok := part.Eval(env)
			if !ok {
				return "", false
			}
			b.WriteString(str)
		}
		return b.String(), true
	default:
		return "", false
	}
}

// ValueSourceKind tags a ValueSource variant.
type ValueSourceKind int

const (
	ValueSourcePlain ValueSourceKind = iota
	ValueSourceGlobalVariable
	ValueSourceLocalVariable
	ValueSourceFromString
	ValueSourceLastExitStatus
)

// ValueSource is a lazy Value producer. Evaluation returns an absent
// result exactly when a named variable lookup misses; LastExitStatus
// always succeeds, producing a freshly constructed Integer Variable.
type ValueSource struct {
	Kind   ValueSourceKind
	Plain  Value
	Name   string
	String *StringSource
}

// Eval resolves the Variable this source produces against env. The
// returned *Variable for Plain and LastExitStatus is always freshly
// constructed; for the GlobalVariable/LocalVariable cases it aliases the
// live cell.
func (v ValueSource) Eval(env Env) (*Variable, bool) {
	switch v.Kind {
	case ValueSourcePlain:
		return NewVariable(v.Plain), true
	case ValueSourceGlobalVariable:
		return env.LookupGlobal(v.Name)
	case ValueSourceLocalVariable:
		return env.LookupLocal(v.Name)
	case ValueSourceFromString:
		if v.String == nil {
			return nil, false
		}
		s, ok := v.String.Eval(env)
		if !ok {
			return nil, false
		}
		return NewVariable(String(s)), true
	case ValueSourceLastExitStatus:
		return NewVariable(Integer(int64(env.LastExitStatus()))), true
	default:
		return nil, false
	}
}
