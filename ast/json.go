package ast

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// decodeTag extracts the single key and its raw payload from an externally
// tagged JSON object, rejecting anything but exactly one key.
func decodeTag(data []byte) (string, json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := strictUnmarshal(data, &m); err != nil {
		return "", nil, err
	}
	if len(m) != 1 {
		return "", nil, fmt.Errorf("ast: tagged object must have exactly one key, got %d", len(m))
	}
	for k, v := range m {
		return k, v, nil
	}
	panic("unreachable")
}

// strictUnmarshal decodes data into v using a Decoder configured to reject
// unrecognised fields, matching the external schema's strict-decoding rule.
func strictUnmarshal(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// UnmarshalJSON decodes a Value: the bare string "Null", or one of
// {"Integer":n} {"Float":n} {"String":s} {"Function":Block}.
func (v *Value) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		if bare == "Null" {
			*v = Null()
			return nil
		}
		return fmt.Errorf("ast: unrecognised Value tag %q", bare)
	}
	tag, payload, err := decodeTag(data)
	if err != nil {
		return fmt.Errorf("ast: decoding Value: %w", err)
	}
	switch tag {
	case "Integer":
		var n int64
		if err := json.Unmarshal(payload, &n); err != nil {
			return fmt.Errorf("ast: Value.Integer: %w", err)
		}
		*v = Integer(n)
	case "Float":
		var f float64
		if err := json.Unmarshal(payload, &f); err != nil {
			return fmt.Errorf("ast: Value.Float: %w", err)
		}
		*v = Float(f)
	case "String":
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return fmt.Errorf("ast: Value.String: %w", err)
		}
		*v = String(s)
	case "Function":
		var b Block
		if err := json.Unmarshal(payload, &b); err != nil {
			return fmt.Errorf("ast: Value.Function: %w", err)
		}
		*v = Function(&b)
	default:
		return fmt.Errorf("ast: unrecognised Value tag %q", tag)
	}
	return nil
}

// UnmarshalJSON decodes a StdioConfig: the bare string "Inherit", or
// {"Pipe": name}.
func (s *StdioConfig) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		if bare == "Inherit" {
			*s = Inherit()
			return nil
		}
		return fmt.Errorf("ast: unrecognised StdioConfig tag %q", bare)
	}
	tag, payload, err := decodeTag(data)
	if err != nil {
		return fmt.Errorf("ast: decoding StdioConfig: %w", err)
	}
	if tag != "Pipe" {
		return fmt.Errorf("ast: unrecognised StdioConfig tag %q", tag)
	}
	var name string
	if err := json.Unmarshal(payload, &name); err != nil {
		return fmt.Errorf("ast: StdioConfig.Pipe: %w", err)
	}
	*s = PipeName(name)
	return nil
}

// UnmarshalJSON decodes a StringSource.
func (s *StringSource) UnmarshalJSON(data []byte) error {
	tag, payload, err := decodeTag(data)
	if err != nil {
		return fmt.Errorf("ast: decoding StringSource: %w", err)
	}
	switch tag {
	case "Plain":
		var str string
		if err := json.Unmarshal(payload, &str); err != nil {
			return fmt.Errorf("ast: StringSource.Plain: %w", err)
		}
		*s = StringSource{Kind: StringPlain, Plain: str}
	case "GlobalVariable":
		var name string
		if err := json.Unmarshal(payload, &name); err != nil {
			return fmt.Errorf("ast: StringSource.GlobalVariable: %w", err)
		}
		*s = StringSource{Kind: StringGlobalVariable, Name: name}
	case "LocalVariable":
		var name string
		if err := json.Unmarshal(payload, &name); err != nil {
			return fmt.Errorf("ast: StringSource.LocalVariable: %w", err)
		}
		*s = StringSource{Kind: StringLocalVariable, Name: name}
	case "Value":
		var vs ValueSource
		if err := json.Unmarshal(payload, &vs); err != nil {
			return fmt.Errorf("ast: StringSource.Value: %w", err)
		}
		*s = StringSource{Kind: StringFromValue, Value: &vs}
	case "Join":
		var list []StringSource
		if err := json.Unmarshal(payload, &list); err != nil {
			return fmt.Errorf("ast: StringSource.Join: %w", err)
		}
		*s = StringSource{Kind: StringJoin, Join: list}
	default:
		return fmt.Errorf("ast: unrecognised StringSource tag %q", tag)
	}
	return nil
}

// UnmarshalJSON decodes a ValueSource.
func (v *ValueSource) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		if bare == "LastExitStatus" {
			*v = ValueSource{Kind: ValueSourceLastExitStatus}
			return nil
		}
		return fmt.Errorf("ast: unrecognised ValueSource tag %q", bare)
	}
	tag, payload, err := decodeTag(data)
	if err != nil {
		return fmt.Errorf("ast: decoding ValueSource: %w", err)
	}
	switch tag {
	case "Plain":
		var val Value
		if err := json.Unmarshal(payload, &val); err != nil {
			return fmt.Errorf("ast: ValueSource.Plain: %w", err)
		}
		*v = ValueSource{Kind: ValueSourcePlain, Plain: val}
	case "GlobalVariable":
		var name string
		if err := json.Unmarshal(payload, &name); err != nil {
			return fmt.Errorf("ast: ValueSource.GlobalVariable: %w", err)
		}
		*v = ValueSource{Kind: ValueSourceGlobalVariable, Name: name}
	case "LocalVariable":
		var name string
		if err := json.Unmarshal(payload, &name); err != nil {
			return fmt.Errorf("ast: ValueSource.LocalVariable: %w", err)
		}
		*v = ValueSource{Kind: ValueSourceLocalVariable, Name: name}
	case "String":
		var ss StringSource
		if err := json.Unmarshal(payload, &ss); err != nil {
			return fmt.Errorf("ast: ValueSource.String: %w", err)
		}
		*v = ValueSource{Kind: ValueSourceFromString, String: &ss}
	default:
		return fmt.Errorf("ast: unrecognised ValueSource tag %q", tag)
	}
	return nil
}

// jsonEnvEntry mirrors the external {"key":..,"value":..} schema.
type jsonEnvEntry struct {
	Key   StringSource `json:"key"`
	Value StringSource `json:"value"`
}

// UnmarshalJSON decodes an EnvEntry from {"key":StringSource,"value":StringSource}.
func (e *EnvEntry) UnmarshalJSON(data []byte) error {
	var j jsonEnvEntry
	if err := strictUnmarshal(data, &j); err != nil {
		return fmt.Errorf("ast: decoding EnvEntry: %w", err)
	}
	e.Key = j.Key
	e.Value = j.Value
	return nil
}

// jsonExecInfo mirrors the external ExecInfo schema.
type jsonExecInfo struct {
	Command []StringSource `json:"command"`
	Env     []EnvEntry     `json:"env"`
	Stdin   StdioConfig    `json:"stdin"`
	Stdout  StdioConfig    `json:"stdout"`
}

// UnmarshalJSON decodes an ExecInfo.
func (e *ExecInfo) UnmarshalJSON(data []byte) error {
	var j jsonExecInfo
	if err := strictUnmarshal(data, &j); err != nil {
		return fmt.Errorf("ast: decoding ExecInfo: %w", err)
	}
	e.Command = j.Command
	e.Env = j.Env
	e.Stdin = j.Stdin
	e.Stdout = j.Stdout
	return nil
}

// UnmarshalJSON decodes an Operation: either the bare strings "Break" /
// "EngineBacktrace", or one of the tagged objects in the external schema.
func (op *Operation) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		switch bare {
		case "Break":
			*op = Operation{Kind: OpBreak}
			return nil
		case "EngineBacktrace":
			*op = Operation{Kind: OpEngineBacktrace}
			return nil
		default:
			return fmt.Errorf("ast: unrecognised Operation tag %q", bare)
		}
	}
	tag, payload, err := decodeTag(data)
	if err != nil {
		return fmt.Errorf("ast: decoding Operation: %w", err)
	}
	switch tag {
	case "Exec":
		var e ExecInfo
		if err := json.Unmarshal(payload, &e); err != nil {
			return fmt.Errorf("ast: Operation.Exec: %w", err)
		}
		*op = Operation{Kind: OpExec, Exec: &e}
	case "ParallelExec":
		var group []ExecInfo
		if err := json.Unmarshal(payload, &group); err != nil {
			return fmt.Errorf("ast: Operation.ParallelExec: %w", err)
		}
		*op = Operation{Kind: OpParallelExec, Group: group}
	case "BackgroundExec":
		var e ExecInfo
		if err := json.Unmarshal(payload, &e); err != nil {
			return fmt.Errorf("ast: Operation.BackgroundExec: %w", err)
		}
		*op = Operation{Kind: OpBackgroundExec, Background: &e}
	case "IfElse":
		var pair [2]json.RawMessage
		if err := json.Unmarshal(payload, &pair); err != nil {
			return fmt.Errorf("ast: Operation.IfElse: %w", err)
		}
		var thenB, elseB Block
		if err := json.Unmarshal(pair[0], &thenB); err != nil {
			return fmt.Errorf("ast: Operation.IfElse[0]: %w", err)
		}
		if err := json.Unmarshal(pair[1], &elseB); err != nil {
			return fmt.Errorf("ast: Operation.IfElse[1]: %w", err)
		}
		*op = Operation{Kind: OpIfElse, Then: &thenB, Else: &elseB}
	case "Loop":
		var b Block
		if err := json.Unmarshal(payload, &b); err != nil {
			return fmt.Errorf("ast: Operation.Loop: %w", err)
		}
		*op = Operation{Kind: OpLoop, Body: &b}
	case "AssignGlobal", "AssignLocal":
		var pair [2]json.RawMessage
		if err := json.Unmarshal(payload, &pair); err != nil {
			return fmt.Errorf("ast: Operation.%s: %w", tag, err)
		}
		var name string
		if err := json.Unmarshal(pair[0], &name); err != nil {
			return fmt.Errorf("ast: Operation.%s name: %w", tag, err)
		}
		var vs ValueSource
		if err := json.Unmarshal(pair[1], &vs); err != nil {
			return fmt.Errorf("ast: Operation.%s value: %w", tag, err)
		}
		kind := OpAssignGlobal
		if tag == "AssignLocal" {
			kind = OpAssignLocal
		}
		*op = Operation{Kind: kind, Name: name, Source: vs}
	case "Print":
		var ss StringSource
		if err := json.Unmarshal(payload, &ss); err != nil {
			return fmt.Errorf("ast: Operation.Print: %w", err)
		}
		*op = Operation{Kind: OpPrint, Text: ss}
	case "CheckEq":
		var pair [2]ValueSource
		if err := json.Unmarshal(payload, &pair); err != nil {
			return fmt.Errorf("ast: Operation.CheckEq: %w", err)
		}
		*op = Operation{Kind: OpCheckEq, Left: pair[0], Right: pair[1]}
	case "Call":
		var vs ValueSource
		if err := json.Unmarshal(payload, &vs); err != nil {
			return fmt.Errorf("ast: Operation.Call: %w", err)
		}
		*op = Operation{Kind: OpCall, Target: vs}
	default:
		return fmt.Errorf("ast: unrecognised Operation tag %q", tag)
	}
	return nil
}

// jsonBlock mirrors the external {"ops": [...]} schema.
type jsonBlock struct {
	Ops []Operation `json:"ops"`
}

// UnmarshalJSON decodes a Block from {"ops": [Operation, ...]}.
func (b *Block) UnmarshalJSON(data []byte) error {
	var j jsonBlock
	if err := strictUnmarshal(data, &j); err != nil {
		return fmt.Errorf("ast: decoding Block: %w", err)
	}
	b.Ops = j.Ops
	b.callCount = 0
	b.compiled = nil
	return nil
}

// LoadBlock parses a JSON document into a Block, matching the
// embedding surface's block_load behaviour: strict schema decoding,
// no partial/best-effort results.
func LoadBlock(data []byte) (*Block, error) {
	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
