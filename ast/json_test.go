package ast

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadBlockEchoWithAssignment(t *testing.T) {
	data := []byte(`{"ops":[
		{"AssignGlobal":["v",{"Plain":{"String":"hi"}}]},
		{"Exec":{"command":[{"Plain":"echo"},{"GlobalVariable":"v"}],"env":[],"stdin":"Inherit","stdout":"Inherit"}}
	]}`)

	b, err := LoadBlock(data)
	require.NoError(t, err)
	require.Len(t, b.Ops, 2)

	assign := b.Ops[0]
	require.Equal(t, OpAssignGlobal, assign.Kind)
	require.Equal(t, "v", assign.Name)
	require.Equal(t, ValueSourcePlain, assign.Source.Kind)
	require.Equal(t, ValueString, assign.Source.Plain.Kind)
	require.Equal(t, "hi", assign.Source.Plain.Str)

	exec := b.Ops[1]
	require.Equal(t, OpExec, exec.Kind)
	require.Len(t, exec.Exec.Command, 2)
	require.Equal(t, StringPlain, exec.Exec.Command[0].Kind)
	require.Equal(t, "echo", exec.Exec.Command[0].Plain)
	require.Equal(t, StringGlobalVariable, exec.Exec.Command[1].Kind)
	require.Equal(t, "v", exec.Exec.Command[1].Name)
	require.Equal(t, StdioInherit, exec.Exec.Stdin.Kind)
}

func TestLoadBlockIfElseCheckEqAndBareVariants(t *testing.T) {
	data := []byte(`{"ops":[
		{"CheckEq":[{"Plain":{"Integer":42}},{"Plain":{"Integer":42}}]},
		{"IfElse":[{"ops":["Break"]},{"ops":["EngineBacktrace"]}]}
	]}`)

	b, err := LoadBlock(data)
	require.NoError(t, err)
	require.Len(t, b.Ops, 2)

	checkEq := b.Ops[0]
	require.Equal(t, OpCheckEq, checkEq.Kind)
	require.Equal(t, int64(42), checkEq.Left.Plain.Integer)
	require.Equal(t, int64(42), checkEq.Right.Plain.Integer)

	ifElse := b.Ops[1]
	require.Equal(t, OpIfElse, ifElse.Kind)
	require.Len(t, ifElse.Then.Ops, 1)
	require.Equal(t, OpBreak, ifElse.Then.Ops[0].Kind)
	require.Len(t, ifElse.Else.Ops, 1)
	require.Equal(t, OpEngineBacktrace, ifElse.Else.Ops[0].Kind)
}

func TestLoadBlockParallelExecAndPipe(t *testing.T) {
	data := []byte(`{"ops":[{"ParallelExec":[
		{"command":[{"Plain":"ls"},{"Plain":"/"}],"env":[],"stdin":"Inherit","stdout":{"Pipe":"p1"}},
		{"command":[{"Plain":"grep"},{"Plain":"etc"}],"env":[],"stdin":{"Pipe":"p1"},"stdout":"Inherit"}
	]}]}`)

	b, err := LoadBlock(data)
	require.NoError(t, err)
	require.Len(t, b.Ops, 1)
	group := b.Ops[0].Group
	require.Len(t, group, 2)
	require.Equal(t, StdioPipe, group[0].Stdout.Kind)
	require.Equal(t, "p1", group[0].Stdout.Pipe)
	require.Equal(t, StdioPipe, group[1].Stdin.Kind)
	require.Equal(t, "p1", group[1].Stdin.Pipe)
}

func TestLoadBlockFunctionValueAndCall(t *testing.T) {
	data := []byte(`{"ops":[
		{"AssignGlobal":["f",{"Plain":{"Function":{"ops":[{"Print":{"Plain":"In function!"}}]}}}]},
		{"Call":{"GlobalVariable":"f"}}
	]}`)

	b, err := LoadBlock(data)
	require.NoError(t, err)
	require.Len(t, b.Ops, 2)
	require.Equal(t, ValueFunction, b.Ops[0].Source.Plain.Kind)
	require.NotNil(t, b.Ops[0].Source.Plain.Function)
	require.Equal(t, OpCall, b.Ops[1].Kind)
	require.Equal(t, ValueSourceGlobalVariable, b.Ops[1].Target.Kind)
}

func TestLoadBlockRejectsUnknownFields(t *testing.T) {
	_, err := LoadBlock([]byte(`{"ops":[],"extra":1}`))
	require.Error(t, err)
}

func TestLoadBlockRejectsUnknownOperationTag(t *testing.T) {
	_, err := LoadBlock([]byte(`{"ops":[{"Bogus":1}]}`))
	require.Error(t, err)
}

func TestLoadBlockRejectsMultiKeyTaggedObject(t *testing.T) {
	_, err := LoadBlock([]byte(`{"ops":[{"Exec":{},"Loop":{}}]}`))
	require.Error(t, err)
}
