package procexec

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wudi/opcore/ast"
)

// fakeEnv is a minimal ast.Env for exercising ExecInfo evaluation.
type fakeEnv struct {
	globals  map[string]*ast.Variable
	lastExit int32
}

func newFakeEnv() *fakeEnv { return &fakeEnv{globals: map[string]*ast.Variable{}} }

func (e *fakeEnv) LookupGlobal(name string) (*ast.Variable, bool) { v, ok := e.globals[name]; return v, ok }
func (e *fakeEnv) LookupLocal(name string) (*ast.Variable, bool)  { return nil, false }
func (e *fakeEnv) LastExitStatus() int32                          { return e.lastExit }

func cmdInfo(argv ...string) ast.ExecInfo {
	cmd := make([]ast.StringSource, len(argv))
	for i, a := range argv {
		cmd[i] = ast.PlainString(a)
	}
	return ast.ExecInfo{Command: cmd, Stdin: ast.Inherit(), Stdout: ast.Inherit()}
}

func TestExecTrueSucceeds(t *testing.T) {
	env := newFakeEnv()
	status, err := Exec(env, cmdInfo("true"))
	require.NoError(t, err)
	require.EqualValues(t, 0, status)
}

func TestExecFalseReportsNonZero(t *testing.T) {
	env := newFakeEnv()
	status, err := Exec(env, cmdInfo("false"))
	require.NoError(t, err)
	require.NotEqualValues(t, 0, status)
}

func TestExecMissingArgvIsExecError(t *testing.T) {
	env := newFakeEnv()
	info := ast.ExecInfo{
		Command: []ast.StringSource{{Kind: ast.StringGlobalVariable, Name: "missing"}},
		Stdin:   ast.Inherit(),
		Stdout:  ast.Inherit(),
	}
	_, err := Exec(env, info)
	require.Error(t, err)
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
}

func TestRunGroupPipesBetweenChildren(t *testing.T) {
	env := newFakeEnv()
	producer := cmdInfo("printf", "etc\nusr\n")
	producer.Stdout = ast.PipeName("p1")
	consumer := cmdInfo("grep", "etc")
	consumer.Stdin = ast.PipeName("p1")

	status, err := RunGroup(env, []ast.ExecInfo{producer, consumer})
	require.NoError(t, err)
	require.EqualValues(t, 0, status, "grep's exit code (match found) becomes the group's status")
}

func TestRunGroupUnknownPipeIsInvalidGroup(t *testing.T) {
	env := newFakeEnv()
	consumer := cmdInfo("cat")
	consumer.Stdin = ast.PipeName("nonexistent")

	_, err := RunGroup(env, []ast.ExecInfo{consumer})
	require.Error(t, err)
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
}

func TestRunGroupLastMemberExitStatusWins(t *testing.T) {
	env := newFakeEnv()
	status, err := RunGroup(env, []ast.ExecInfo{cmdInfo("true"), cmdInfo("false")})
	require.NoError(t, err)
	require.NotEqualValues(t, 0, status)
}

func TestRunBackgroundDoesNotBlock(t *testing.T) {
	env := newFakeEnv()
	err := RunBackground(env, cmdInfo("sleep", "0"))
	require.NoError(t, err)
}
