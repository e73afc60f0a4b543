// Package procexec spawns, pipes, and supervises the OS subprocesses that
// back the Exec, ParallelExec, and BackgroundExec operations. It depends
// only on ast, so it can be exercised directly by interp or by JIT-compiled
// entries through the same thunks, without either importing the other.
package procexec

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"github.com/wudi/opcore/ast"
)

// ExecError distinguishes a spawn or pipe-wiring failure from any other
// error an embedder might see: a bad argv[0] evaluation, a Start failure,
// or a consumer referencing a pipe name with no producer in its group.
type ExecError struct {
	Msg string
	Err error
}

func (e *ExecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("procexec: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("procexec: %s", e.Msg)
}

func (e *ExecError) Unwrap() error { return e.Err }

func execErr(msg string, err error) error { return &ExecError{Msg: msg, Err: err} }

// member is one spawned child plus the bookkeeping the wire/wait phases
// need: its declared pipe names, and the pipe ends reserved at Build time.
type member struct {
	info   ast.ExecInfo
	cmd    *exec.Cmd
	stdout io.ReadCloser // non-nil iff info.Stdout is Pipe
	stdin  io.WriteCloser // non-nil iff info.Stdin is Pipe
}

// Exec runs a single ExecInfo as a singleton group and returns its exit
// status.
func Exec(env ast.Env, info ast.ExecInfo) (int32, error) {
	return RunGroup(env, []ast.ExecInfo{info})
}

// RunGroup builds, wires, and waits for every member of group, in list
// order. The final member's exit code becomes the returned status (-1 if
// the platform reports none). Pipe names are scoped to this call only.
func RunGroup(env ast.Env, group []ast.ExecInfo) (int32, error) {
	members, err := buildGroup(env, group)
	if err != nil {
		killAll(members)
		return -1, err
	}
	if err := wireGroup(members); err != nil {
		killAll(members)
		return -1, err
	}
	return waitGroup(members)
}

func buildGroup(env ast.Env, group []ast.ExecInfo) ([]*member, error) {
	members := make([]*member, 0, len(group))
	for _, info := range group {
		m, err := buildMember(env, info)
		if err != nil {
			return members, err
		}
		members = append(members, m)
		if err := m.cmd.Start(); err != nil {
			return members, execErr(fmt.Sprintf("starting %q", firstArg(info)), err)
		}
	}
	return members, nil
}

func buildMember(env ast.Env, info ast.ExecInfo) (*member, error) {
	argv := make([]string, 0, len(info.Command))
	for i, src := range info.Command {
		s, ok := src.Eval(env)
		if !ok {
			return nil, execErr(fmt.Sprintf("evaluating argv[%d]", i), nil)
		}
		argv = append(argv, s)
	}
	if len(argv) == 0 {
		return nil, execErr("empty argv", nil)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = os.Environ()
	for _, e := range info.Env {
		key, ok := e.Key.Eval(env)
		if !ok {
			continue // a failed env key is skipped entirely
		}
		val, _ := e.Value.Eval(env) // a failed env value becomes ""
		cmd.Env = append(cmd.Env, key+"="+val)
	}
	cmd.Stderr = os.Stderr

	m := &member{info: info, cmd: cmd}

	switch info.Stdin.Kind {
	case ast.StdioInherit:
		cmd.Stdin = os.Stdin
	case ast.StdioPipe:
		w, err := cmd.StdinPipe()
		if err != nil {
			return nil, execErr("reserving stdin pipe", err)
		}
		m.stdin = w
	}

	switch info.Stdout.Kind {
	case ast.StdioInherit:
		cmd.Stdout = os.Stdout
	case ast.StdioPipe:
		r, err := cmd.StdoutPipe()
		if err != nil {
			return nil, execErr("reserving stdout pipe", err)
		}
		m.stdout = r
	}

	return m, nil
}

// wireGroup connects each Pipe(name) consumer's stdin to its producer's
// stdout with a detached byte-copy worker. Names not present among the
// group's producers are an invalid group.
func wireGroup(members []*member) error {
	producers := make(map[string]io.ReadCloser)
	for _, m := range members {
		if m.info.Stdout.Kind == ast.StdioPipe {
			if _, dup := producers[m.info.Stdout.Pipe]; dup {
				return execErr(fmt.Sprintf("duplicate pipe producer %q", m.info.Stdout.Pipe), nil)
			}
			producers[m.info.Stdout.Pipe] = m.stdout
		}
	}
	for _, m := range members {
		if m.info.Stdin.Kind != ast.StdioPipe {
			continue
		}
		name := m.info.Stdin.Pipe
		src, ok := producers[name]
		if !ok {
			return execErr(fmt.Sprintf("pipe %q has no producer in group", name), nil)
		}
		delete(producers, name)
		go copyWorker(src, m.stdin)
	}
	return nil
}

// copyWorker is the detached byte-copy worker between one producer's
// stdout and one consumer's stdin. It stops on first read/write error or
// EOF, draining best-effort, and owns both ends exclusively.
func copyWorker(src io.ReadCloser, dst io.WriteCloser) {
	_, _ = io.Copy(dst, src)
	_ = src.Close()
	_ = dst.Close()
}

func waitGroup(members []*member) (int32, error) {
	var last int32 = -1
	for _, m := range members {
		err := m.cmd.Wait()
		last = exitCodeOf(m.cmd, err)
	}
	return last, nil
}

func exitCodeOf(cmd *exec.Cmd, waitErr error) int32 {
	if cmd.ProcessState == nil {
		return -1
	}
	code := cmd.ProcessState.ExitCode()
	if code < 0 {
		return -1
	}
	return int32(code)
}

func killAll(members []*member) {
	for _, m := range members {
		if m.cmd.Process != nil {
			_ = m.cmd.Process.Kill()
			_ = m.cmd.Wait()
		}
	}
}

func firstArg(info ast.ExecInfo) string {
	if len(info.Command) == 0 {
		return ""
	}
	if info.Command[0].Kind == ast.StringPlain {
		return info.Command[0].Plain
	}
	return "<dynamic>"
}

// RunBackground spawns info detached from the caller: stdio is inherited
// (pipes would be meaningless outside a group), and a supervisor
// goroutine waits on the child and discards its result. No exit status is
// recorded. The job is tagged with a UUID purely for log correlation.
func RunBackground(env ast.Env, info ast.ExecInfo) error {
	info.Stdin = ast.Inherit()
	info.Stdout = ast.Inherit()
	m, err := buildMember(env, info)
	if err != nil {
		return err
	}
	if err := m.cmd.Start(); err != nil {
		return execErr(fmt.Sprintf("starting background %q", firstArg(info)), err)
	}
	jobID := uuid.NewString()
	started := time.Now()
	log.Printf("procexec: background job %s started (%s)", jobID, firstArg(info))
	go func() {
		_ = m.cmd.Wait()
		log.Printf("procexec: background job %s exited after %s", jobID, time.Since(started))
	}()
	return nil
}
