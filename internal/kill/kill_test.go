package kill

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeControl records the event order and lets tests observe the state of
// the target binary at the moment of each call.
type fakeControl struct {
	events       []string
	parentPID    int
	binaryPath   string
	pathErr      error
	terminateErr error
	onTerminate  func()
}

func (f *fakeControl) ParentPID() int { return f.parentPID }

func (f *fakeControl) BinaryPath(pid int) (string, error) {
	f.events = append(f.events, "resolve")
	return f.binaryPath, f.pathErr
}

func (f *fakeControl) Alive(pid int) bool { return false }

func (f *fakeControl) Terminate(pid int) error {
	f.events = append(f.events, "terminate")
	if f.onTerminate != nil {
		f.onTerminate()
	}
	return f.terminateErr
}

func (f *fakeControl) TerminateTree(pid int) error {
	f.events = append(f.events, "terminate-tree")
	return nil
}

func newTestEngine(control *fakeControl) *Engine {
	e := NewEngine(control, slog.Default())
	e.sleep = func(time.Duration) {}
	return e
}

func targetFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "base-binary")
	require.NoError(t, os.WriteFile(path, []byte("protected workload image"), 0o755))
	return path
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		input string
		want  Method
		ok    bool
	}{
		{"stop", Stop, true},
		{"delete", Delete, true},
		{"shred", Shred, true},
		{"SHRED", Shred, true},
		{"Stop", Stop, true},
		{"nuke", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseMethod(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStopLeavesBinaryIntact(t *testing.T) {
	path := targetFile(t)
	control := &fakeControl{}
	e := newTestEngine(control)

	require.NoError(t, e.Execute(Stop, Target{PID: 4242, BinaryPath: path}))

	assert.Equal(t, []string{"terminate"}, control.events)
	_, err := os.Stat(path)
	assert.NoError(t, err, "Stop must not touch the binary")
}

func TestDeleteTerminatesBeforeUnlink(t *testing.T) {
	path := targetFile(t)
	control := &fakeControl{}
	// The binary must still exist at the moment termination runs: file
	// mutation may never precede process termination.
	control.onTerminate = func() {
		_, err := os.Stat(path)
		assert.NoError(t, err, "binary mutated before termination")
	}
	e := newTestEngine(control)

	require.NoError(t, e.Execute(Delete, Target{PID: 4242, BinaryPath: path}))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "Delete must unlink the binary")
}

func TestShredOverwritesAndUnlinks(t *testing.T) {
	path := targetFile(t)
	control := &fakeControl{}
	e := newTestEngine(control)

	require.NoError(t, e.Execute(Shred, Target{PID: 4242, BinaryPath: path}))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, []string{"terminate"}, control.events)
}

func TestExecuteMissingBinaryIsNoOp(t *testing.T) {
	control := &fakeControl{}
	e := newTestEngine(control)

	target := Target{PID: 4242, BinaryPath: filepath.Join(t.TempDir(), "already-gone")}
	assert.NoError(t, e.Execute(Delete, target),
		"a missing file means the goal is already satisfied")
}

func TestExecuteContinuesPastTerminationError(t *testing.T) {
	path := targetFile(t)
	control := &fakeControl{terminateErr: errors.New("operation not permitted")}
	e := newTestEngine(control)

	err := e.Execute(Delete, Target{PID: 4242, BinaryPath: path})
	assert.Error(t, err, "the degradation is reported")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr),
		"file destruction still runs best-effort after a termination error")
}

func TestExecuteWithoutBinaryPathStopsAfterTerminate(t *testing.T) {
	control := &fakeControl{}
	e := newTestEngine(control)

	require.NoError(t, e.Execute(Shred, Target{PID: 4242}))
	assert.Equal(t, []string{"terminate"}, control.events)
}

func TestResolveParent(t *testing.T) {
	control := &fakeControl{parentPID: 77, binaryPath: "/opt/loader"}
	e := newTestEngine(control)

	target, err := e.ResolveParent()
	require.NoError(t, err)
	assert.Equal(t, Target{PID: 77, BinaryPath: "/opt/loader"}, target)
}

func TestResolveParentPathFailureKeepsPID(t *testing.T) {
	control := &fakeControl{parentPID: 77, pathErr: errors.New("no such process")}
	e := newTestEngine(control)

	target, err := e.ResolveParent()
	assert.Error(t, err)
	assert.Equal(t, 77, target.PID, "Stop must remain possible without a path")
	assert.Empty(t, target.BinaryPath)
}
