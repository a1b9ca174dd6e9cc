package runner

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"overload/internal/proc"
	"overload/internal/shred"
	"overload/internal/verify"
)

// asyncVerifyTimeout caps how long the base binary may run before the
// first verification verdict arrives.
const asyncVerifyTimeout = 30 * time.Second

// Destructor wipes and removes the running executable. It does not return
// on success; shred.SelfDestruct is the production implementation.
type Destructor func(*slog.Logger)

// SyncLauncher blocks an external loader until the first verification
// verdict. Exit code 0 tells the loader to start the protected workload;
// anything else aborts the chain.
type SyncLauncher struct {
	verifier     Verifier
	basePath     string
	baseArgs     []string
	selfDestruct bool
	destruct     Destructor
	logger       *slog.Logger
}

// NewSyncLauncher builds a gate launcher. basePath may be empty, in which
// case an authorized verdict simply returns 0 and the loader proceeds on
// its own. With a basePath the launcher hands the process over to the
// workload after authorization.
func NewSyncLauncher(verifier Verifier, basePath string, baseArgs []string, selfDestruct bool, logger *slog.Logger) *SyncLauncher {
	return &SyncLauncher{
		verifier:     verifier,
		basePath:     basePath,
		baseArgs:     baseArgs,
		selfDestruct: selfDestruct,
		destruct:     shred.SelfDestruct,
		logger:       logger,
	}
}

// Launch performs the single gating verification.
func (l *SyncLauncher) Launch(ctx context.Context) int {
	outcome, err := l.verifier.Verify(ctx, true)
	if err == nil && outcome.Authorized {
		if l.basePath == "" {
			l.logger.Info("license verified, returning control to loader")
			return 0
		}
		l.logger.Info("license verified, chaining to base binary",
			slog.String("path", l.basePath))
		code, cerr := chainToBase(l.basePath, l.baseArgs)
		if cerr != nil {
			l.logger.Error("chain to base binary failed",
				slog.String("error", cerr.Error()))
			return 1
		}
		return code
	}

	if err != nil {
		l.logger.Error("gate verification error", slog.String("error", err.Error()))
	} else {
		l.logger.Error("gate verification denied", slog.String("message", outcome.Message))
	}

	if l.selfDestruct {
		l.destruct(l.logger)
	}
	return 1
}

// AsyncLauncher starts the base binary immediately and verifies in
// parallel, trading a window of unverified execution for zero startup
// latency. A denial or verification timeout terminates the base.
type AsyncLauncher struct {
	verifier     Verifier
	control      proc.Control
	basePath     string
	baseArgs     []string
	selfDestruct bool
	destruct     Destructor
	timeout      time.Duration
	logger       *slog.Logger
}

// NewAsyncLauncher builds a spawn-and-supervise launcher for basePath.
func NewAsyncLauncher(verifier Verifier, control proc.Control, basePath string, baseArgs []string, selfDestruct bool, logger *slog.Logger) *AsyncLauncher {
	return &AsyncLauncher{
		verifier:     verifier,
		control:      control,
		basePath:     basePath,
		baseArgs:     baseArgs,
		selfDestruct: selfDestruct,
		destruct:     shred.SelfDestruct,
		timeout:      asyncVerifyTimeout,
		logger:       logger,
	}
}

type verdict struct {
	outcome *verify.Outcome
	err     error
}

// Launch runs the base binary under supervision. The workload is started
// before the verification request is issued, so startup latency never
// depends on the network.
func (l *AsyncLauncher) Launch(ctx context.Context) int {
	cmd := exec.Command(l.basePath, l.baseArgs...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// Own process group, so tree termination reaches whatever the base
	// forks without ever signaling our own group.
	cmd.SysProcAttr = baseSysProcAttr()

	if err := cmd.Start(); err != nil {
		l.logger.Error("base binary failed to start",
			slog.String("path", l.basePath),
			slog.String("error", err.Error()))
		return 1
	}
	basePID := cmd.Process.Pid
	l.logger.Info("base binary started",
		slog.String("path", l.basePath),
		slog.Int("pid", basePID))

	verdicts := make(chan verdict, 1)
	go func() {
		outcome, err := l.verifier.Verify(ctx, true)
		verdicts <- verdict{outcome: outcome, err: err}
	}()

	baseDone := make(chan int, 1)
	go func() {
		baseDone <- exitCode(cmd.Wait())
	}()

	select {
	case v := <-verdicts:
		if v.err == nil && v.outcome.Authorized {
			l.logger.Info("license verified, base continues")
			return <-baseDone
		}
		if v.err != nil {
			l.logger.Error("verification error with base running",
				slog.String("error", v.err.Error()))
		} else {
			l.logger.Error("license denied with base running",
				slog.String("message", v.outcome.Message))
		}
		l.terminateBase(basePID)
		<-baseDone
		if l.selfDestruct {
			l.destruct(l.logger)
		}
		return 1

	case code := <-baseDone:
		// Base exiting before the verdict is its own business; propagate.
		l.logger.Warn("base binary exited before verification verdict",
			slog.Int("exit_code", code))
		return code

	case <-time.After(l.timeout):
		l.logger.Error("verification verdict timed out",
			slog.Duration("timeout", l.timeout))
		l.terminateBase(basePID)
		<-baseDone
		if l.selfDestruct {
			l.destruct(l.logger)
		}
		return 1
	}
}

// terminateBase takes down the base and everything it forked. A denied
// workload must not survive through a child it spawned.
func (l *AsyncLauncher) terminateBase(pid int) {
	l.logger.Warn("terminating base binary tree", slog.Int("pid", pid))
	if err := l.control.TerminateTree(pid); err != nil {
		l.logger.Error("base termination degraded", slog.String("error", err.Error()))
	}
}

// exitCode maps a Wait error to a shell exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}
