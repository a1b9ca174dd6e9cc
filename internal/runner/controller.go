// Package runner drives the verification loop and the launch strategies.
//
// The controller owns the runtime policy: the check interval and kill
// method start from static configuration and are replaced wholesale
// whenever the server sends an override. Within one loop iteration the
// order is fixed: heartbeat and supervisor kill-check, then
// verification, then any kill action.
package runner

import (
	"context"
	"log/slog"
	"time"

	apperrors "overload/internal/errors"
	"overload/internal/kill"
	"overload/internal/verify"
)

// Verifier performs one verification call against the authority.
type Verifier interface {
	Verify(ctx context.Context, firstCheck bool) (*verify.Outcome, error)
}

// Killer resolves and executes kill actions.
type Killer interface {
	ResolveParent() (kill.Target, error)
	Execute(method kill.Method, target kill.Target) error
}

// Health is the supervisor-facing status channel. An inert implementation
// is acceptable everywhere.
type Health interface {
	Heartbeat()
	Update(success bool)
	RequestKillBase()
	KillRequested() bool
}

// Policy is the mutable runtime state of the loop. A zero CheckInterval
// means a single verification then exit; any positive value loops with
// that interval. The invariant is established at startup and only ever
// replaced wholesale by a server override.
type Policy struct {
	CheckInterval time.Duration
	KillMethod    kill.Method
}

// Controller is the top-level enforcement state machine.
type Controller struct {
	verifier Verifier
	killer   Killer
	health   Health
	policy   Policy
	logger   *slog.Logger
	sleep    func(time.Duration)
}

// New builds a controller seeded with the given policy.
func New(verifier Verifier, killer Killer, health Health, policy Policy, logger *slog.Logger) *Controller {
	return &Controller{
		verifier: verifier,
		killer:   killer,
		health:   health,
		policy:   policy,
		logger:   logger,
		sleep:    time.Sleep,
	}
}

// Run executes the verification loop until a terminal outcome and returns
// the process exit code: 0 to proceed, nonzero to abort the chain.
func (c *Controller) Run(ctx context.Context) int {
	firstCheck := true

	for {
		c.health.Heartbeat()

		if c.health.KillRequested() {
			c.logger.Warn("supervisor requested kill",
				slog.String("kill_method", string(c.policy.KillMethod)))
			c.killParent()
			return 0
		}

		c.logger.Info("verifying license", slog.Bool("first_check", firstCheck))
		outcome, err := c.verifier.Verify(ctx, firstCheck)

		switch {
		case err != nil:
			// Transport failure: the server never rendered a verdict, so
			// no kill action. The supervisor watches consecutive_failures
			// and decides whether to pull the plug.
			c.logger.Error("verification error",
				slog.String("error", err.Error()),
				slog.Bool("network", apperrors.IsNetwork(err)))
			c.health.Update(false)
			if c.policy.CheckInterval == 0 {
				return 1
			}
			c.logger.Warn("will retry after interval",
				slog.Duration("interval", c.policy.CheckInterval))

		case outcome.Authorized:
			c.applyOverrides(outcome)
			c.health.Update(true)
			c.logger.Info("license verified")
			if c.policy.CheckInterval == 0 {
				return 0
			}

		default:
			c.logger.Error("license verification denied",
				slog.String("message", outcome.Message))
			c.health.Update(false)
			c.health.RequestKillBase()
			c.killParent()
			return 1
		}

		firstCheck = false
		c.sleep(c.policy.CheckInterval)
	}
}

// killParent resolves the supervising process freshly and applies the
// current kill method. Resolution failure still leaves a PID-only target,
// so termination remains possible.
func (c *Controller) killParent() {
	target, err := c.killer.ResolveParent()
	if err != nil {
		c.logger.Warn("kill target partially resolved",
			slog.Int("pid", target.PID),
			slog.String("error", err.Error()))
	}
	if err := c.killer.Execute(c.policy.KillMethod, target); err != nil {
		c.logger.Error("kill execution degraded", slog.String("error", err.Error()))
	}
}

// applyOverrides replaces policy fields the server chose to update. The
// new interval governs the next sleep, not the one already completed.
func (c *Controller) applyOverrides(outcome *verify.Outcome) {
	if outcome.ExpiresIn != nil {
		// Advisory only; the next verification re-renders the verdict.
		c.logger.Debug("license expires",
			slog.Int64("expires_in_seconds", *outcome.ExpiresIn))
	}

	if outcome.CheckIntervalMS != nil {
		next := time.Duration(*outcome.CheckIntervalMS) * time.Millisecond
		if next != c.policy.CheckInterval {
			c.logger.Info("runtime patch: check interval",
				slog.Duration("from", c.policy.CheckInterval),
				slog.Duration("to", next))
			c.policy.CheckInterval = next
		}
	}

	if outcome.KillMethod != nil {
		method, ok := kill.ParseMethod(*outcome.KillMethod)
		if !ok {
			c.logger.Warn("invalid kill method from server",
				slog.String("kill_method", *outcome.KillMethod))
			return
		}
		if method != c.policy.KillMethod {
			c.logger.Info("runtime patch: kill method",
				slog.String("from", string(c.policy.KillMethod)),
				slog.String("to", string(method)))
			c.policy.KillMethod = method
		}
	}
}
