package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "overload/internal/errors"
	"overload/internal/infrastructure"
	"overload/internal/kill"
	"overload/internal/verify"
)

// scriptedVerifier returns its steps in order; the test fails if the
// controller asks for more verdicts than scripted.
type scriptedVerifier struct {
	t           *testing.T
	steps       []verdict
	firstChecks []bool
}

func (v *scriptedVerifier) Verify(_ context.Context, firstCheck bool) (*verify.Outcome, error) {
	v.firstChecks = append(v.firstChecks, firstCheck)
	require.NotEmpty(v.t, v.steps, "verifier called more times than scripted")
	step := v.steps[0]
	v.steps = v.steps[1:]
	return step.outcome, step.err
}

type recordedKill struct {
	method kill.Method
	target kill.Target
}

type fakeKiller struct {
	target kill.Target
	kills  []recordedKill
}

func (k *fakeKiller) ResolveParent() (kill.Target, error) { return k.target, nil }

func (k *fakeKiller) Execute(method kill.Method, target kill.Target) error {
	k.kills = append(k.kills, recordedKill{method: method, target: target})
	return nil
}

type fakeHealth struct {
	heartbeats    int
	updates       []bool
	killBase      int
	killRequested bool
}

func (h *fakeHealth) Heartbeat()          { h.heartbeats++ }
func (h *fakeHealth) Update(success bool) { h.updates = append(h.updates, success) }
func (h *fakeHealth) RequestKillBase()    { h.killBase++ }
func (h *fakeHealth) KillRequested() bool { return h.killRequested }

func newTestController(t *testing.T, v Verifier, k Killer, h Health, policy Policy) (*Controller, *[]time.Duration) {
	t.Helper()
	c := New(v, k, h, policy, infrastructure.InitializeLogger("none"))
	sleeps := &[]time.Duration{}
	c.sleep = func(d time.Duration) { *sleeps = append(*sleeps, d) }
	return c, sleeps
}

func authorized(overrides ...func(*verify.Outcome)) verdict {
	o := &verify.Outcome{Authorized: true, Message: "ok"}
	for _, fn := range overrides {
		fn(o)
	}
	return verdict{outcome: o}
}

func withInterval(ms uint64) func(*verify.Outcome) {
	return func(o *verify.Outcome) { o.CheckIntervalMS = &ms }
}

func withKillMethod(m string) func(*verify.Outcome) {
	return func(o *verify.Outcome) { o.KillMethod = &m }
}

func denied(msg string) verdict {
	return verdict{outcome: &verify.Outcome{Authorized: false, Message: msg}}
}

func netFail() verdict {
	return verdict{err: apperrors.Network("verify", assert.AnError)}
}

func TestRunSingleCheckAuthorized(t *testing.T) {
	v := &scriptedVerifier{t: t, steps: []verdict{authorized()}}
	k := &fakeKiller{}
	h := &fakeHealth{}
	c, sleeps := newTestController(t, v, k, h, Policy{CheckInterval: 0, KillMethod: kill.Shred})

	code := c.Run(context.Background())

	assert.Equal(t, 0, code)
	assert.Empty(t, *sleeps)
	assert.Empty(t, k.kills)
	assert.Equal(t, []bool{true}, v.firstChecks)
	assert.Equal(t, []bool{true}, h.updates)
	assert.Equal(t, 1, h.heartbeats)
}

func TestRunDenialKillsAndExits(t *testing.T) {
	v := &scriptedVerifier{t: t, steps: []verdict{denied("revoked")}}
	k := &fakeKiller{target: kill.Target{PID: 4242, BinaryPath: "/opt/app/base"}}
	h := &fakeHealth{}
	c, _ := newTestController(t, v, k, h, Policy{CheckInterval: time.Second, KillMethod: kill.Delete})

	code := c.Run(context.Background())

	assert.Equal(t, 1, code)
	require.Len(t, k.kills, 1)
	assert.Equal(t, kill.Delete, k.kills[0].method)
	assert.Equal(t, 4242, k.kills[0].target.PID)
	assert.Equal(t, 1, h.killBase)
	assert.Equal(t, []bool{false}, h.updates)
}

func TestRunNetworkFailuresNeverKill(t *testing.T) {
	// Two transport failures, then the server authorizes and drops the
	// interval to zero; the run must finish clean without a kill.
	v := &scriptedVerifier{t: t, steps: []verdict{
		netFail(),
		netFail(),
		authorized(withInterval(0)),
	}}
	k := &fakeKiller{target: kill.Target{PID: 1}}
	h := &fakeHealth{}
	c, sleeps := newTestController(t, v, k, h, Policy{CheckInterval: 500 * time.Millisecond, KillMethod: kill.Shred})

	code := c.Run(context.Background())

	assert.Equal(t, 0, code)
	assert.Empty(t, k.kills)
	assert.Equal(t, 0, h.killBase)
	assert.Equal(t, []bool{false, false, true}, h.updates)
	assert.Equal(t, []bool{true, false, false}, v.firstChecks)
	assert.Len(t, *sleeps, 2)
}

func TestRunNetworkFailureSingleCheckExitsNonzero(t *testing.T) {
	v := &scriptedVerifier{t: t, steps: []verdict{netFail()}}
	k := &fakeKiller{}
	h := &fakeHealth{}
	c, _ := newTestController(t, v, k, h, Policy{CheckInterval: 0, KillMethod: kill.Shred})

	code := c.Run(context.Background())

	assert.Equal(t, 1, code)
	assert.Empty(t, k.kills)
}

func TestRunIntervalOverrideGovernsNextSleep(t *testing.T) {
	v := &scriptedVerifier{t: t, steps: []verdict{
		authorized(withInterval(5000)),
		denied("expired"),
	}}
	k := &fakeKiller{target: kill.Target{PID: 7}}
	h := &fakeHealth{}
	c, sleeps := newTestController(t, v, k, h, Policy{CheckInterval: time.Second, KillMethod: kill.Stop})

	code := c.Run(context.Background())

	assert.Equal(t, 1, code)
	require.Len(t, *sleeps, 1)
	assert.Equal(t, 5*time.Second, (*sleeps)[0])
}

func TestRunKillMethodOverrideAppliesToLaterKill(t *testing.T) {
	v := &scriptedVerifier{t: t, steps: []verdict{
		authorized(withInterval(1000), withKillMethod("stop")),
		denied("revoked"),
	}}
	k := &fakeKiller{target: kill.Target{PID: 7}}
	h := &fakeHealth{}
	c, _ := newTestController(t, v, k, h, Policy{CheckInterval: time.Second, KillMethod: kill.Shred})

	code := c.Run(context.Background())

	assert.Equal(t, 1, code)
	require.Len(t, k.kills, 1)
	assert.Equal(t, kill.Stop, k.kills[0].method)
}

func TestRunInvalidKillMethodOverrideIgnored(t *testing.T) {
	v := &scriptedVerifier{t: t, steps: []verdict{
		authorized(withInterval(1000), withKillMethod("vaporize")),
		denied("revoked"),
	}}
	k := &fakeKiller{target: kill.Target{PID: 7}}
	h := &fakeHealth{}
	c, _ := newTestController(t, v, k, h, Policy{CheckInterval: time.Second, KillMethod: kill.Shred})

	c.Run(context.Background())

	require.Len(t, k.kills, 1)
	assert.Equal(t, kill.Shred, k.kills[0].method)
}

func TestRunSupervisorKillRequestShortCircuits(t *testing.T) {
	v := &scriptedVerifier{t: t, steps: nil} // must never be called
	k := &fakeKiller{target: kill.Target{PID: 99}}
	h := &fakeHealth{killRequested: true}
	c, _ := newTestController(t, v, k, h, Policy{CheckInterval: time.Second, KillMethod: kill.Delete})

	code := c.Run(context.Background())

	assert.Equal(t, 0, code)
	require.Len(t, k.kills, 1)
	assert.Equal(t, kill.Delete, k.kills[0].method)
	assert.Empty(t, v.firstChecks)
	assert.Equal(t, 1, h.heartbeats)
}
