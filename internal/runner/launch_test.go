package runner

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"overload/internal/infrastructure"
)

func TestSyncLaunchAuthorizedReturnsZero(t *testing.T) {
	v := &scriptedVerifier{t: t, steps: []verdict{authorized()}}
	l := NewSyncLauncher(v, "", nil, true, infrastructure.InitializeLogger("none"))

	destructed := false
	l.destruct = func(*slog.Logger) { destructed = true }

	assert.Equal(t, 0, l.Launch(context.Background()))
	assert.False(t, destructed)
	assert.Equal(t, []bool{true}, v.firstChecks)
}

func TestSyncLaunchDeniedSelfDestructs(t *testing.T) {
	v := &scriptedVerifier{t: t, steps: []verdict{denied("revoked")}}
	l := NewSyncLauncher(v, "", nil, true, infrastructure.InitializeLogger("none"))

	destructed := false
	l.destruct = func(*slog.Logger) { destructed = true }

	assert.Equal(t, 1, l.Launch(context.Background()))
	assert.True(t, destructed)
}

func TestSyncLaunchDeniedWithoutSelfDestruct(t *testing.T) {
	v := &scriptedVerifier{t: t, steps: []verdict{denied("revoked")}}
	l := NewSyncLauncher(v, "", nil, false, infrastructure.InitializeLogger("none"))

	destructed := false
	l.destruct = func(*slog.Logger) { destructed = true }

	assert.Equal(t, 1, l.Launch(context.Background()))
	assert.False(t, destructed)
}

func TestSyncLaunchNetworkErrorAborts(t *testing.T) {
	v := &scriptedVerifier{t: t, steps: []verdict{netFail()}}
	l := NewSyncLauncher(v, "", nil, false, infrastructure.InitializeLogger("none"))

	assert.Equal(t, 1, l.Launch(context.Background()))
}
