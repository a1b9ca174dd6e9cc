// Command overload is the license enforcement agent. It verifies the
// embedded license against the authority and, depending on the configured
// execution mode, either gates a loader, supervises a spawned workload,
// or runs the attached verification loop with kill enforcement.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"overload/internal/config"
	"overload/internal/health"
	"overload/internal/infrastructure"
	"overload/internal/kill"
	"overload/internal/proc"
	"overload/internal/runner"
	"overload/internal/shred"
	"overload/internal/verify"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		// A broken or tampered configuration is treated the same as a
		// failed license: wipe unless the escape hatch is set.
		fmt.Fprintf(os.Stderr, "configuration rejected: %v\n", err)
		if !config.SelfDestructDisabled() {
			shred.SelfDestruct(infrastructure.InitializeLogger("error"))
		}
		return 1
	}

	logger := infrastructure.InitializeLogger(cfg.LogLevel)
	logger.Info("agent starting",
		slog.String("license_id", cfg.LicenseID),
		slog.String("mode", cfg.ExecutionMode),
		slog.String("platform", proc.Detect().Name()))

	channel := health.Open(logger)
	defer channel.Close()

	client := verify.NewClient(cfg.EffectiveServerURL(), cfg.LicenseID, cfg.SharedSecret, logger)
	control := proc.New()
	selfDestruct := cfg.SelfDestruct && !config.SelfDestructDisabled()

	ctx := context.Background()

	switch cfg.ExecutionMode {
	case config.ModeSync:
		launcher := runner.NewSyncLauncher(client, cfg.BaseBinaryPath, os.Args[1:], selfDestruct, logger)
		return launcher.Launch(ctx)

	case config.ModeAsync:
		launcher := runner.NewAsyncLauncher(client, control, cfg.BaseBinaryPath, os.Args[1:], selfDestruct, logger)
		return launcher.Launch(ctx)

	default:
		engine := kill.NewEngine(control, logger)
		policy := runner.Policy{
			CheckInterval: cfg.CheckInterval(),
			KillMethod:    cfg.KillMethod,
		}
		controller := runner.New(client, engine, channel, policy, logger)
		return controller.Run(ctx)
	}
}
