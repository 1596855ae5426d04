// Command studio is the terminal shell for the GRUMP conversation engine:
// it wires the process-wide default collaborators and runs the chat surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"grumpstudio/internal/adapter/memory"
	"grumpstudio/internal/adapter/notify"
	"grumpstudio/internal/adapter/session"
	"grumpstudio/internal/adapter/telemetry"
	"grumpstudio/internal/adapter/transport"
	"grumpstudio/internal/adapter/tui/chat"
	"grumpstudio/internal/domain"
	"grumpstudio/internal/infra/config"
	"grumpstudio/internal/infra/logger"
	"grumpstudio/internal/infra/tracer"
	"grumpstudio/internal/usecase"
	"grumpstudio/internal/usecase/eventbus"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "studio:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "studio.yaml", "path to config file")
		sessionID  = flag.String("session", "", "resume a stored session by ID")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := context.Background()
	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return err
	}
	defer shutdownTracer(ctx)

	bus := eventbus.New(log)
	defer bus.Close()

	store, err := session.NewSQLiteStore(cfg.Session.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	var memoryProvider domain.MemoryProvider
	if cfg.Memory.BaseURL != "" {
		memoryProvider = memory.NewClient(cfg.Memory.BaseURL)
	}

	ctrl := usecase.NewController(usecase.ControllerDeps{
		Transport: transport.New(cfg.Backend, cfg.Breaker, log),
		Store:     store,
		Memory:    memoryProvider,
		Telemetry: telemetry.New(log),
		Notifier:  notify.New(bus),
		Bus:       bus,
		Logger:    log,
		Workspace: domain.WorkspaceContext{
			WorkspaceRoot: cfg.Engine.WorkspaceRoot,
			SessionType:   cfg.Backend.SessionType,
			Provider:      cfg.Backend.Provider,
			ModelID:       cfg.Backend.ModelID,
			SkillIDs:      cfg.Engine.SkillIDs,
		},
		BlockCap:      cfg.Engine.BlockCap,
		MemoryTimeout: cfg.Engine.MemoryTimeout,
		FrameInterval: cfg.Engine.FrameInterval,
	})
	defer ctrl.Close()

	ctrl.SetUIMode(domain.ParseMode(cfg.Engine.DefaultMode))
	ctrl.SetSlashHandler(&builtinSlash{controller: ctrl})

	if *sessionID != "" {
		msgs, err := store.LoadSession(ctx, *sessionID)
		if err != nil {
			return err
		}
		ctrl.Transcript().Restore(*sessionID, msgs)
	}

	return chat.Run(ctrl, bus, log, cfg.Backend.ModelID)
}
