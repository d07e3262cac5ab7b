package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/LeoCommon/linkpm/internal/config"
	"github.com/LeoCommon/linkpm/internal/daemon"
	"github.com/LeoCommon/linkpm/pkg/log"
	"go.uber.org/zap"
)

func loadConfig(flags config.CLIFlags) (*config.Manager, error) {
	conf := config.NewManager()

	// An explicitly passed config has to exist, the default one is optional
	acceptEmpty := flags.ConfigPath == config.DefaultConfigPath
	if err := conf.Load(flags.ConfigPath, acceptEmpty); err != nil {
		return nil, err
	}

	return conf, nil
}

func main() {
	flags := config.ParseCLIFlags()

	log.Init(flags.Debug)

	conf, err := loadConfig(flags)
	if err != nil {
		fmt.Printf("Loading config failed, error: %s\n", err)
		os.Exit(1)
	}

	if conf.Daemon().C().Debug {
		log.SetDebug(true)
	}

	app, err := daemon.Setup(conf, daemon.DefaultOptions())
	if err != nil {
		log.Error("initialization failed", zap.Error(err))
		os.Exit(1)
	}

	exitSignal := make(chan os.Signal, 1)
	signal.Notify(exitSignal, os.Interrupt, syscall.SIGTERM)

	reloadSignal := make(chan os.Signal, 1)
	signal.Notify(reloadSignal, syscall.SIGUSR1, syscall.SIGUSR2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- app.Run(ctx)
	}()

	exitCode := 0

loop:
	for {
		select {
		case <-reloadSignal:
			status, err := app.Manager.Status(ctx)
			if err != nil {
				log.Warn("status unavailable", zap.Error(err))
				continue
			}
			log.Info("link power manager status",
				zap.Stringer("state", status.State),
				zap.Int("retries", status.RetryCount),
				zap.Bool("init_lock", status.InitLock),
				zap.Bool("suspend_in_progress", status.SuspendInProgress),
				zap.Bool("connected", status.Connected))

		case sig := <-exitSignal:
			log.Info("exit signal received - shutting down", zap.Stringer("signal", sig))
			cancel()
			if err := <-done; err != nil {
				log.Error("shutdown with error", zap.Error(err))
				exitCode = 1
			}
			break loop

		case err := <-done:
			if err != nil {
				log.Error("service failed", zap.Error(err))
				exitCode = 1
			}
			break loop
		}
	}

	app.Shutdown()

	log.Info("link power manager stopped")
	os.Exit(exitCode)
}
