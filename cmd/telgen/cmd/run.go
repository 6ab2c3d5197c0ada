package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"telgen/internal/activity"
	"telgen/internal/console"
	"telgen/internal/logging"
	"telgen/internal/realtime"
	"telgen/internal/session"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runAgent is the root command: interpret commands until input runs out.
func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer log.Sync()

	fmt.Fprintf(cmd.ErrOrStderr(), "Logging to %s\n", cfg.LogFile)

	var input io.Reader = cmd.InOrStdin()
	interactive := len(args) == 0
	if !interactive {
		script, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("unable to open scriptfile: %w", err)
		}
		defer script.Close()
		input = script
	}

	logger, err := activity.Open(cfg.LogFile, cfg.HistorySize)
	if err != nil {
		return err
	}

	sess := session.New(logger, session.CurrentIdentity(cfg.ProcessName),
		session.WithLauncher(session.NewOSLauncher(os.Stdin, cmd.OutOrStdout(), cmd.ErrOrStderr())),
		session.WithWarnings(cmd.ErrOrStderr()),
		session.WithLogger(log),
		session.WithChildPID(cfg.LogChildPID),
	)
	defer sess.Close()

	if err := sess.Start(); err != nil {
		return err
	}

	var feed *http.Server
	var rtServer *realtime.Server
	if cfg.Listen != "" {
		rtServer = realtime.New(logger, sess, log)
		feed = &http.Server{
			Addr:    cfg.Listen,
			Handler: rtServer.Handler(),
		}
		go func() {
			log.Info("live feed listening", zap.String("addr", cfg.Listen))
			if err := feed.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("live feed stopped", zap.Error(err))
			}
		}()
		defer func() {
			rtServer.Shutdown()
			feed.Close()
		}()
	}

	// Graceful shutdown on signals.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer func() {
		signal.Stop(sigCh)
		close(sigCh)
	}()

	go func() {
		sig, ok := <-sigCh
		if !ok {
			return
		}
		log.Info("shutting down", zap.String("signal", sig.String()))
		if rtServer != nil {
			rtServer.Shutdown()
			feed.Close()
		}
		sess.Close()
		log.Sync()
		os.Exit(1)
	}()

	err = console.Run(context.Background(), input, sess, console.Options{
		Prompt:      cfg.Prompt,
		Interactive: interactive,
		Out:         cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	info := sess.Info()
	log.Debug("input exhausted", zap.String("session", info.ID), zap.Int("records", info.Records))
	return nil
}
