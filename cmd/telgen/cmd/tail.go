package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"telgen/internal/activity"
	"telgen/internal/logging"
	"telgen/internal/watcher"

	"github.com/spf13/cobra"
)

var (
	tailJSON      bool
	tailFromStart bool
)

var tailCmd = &cobra.Command{
	Use:   "tail [LOGFILE]",
	Short: "Follow an activity log and print records as they are appended",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTail,
}

func init() {
	tailCmd.Flags().BoolVar(&tailJSON, "json", false, "print one JSON object per record")
	tailCmd.Flags().BoolVar(&tailFromStart, "from-start", false, "print the records already in the file first")
	rootCmd.AddCommand(tailCmd)
}

func runTail(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path := cfg.LogFile
	if len(args) == 1 {
		path = args[0]
	}

	log, err := logging.New(cfg.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer log.Sync()

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	emit := func(rec activity.Record) {
		if tailJSON {
			enc.Encode(rec)
			return
		}
		out.Write(rec.Format())
	}
	onRun := func() {
		if !tailJSON {
			fmt.Fprintln(out, "---")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f := watcher.New(path, emit, watcher.Options{
		FromStart: tailFromStart,
		OnRun:     onRun,
		Logger:    log,
	})
	return f.Run(ctx)
}
