package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"kanbard/internal/app"
)

func main() {
	var (
		cfgPath    string
		archiveNow bool
		undo       bool
		reportID   string
		showStatus bool
	)
	flag.StringVar(&cfgPath, "config", "./config.json", "path to config json")
	flag.BoolVar(&archiveNow, "archive-now", false, "run one archive pass over all enabled profiles and exit")
	flag.BoolVar(&undo, "undo", false, "revert the most recent archive pass and exit")
	flag.StringVar(&reportID, "report", "", "generate the report for this template id and exit")
	flag.BoolVar(&showStatus, "status", false, "print the undo stack depth and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.NewApp(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	// One-shot modes run a single operation without the recurrence loop.
	if archiveNow || undo || reportID != "" || showStatus {
		err := runOneShot(ctx, a, archiveNow, undo, reportID, showStatus)
		_ = a.Stop(context.Background())
		if err != nil {
			fmt.Println("fatal:", err)
			os.Exit(1)
		}
		return
	}

	if err := a.Start(ctx); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	select {
	case <-ctx.Done():
	case <-a.Done():
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx); err != nil {
		fmt.Println("stop:", err)
	}
	if err := a.Err(); err != nil && ctx.Err() == nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

func runOneShot(ctx context.Context, a *app.App, archiveNow, undo bool, reportID string, showStatus bool) error {
	if archiveNow {
		if err := a.RunArchiveNow(ctx, flag.Args()); err != nil {
			return err
		}
	}
	if undo {
		if err := a.RunUndo(ctx); err != nil {
			return err
		}
	}
	if reportID != "" {
		if err := a.RunReport(ctx, reportID); err != nil {
			return err
		}
	}
	if showStatus {
		depth, err := a.UndoDepth(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("undoable archive runs: %d\n", depth)
	}
	return nil
}
