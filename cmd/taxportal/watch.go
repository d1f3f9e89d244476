package main

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/tax-portal/internal/async"
	"github.com/joseph-ayodele/tax-portal/internal/common"
	"github.com/joseph-ayodele/tax-portal/internal/ingest"
	"github.com/joseph-ayodele/tax-portal/internal/upload"
)

func newWatchCmd(a *app) *cobra.Command {
	var noScan bool
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Upload files dropped into a folder (files under receipts/ go up as receipts)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.WatchDir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return errors.New("no folder to watch; pass one or set TAXPORTAL_WATCH_DIR")
			}
			root, err := filepath.Abs(dir)
			if err != nil {
				return err
			}
			return a.watch(cmd.Context(), root, !noScan)
		},
	}
	cmd.Flags().BoolVar(&noScan, "no-scan", false, "ignore files already in the folder")
	return cmd
}

func (a *app) watch(ctx context.Context, root string, initialScan bool) error {
	st, err := a.store(ctx)
	if err != nil {
		return err
	}
	defer st.Teardown()
	uploader := ingest.NewUploader(a.client, a.logger,
		upload.WithMaxBytes(a.cfg.MaxUploadBytes),
		upload.WithRefresher(st))
	q := async.NewWorkerQueue(uploader.Handle, a.logger,
		async.WithWorkers(a.cfg.WatchWorkers),
		async.WithJobTimeout(2*a.cfg.HTTPTimeout),
	)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTPTimeout)
		defer cancel()
		q.Shutdown(shutdownCtx)
	}()

	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{root},
		InitialScan: initialScan,
		SkipHidden:  true,
		Debounce:    a.cfg.WatchDebounce,
		Logger:      a.logger,
	})
	if err != nil {
		return common.WrapError(err, "start watcher")
	}
	go func() {
		for err := range errs {
			a.logger.Warn("watch.error", "error", err)
		}
	}()

	a.logger.Info("watch.start", "root", root, "workers", a.cfg.WatchWorkers,
		"debounce_ms", a.cfg.WatchDebounce.Milliseconds())

	err = ingest.Pump(ctx, events, q, ingest.Router{Root: root}, a.logger)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
