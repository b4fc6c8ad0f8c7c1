package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var batchLimit int

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Verify every submission JSON file in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		entries, err := os.ReadDir(args[0])
		if err != nil {
			return eris.Wrapf(err, "read batch dir %s", args[0])
		}

		var files []string
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			files = append(files, filepath.Join(args[0], e.Name()))
		}
		if len(files) == 0 {
			return eris.Errorf("no submission files in %s", args[0])
		}
		if batchLimit > 0 && len(files) > batchLimit {
			files = files[:batchLimit]
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		maxConcurrent := cfg.Batch.MaxConcurrentSubmissions
		if maxConcurrent <= 0 {
			maxConcurrent = 1
		}

		var succeeded, failed atomic.Int64

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(maxConcurrent)

		for _, file := range files {
			g.Go(func() error {
				sub, err := readSubmission(file)
				if err != nil {
					zap.L().Error("batch: skipping unreadable submission",
						zap.String("file", file), zap.Error(err))
					failed.Add(1)
					return nil
				}

				result, err := env.Pipeline.Run(gCtx, sub, filepath.Base(file))
				if err != nil {
					zap.L().Error("batch: submission failed",
						zap.String("file", file), zap.Error(err))
					failed.Add(1)
					return nil
				}

				succeeded.Add(1)
				zap.L().Info("batch: submission verified",
					zap.String("file", file),
					zap.String("run_id", result.RunID),
					zap.String("final_risk", string(result.FinalRisk)),
				)
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "batch")
		}

		fmt.Fprintf(os.Stdout, "batch complete: %d succeeded, %d failed\n",
			succeeded.Load(), failed.Load())
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of submissions to process (0 = all)")
	rootCmd.AddCommand(batchCmd)
}
