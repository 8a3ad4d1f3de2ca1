package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/safebench/mmbench/internal/batch"
	"github.com/safebench/mmbench/internal/config"
	"github.com/safebench/mmbench/internal/domain"
	"github.com/safebench/mmbench/internal/harness"
	"github.com/safebench/mmbench/internal/runstore"
	"github.com/safebench/mmbench/internal/sink"
	"github.com/safebench/mmbench/internal/watch"
)

var (
	runRate       float64
	runSeed       int64
	runCategories []string
	runImageTypes []string
	runMaxTasks   int
	runModel      string

	listModel  string
	listStatus string
	listLimit  int

	schedulePath string
)

func init() {
	// run command
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Execute an evaluation run",
		RunE:  runRun,
	}
	runCmd.Flags().Float64Var(&runRate, "rate", 0, "sampling rate override (0 = configured)")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "sampling seed override")
	runCmd.Flags().StringSliceVar(&runCategories, "category", nil, "restrict to categories")
	runCmd.Flags().StringSliceVar(&runImageTypes, "image-type", nil, "image variants (SD, SD_TYPO, TYPO)")
	runCmd.Flags().IntVar(&runMaxTasks, "max-tasks", 0, "cap the task count after sampling")
	runCmd.Flags().StringVar(&runModel, "model", "", "model name override")
	rootCmd.AddCommand(runCmd)

	// sample command
	sampleCmd := &cobra.Command{
		Use:   "sample",
		Short: "Show sampling stats without running anything",
		RunE:  runSample,
	}
	sampleCmd.Flags().Float64Var(&runRate, "rate", 0, "sampling rate override")
	sampleCmd.Flags().Int64Var(&runSeed, "seed", 0, "sampling seed override")
	sampleCmd.Flags().StringSliceVar(&runCategories, "category", nil, "restrict to categories")
	sampleCmd.Flags().StringSliceVar(&runImageTypes, "image-type", nil, "image variants")
	rootCmd.AddCommand(sampleCmd)

	// runs command
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List past runs",
		RunE:  runRuns,
	}
	runsCmd.Flags().StringVar(&listModel, "model", "", "filter by model")
	runsCmd.Flags().StringVar(&listStatus, "status", "", "filter by status")
	runsCmd.Flags().IntVar(&listLimit, "limit", 20, "max runs to list")
	rootCmd.AddCommand(runsCmd)

	// watch command
	watchCmd := &cobra.Command{
		Use:   "watch RUN_DIR",
		Short: "Follow a run's results as they are appended",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatch,
	}
	rootCmd.AddCommand(watchCmd)

	// schedule command
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run recurring evaluation sweeps from a schedule file",
		RunE:  runSchedule,
	}
	scheduleCmd.Flags().StringVar(&schedulePath, "file", "schedule.toml", "sweep schedule file")
	rootCmd.AddCommand(scheduleCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

func overridesFromFlags(cmd *cobra.Command) harness.Overrides {
	return harness.Overrides{
		Rate:       runRate,
		Seed:       runSeed,
		SeedSet:    cmd.Flags().Changed("seed"),
		Categories: runCategories,
		ImageTypes: runImageTypes,
		MaxTasks:   runMaxTasks,
		Model:      runModel,
	}
}

// signalContext cancels on interrupt so in-flight work can drain cleanly.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	rec, err := harness.New(cfg).Execute(ctx, overridesFromFlags(cmd))
	if err != nil {
		return err
	}

	fmt.Printf("run %d: %d completed, %d failed, %d retries (%s)\n",
		rec.ID, rec.Tally.Completed, rec.Tally.Failed, rec.Tally.Retried,
		humanize.RelTime(rec.StartedAt, *rec.FinishedAt, "elapsed", ""))
	fmt.Printf("results: %s\n", filepath.Join(rec.Dir, sink.ResultsFile))
	if rec.StopReason != domain.StopNone {
		fmt.Printf("stopped early: %s\n", rec.StopReason)
	}
	return nil
}

func runSample(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sel, err := harness.New(cfg).Sample(overridesFromFlags(cmd))
	if err != nil {
		return err
	}

	fmt.Printf("rate=%.2f seed=%d\n", sel.Rate, sel.Seed)
	sel.WriteStats(os.Stdout)
	return nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := runstore.New(cfg.Paths.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(runstore.ListOptions{
		Model:  listModel,
		Status: domain.RunStatus(listStatus),
		Limit:  listLimit,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tSTATUS\tCOMPLETED\tFAILED\tSTARTED\tDURATION")
	for _, rec := range runs {
		duration := "-"
		if rec.FinishedAt != nil {
			duration = runstore.Duration(rec).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\t%s\n",
			rec.ID, rec.Model, rec.Status,
			rec.Tally.Completed, rec.Tally.Failed,
			humanize.Time(rec.StartedAt), duration)
	}
	w.Flush()

	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	path := args[0]
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		path = filepath.Join(path, sink.ResultsFile)
	}

	ctx, stop := signalContext()
	defer stop()

	w, err := watch.New(path, func(res *domain.Result) {
		marker := "ok"
		if res.Status == domain.TaskFatal {
			marker = "FAIL"
		}
		fmt.Printf("[%4d] %-4s %s attempts=%d %s\n",
			res.Seq, marker, res.TaskID, res.Attempts, res.Reason)
	})
	if err != nil {
		return err
	}
	defer w.Stop()

	if err := w.Start(ctx); err != nil {
		return err
	}
	fmt.Printf("watching %s (ctrl-c to stop)\n", path)
	<-ctx.Done()
	return nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	schedule, err := batch.LoadScheduleConfig(schedulePath)
	if err != nil {
		return err
	}
	if len(schedule.Sweeps) == 0 {
		return fmt.Errorf("no sweeps defined in %s", schedulePath)
	}

	sched, err := batch.NewScheduler(schedule.Sweeps)
	if err != nil {
		return err
	}

	for _, name := range sched.ListSweeps() {
		fmt.Printf("sweep %s: next run %s\n", name, humanize.Time(sched.NextRun(name)))
	}

	ctx, stop := signalContext()
	defer stop()

	h := harness.New(cfg)
	sched.Run(ctx, func(sweep batch.SweepConfig) error {
		_, err := h.Execute(ctx, harness.Overrides{
			Rate:       sweep.SamplingRate,
			Seed:       sweep.Seed,
			SeedSet:    sweep.Seed != 0,
			Categories: sweep.Categories,
			ImageTypes: sweep.ImageTypes,
			MaxTasks:   sweep.MaxTasks,
			Model:      sweep.Model,
		})
		return err
	})
	return nil
}
