// Package harness wires one end-to-end evaluation run: load the catalog,
// sample it, allocate a run, dispatch the queue and persist the outcome.
package harness

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/safebench/mmbench/internal/catalog"
	"github.com/safebench/mmbench/internal/config"
	"github.com/safebench/mmbench/internal/dispatch"
	"github.com/safebench/mmbench/internal/domain"
	"github.com/safebench/mmbench/internal/producer"
	"github.com/safebench/mmbench/internal/queue"
	"github.com/safebench/mmbench/internal/registry"
	"github.com/safebench/mmbench/internal/runstore"
	"github.com/safebench/mmbench/internal/sampler"
	"github.com/safebench/mmbench/internal/sink"
)

// Overrides adjust a single run without touching the config file.
// Zero values mean "use the configured value".
type Overrides struct {
	Rate       float64
	Seed       int64
	SeedSet    bool
	Categories []string
	ImageTypes []string
	MaxTasks   int
	Model      string
}

// Harness executes runs against one configuration.
type Harness struct {
	cfg *config.Config
	// Producer overrides the configured producer when set. Tests and dry
	// runs use it.
	Producer producer.AnswerProducer
}

// New creates a harness over the given configuration
func New(cfg *config.Config) *Harness {
	return &Harness{cfg: cfg}
}

// Execute performs one full run and returns its record. Sampler and
// registry failures abort before any work is dispatched; per-task
// failures never do.
func (h *Harness) Execute(ctx context.Context, ov Overrides) (*domain.RunRecord, error) {
	cfg := h.cfg

	sel, err := h.Sample(ov)
	if err != nil {
		return nil, err
	}

	tasks := queue.Build(sel)
	maxTasks := cfg.Sampling.MaxTasks
	if ov.MaxTasks > 0 {
		maxTasks = ov.MaxTasks
	}
	tasks = queue.Truncate(tasks, maxTasks)

	model := cfg.Producer.Model
	if ov.Model != "" {
		model = ov.Model
	}

	// Resolve the producer before allocating anything so a bad producer
	// config cannot leave an empty run behind.
	prod := h.Producer
	if prod == nil {
		prod, err = buildProducer(cfg, model)
		if err != nil {
			return nil, err
		}
	}

	rec, err := registry.New(cfg.Paths.OutputRoot).Allocate(cfg.Producer.Kind, model)
	if err != nil {
		return nil, err
	}
	log.Printf("run %d: %d tasks -> %s", rec.ID, len(tasks), rec.Dir)

	store, err := runstore.New(cfg.Paths.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening run history: %w", err)
	}
	defer store.Close()
	if err := store.UpsertRun(rec); err != nil {
		return nil, fmt.Errorf("recording run start: %w", err)
	}

	resultSink, err := sink.New(rec)
	if err != nil {
		return nil, err
	}

	d := dispatch.New(prod, h.classifier(), h.monitor(), dispatch.Options{
		Concurrency: cfg.Dispatch.Concurrency,
		MaxAttempts: cfg.Dispatch.MaxAttempts,
		CallTimeout: cfg.Dispatch.CallTimeout(),
		QPS:         cfg.Dispatch.QPS,
		Backoff: dispatch.Backoff{
			Base: cfg.Dispatch.BackoffBase(),
			Cap:  cfg.Dispatch.BackoffCap(),
		},
	})

	stopReason, runErr := d.Run(ctx, tasks, resultSink)

	status := domain.RunCompleted
	if stopReason != domain.StopNone {
		status = domain.RunStopped
		_, msg := d.Stopped()
		if msg != "" {
			log.Printf("run %d stopped: %s", rec.ID, msg)
		}
	}
	if runErr != nil {
		status = domain.RunFailed
	}

	if err := resultSink.Close(status, stopReason); err != nil {
		log.Printf("run %d: finalizing sink: %v", rec.ID, err)
	}
	if err := store.UpsertRun(rec); err != nil {
		log.Printf("run %d: recording run end: %v", rec.ID, err)
	}

	if runErr != nil {
		return rec, fmt.Errorf("run %d: %w", rec.ID, runErr)
	}
	log.Printf("run %d finished: %d completed, %d failed, %d retries",
		rec.ID, rec.Tally.Completed, rec.Tally.Failed, rec.Tally.Retried)
	return rec, nil
}

// Sample loads the catalog and draws the selection without running
// anything. Backs the dry-run command.
func (h *Harness) Sample(ov Overrides) (*sampler.Selection, error) {
	cfg := h.cfg

	categories := cfg.Sampling.Categories
	if len(ov.Categories) > 0 {
		categories = ov.Categories
	}
	imageTypes := cfg.Sampling.ImageTypes
	if len(ov.ImageTypes) > 0 {
		imageTypes = ov.ImageTypes
	}

	cat, err := catalog.Load(catalog.Options{
		Pattern:    cfg.Paths.QuestionGlob,
		ImageBase:  cfg.Paths.ImageBase,
		ImageTypes: imageTypes,
		Categories: categories,
	})
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	rate := cfg.Sampling.Rate
	if ov.Rate > 0 {
		rate = ov.Rate
	}
	seed := cfg.Sampling.Seed
	if ov.SeedSet {
		seed = ov.Seed
	}

	return sampler.Select(cat, rate, seed)
}

func (h *Harness) classifier() *dispatch.Classifier {
	return &dispatch.Classifier{Signatures: h.cfg.Dispatch.FailureSignatures}
}

func (h *Harness) monitor() *dispatch.Monitor {
	d := h.cfg.Dispatch
	if d.MaxConsecutive <= 0 && d.ErrorRateThreshold <= 0 {
		return nil
	}
	return &dispatch.Monitor{
		MaxConsecutive:     d.MaxConsecutive,
		ErrorRateThreshold: d.ErrorRateThreshold,
		MinSamples:         d.ErrorRateMinCount,
	}
}

func buildProducer(cfg *config.Config, model string) (producer.AnswerProducer, error) {
	switch cfg.Producer.Kind {
	case "http":
		if cfg.Producer.Endpoint == "" {
			return nil, fmt.Errorf("producer.endpoint is required for the http producer")
		}
		return &producer.HTTPProducer{
			Endpoint: cfg.Producer.Endpoint,
			APIKey:   cfg.Producer.APIKey,
			Model:    model,
			Client:   &http.Client{Timeout: cfg.Dispatch.CallTimeout() + 30*time.Second},
		}, nil
	case "command":
		if cfg.Producer.Command == "" {
			return nil, fmt.Errorf("producer.command is required for the command producer")
		}
		env := make(map[string]string, len(cfg.Producer.Env)+1)
		for k, v := range cfg.Producer.Env {
			env[k] = v
		}
		env["MMBENCH_MODEL"] = model
		return &producer.CommandProducer{
			Command: cfg.Producer.Command,
			Args:    cfg.Producer.Args,
			Env:     env,
		}, nil
	case "static":
		return &producer.StaticProducer{}, nil
	}
	return nil, fmt.Errorf("unknown producer kind %q", cfg.Producer.Kind)
}
