package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roadwatch-io/roadwatch/internal/diff"
	"github.com/roadwatch-io/roadwatch/internal/feed"
	"github.com/roadwatch-io/roadwatch/internal/fetch"
	"github.com/roadwatch-io/roadwatch/internal/health"
	"github.com/roadwatch-io/roadwatch/internal/snapshot"
	"github.com/roadwatch-io/roadwatch/internal/stats"
)

// Runner executes one pipeline run: fetch (validation inline), detect
// changes, aggregate, write artifacts, report health. Single-threaded and
// sequential; at most one run may target a given output directory at a time.
type Runner struct {
	cfg       *Config
	version   string
	logger    *slog.Logger
	fetcher   *fetch.Client
	writer    *snapshot.Writer
	reporter  *health.Reporter
	publisher *feed.Publisher

	state State
	now   func() time.Time
}

// Summary is the optional single-line stdout contract for shell-script
// consumption.
type Summary struct {
	Success    bool      `json:"success"`
	ItemCount  *int      `json:"itemCount,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"durationMs"`
	Timestamp  time.Time `json:"timestamp"`
	RunID      string    `json:"runId"`
}

// New creates a pipeline runner from a validated configuration.
func New(cfg *Config, version string, logger *slog.Logger) *Runner {
	runner := &Runner{
		cfg:     cfg,
		version: version,
		logger:  logger,
		fetcher: fetch.NewClient(fetch.Config{
			APIURL:     cfg.APIURL,
			Timeout:    cfg.FetchTimeout,
			RetryCount: cfg.RetryCount,
			RateLimit:  cfg.RateLimitRPS,
		}, logger),
		writer: snapshot.NewWriter(snapshot.Config{
			OutputDir:       cfg.OutputDir,
			BackupRetention: cfg.BackupRetention,
		}, logger),
		reporter: health.NewReporter(cfg.OutputDir, cfg.APIURL, cfg.BackupRetention, logger),
		state:    StateIdle,
		now:      time.Now,
	}

	if cfg.Feed.Enabled() {
		runner.publisher = feed.NewPublisher(cfg.Feed, logger)
	}

	return runner
}

// State returns the runner's current pipeline state.
func (r *Runner) State() State {
	return r.state
}

// Run executes the pipeline once and returns its summary. The health report
// step is unconditional: every failure up to and including writing still
// produces a degraded health artifact with the carried-forward last-good
// timestamp. Run never panics on upstream or disk failure; the summary's
// Success field decides the process exit code.
func (r *Runner) Run(ctx context.Context) Summary {
	start := r.now()
	runID := uuid.NewString()
	logger := r.logger.With(slog.String("run_id", runID))

	logger.Info("Pipeline run starting",
		slog.String("api_url", r.cfg.APIURL),
		slog.String("output_dir", r.cfg.OutputDir),
		slog.Int("retry_count", r.cfg.RetryCount),
		slog.Int("backup_retention", r.cfg.BackupRetention),
	)

	r.setState(StateFetching, logger)

	items, err := r.fetcher.FetchWithRetry(ctx)
	if err != nil {
		logger.Error("Fetch failed", slog.String("error", err.Error()))

		return r.fail(logger, start, runID, err, health.SourceFailed, nil)
	}

	itemCount := len(items)

	r.setState(StateDetectingChanges, logger)

	previous := snapshot.LoadPrevious(r.cfg.OutputDir, logger)
	result := diff.Detect(items, previous)

	logger.Info("Change detection complete",
		slog.Int("new", result.New),
		slog.Int("changed", result.Changed),
		slog.Int("unchanged", result.Unchanged),
		slog.Int("removed", len(result.Removed)),
	)

	for _, removed := range result.Removed {
		logger.Warn("Item removed from upstream feed",
			slog.String("id", string(removed.ID)),
			slog.String("title", removed.Title),
		)
	}

	r.setState(StateAggregating, logger)

	statistics := stats.Aggregate(result.Items)

	r.setState(StateWriting, logger)

	snap := snapshot.New(result.Items, statistics, r.cfg.APIURL, r.version, r.now())
	if err := r.writer.Save(snap); err != nil {
		logger.Error("Snapshot write failed", slog.String("error", err.Error()))

		return r.fail(logger, start, runID, err, health.SourceSuccess, &itemCount)
	}

	if err := r.reporter.WriteReport(true, r.version, r.cfg.UpdateInterval); err != nil {
		logger.Error("Update report write failed", slog.String("error", err.Error()))

		return r.fail(logger, start, runID, err, health.SourceSuccess, &itemCount)
	}

	r.setState(StateReportingHealth, logger)

	durationMS := time.Since(start).Milliseconds()

	err = r.reporter.Record(health.Observation{
		Status:       health.StatusOK,
		SourceStatus: health.SourceSuccess,
		ItemCount:    &itemCount,
		DurationMS:   &durationMS,
	})
	if err != nil {
		// Operators depend on the health artifact; a run that cannot
		// record success is not a success.
		logger.Error("Health artifact write failed", slog.String("error", err.Error()))

		r.setState(StateFailed, logger)

		return Summary{
			Success:    false,
			ItemCount:  &itemCount,
			Error:      err.Error(),
			DurationMS: time.Since(start).Milliseconds(),
			Timestamp:  r.now().UTC(),
			RunID:      runID,
		}
	}

	r.publishChanges(ctx, logger, runID, result)

	r.setState(StateDone, logger)

	logger.Info("Pipeline run complete",
		slog.Int("items", itemCount),
		slog.Int64("duration_ms", durationMS),
	)

	return Summary{
		Success:    true,
		ItemCount:  &itemCount,
		DurationMS: durationMS,
		Timestamp:  r.now().UTC(),
		RunID:      runID,
	}
}

// fail reports degraded health and the failed update report, then settles
// into the FAILED state. Best-effort: if writing the degraded artifacts
// fails too, that is logged and the already-determined outcome stands.
func (r *Runner) fail(logger *slog.Logger, start time.Time, runID string, cause error, sourceStatus string, itemCount *int) Summary {
	r.setState(StateReportingHealth, logger)

	durationMS := time.Since(start).Milliseconds()

	err := r.reporter.Record(health.Observation{
		Status:       health.StatusDegraded,
		SourceStatus: sourceStatus,
		ItemCount:    itemCount,
		DurationMS:   &durationMS,
		ErrorMessage: cause.Error(),
	})
	if err != nil {
		logger.Error("Degraded health artifact write failed",
			slog.String("error", err.Error()))
	}

	if err := r.reporter.WriteReport(false, r.version, r.cfg.UpdateInterval); err != nil {
		logger.Warn("Update report write failed on degraded path",
			slog.String("error", err.Error()))
	}

	r.setState(StateFailed, logger)

	return Summary{
		Success:    false,
		Error:      cause.Error(),
		DurationMS: durationMS,
		Timestamp:  r.now().UTC(),
		RunID:      runID,
	}
}

// publishChanges emits the change feed when configured. Never fatal.
func (r *Runner) publishChanges(ctx context.Context, logger *slog.Logger, runID string, result diff.Result) {
	if r.publisher == nil {
		return
	}

	if err := r.publisher.PublishChanges(ctx, runID, result); err != nil {
		logger.Warn("Change feed publish failed",
			slog.String("error", err.Error()))
	}
}

// Close releases resources held across runs (the feed writer).
func (r *Runner) Close() error {
	if r.publisher == nil {
		return nil
	}

	return r.publisher.Close()
}

func (r *Runner) setState(next State, logger *slog.Logger) {
	logger.Debug("Pipeline state transition",
		slog.String("from", r.state.String()),
		slog.String("to", next.String()),
	)

	r.state = next
}
