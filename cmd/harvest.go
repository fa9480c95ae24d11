package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lyx/internal/models"
	"github.com/desertthunder/lyx/internal/repositories"
	"github.com/desertthunder/lyx/internal/shared"
	"github.com/desertthunder/lyx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// harvestSession bundles what a harvest needs once config, input and storage are resolved.
type harvestSession struct {
	config   *shared.Config
	artists  []string
	db       *sql.DB
	dataset  *repositories.DatasetRepository
	attempts *repositories.AttemptRepository
	runs     *repositories.RunRepository
}

func (s *harvestSession) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// applyHarvestFlags copies the flags that were set onto config.
func applyHarvestFlags(cmd *cli.Command, config *shared.Config) {
	h := &config.Harvest
	if cmd.IsSet("input") {
		h.InputPath = cmd.String("input")
	}
	if cmd.IsSet("output") {
		h.OutputPath = cmd.String("output")
	}
	if cmd.IsSet("batch-size") {
		h.BatchSize = int(cmd.Int("batch-size"))
	}
	if cmd.IsSet("max-songs") {
		h.MaxSongs = int(cmd.Int("max-songs"))
	}
	if cmd.IsSet("pause") {
		h.PauseSeconds = cmd.Duration("pause").Seconds()
	}
	if cmd.IsSet("cooldown") {
		h.CooldownSeconds = cmd.Duration("cooldown").Seconds()
	}
}

// openSession resolves config and flags, reads the artist list and opens the ledger.
func (r *Runner) openSession(cmd *cli.Command) (*harvestSession, error) {
	base, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	config := *base
	applyHarvestFlags(cmd, &config)
	if err := config.Validate(); err != nil {
		return nil, err
	}

	artists, err := repositories.ReadArtistNames(config.Harvest.InputPath, config.Harvest.NameColumn)
	if err != nil {
		return nil, err
	}

	db, err := shared.OpenLedger(config.Database)
	if err != nil {
		return nil, err
	}

	return &harvestSession{
		config:   &config,
		artists:  artists,
		db:       db,
		dataset:  repositories.NewDatasetRepository(config.Harvest.OutputPath),
		attempts: repositories.NewAttemptRepository(db),
		runs:     repositories.NewRunRepository(db),
	}, nil
}

// engine wires the harvest engine for the session, logging to logger.
func (r *Runner) engine(s *harvestSession, logger *log.Logger) (*tasks.HarvestEngine, error) {
	source, err := r.lyricsSource(s.config)
	if err != nil {
		return nil, err
	}
	harvester := tasks.NewHarvester(source, logger, s.config.Harvest.Cooldown())
	return tasks.NewHarvestEngine(s.dataset, s.attempts, harvester, logger), nil
}

func runOpts(config *shared.Config, runID string) tasks.RunOpts {
	return tasks.RunOpts{
		BatchSize: config.Harvest.BatchSize,
		MaxSongs:  config.Harvest.MaxSongs,
		Pause:     config.Harvest.Pause(),
		RunID:     runID,
	}
}

// startRun records a new run in the history.
func (s *harvestSession) startRun(ctx context.Context) (*models.Run, error) {
	run := models.NewRun(s.config.Harvest.InputPath, s.config.Harvest.OutputPath)
	run.Stats.Total = len(shared.DedupeArtists(s.artists))
	if err := s.runs.Start(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// finishRun stores the final state of run. It runs even when ctx was cancelled.
func (s *harvestSession) finishRun(ctx context.Context, run *models.Run, result *tasks.RunResult, runErr error) error {
	if result != nil {
		run.Stats = result.Stats
	}

	switch {
	case runErr != nil:
		run.Status = models.RunFailed
		run.Error = runErr.Error()
	case result != nil && result.Cancelled:
		run.Status = models.RunCancelled
	default:
		run.Status = models.RunCompleted
	}

	return s.runs.Finish(context.WithoutCancel(ctx), run)
}

// HarvestRun harvests every unprocessed artist in the input list.
func (r *Runner) HarvestRun(ctx context.Context, cmd *cli.Command) error {
	session, err := r.openSession(cmd)
	if err != nil {
		return err
	}
	defer session.Close()

	if cmd.Bool("tui") {
		return r.runTUI(ctx, session, true)
	}

	engine, err := r.engine(session, r.logger)
	if err != nil {
		return err
	}

	run, err := session.startRun(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("starting harvest", "run", run.ID, "input", session.config.Harvest.InputPath, "output", session.config.Harvest.OutputPath)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progressCh {
			switch update.Phase {
			case tasks.LoadProgress:
				r.writePlain("📥 %s\n\n", update.Message)
			case tasks.FetchArtist:
			case tasks.Flush:
				r.writePlain("💾 %s\n", update.Message)
			case tasks.Complete:
				r.writePlain("\n%s\n", update.Message)
			default:
				r.writePlain("   %s\n", update.Message)
			}
		}
	}()

	result, runErr := engine.Run(ctx, session.artists, runOpts(session.config, run.ID), progressCh)
	close(progressCh)
	<-printed

	if err := session.finishRun(ctx, run, result, runErr); err != nil {
		r.logger.Error("failed to record run", "run", run.ID, "error", err)
	}

	if result != nil {
		r.writeRunSummary(run, result)
	}
	return runErr
}

func (r *Runner) writeRunSummary(run *models.Run, result *tasks.RunResult) {
	title := "Harvest Complete!"
	if result.Cancelled {
		title = "Harvest Interrupted (progress saved)"
	}
	if run.Status == models.RunFailed {
		title = "Harvest Halted"
	}

	s := result.Stats
	r.writePlain("\n")
	r.writePlainHeader(title)
	r.writePlain("Run: %s\n", run.ID)
	r.writePlain("Artists: %d (%d skipped)\n", s.Total, s.Skipped)
	r.writePlain("Harvested: %d\n", s.Harvested)
	r.writePlain("No data: %d empty, %d not found\n", s.Empty, s.NotFound)
	r.writePlain("Deferred: %d (%d failed)\n", s.Deferred, s.Failed)
	r.writePlain("Malformed songs skipped: %d\n", s.Malformed)
	r.writePlain("Records written: %d in %d flushes\n", s.RecordsWritten, s.Flushes)
	if result.Dataset != nil {
		r.writePlain("Dataset: %d records\n", result.Dataset.Len())
	}
}

// HarvestStatus compares the input list with the processed set.
func (r *Runner) HarvestStatus(ctx context.Context, cmd *cli.Command) error {
	session, err := r.openSession(cmd)
	if err != nil {
		return err
	}
	defer session.Close()

	dataset, processed, err := session.dataset.Load(ctx)
	if err != nil {
		return err
	}
	attempted, err := session.attempts.AttemptedArtists(ctx)
	if err != nil {
		return err
	}

	artists := shared.DedupeArtists(session.artists)
	var inDataset, noData int
	pending := []string{}
	for _, name := range artists {
		switch {
		case processed.Has(name):
			inDataset++
		case attempted.Has(name):
			noData++
		default:
			pending = append(pending, name)
		}
	}

	r.writePlainHeader("Harvest Status")
	r.writePlain("Input: %s (%d artists, %d unique)\n", session.config.Harvest.InputPath, len(session.artists), len(artists))
	r.writePlain("Dataset: %s (%d records)\n", session.config.Harvest.OutputPath, dataset.Len())
	r.writePlain("In dataset: %d\n", inDataset)
	r.writePlain("Attempted without data: %d\n", noData)
	r.writePlain("Pending: %d\n", len(pending))

	if cmd.Bool("pending") && len(pending) > 0 {
		r.writePlainln("Pending artists:")
		for i, name := range pending {
			r.writePlain("  %d. %s\n", i+1, name)
		}
	}
	return nil
}

// HarvestHistory lists recent runs, or the attempts of a single run with --run.
func (r *Runner) HarvestHistory(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := shared.OpenLedger(config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if runID := cmd.String("run"); runID != "" {
		return r.writeRunAttempts(ctx, db, runID, cmd.Bool("json"))
	}

	runs, err := repositories.NewRunRepository(db).Latest(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(runs, true)
	}

	if len(runs) == 0 {
		r.writePlain("No harvest runs recorded yet\n")
		return nil
	}

	r.writePlainHeader("Harvest History")
	for _, run := range runs {
		duration := "running"
		if run.FinishedAt != nil {
			duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
		}
		r.writePlain("%s  %s  %-9s  %s\n", run.StartedAt.Local().Format("2006-01-02 15:04"), run.ID, run.Status, duration)
		r.writePlain("    %d artists: %d harvested, %d skipped, %d no data, %d deferred, %d records written\n",
			run.Stats.Total, run.Stats.Harvested, run.Stats.Skipped, run.Stats.Empty+run.Stats.NotFound,
			run.Stats.Deferred+run.Stats.Failed, run.Stats.RecordsWritten)
		if run.Error != "" {
			r.writePlain("    error: %s\n", run.Error)
		}
	}
	return nil
}

func (r *Runner) writeRunAttempts(ctx context.Context, db *sql.DB, runID string, useJSON bool) error {
	run, err := repositories.NewRunRepository(db).Get(ctx, runID)
	if err != nil {
		return err
	}
	attempts, err := repositories.NewAttemptRepository(db).ByRun(ctx, runID)
	if err != nil {
		return err
	}

	if useJSON {
		return r.writeJSON(map[string]any{"run": run, "attempts": attempts}, true)
	}

	r.writePlainHeader(fmt.Sprintf("Run %s (%s)", run.ID, run.Status))
	if len(attempts) == 0 {
		r.writePlain("No artists attempted\n")
		return nil
	}
	for _, a := range attempts {
		line := fmt.Sprintf("%-12s %s", a.Outcome, a.Artist)
		if a.Records > 0 {
			line += fmt.Sprintf(" (%d songs)", a.Records)
		}
		if a.Error != "" {
			line += ": " + a.Error
		}
		r.writePlain("%s\n", line)
	}
	return nil
}

// HarvestForget removes an artist from the attempt ledger.
//
// Artists already present in the dataset stay processed; remove their rows from the CSV to fetch them again.
func (r *Runner) HarvestForget(ctx context.Context, cmd *cli.Command) error {
	artist := strings.TrimSpace(cmd.StringArg("artist"))
	if artist == "" {
		return fmt.Errorf("%w: artist name", shared.ErrMissingArgument)
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := shared.OpenLedger(config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := repositories.NewAttemptRepository(db).Forget(ctx, artist)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: no attempts recorded for %q", shared.ErrInvalidArgument, artist)
	}

	r.logger.Info("artist forgotten", "artist", artist, "attempts", n)
	r.writePlain("✓ Removed %d attempts for %s\n", n, artist)
	return nil
}
