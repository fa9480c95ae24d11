package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/lyx/internal/models"
	"github.com/desertthunder/lyx/internal/shared"
	"github.com/desertthunder/lyx/internal/tasks"
	"github.com/desertthunder/lyx/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogPath = "./tmp/lyx-tui.log"

// TUI launches the interactive terminal UI, starting from the artist preview.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	session, err := r.openSession(cmd)
	if err != nil {
		return err
	}
	defer session.Close()

	return r.runTUI(ctx, session, false)
}

// runTUI runs a harvest inside the bubbletea program and records it in the run history.
func (r *Runner) runTUI(ctx context.Context, session *harvestSession, autoStart bool) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	engine, err := r.engine(session, fileLogger)
	if err != nil {
		return err
	}

	_, processed, err := session.dataset.Load(ctx)
	if err != nil {
		return err
	}
	attempted, err := session.attempts.AttemptedArtists(ctx)
	if err != nil {
		return err
	}
	processed.Union(attempted)

	run := models.NewRun(session.config.Harvest.InputPath, session.config.Harvest.OutputPath)
	run.Stats.Total = len(shared.DedupeArtists(session.artists))
	recorded := &recordedEngine{engine: engine, session: session, run: run}

	model := ui.NewModel(ctx, recorded, session.artists, processed, runOpts(session.config, run.ID))
	if autoStart {
		model = model.WithAutoStart()
	}

	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	result, runErr := model.Result()
	if !recorded.started {
		return runErr
	}
	if err := session.finishRun(ctx, run, result, runErr); err != nil {
		fileLogger.Error("failed to record run", "run", run.ID, "error", err)
	}
	if result != nil {
		r.writeRunSummary(run, result)
	}
	return runErr
}

// recordedEngine adds the run to the history when the harvest actually starts.
type recordedEngine struct {
	engine  *tasks.HarvestEngine
	session *harvestSession
	run     *models.Run
	started bool
}

func (e *recordedEngine) Run(ctx context.Context, artists []string, opts tasks.RunOpts, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error) {
	if err := e.session.runs.Start(ctx, e.run); err != nil {
		return nil, err
	}
	e.started = true
	return e.engine.Run(ctx, artists, opts, progress)
}
