package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/lyx/internal/models"
	"github.com/desertthunder/lyx/internal/shared"
	"github.com/desertthunder/lyx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PreviewView ViewState = iota
	ConfirmView
	HarvestView
	ResultView
)

// logLines is the number of recent progress messages kept on screen.
const logLines = 8

// Engine runs a harvest. Implemented by [tasks.HarvestEngine].
type Engine interface {
	Run(ctx context.Context, artists []string, opts tasks.RunOpts, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error)
}

// counters tallies artist outcomes as progress updates arrive.
type counters struct {
	harvested int
	noData    int
	deferred  int
	skipped   int
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	cancel       context.CancelFunc
	view         ViewState
	engine       Engine
	artists      []string
	pending      int
	opts         tasks.RunOpts
	autoStart    bool
	stopping     bool
	width        int
	height       int
	artistList   list.Model
	spinner      spinner.Model
	progressChan chan tasks.ProgressUpdate
	done         chan Msg
	progress     tasks.ProgressUpdate
	counts       counters
	recent       []string
	result       *tasks.RunResult
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a TUI model for harvesting artists with engine.
//
// processed marks the artists the run will skip in the preview list.
func NewModel(ctx context.Context, engine Engine, artists []string, processed models.ArtistSet, opts tasks.RunOpts) *Model {
	ctx, cancel := context.WithCancel(ctx)
	artists = shared.DedupeArtists(artists)
	if processed == nil {
		processed = models.NewArtistSet()
	}

	items, pending := artistItems(artists, processed)
	artistList := list.New(items, list.NewDefaultDelegate(), 0, 0)
	artistList.Title = fmt.Sprintf("Artists (%d pending of %d)", pending, len(artists))

	return &Model{
		ctx:        ctx,
		cancel:     cancel,
		view:       PreviewView,
		engine:     engine,
		artists:    artists,
		pending:    pending,
		opts:       opts,
		artistList: artistList,
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

// WithAutoStart skips the preview and confirmation views.
func (m *Model) WithAutoStart() *Model {
	m.autoStart = true
	return m
}

// Result returns the run result and error once the harvest has finished.
func (m *Model) Result() (*tasks.RunResult, error) {
	return m.result, m.err
}

// Init starts the harvest right away when auto start is set.
func (m *Model) Init() tea.Cmd {
	if m.autoStart {
		return m.startHarvest()
	}
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.artistList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PreviewView:
			return m.handlePreviewKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case HarvestView:
			return m.handleHarvestKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != HarvestView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			m.applyProgress(msg.data.(tasks.ProgressUpdate))
			return m, m.waitForProgress()
		case MsgHarvestComplete:
			out := msg.data.(harvestOutcome)
			m.result = out.result
			m.err = out.err
			m.view = ResultView
			m.progressChan = nil
			m.done = nil
			return m, nil
		}
	}

	if m.view == PreviewView {
		var cmd tea.Cmd
		m.artistList, cmd = m.artistList.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case PreviewView:
		return m.renderPreview()
	case ConfirmView:
		return m.renderConfirm()
	case HarvestView:
		return m.renderHarvest()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handlePreviewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.artistList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.artistList, cmd = m.artistList.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.cancel()
		return m, tea.Quit
	case "enter":
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.artistList, cmd = m.artistList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "n", "esc":
		m.view = PreviewView
		return m, nil
	case "y":
		return m, m.startHarvest()
	}
	return m, nil
}

func (m *Model) handleHarvestKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.stopping = true
		m.cancel()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "enter":
		m.cancel()
		return m, tea.Quit
	}
	return m, nil
}

// startHarvest runs the engine in its own goroutine and starts listening for progress.
func (m *Model) startHarvest() tea.Cmd {
	m.view = HarvestView
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.done = make(chan Msg, 1)

	progress, done := m.progressChan, m.done
	go func() {
		result, err := m.engine.Run(m.ctx, m.artists, m.opts, progress)
		close(progress)
		done <- harvestCompleteMsg(result, err)
	}()

	return tea.Batch(m.spinner.Tick, m.waitForProgress())
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.done
	return func() tea.Msg {
		if progress == nil {
			return nil
		}

		update, ok := <-progress
		if !ok {
			return <-done
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) applyProgress(update tasks.ProgressUpdate) {
	m.progress = update

	switch update.Phase {
	case tasks.SkipArtist:
		m.counts.skipped++
	case tasks.ArtistHarvested:
		m.counts.harvested++
	case tasks.ArtistNoData:
		m.counts.noData++
	case tasks.ArtistDeferred:
		m.counts.deferred++
	}

	if update.Phase == tasks.FetchArtist || update.Message == "" {
		return
	}
	m.recent = append(m.recent, update.Message)
	if len(m.recent) > logLines {
		m.recent = m.recent[len(m.recent)-logLines:]
	}
}

func (m *Model) renderPreview() string {
	helpKeys := []key.Binding{m.keys.start, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.artistList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Harvest lyrics for %d artists?", m.pending))
	info := fmt.Sprintf("\nArtists: %d (%d already processed)\nMax songs per artist: %s\nFlush every: %d artists\n",
		len(m.artists), len(m.artists)-m.pending, maxSongsLabel(m.opts.MaxSongs), batchSize(m.opts.BatchSize))

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderHarvest() string {
	title := styles.title.Render("Harvesting Lyrics")

	var phase string
	switch m.progress.Phase {
	case tasks.LoadProgress:
		phase = "Loading saved progress..."
	case tasks.FetchArtist:
		phase = m.progress.Message
	case tasks.Flush:
		phase = "Saving dataset..."
	default:
		phase = fmt.Sprintf("Artist %d/%d", m.progress.Step, m.progress.Total)
	}
	if m.stopping {
		phase = styles.warn.Render("Stopping after the current artist...")
	}

	tally := fmt.Sprintf("%s harvested  %s no data  %s deferred  %s skipped",
		styles.ok.Render(fmt.Sprint(m.counts.harvested)),
		fmt.Sprint(m.counts.noData),
		styles.warn.Render(fmt.Sprint(m.counts.deferred)),
		styles.muted.Render(fmt.Sprint(m.counts.skipped)),
	)

	lines := make([]string, len(m.recent))
	for i, line := range m.recent {
		lines[i] = styles.muted.Render(line)
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.stop})
	return fmt.Sprintf("%s\n\n%s %s\n%s\n\n%s\n\n%s", title, m.spinner.View(), phase, tally, strings.Join(lines, "\n"), helpView)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})

	if m.result == nil {
		msg := "No result available"
		if m.err != nil {
			msg = fmt.Sprintf("Harvest failed: %v", m.err)
		}
		return styles.err.Render(msg) + "\n\n" + helpView
	}

	var title string
	switch {
	case m.err != nil:
		title = styles.err.Render(fmt.Sprintf("✗ Harvest halted: %v", m.err))
	case m.result.Cancelled:
		title = styles.warn.Render("Harvest interrupted, progress saved")
	default:
		title = styles.ok.Render("✓ Harvest Complete!")
	}

	s := m.result.Stats
	info := fmt.Sprintf(
		"\nArtists: %d\nHarvested: %d\nSkipped: %d\nEmpty: %d\nNot found: %d\nDeferred: %d\nFailed: %d\nMalformed songs: %d\nRecords written: %d (%d flushes)",
		s.Total, s.Harvested, s.Skipped, s.Empty, s.NotFound, s.Deferred, s.Failed, s.Malformed, s.RecordsWritten, s.Flushes,
	)
	if m.result.Dataset != nil {
		info += fmt.Sprintf("\nDataset size: %d records", m.result.Dataset.Len())
	}

	return fmt.Sprintf("%s\n%s\n\n%s", title, info, helpView)
}

func maxSongsLabel(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return fmt.Sprint(n)
}

func batchSize(n int) int {
	if n <= 0 {
		return tasks.DefaultBatchSize
	}
	return n
}
