package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lyx/internal/services"
	"github.com/desertthunder/lyx/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	source      services.LyricsSource
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	input       io.Reader
	envPath     string
	openBrowser func(string) error

	oauthEndpoint oauth2.Endpoint
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Config and Source are normally left nil: they are then resolved from the --config flag and the Genius token.
type RunnerOpts struct {
	Config      *shared.Config
	Source      services.LyricsSource
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	Input       io.Reader
	EnvPath     string
	OpenBrowser func(string) error
	// OAuthEndpoint replaces the Genius OAuth endpoint for `setup token --oauth`.
	OAuthEndpoint oauth2.Endpoint
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.EnvPath == "" {
		opts.EnvPath = ".env"
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:      opts.Config,
		source:      opts.Source,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		input:       opts.Input,
		envPath:     opts.EnvPath,
		openBrowser: opts.OpenBrowser,

		oauthEndpoint: opts.OAuthEndpoint,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		harvestCommand, datasetCommand, geniusCommand, setupCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by subsequent commands.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// loadConfig returns the injected config, or the file named by --config (defaults when it does not exist).
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}

	path := cmd.String("config")
	config, err := shared.ResolveConfig(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}
	r.logger.Debug("config resolved", "path", path)
	return config, nil
}

// geniusService builds a Genius client from config. A missing token fails with [shared.ErrMissingCredentials].
func (r *Runner) geniusService(config *shared.Config) (*services.GeniusService, error) {
	token, err := shared.ResolveGeniusToken(config)
	if err != nil {
		return nil, err
	}

	g := config.Credentials.Genius
	h := config.Harvest
	return services.NewGeniusService(services.GeniusOpts{
		AccessToken:          token,
		BaseURL:              g.BaseURL,
		HTTPClient:           r.httpClient,
		Retries:              g.Retries,
		RequestsPerSecond:    g.RequestsPerSecond,
		Timeout:              g.Timeout(),
		Sort:                 h.Sort,
		FullInfo:             h.FullInfo,
		SkipNonSongs:         h.SkipNonSongs,
		RemoveSectionHeaders: h.RemoveSectionHeaders,
		ExcludedTerms:        h.ExcludedTerms,
	})
}

// lyricsSource returns the injected source or a Genius client built from config.
func (r *Runner) lyricsSource(config *shared.Config) (services.LyricsSource, error) {
	if r.source != nil {
		return r.source, nil
	}
	return r.geniusService(config)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
