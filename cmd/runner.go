package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/dzdedupe/internal/repositories"
	"github.com/desertthunder/dzdedupe/internal/services"
	"github.com/desertthunder/dzdedupe/internal/shared"
	"github.com/desertthunder/dzdedupe/internal/tasks"
)

const defaultConfigPath = "config.toml"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	service     services.Service
	credentials shared.CredentialProvider
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	errOutput   io.Writer
	registry    *prometheus.Registry
	metrics     *services.Metrics
	openDB      func(shared.DatabaseConfig) (*sql.DB, error)
	openBrowser func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Service and Credentials are built from the loaded config when left nil.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Service     services.Service
	Credentials shared.CredentialProvider
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	ErrOutput   io.Writer // Receives --stats when the report is machine readable
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.ErrOutput == nil {
		opts.ErrOutput = os.Stderr
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	registry := prometheus.NewRegistry()

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		service:     opts.Service,
		credentials: opts.Credentials,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		errOutput:   opts.ErrOutput,
		registry:    registry,
		metrics:     services.NewMetrics(registry),
		openDB:      shared.OpenHistoryDatabase,
		openBrowser: shared.OpenBrowser,
	}
}

// app builds the root command.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "dzdedupe",
		Usage:   "Find and remove duplicate tracks in Deezer playlists",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   defaultConfigPath,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
				Value: "info",
			},
			&cli.StringFlag{
				Name:    "sid",
				Usage:   "Deezer sid session cookie",
				Sources: cli.EnvVars("DEEZER_SID"),
			},
		},
		Before:   r.before,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playlistsCommand, tracksCommand, dedupeCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the config file, applies global flags and builds the service.
//
// Without a config file the embedded defaults apply.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(cmd.String("log-level")))

	path := cmd.String("config")
	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return ctx, err
		}
		r.config = config
		r.configPath = path
	} else if cmd.IsSet("config") {
		r.logger.Warn("config file not found, using defaults", "path", path)
		r.configPath = path
	}

	if r.credentials == nil {
		r.credentials = r.credentialChain(cmd.String("sid"))
	}
	if r.service == nil {
		r.service = r.newDeezerService()
	}
	return ctx, nil
}

// credentialChain prefers the flag or environment sid, then the config sid, then the config cURL file.
func (r *Runner) credentialChain(sid string) shared.CredentialProvider {
	chain := shared.ChainCredential{}
	for _, s := range []string{sid, r.config.Credentials.SID} {
		if strings.TrimSpace(s) != "" {
			chain = append(chain, shared.StaticCredential(s))
		}
	}
	if r.config.Credentials.CurlFile != "" {
		chain = append(chain, shared.CurlFileCredential(r.config.Credentials.CurlFile))
	}
	return chain
}

func (r *Runner) newDeezerService() *services.DeezerService {
	return services.NewDeezerServiceFromConfig(
		r.config.API, r.httpClient, shared.WithLogger(r.logger, "service", "deezer"), r.metrics,
	)
}

// authenticate validates the session before any playlist call.
func (r *Runner) authenticate(ctx context.Context) error {
	if r.service == nil {
		return fmt.Errorf("%w: service not initialized", shared.ErrServiceUnavailable)
	}
	if err := r.service.Authenticate(ctx, r.credentials); err != nil {
		if errors.Is(err, shared.ErrMissingCredentials) {
			return fmt.Errorf("%w (run 'dzdedupe auth login' or set DEEZER_SID)", err)
		}
		return err
	}
	return nil
}

// openHistory opens the run history database. The caller closes it.
func (r *Runner) openHistory() (*sql.DB, *repositories.RunRepository, error) {
	db, err := r.openDB(r.config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return db, repositories.NewRunRepository(db), nil
}

func (r *Runner) newEngine(recorder tasks.RunRecorder) *tasks.PlaylistEngine {
	return tasks.NewPlaylistEngine(r.service, tasks.EngineOpts{Logger: r.logger, Metrics: r.metrics, Recorder: recorder})
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

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
