package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/api"
	"github.com/desertthunder/nowplaying/internal/auth"
	"github.com/desertthunder/nowplaying/internal/keychain"
	"github.com/desertthunder/nowplaying/internal/repositories"
	"github.com/desertthunder/nowplaying/internal/services"
	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/desertthunder/nowplaying/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	open       func(string) error
	noBrowser  bool
	logger     *log.Logger
	output     io.Writer

	db         *sql.DB
	tokens     *auth.TokenStore
	authorizer *auth.OAuthAuthorizer
	manager    *auth.Manager
	events     *repositories.AuthEventRepository
	spotify    services.Repository
	builder    *tasks.PlaylistBuilder
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Open       func(string) error // presents the authorization page; defaults to the system browser
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration.
//
// Services are wired later by [Runner.Bootstrap], once flags are parsed.
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
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Config.HTTP.Timeout()}
	}
	if opts.Open == nil {
		opts.Open = shared.OpenBrowser
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		open:       opts.Open,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// Bootstrap loads the configuration named by --config, opens the credential store and wires the services.
//
// It runs before every command except setup and is a no-op once the services exist.
func (r *Runner) Bootstrap(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if r.spotify != nil {
		return ctx, nil
	}

	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	config, err := shared.LoadConfig(r.configPath)
	switch {
	case errors.Is(err, shared.ErrMissingConfig):
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	case err != nil:
		return ctx, err
	default:
		r.config = config
	}
	r.config.ApplyEnv()

	if !cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, shared.ParseLogLevel(r.config.Log.Level))
	}

	if err := r.config.Validate(); err != nil {
		return ctx, err
	}

	if cmd.Bool("ephemeral") {
		r.logger.Debug("using in-memory credential store")
		return ctx, r.wire(ctx, keychain.NewMemoryStore(), nil)
	}

	store, db, err := openStore(r.config.Storage)
	if err != nil {
		return ctx, err
	}

	return ctx, r.wire(ctx, store, db)
}

// openStore opens the database and the sealed keychain on top of it.
func openStore(cfg shared.StorageConfig) (keychain.Store, *sql.DB, error) {
	db, err := shared.OpenStore(cfg.Path)
	if err != nil {
		return nil, nil, err
	}
	shared.ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)

	key, err := keychain.LoadOrCreateKey(cfg.KeyPath)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	sealer, err := keychain.NewSealer(key)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	return keychain.NewSQLiteStore(db, sealer), db, nil
}

// wire builds the auth manager, request pipeline, repository and playlist builder.
//
// db may be nil, in which case auth history is not recorded.
func (r *Runner) wire(ctx context.Context, store keychain.Store, db *sql.DB) error {
	cfg := r.config

	authorizer, err := auth.NewOAuthAuthorizer(auth.AuthorizerOpts{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RedirectURI:  cfg.Spotify.RedirectURI,
		AuthURL:      cfg.Spotify.AuthURL,
		TokenURL:     cfg.Spotify.TokenURL,
		Open:         r.presentAuthURL,
		HTTPClient:   r.httpClient,
		Logger:       shared.WithLogger(r.logger, "component", "authorizer"),
	})
	if err != nil {
		return err
	}

	r.db = db
	r.tokens = auth.NewTokenStore(store, cfg.Auth.TokenKey)
	r.authorizer = authorizer

	opts := auth.ManagerOpts{
		Tokens:         r.tokens,
		Authorizer:     authorizer,
		ClientID:       cfg.Spotify.ClientID,
		RestoreSession: cfg.Auth.RestoreSession,
		Logger:         shared.WithLogger(r.logger, "component", "auth"),
	}
	if db != nil {
		r.events = repositories.NewAuthEventRepository(db)
		opts.Journal = repositories.NewAuthJournal(r.events, cfg.Auth.HistoryLimit)
	}
	r.manager = auth.NewManager(ctx, opts)

	var limiter *rate.Limiter
	if cfg.HTTP.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.HTTP.RequestsPerSecond), 1)
	}

	pipeline := api.New(api.Options{
		Client:       r.httpClient,
		Interceptors: []api.Interceptor{api.DefaultHeaders(""), api.BearerAuth(r.tokens)},
		Retry: api.RetryPolicy{
			MaxRetries:   cfg.HTTP.MaxRetries,
			InitialDelay: cfg.HTTP.InitialDelay(),
			MaxDelay:     cfg.HTTP.MaxDelay(),
			Multiplier:   2,
		},
		Limiter: limiter,
		Logger:  shared.WithLogger(r.logger, "component", "api"),
	})

	r.spotify = services.NewSpotifyRepository(services.RepositoryOpts{
		Pipeline:     pipeline,
		BaseURL:      cfg.Spotify.APIBaseURL,
		Reauthorizer: r.manager,
		Logger:       shared.WithLogger(r.logger, "component", "spotify"),
	})

	r.builder = tasks.NewPlaylistBuilder(r.spotify, tasks.BuilderOpts{Logger: shared.WithLogger(r.logger, "component", "tasks")})
	return nil
}

// Close releases the database, if one was opened.
func (r *Runner) Close(ctx context.Context, cmd *cli.Command) error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand,
		nowCommand, playCommand, pauseCommand, nextCommand, prevCommand, seekCommand,
		shuffleCommand, repeatCommand, devicesCommand, watchCommand,
		recentCommand, topCommand, meCommand, searchCommand, playlistCommand,
	} {
		c := fn(r)
		if c.Name != "setup" && c.Before == nil {
			c.Before = r.Bootstrap
		}
		commands = append(commands, c)
	}

	return commands
}

// app builds the root command.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "np",
		Usage:   "Control Spotify playback and playlists from the terminal",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("NP_CONFIG"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "ephemeral",
				Usage: "Keep credentials in memory only for this run",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
			},
		},
		Commands: r.register(),
		After:    r.Close,
	}
}

// wantsJSON reports whether the command should print JSON and whether to indent it.
func wantsJSON(cmd *cli.Command) (bool, bool) {
	return cmd.Bool("json") || cmd.Bool("pretty"), cmd.Bool("pretty")
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

// render prints data as JSON when requested, otherwise through plain.
func (r *Runner) render(cmd *cli.Command, data any, plain func(io.Writer) error) error {
	if useJSON, pretty := wantsJSON(cmd); useJSON {
		return r.writeJSON(data, pretty)
	}
	return plain(r.output)
}
