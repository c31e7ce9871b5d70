package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"watchvault/internal/platforms"
	"watchvault/internal/repositories"
	"watchvault/internal/shared"
	"watchvault/internal/tasks"
	"watchvault/internal/vault"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	logger *log.Logger
	output io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{logger: opts.Logger, output: opts.Output}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, credentialsCommand, syncCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// store bundles the opened database, repositories, vault and engine behind a
// single Close. Commands that touch state open one per invocation.
type store struct {
	config *shared.Config
	db     *sql.DB
	items  *repositories.ItemRepository
	jobs   *repositories.JobRepository
	creds  *repositories.CredentialRepository
	vault  *vault.Vault
	engine *tasks.SyncEngine
}

func (s *store) Close() error {
	return s.db.Close()
}

// loadOrDefaultConfig loads the config file when present, falling back to the
// embedded defaults otherwise.
func (r *Runner) loadOrDefaultConfig(path string) *shared.Config {
	if _, err := os.Stat(path); err != nil {
		return shared.DefaultConfig()
	}
	config, err := shared.LoadConfig(path)
	if err != nil {
		r.logger.Warn("failed to load config, using defaults", "error", err)
		return shared.DefaultConfig()
	}
	return config
}

// openStore opens the database and wires the repositories, vault and sync
// engine. The vault key must validate before any command proceeds.
func (r *Runner) openStore(configPath string) (*store, error) {
	config := r.loadOrDefaultConfig(configPath)

	resolved := shared.ResolveVaultKey(config)
	if err := vault.ValidateEncryptionSetup(resolved); err != nil {
		return nil, fmt.Errorf("encryption setup invalid: %w", err)
	}
	r.logger.Debug("vault key resolved", "source", resolved.Source)

	v, err := vault.New(resolved.Value)
	if err != nil {
		return nil, err
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	items := repositories.NewItemRepository(db)
	jobs := repositories.NewJobRepository(db)
	creds := repositories.NewCredentialRepository(db)

	engine := tasks.NewSyncEngine(
		adaptersFromConfig(config),
		items, jobs, creds, v,
		r.logger,
		tasks.OptionsFromConfig(config),
	)

	return &store{
		config: config,
		db:     db,
		items:  items,
		jobs:   jobs,
		creds:  creds,
		vault:  v,
		engine: engine,
	}, nil
}

// adaptersFromConfig builds the adapter set for every enabled platform.
func adaptersFromConfig(config *shared.Config) []platforms.Adapter {
	var adapters []platforms.Adapter

	if config.Platforms.Bilibili.Enabled {
		adapters = append(adapters, platforms.NewBilibiliAdapter(platforms.BilibiliOpts{
			PageSize: config.Platforms.Bilibili.PageSize,
			Delay:    time.Duration(config.Platforms.Bilibili.DelayMS) * time.Millisecond,
		}))
	}
	if config.Platforms.Trakt.Enabled {
		adapters = append(adapters, platforms.NewTraktAdapter(platforms.TraktOpts{
			ClientID: config.Platforms.Trakt.ClientID,
			PageSize: config.Platforms.Trakt.PageSize,
			Delay:    time.Duration(config.Platforms.Trakt.DelayMS) * time.Millisecond,
		}))
	}
	if config.Platforms.Steam.Enabled {
		adapters = append(adapters, platforms.NewSteamAdapter(platforms.SteamOpts{
			Delay: time.Duration(config.Platforms.Steam.DelayMS) * time.Millisecond,
		}))
	}

	return adapters
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

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
