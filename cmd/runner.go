package main

import (
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/exfarm/internal/browser"
	"github.com/desertthunder/exfarm/internal/exchanges"
	"github.com/desertthunder/exfarm/internal/models"
	"github.com/desertthunder/exfarm/internal/registrar"
	"github.com/desertthunder/exfarm/internal/repositories"
	"github.com/desertthunder/exfarm/internal/services"
	"github.com/desertthunder/exfarm/internal/sessions"
	"github.com/desertthunder/exfarm/internal/shared"
	"github.com/desertthunder/exfarm/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	launch     browser.LaunchFunc
	catalog    exchanges.Catalog
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	// Config, when set, is used instead of loading the --config file.
	Config     *shared.Config
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Launch     browser.LaunchFunc
	Catalog    exchanges.Catalog
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
		opts.HTTPClient = &http.Client{Timeout: services.DefaultTimeout}
	}
	if opts.Catalog == nil {
		opts.Catalog = exchanges.DefaultCatalog()
	}

	return &Runner{
		config:     opts.Config,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		launch:     opts.Launch,
		catalog:    opts.Catalog,
	}
}

// SetLogger replaces the logger used by subsequent commands.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, workCommand, statsCommand, balancesCommand, tasksCommand, accountsCommand, captchaCommand, dashboardCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig returns the injected config or reads --config, then applies environment overrides.
//
// A missing config file falls back to the embedded defaults.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	config := r.config
	if config == nil {
		path := cmd.String("config")
		if _, err := os.Stat(path); err != nil {
			r.logger.Debug("config file not found, using defaults", "path", path)
			config = shared.DefaultConfig()
		} else if config, err = shared.LoadConfig(path); err != nil {
			return nil, err
		}
	}

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// stores bundles the repositories backed by one database handle.
type stores struct {
	db       *sql.DB
	ledger   *repositories.Ledger
	accounts *repositories.AccountRepository
}

func (r *Runner) openStores(config *shared.Config) (*stores, error) {
	db, err := shared.OpenAndMigrate(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &stores{
		db:       db,
		ledger:   repositories.NewLedger(db),
		accounts: repositories.NewAccountRepository(db),
	}, nil
}

func (s *stores) Close() error {
	return s.db.Close()
}

// stack is the fully wired work engine.
type stack struct {
	*stores
	catalog   exchanges.Catalog
	registry  *sessions.Registry
	registrar *registrar.Pool
	scheduler *tasks.Scheduler
	updates   chan tasks.CycleUpdate
}

func (r *Runner) buildStack(config *shared.Config, logger *log.Logger) (*stack, error) {
	st, err := r.openStores(config)
	if err != nil {
		return nil, err
	}

	launch := r.launch
	if launch == nil {
		launch = browser.Launcher(browser.Options{
			Headless:  config.Browser.Headless,
			ExecPath:  config.Browser.ExecPath,
			UserAgent: config.Browser.UserAgent,
			ProxyURL:  config.Proxy.URL,
		}, logger)
	}

	reg := registrar.NewPool(registrar.Config{
		Launch:   launch,
		Solver:   services.NewCaptchaClient(config.Captcha, r.httpClient, logger),
		Accounts: st.accounts,
		Credentials: func(m models.Marketplace) shared.ExchangeConfig {
			return config.Exchange(m.String())
		},
		Timeout: config.Work.RegistrationTimeoutDuration(),
		Logger:  logger,
	})

	registry := sessions.NewRegistry(0)
	updates := make(chan tasks.CycleUpdate, 64)

	scheduler := tasks.NewScheduler(tasks.Config{
		Registry: registry,
		Catalog:  r.catalog,
		Accounts: reg,
		Ledger:   st.ledger,
		Notifier: services.NewNotifier(config.Bot, r.httpClient, logger),
		Usage:    st.accounts,
		Settings: tasks.SettingsFromConfig(config.Work),
		Logger:   logger,
		Updates:  updates,
	})

	return &stack{
		stores:    st,
		catalog:   r.catalog,
		registry:  registry,
		registrar: reg,
		scheduler: scheduler,
		updates:   updates,
	}, nil
}

// Close stops every work loop and releases the browser sessions and database.
func (s *stack) Close() error {
	s.scheduler.Shutdown()
	if err := s.registrar.Close(); err != nil {
		s.stores.Close()
		return err
	}
	return s.stores.Close()
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

// writeBytes writes pre-rendered output.
func (r *Runner) writeBytes(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
