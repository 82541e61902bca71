// Package app wires configuration, credentials, the backend client and the
// services shared by the CLI and the dashboard.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/subosito/gotenv"

	"github.com/bobmcallan/surveylens/internal/clients/backend"
	"github.com/bobmcallan/surveylens/internal/common"
	"github.com/bobmcallan/surveylens/internal/credentials"
	"github.com/bobmcallan/surveylens/internal/interfaces"
	"github.com/bobmcallan/surveylens/internal/models"
	"github.com/bobmcallan/surveylens/internal/services/monitor"
	"github.com/bobmcallan/surveylens/internal/services/report"
	"github.com/bobmcallan/surveylens/internal/services/upload"
	"github.com/bobmcallan/surveylens/internal/storage"
)

// App holds the initialised client and services.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Credentials interfaces.CredentialProvider
	Client      *backend.Client
	Uploads     *upload.Service
	Reports     *report.Service
	StartupTime time.Time
}

// Options selects where configuration comes from.
type Options struct {
	ConfigPath string
	EnvFile    string
	// LogLevel overrides logging.level when set.
	LogLevel string
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// resolveConfigPath checks the explicit path, SURVEYLENS_CONFIG, the binary
// directory, then the working directory.
func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("SURVEYLENS_CONFIG"); env != "" {
		return env
	}
	candidate := filepath.Join(getBinaryDir(), "surveylens.toml")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return "surveylens.toml"
}

// loadEnv reads a .env file into the process environment. A missing file is fine.
func loadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// NewApp loads .env and configuration, opens the credential file and builds
// the backend client and services.
func NewApp(opts Options) (*App, error) {
	if err := loadEnv(opts.EnvFile); err != nil {
		return nil, err
	}

	config, err := common.LoadConfig(resolveConfigPath(opts.ConfigPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.LogLevel != "" {
		config.Logging.Level = opts.LogLevel
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	creds, err := credentials.NewFileStore(logger, config.Auth.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open credentials: %w", err)
	}

	return New(config, logger, creds), nil
}

// New builds an App from already resolved parts.
func New(config *common.Config, logger *common.Logger, creds interfaces.CredentialProvider) *App {
	start := time.Now()

	client := backend.NewClient(config.API.BaseURL, creds,
		backend.WithLogger(logger),
		backend.WithRateLimit(config.API.RateLimit),
		backend.WithTimeout(config.API.GetTimeout()),
	)

	a := &App{
		Config:      config,
		Logger:      logger,
		Credentials: creds,
		Client:      client,
		Uploads:     upload.NewService(client, logger),
		Reports:     report.NewService(client, &config.Export, logger),
		StartupTime: start,
	}

	logger.Debug().Str("backend", client.BaseURL()).Dur("startup", time.Since(start)).Msg("App initialized")
	return a
}

// DecodeOptions returns how analysis payloads are decoded.
func (a *App) DecodeOptions() models.DecodeOptions {
	return models.DecodeOptions{Legacy: a.Config.Export.LegacyParsing}
}

// TextLayout returns the configured plain-text layout.
func (a *App) TextLayout() report.TextLayout {
	return report.TextLayout{Width: a.Config.Export.TextWidth, LinesPerPage: a.Config.Export.LinesPerPage}
}

// NewSink opens the configured export sink. publish forces the S3 sink.
func (a *App) NewSink(ctx context.Context, publish bool) (interfaces.ExportSink, error) {
	cfg := a.Config.Export
	if publish {
		cfg.Sink = storage.SinkS3
	}
	return storage.NewSink(ctx, a.Logger, &cfg)
}

// NewController creates a polling controller for one survey with the
// configured cadence.
func (a *App) NewController(surveyID string, observer monitor.Observer, opts ...monitor.Option) *monitor.Controller {
	base := []monitor.Option{
		monitor.WithLogger(a.Logger),
		monitor.WithInterval(a.Config.Poll.GetInterval()),
		monitor.WithStartDelay(a.Config.Poll.GetStartDelay()),
		monitor.WithDecodeOptions(a.DecodeOptions()),
	}
	return monitor.NewController(a.Client, surveyID, observer, append(base, opts...)...)
}
