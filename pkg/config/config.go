// Package config collects the process configuration from flags, the
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"
)

const (
	DefaultPort                 = 9091
	DefaultQualityThreshold     = 46
	DefaultSchedulerConcurrency = 4
	DefaultCacheMaxEntries      = 500
	DefaultGeminiModel          = "gemini-2.5-flash"
	DefaultSandboxMemoryMB      = 256
	DefaultRunTimeout           = 15 * time.Minute
)

type GeminiConfig struct {
	APIKey string
	Model  string `validate:"required"`
}

type SearchConfig struct {
	APIKey   string
	Endpoint string `validate:"omitempty,url"`
}

type TelegramConfig struct {
	BotToken string
	APIBase  string `validate:"omitempty,url"`
}

type SMTPConfig struct {
	Host     string
	Port     int `validate:"omitempty,min=1,max=65535"`
	Username string
	Password string
	From     string `validate:"omitempty,email"`
}

// Config is the validated configuration shared by every command.
type Config struct {
	LogLevel             string `validate:"oneof=debug info warn error"`
	DatabaseURL          string `validate:"required"`
	MissionsPath         string
	EventBus             string   `validate:"oneof=gochannel kafka"`
	KafkaBrokers         []string `validate:"required_if=EventBus kafka"`
	CacheURL             string
	CacheMaxEntries      int `validate:"min=1"`
	Port                 int `validate:"min=1,max=65535"`
	QualityThreshold     int `validate:"min=0,max=100"`
	SchedulerConcurrency int `validate:"min=1"`
	SandboxIsolation     bool
	RunTimeout           time.Duration `validate:"min=0"`
	SandboxMemoryMB      int           `validate:"min=16"`
	Tracing              bool
	Gemini               GeminiConfig
	Search               SearchConfig
	Telegram             TelegramConfig
	SMTP                 SMTPConfig
}

// LoadDotEnv loads environment variables from the given files, or from
// ".env" when none are given. A missing default file is not an error.
// Variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) > 0 {
		return godotenv.Load(paths...)
	}

	err := godotenv.Load()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

// Flags returns the flags every long-running command accepts.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Persistence URL (file://, postgres://, sqlite://)",
			Value:   "file://./data",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "missions-path",
			Usage:   "Directory of mission files to load and watch",
			Sources: cli.EnvVars("MISSIONS_PATH"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringSliceFlag{
			Name:    "kafka-brokers",
			Usage:   "Kafka broker addresses",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "cache-url",
			Usage:   "Cache URL (memory, redis://)",
			Value:   "memory",
			Sources: cli.EnvVars("CACHE_URL"),
		},
		&cli.IntFlag{
			Name:    "cache-max-entries",
			Usage:   "Entry bound of the in-memory cache",
			Value:   DefaultCacheMaxEntries,
			Sources: cli.EnvVars("CACHE_MAX_ENTRIES"),
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   DefaultPort,
			Sources: cli.EnvVars("API_PORT", "PORT"),
		},
		&cli.IntFlag{
			Name:    "quality-threshold",
			Usage:   "Guardrail score below which output counts as low signal",
			Value:   DefaultQualityThreshold,
			Sources: cli.EnvVars("NOVA_MISSION_QUALITY_THRESHOLD"),
		},
		&cli.IntFlag{
			Name:    "scheduler-concurrency",
			Usage:   "Missions evaluated at the same time on each tick",
			Value:   DefaultSchedulerConcurrency,
			Sources: cli.EnvVars("SCHEDULER_CONCURRENCY"),
		},
		&cli.DurationFlag{
			Name:    "run-timeout",
			Usage:   "Deadline of one mission run, 0 for none",
			Value:   DefaultRunTimeout,
			Sources: cli.EnvVars("MISSION_RUN_TIMEOUT"),
		},
		&cli.BoolFlag{
			Name:    "sandbox-isolation",
			Usage:   "Run code and filter scripts in a resource-limited worker process",
			Value:   true,
			Sources: cli.EnvVars("NOVA_SANDBOX_ISOLATION"),
		},
		&cli.IntFlag{
			Name:    "sandbox-memory-mb",
			Usage:   "Memory ceiling of the script worker process in MiB",
			Value:   DefaultSandboxMemoryMB,
			Sources: cli.EnvVars("NOVA_SANDBOX_MEMORY_MB"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export OpenTelemetry traces over OTLP/HTTP",
			Sources: cli.EnvVars("NOVA_TRACING"),
		},
		&cli.StringFlag{
			Name:    "gemini-api-key",
			Usage:   "API key of the Gemini completer",
			Sources: cli.EnvVars("GEMINI_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "gemini-model",
			Usage:   "Gemini model name",
			Value:   DefaultGeminiModel,
			Sources: cli.EnvVars("GEMINI_MODEL"),
		},
		&cli.StringFlag{
			Name:    "search-api-key",
			Usage:   "API key of the web search endpoint",
			Sources: cli.EnvVars("SEARCH_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "search-endpoint",
			Usage:   "Brave-compatible web search endpoint",
			Sources: cli.EnvVars("SEARCH_ENDPOINT"),
		},
		&cli.StringFlag{
			Name:    "telegram-bot-token",
			Usage:   "Telegram bot token",
			Sources: cli.EnvVars("TELEGRAM_BOT_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "smtp-host",
			Sources: cli.EnvVars("SMTP_HOST"),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Sources: cli.EnvVars("SMTP_PORT"),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Sources: cli.EnvVars("SMTP_USERNAME"),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Sources: cli.EnvVars("SMTP_PASSWORD"),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Sources: cli.EnvVars("SMTP_FROM"),
		},
	}
}

// FromCommand reads the flags declared by Flags and validates the result.
func FromCommand(command *cli.Command) (*Config, error) {
	cfg := &Config{
		LogLevel:             strings.ToLower(command.String("log-level")),
		DatabaseURL:          command.String("database-url"),
		MissionsPath:         command.String("missions-path"),
		EventBus:             command.String("event-bus"),
		KafkaBrokers:         splitList(command.StringSlice("kafka-brokers")),
		CacheURL:             command.String("cache-url"),
		CacheMaxEntries:      command.Int("cache-max-entries"),
		Port:                 command.Int("port"),
		QualityThreshold:     command.Int("quality-threshold"),
		SchedulerConcurrency: command.Int("scheduler-concurrency"),
		RunTimeout:           command.Duration("run-timeout"),
		SandboxIsolation:     command.Bool("sandbox-isolation"),
		SandboxMemoryMB:      command.Int("sandbox-memory-mb"),
		Tracing:              command.Bool("tracing"),
		Gemini: GeminiConfig{
			APIKey: command.String("gemini-api-key"),
			Model:  command.String("gemini-model"),
		},
		Search: SearchConfig{
			APIKey:   command.String("search-api-key"),
			Endpoint: command.String("search-endpoint"),
		},
		Telegram: TelegramConfig{
			BotToken: command.String("telegram-bot-token"),
		},
		SMTP: SMTPConfig{
			Host:     command.String("smtp-host"),
			Port:     command.Int("smtp-port"),
			Username: command.String("smtp-username"),
			Password: command.String("smtp-password"),
			From:     command.String("smtp-from"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a valid configuration for local use.
func Default() *Config {
	return &Config{
		LogLevel:             "info",
		DatabaseURL:          "file://./data",
		EventBus:             "gochannel",
		CacheURL:             "memory",
		CacheMaxEntries:      DefaultCacheMaxEntries,
		Port:                 DefaultPort,
		QualityThreshold:     DefaultQualityThreshold,
		SchedulerConcurrency: DefaultSchedulerConcurrency,
		RunTimeout:           DefaultRunTimeout,
		SandboxIsolation:     true,
		SandboxMemoryMB:      DefaultSandboxMemoryMB,
		Gemini:               GeminiConfig{Model: DefaultGeminiModel},
	}
}

func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

// splitList flattens comma separated entries, as given by KAFKA_BROKERS.
func splitList(values []string) []string {
	var out []string

	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}

	return out
}
