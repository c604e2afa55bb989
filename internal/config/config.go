package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ignatij/agendaflow/pkg/models"
	"github.com/ignatij/agendaflow/pkg/service"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	General      GeneralConfig       `toml:"general"`
	Storage      StorageConfig       `toml:"storage"`
	Pacing       PacingConfig        `toml:"pacing"`
	SMTP         SMTPConfig          `toml:"smtp"`
	Slack        SlackConfig         `toml:"slack"`
	Web          WebConfig           `toml:"web"`
	Participants []ParticipantConfig `toml:"participants"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	LogLevel      string `toml:"log_level"`
	StepTimeoutMS int    `toml:"step_timeout_ms"`
}

// StorageConfig selects the store backend: "memory", "sqlite" or "postgres".
type StorageConfig struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// PacingConfig holds the pauses of a run in milliseconds.
type PacingConfig struct {
	RequestMS      int `toml:"request_ms"`
	NoticeMS       int `toml:"notice_ms"`
	ProcessingMS   int `toml:"processing_ms"`
	ConfirmationMS int `toml:"confirmation_ms"`
	BetweenMS      int `toml:"between_ms"`
}

// SMTPConfig holds outbound mail settings. When disabled runs use the simulated mailer.
type SMTPConfig struct {
	Enabled  bool   `toml:"enabled"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
}

// SlackConfig holds the incoming webhook notifications are forwarded to.
type SlackConfig struct {
	WebhookURL string `toml:"webhook_url"`
}

// WebConfig holds HTTP server settings
type WebConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// ParticipantConfig is one roster entry.
type ParticipantConfig struct {
	ID          int64  `toml:"id"`
	Name        string `toml:"name"`
	Email       string `toml:"email"`
	ScheduledAt string `toml:"scheduled_at"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	pacing := service.DefaultPacing()
	return &Config{
		General: GeneralConfig{
			LogLevel:      "INFO",
			StepTimeoutMS: int(service.DefaultStepTimeout / time.Millisecond),
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    "file::memory:",
		},
		Pacing: PacingConfig{
			RequestMS:      int(pacing.Request / time.Millisecond),
			NoticeMS:       int(pacing.Notice / time.Millisecond),
			ProcessingMS:   int(pacing.Processing / time.Millisecond),
			ConfirmationMS: int(pacing.Confirmation / time.Millisecond),
			BetweenMS:      int(pacing.Between / time.Millisecond),
		},
		SMTP: SMTPConfig{
			Host: "smtp.gmail.com",
			Port: 587,
		},
		Web: WebConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
		Participants: []ParticipantConfig{
			{ID: 1, Name: "João Silva", Email: "joao@email.com", ScheduledAt: "11/06/2025 às 14:30"},
			{ID: 2, Name: "Maria Santos", Email: "maria@email.com", ScheduledAt: "11/06/2025 às 16:30"},
			{ID: 3, Name: "Pedro Oliveira", Email: "pedro@email.com", ScheduledAt: "11/06/2025 às 18:30"},
			{ID: 4, Name: "Ana Costa", Email: "ana@email.com", ScheduledAt: "11/06/2025 às 20:30"},
			{ID: 5, Name: "Carlos Ferreira", Email: "carlos@email.com", ScheduledAt: "11/06/2025 às 22:30"},
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults, and
// then applies environment overrides (a .env file in the working directory is
// loaded first when present).
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		// A roster in the file replaces the default one, even when it is empty.
		var roster struct {
			Participants *[]ParticipantConfig `toml:"participants"`
		}
		if err := toml.Unmarshal(data, &roster); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		defaults := cfg.Participants
		cfg.Participants = nil
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		cfg.Participants = defaults
		if roster.Participants != nil {
			cfg.Participants = *roster.Participants
		}
	}
	if cfg.Storage.Driver == "sqlite" && !strings.HasPrefix(cfg.Storage.DSN, "file:") {
		cfg.Storage.DSN = ExpandPath(cfg.Storage.DSN)
	}

	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.General.LogLevel = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.DSN = v
		if strings.HasPrefix(v, "postgres://") || strings.HasPrefix(v, "postgresql://") {
			c.Storage.Driver = "postgres"
		}
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		c.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		c.SMTP.Password = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SMTP_PORT %q: %w", v, err)
		}
		c.SMTP.Port = port
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		c.Slack.WebhookURL = v
	}
	return nil
}

// Validate checks the settings that would otherwise fail late, in the middle of a run.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver != "memory" && c.Storage.DSN == "" {
		return fmt.Errorf("storage driver %q requires a dsn", c.Storage.Driver)
	}
	if c.SMTP.Enabled {
		if c.SMTP.Host == "" || c.SMTP.Port <= 0 {
			return fmt.Errorf("smtp enabled but host/port missing")
		}
		if c.SMTP.From == "" {
			c.SMTP.From = c.SMTP.Username
		}
		if c.SMTP.From == "" {
			return fmt.Errorf("smtp enabled but no sender address")
		}
	}
	p := c.Pacing
	if p.RequestMS < 0 || p.NoticeMS < 0 || p.ProcessingMS < 0 || p.ConfirmationMS < 0 || p.BetweenMS < 0 {
		return fmt.Errorf("pacing values must not be negative")
	}
	seen := make(map[int64]bool, len(c.Participants))
	for _, pc := range c.Participants {
		if seen[pc.ID] {
			return fmt.Errorf("duplicate participant id %d", pc.ID)
		}
		seen[pc.ID] = true
		if pc.Name == "" || pc.Email == "" {
			return fmt.Errorf("participant %d needs a name and an email", pc.ID)
		}
	}
	return nil
}

// EnginePacing converts the configured milliseconds into service.Pacing.
func (c *Config) EnginePacing() service.Pacing {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return service.Pacing{
		Request:      ms(c.Pacing.RequestMS),
		Notice:       ms(c.Pacing.NoticeMS),
		Processing:   ms(c.Pacing.ProcessingMS),
		Confirmation: ms(c.Pacing.ConfirmationMS),
		Between:      ms(c.Pacing.BetweenMS),
	}
}

func (c *Config) StepTimeout() time.Duration {
	return time.Duration(c.General.StepTimeoutMS) * time.Millisecond
}

// Roster returns the configured participants in file order.
func (c *Config) Roster() []models.Participant {
	roster := make([]models.Participant, 0, len(c.Participants))
	for _, pc := range c.Participants {
		roster = append(roster, models.Participant{
			ID:          pc.ID,
			Name:        pc.Name,
			Email:       pc.Email,
			ScheduledAt: pc.ScheduledAt,
		})
	}
	return roster
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Web.Host, c.Web.Port)
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "agendaflow", "config.toml")
}
