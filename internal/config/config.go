package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendOpenAI = "openai"
	BackendOllama = "ollama"
)

// Config stores runtime configuration loaded from the environment and an
// optional flash-quiz.yaml file.
type Config struct {
	Port            string
	Database        string
	UploadDir       string
	ShutdownTimeout time.Duration
	LogLevel        string

	LLMBackend string
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	MaxNoteChars   int
	NotesPath      string
	CheckpointSize int
	StrictParse    bool
}

// Load reads configuration, providing sensible defaults. configFile may be
// empty, in which case ./flash-quiz.yaml is used when present.
func Load(configFile string) (Config, error) {
	// Load .env file if it exists (useful for development)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("flash-quiz")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		Port:            v.GetString("PORT"),
		Database:        v.GetString("DATABASE_PATH"),
		UploadDir:       v.GetString("UPLOAD_DIR"),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		LLMBackend:      strings.ToLower(v.GetString("LLM_BACKEND")),
		LLMBaseURL:      v.GetString("LLM_BASE_URL"),
		LLMAPIKey:       v.GetString("LLM_API_KEY"),
		LLMModel:        v.GetString("LLM_MODEL"),
		LLMTimeout:      v.GetDuration("LLM_TIMEOUT"),
		MaxNoteChars:    v.GetInt("MAX_NOTE_CHARS"),
		NotesPath:       v.GetString("NOTES_PATH"),
		CheckpointSize:  v.GetInt("CHECKPOINT_SIZE"),
		StrictParse:     v.GetBool("STRICT_PARSE"),
	}

	if cfg.LLMBaseURL == "" {
		cfg.LLMBaseURL = defaultBaseURL(cfg.LLMBackend)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure upload dir %s: %w", cfg.UploadDir, err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure database dir %s: %w", cfg.Database, err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_PATH", "./data/flash-quiz.db")
	v.SetDefault("UPLOAD_DIR", "./data/uploads")
	v.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LLM_BACKEND", BackendOpenAI)
	v.SetDefault("LLM_BASE_URL", "")
	v.SetDefault("LLM_API_KEY", "ollama")
	v.SetDefault("LLM_MODEL", "llama3.2:3b")
	v.SetDefault("LLM_TIMEOUT", 3*time.Minute)
	v.SetDefault("MAX_NOTE_CHARS", 20000)
	v.SetDefault("NOTES_PATH", "os-notes.txt")
	v.SetDefault("CHECKPOINT_SIZE", 4)
	v.SetDefault("STRICT_PARSE", false)
}

func defaultBaseURL(backend string) string {
	if backend == BackendOllama {
		return "http://localhost:11434"
	}
	return "http://localhost:11434/v1"
}

func (c Config) validate() error {
	switch c.LLMBackend {
	case BackendOpenAI, BackendOllama:
	default:
		return fmt.Errorf("config: LLM_BACKEND=%q must be %q or %q", c.LLMBackend, BackendOpenAI, BackendOllama)
	}
	if c.LLMModel == "" {
		return errors.New("config: LLM_MODEL is required")
	}
	if c.CheckpointSize <= 0 {
		return fmt.Errorf("config: CHECKPOINT_SIZE=%d must be positive", c.CheckpointSize)
	}
	return nil
}

// Logger builds the structured logger for the configured level.
func (c Config) Logger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
