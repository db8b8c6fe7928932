package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	DataDir  string `yaml:"data_dir"`
	DBPath   string `yaml:"db_path"`
	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`
	WebDir   string `yaml:"web_dir"`

	JetstreamURL  string   `yaml:"jetstream_url"`
	Collections   []string `yaml:"collections"`
	SelfDID       string   `yaml:"self_did"`
	AdminDID      string   `yaml:"admin_did"`
	AdminInboxURL string   `yaml:"admin_inbox_url"`
	AppViewURL    string   `yaml:"appview_url"`
	NATSURL       string   `yaml:"nats_url"`

	LLMProvider  string `yaml:"llm_provider"`
	LLMModel     string `yaml:"llm_model"`
	LLMAPIKey    string `yaml:"llm_api_key"`
	OllamaHost   string `yaml:"ollama_host"`
	IdentityPath string `yaml:"identity"`

	StepBudget            int           `yaml:"step_budget"`
	TickInterval          time.Duration `yaml:"tick_interval"`
	ReflectionInterval    time.Duration `yaml:"reflection_interval"`
	ThinkingInterval      time.Duration `yaml:"thinking_interval"`
	CursorPersistInterval time.Duration `yaml:"cursor_persist_interval"`
	SafetyMargin          time.Duration `yaml:"safety_margin"`
	RetentionWindow       time.Duration `yaml:"retention_window"`
}

var DefaultCollections = []string{
	"app.bsky.feed.post",
	"app.bsky.feed.like",
	"app.bsky.graph.follow",
}

func Default() Config {
	dataDir := "data"
	return Config{
		HTTPAddr: ":8080",
		DataDir:  dataDir,
		LogLevel: "info",

		JetstreamURL: "wss://jetstream2.us-east.bsky.network/subscribe",
		Collections:  append([]string(nil), DefaultCollections...),
		AppViewURL:   "https://public.api.bsky.app",

		LLMProvider: ProviderAnthropic,
		OllamaHost:  "http://localhost:11434",

		StepBudget:            8,
		TickInterval:          time.Minute,
		ReflectionInterval:    6 * time.Hour,
		ThinkingInterval:      2 * time.Hour,
		CursorPersistInterval: 30 * time.Second,
		SafetyMargin:          10 * time.Second,
		RetentionWindow:       24 * time.Hour,
	}
}

// Load reads .env, then the optional YAML file named by SKYAGENT_CONFIG,
// then environment variables. Later sources win.
func Load() (Config, error) {
	loadDotEnv(".env")
	cfg := Default()

	if path := os.Getenv("SKYAGENT_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "skyagent.db")
	}
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.DataDir, "skyagent.log")
	}
	return cfg, nil
}

// Validate checks the settings the actor cannot run without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.SelfDID) == "" {
		return fmt.Errorf("SKYAGENT_SELF_DID is required")
	}
	if c.JetstreamURL == "" {
		return fmt.Errorf("SKYAGENT_JETSTREAM_URL is required")
	}
	if c.StepBudget <= 0 {
		return fmt.Errorf("step budget must be positive, got %d", c.StepBudget)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.HTTPAddr = getEnv("SKYAGENT_HTTP_ADDR", cfg.HTTPAddr)
	cfg.DataDir = getEnv("SKYAGENT_DATA_DIR", cfg.DataDir)
	cfg.DBPath = getEnv("SKYAGENT_DB_PATH", cfg.DBPath)
	cfg.LogFile = getEnv("SKYAGENT_LOG_FILE", cfg.LogFile)
	cfg.LogLevel = getEnv("SKYAGENT_LOG_LEVEL", cfg.LogLevel)
	cfg.WebDir = getEnv("SKYAGENT_WEB_DIR", cfg.WebDir)

	cfg.JetstreamURL = getEnv("SKYAGENT_JETSTREAM_URL", cfg.JetstreamURL)
	if v := os.Getenv("SKYAGENT_COLLECTIONS"); v != "" {
		cfg.Collections = splitComma(v)
	}
	cfg.SelfDID = getEnv("SKYAGENT_SELF_DID", cfg.SelfDID)
	cfg.AdminDID = getEnv("SKYAGENT_ADMIN_DID", cfg.AdminDID)
	cfg.AdminInboxURL = getEnv("SKYAGENT_ADMIN_INBOX_URL", cfg.AdminInboxURL)
	cfg.AppViewURL = getEnv("SKYAGENT_APPVIEW_URL", cfg.AppViewURL)
	cfg.NATSURL = getEnv("SKYAGENT_NATS_URL", cfg.NATSURL)

	cfg.LLMProvider = getEnv("SKYAGENT_LLM_PROVIDER", cfg.LLMProvider)
	cfg.LLMModel = getEnv("SKYAGENT_LLM_MODEL", cfg.LLMModel)
	cfg.LLMAPIKey = getEnv("SKYAGENT_LLM_API_KEY", cfg.LLMAPIKey)
	cfg.OllamaHost = getEnv("SKYAGENT_OLLAMA_HOST", cfg.OllamaHost)
	cfg.IdentityPath = getEnv("SKYAGENT_IDENTITY", cfg.IdentityPath)

	var err error
	if cfg.StepBudget, err = getEnvInt("SKYAGENT_STEP_BUDGET", cfg.StepBudget); err != nil {
		return err
	}
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SKYAGENT_TICK_INTERVAL", &cfg.TickInterval},
		{"SKYAGENT_REFLECTION_INTERVAL", &cfg.ReflectionInterval},
		{"SKYAGENT_THINKING_INTERVAL", &cfg.ThinkingInterval},
		{"SKYAGENT_CURSOR_PERSIST_INTERVAL", &cfg.CursorPersistInterval},
		{"SKYAGENT_SAFETY_MARGIN", &cfg.SafetyMargin},
		{"SKYAGENT_RETENTION_WINDOW", &cfg.RetentionWindow},
	}
	for _, d := range durations {
		if *d.dst, err = getEnvDuration(d.key, *d.dst); err != nil {
			return err
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s=%q: %w", key, v, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s=%q: %w", key, v, err)
	}
	return d, nil
}

func splitComma(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func loadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, strings.Trim(strings.TrimSpace(value), `"'`))
	}
}
