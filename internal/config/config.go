package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all environment-driven settings.
type Config struct {
	Env          string
	HTTPPort     string
	DBPath       string
	DataDir      string
	CORSOrigins  []string
	StrictConfig bool

	Solace  SolaceConfig
	GitHub  GitHubConfig
	SAM     SAMConfig
	GroupMe GroupMeConfig

	GoogleDocsURLs []string

	WorkerCount   int
	JobQueueSize  int
	JobTimeoutSec int
	BrokerPollMS  int

	// Warnings collects non-fatal problems found while loading. The caller
	// logs them once a logger exists.
	Warnings []string
}

// SolaceConfig carries broker credentials. Without a host the broker runs in stub mode.
type SolaceConfig struct {
	Host     string
	VPN      string
	Username string
	Password string
}

// GitHubConfig selects the repository the PR agent reads from.
type GitHubConfig struct {
	Owner  string
	Repo   string
	Token  string
	APIURL string
}

// SAMConfig points at the agent mesh REST gateway.
type SAMConfig struct {
	GatewayURL      string
	PollIntervalSec int
	MaxPolls        int
	RequestTimeout  int
}

// GroupMeConfig enables posting report summaries to a GroupMe bot.
type GroupMeConfig struct {
	BotID string
	URL   string
}

type fileConfig struct {
	Env            string   `json:"env" yaml:"env"`
	HTTPPort       string   `json:"http_port" yaml:"http_port"`
	DBPath         string   `json:"db_path" yaml:"db_path"`
	DataDir        string   `json:"data_dir" yaml:"data_dir"`
	CORSOrigins    []string `json:"cors_origins" yaml:"cors_origins"`
	GoogleDocsURLs []string `json:"google_docs_urls" yaml:"google_docs_urls"`
	GitHub         struct {
		Owner  string `json:"owner" yaml:"owner"`
		Repo   string `json:"repo" yaml:"repo"`
		APIURL string `json:"api_url" yaml:"api_url"`
	} `json:"github" yaml:"github"`
	SAM struct {
		GatewayURL      string `json:"gateway_url" yaml:"gateway_url"`
		PollIntervalSec *int   `json:"poll_interval_sec" yaml:"poll_interval_sec"`
		MaxPolls        *int   `json:"max_polls" yaml:"max_polls"`
	} `json:"sam" yaml:"sam"`
}

const (
	defaultEnv           = "development"
	defaultPort          = ":8000"
	defaultDBURL         = "sqlite:///data/squire.db"
	defaultDataDir       = ".stub_queue"
	defaultGitHubAPI     = "https://api.github.com"
	defaultSAMGateway    = "http://localhost:8080"
	defaultPollInterval  = 3
	defaultMaxPolls      = 180
	defaultSAMTimeoutSec = 300
	defaultGroupMeURL    = "https://api.groupme.com/v3/bots/post"
	minQueueSize         = 1
	defaultQueueSize     = 64
	maxQueueSize         = 1024
	defaultWorkerCount   = 4
	maxWorkerCount       = 64
	defaultJobTimeoutSec = 120
	defaultBrokerPollMS  = 500
)

var defaultCORSOrigins = []string{"http://localhost:5173", "http://localhost:3000"}

// Load reads configuration from .env, an optional YAML/JSON file and the
// environment, in increasing order of precedence.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		StrictConfig:  parseBoolEnv("STRICT_CONFIG"),
		WorkerCount:   defaultWorkerCount,
		JobQueueSize:  defaultQueueSize,
		JobTimeoutSec: defaultJobTimeoutSec,
		BrokerPollMS:  defaultBrokerPollMS,
		Solace: SolaceConfig{
			Host:     strings.TrimSpace(os.Getenv("SOLACE_HOST")),
			VPN:      getEnv("SOLACE_VPN", "default"),
			Username: os.Getenv("SOLACE_USERNAME"),
			Password: os.Getenv("SOLACE_PASSWORD"),
		},
	}

	configPath := getEnv("CONFIG_PATH", filepath.Join("config", "squire.yaml"))
	fileCfg, fileErr := loadFileConfig(configPath)
	if fileErr != nil {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("config load failed (%s): %w", configPath, fileErr)
		}
		if !errors.Is(fileErr, os.ErrNotExist) {
			cfg.warnf("config load failed (%s): %v (using defaults)", configPath, fileErr)
		}
	}

	cfg.Env = firstNonEmpty(os.Getenv("ENV"), fileCfg.Env, defaultEnv)
	cfg.DataDir = firstNonEmpty(os.Getenv("DATA_DIR"), fileCfg.DataDir, defaultDataDir)
	cfg.DBPath = firstNonEmpty(os.Getenv("DB_PATH"), sqlitePath(os.Getenv("DATABASE_URL")), fileCfg.DBPath, sqlitePath(defaultDBURL))

	cfg.HTTPPort = firstNonEmpty(os.Getenv("HTTP_PORT"), os.Getenv("PORT"), fileCfg.HTTPPort, defaultPort)
	if !strings.HasPrefix(cfg.HTTPPort, ":") && !strings.Contains(cfg.HTTPPort, ":") {
		cfg.HTTPPort = ":" + cfg.HTTPPort
	}

	cfg.CORSOrigins = defaultCORSOrigins
	if len(fileCfg.CORSOrigins) > 0 {
		cfg.CORSOrigins = fileCfg.CORSOrigins
	}
	if v := splitList(os.Getenv("CORS_ORIGINS")); len(v) > 0 {
		cfg.CORSOrigins = v
	}

	cfg.GitHub = GitHubConfig{
		Owner:  firstNonEmpty(os.Getenv("GITHUB_REPO_OWNER"), fileCfg.GitHub.Owner),
		Repo:   firstNonEmpty(os.Getenv("GITHUB_REPO_NAME"), fileCfg.GitHub.Repo),
		Token:  os.Getenv("GITHUB_TOKEN"),
		APIURL: strings.TrimRight(firstNonEmpty(os.Getenv("GITHUB_API_URL"), fileCfg.GitHub.APIURL, defaultGitHubAPI), "/"),
	}

	cfg.GoogleDocsURLs = fileCfg.GoogleDocsURLs
	if v := splitList(os.Getenv("GOOGLE_DOCS_URLS")); len(v) > 0 {
		cfg.GoogleDocsURLs = v
	}

	cfg.GroupMe = GroupMeConfig{
		BotID: strings.TrimSpace(os.Getenv("GROUPME_BOT_ID")),
		URL:   getEnv("GROUPME_URL", defaultGroupMeURL),
	}

	cfg.SAM = SAMConfig{
		GatewayURL:      strings.TrimRight(firstNonEmpty(os.Getenv("SAM_GATEWAY_URL"), fileCfg.SAM.GatewayURL, defaultSAMGateway), "/"),
		PollIntervalSec: defaultPollInterval,
		MaxPolls:        defaultMaxPolls,
		RequestTimeout:  defaultSAMTimeoutSec,
	}
	if fileCfg.SAM.PollIntervalSec != nil && *fileCfg.SAM.PollIntervalSec > 0 {
		cfg.SAM.PollIntervalSec = *fileCfg.SAM.PollIntervalSec
	}
	if fileCfg.SAM.MaxPolls != nil && *fileCfg.SAM.MaxPolls > 0 {
		cfg.SAM.MaxPolls = *fileCfg.SAM.MaxPolls
	}

	intOverrides := []struct {
		key string
		dst *int
	}{
		{"SAM_POLL_INTERVAL_SEC", &cfg.SAM.PollIntervalSec},
		{"SAM_MAX_POLLS", &cfg.SAM.MaxPolls},
		{"SAM_REQUEST_TIMEOUT_SEC", &cfg.SAM.RequestTimeout},
		{"WORKER_COUNT", &cfg.WorkerCount},
		{"JOB_QUEUE_SIZE", &cfg.JobQueueSize},
		{"JOB_TIMEOUT_SEC", &cfg.JobTimeoutSec},
		{"BROKER_POLL_MS", &cfg.BrokerPollMS},
	}
	for _, o := range intOverrides {
		v, ok, err := parseIntEnv(o.key)
		if err != nil {
			if cfg.StrictConfig {
				return cfg, fmt.Errorf("invalid %s: %w", o.key, err)
			}
			cfg.warnf("invalid %s: %v (using default %d)", o.key, err, *o.dst)
			continue
		}
		if !ok {
			continue
		}
		if v <= 0 {
			cfg.warnf("%s must be positive, using default %d", o.key, *o.dst)
			continue
		}
		*o.dst = v
	}

	if cfg.WorkerCount > maxWorkerCount {
		cfg.warnf("WORKER_COUNT capped at %d (was %d)", maxWorkerCount, cfg.WorkerCount)
		cfg.WorkerCount = maxWorkerCount
	}
	cfg.JobQueueSize = clampInt(cfg.JobQueueSize, minQueueSize, maxQueueSize)
	if cfg.JobQueueSize < cfg.WorkerCount {
		cfg.warnf("JOB_QUEUE_SIZE must be >= WORKER_COUNT; using %d", cfg.WorkerCount)
		cfg.JobQueueSize = cfg.WorkerCount
	}

	if err := validateConfig(cfg); err != nil {
		if cfg.StrictConfig {
			return cfg, err
		}
		cfg.warnf("config validation failed: %v (continuing)", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether verbose, human-oriented output is wanted.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development") || strings.EqualFold(c.Env, "dev") || strings.EqualFold(c.Env, "local")
}

// SolaceConfigured reports whether enough broker settings exist to attempt a real connection.
func (c Config) SolaceConfigured() bool {
	return c.Solace.Host != "" && c.Solace.Username != "" && c.Solace.Password != ""
}

// GitHubRepo returns "owner/name".
func (c Config) GitHubRepo() string {
	return c.GitHub.Owner + "/" + c.GitHub.Repo
}

// JobTimeout is the per-handler deadline used by the worker pool.
func (c Config) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSec) * time.Second
}

// BrokerPollInterval is how often the file queue is rescanned when no fs event arrives.
func (c Config) BrokerPollInterval() time.Duration {
	return time.Duration(c.BrokerPollMS) * time.Millisecond
}

func (c *Config) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if len(data) == 0 {
		return cfg, errors.New("empty config file")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.DBPath) == "" {
		return errors.New("DB_PATH is required")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("DATA_DIR is required")
	}
	if cfg.SAM.PollIntervalSec <= 0 || cfg.SAM.MaxPolls <= 0 {
		return errors.New("sam polling settings must be positive")
	}
	return nil
}

// sqlitePath strips the sqlite:/// scheme used by DATABASE_URL.
func sqlitePath(url string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return ""
	}
	if strings.HasPrefix(url, "sqlite:///") {
		return strings.TrimPrefix(url, "sqlite:///")
	}
	if strings.HasPrefix(url, "sqlite://") {
		return strings.TrimPrefix(url, "sqlite://")
	}
	return ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return val
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseIntEnv(key string) (int, bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false, nil
	}
	val, err := strconv.Atoi(raw)
	return val, true, err
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Now returns utc time helper for deterministic timestamps.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
