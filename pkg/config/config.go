package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath      = "config.yaml"
	defaultScopes          = "user.info.basic,video.upload"
	defaultAPIBase         = "https://open.tiktokapis.com"
	defaultTokensFile      = "./tokens.json"
	defaultMaxPerRun       = 1
	defaultCaptionTemplate = "{{filename}}"
	defaultPrivacyLevel    = "SELF_ONLY"
	defaultInboxDir        = "inbox"
	defaultDoneDir         = "done"
	defaultFailedDir       = "failed"
	defaultVideoExtension  = ".mp4"
	defaultPollAttempts    = 10
	defaultPollInterval    = 5 * time.Second
	defaultHTTPTimeout     = 30 * time.Second
	defaultLogDir          = "logs"
)

// ErrMissingSetting marks a required setting that is absent. It is fatal
// before any work starts.
var ErrMissingSetting = errors.New("config: missing required setting")

type Config struct {
	ClientKey        string `yaml:"-"`
	ClientSecret     string `yaml:"-"`
	ClientSecretName string `yaml:"-"`
	RedirectURI      string `yaml:"-"`
	Scopes           string `yaml:"-"`
	APIBase          string `yaml:"-"`
	TokensFile       string `yaml:"-"`

	MaxPerRun              int           `yaml:"max_per_run"`
	DefaultCaptionTemplate string        `yaml:"default_caption_template"`
	DefaultHashtags        []string      `yaml:"default_hashtags"`
	PrivacyLevel           string        `yaml:"privacy_level"`
	InboxDir               string        `yaml:"inbox_dir"`
	DoneDir                string        `yaml:"done_dir"`
	FailedDir              string        `yaml:"failed_dir"`
	VideoExtension         string        `yaml:"video_extension"`
	PollAttempts           int           `yaml:"poll_attempts"`
	PollInterval           time.Duration `yaml:"poll_interval"`
	HTTPTimeout            time.Duration `yaml:"http_timeout"`
	LogDir                 string        `yaml:"log_dir"`
}

// Load reads .env, then the YAML file named by CONFIG_FILE (config.yaml by
// default). A missing YAML file is not an error; every field has a default.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		ClientKey:        os.Getenv("TIKTOK_CLIENT_KEY"),
		ClientSecret:     os.Getenv("TIKTOK_CLIENT_SECRET"),
		ClientSecretName: os.Getenv("TIKTOK_CLIENT_SECRET_NAME"),
		RedirectURI:      os.Getenv("TIKTOK_REDIRECT_URI"),
		Scopes:           getEnvOrDefault("TIKTOK_SCOPES", defaultScopes),
		APIBase:          getEnvOrDefault("TIKTOK_API_BASE", defaultAPIBase),
		TokensFile:       getEnvOrDefault("TOKENS_FILE", defaultTokensFile),
	}

	if err := loadYAMLConfig(cfg, getEnvOrDefault("CONFIG_FILE", defaultConfigPath)); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if cfg.ClientSecret == "" && cfg.ClientSecretName != "" {
		secret, err := accessSecret(ctx, cfg.ClientSecretName)
		if err != nil {
			return nil, err
		}
		cfg.ClientSecret = secret
	}

	return cfg, nil
}

// Validate reports every missing credential setting at once.
func (c *Config) Validate() error {
	var missing []string
	if c.ClientKey == "" {
		missing = append(missing, "TIKTOK_CLIENT_KEY")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "TIKTOK_CLIENT_SECRET")
	}
	if c.RedirectURI == "" {
		missing = append(missing, "TIKTOK_REDIRECT_URI")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingSetting, strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) ScopeList() []string {
	var scopes []string
	for _, s := range strings.Split(c.Scopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

func loadYAMLConfig(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("No config file found, using defaults", "path", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return nil
}

func applyDefaults(cfg *Config) {
	applyRunDefaults(cfg)
	applyCaptionDefaults(cfg)
	applyDirectoryDefaults(cfg)
	applyPublishDefaults(cfg)
}

func applyRunDefaults(cfg *Config) {
	if cfg.MaxPerRun == 0 {
		cfg.MaxPerRun = defaultMaxPerRun
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = defaultHTTPTimeout
	}
}

func applyCaptionDefaults(cfg *Config) {
	if cfg.DefaultCaptionTemplate == "" {
		cfg.DefaultCaptionTemplate = defaultCaptionTemplate
	}
}

func applyDirectoryDefaults(cfg *Config) {
	if cfg.InboxDir == "" {
		cfg.InboxDir = defaultInboxDir
	}
	if cfg.DoneDir == "" {
		cfg.DoneDir = defaultDoneDir
	}
	if cfg.FailedDir == "" {
		cfg.FailedDir = defaultFailedDir
	}
	if cfg.LogDir == "" {
		cfg.LogDir = defaultLogDir
	}
	if cfg.VideoExtension == "" {
		cfg.VideoExtension = defaultVideoExtension
	}
	if !strings.HasPrefix(cfg.VideoExtension, ".") {
		cfg.VideoExtension = "." + cfg.VideoExtension
	}
}

func applyPublishDefaults(cfg *Config) {
	if cfg.PrivacyLevel == "" {
		cfg.PrivacyLevel = defaultPrivacyLevel
	}
	if cfg.PollAttempts == 0 {
		cfg.PollAttempts = defaultPollAttempts
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
}

func accessSecret(ctx context.Context, name string) (string, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create secret manager client: %w", err)
	}
	defer func() { _ = client.Close() }()

	resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("failed to access secret %s: %w", name, err)
	}

	return strings.TrimSpace(string(resp.GetPayload().GetData())), nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
