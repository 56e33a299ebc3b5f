package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	DB         DBConfig         `yaml:"db"`
	Auth       AuthConfig       `yaml:"auth"`
	Log        LogConfig        `yaml:"log"`
	Review     ReviewConfig     `yaml:"review"`
	Quality    QualityConfig    `yaml:"quality"`
	Generator  GeneratorConfig  `yaml:"generator"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Users      []User           `yaml:"users"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ReviewConfig struct {
	ClaimTTLMinutes int `yaml:"claim_ttl_minutes"`
}

// QualityConfig carries the scoring policy constants. The thresholds are
// tunable; only the monotonicity of the classification is contractual.
type QualityConfig struct {
	ExcellentBelow float64 `yaml:"excellent_below"`
	GoodBelow      float64 `yaml:"good_below"`
	TrendEpsilon   float64 `yaml:"trend_epsilon"`
	TrendWindow    int     `yaml:"trend_window"`
	EMAAlpha       float64 `yaml:"ema_alpha"`
	MaxPreferences int     `yaml:"max_preferences"`
}

// GeneratorConfig points at the external content-production service.
type GeneratorConfig struct {
	APIURL      string `yaml:"api_url"`
	APIToken    string `yaml:"api_token"`
	CallbackURL string `yaml:"callback_url"`
}

// ArchiveConfig configures object storage for approved artifacts. Archival
// is disabled when the endpoint is empty.
type ArchiveConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// SummarizerConfig configures the optional LLM that turns edit observations
// into learned-preference statements.
type SummarizerConfig struct {
	APIURL   string `yaml:"api_url"`
	APIToken string `yaml:"api_token"`
	Model    string `yaml:"model"`
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Tenant   string `yaml:"tenant"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Path == "" {
		cfg.DB.Path = "overseer.db"
	}
	if cfg.Auth.TokenExpireHours == 0 {
		cfg.Auth.TokenExpireHours = 24
	}
	if cfg.Review.ClaimTTLMinutes == 0 {
		cfg.Review.ClaimTTLMinutes = 15
	}
	if cfg.Quality.ExcellentBelow == 0 {
		cfg.Quality.ExcellentBelow = 0.1
	}
	if cfg.Quality.GoodBelow == 0 {
		cfg.Quality.GoodBelow = 0.3
	}
	if cfg.Quality.TrendEpsilon == 0 {
		cfg.Quality.TrendEpsilon = 0.05
	}
	if cfg.Quality.TrendWindow == 0 {
		cfg.Quality.TrendWindow = 5
	}
	if cfg.Quality.EMAAlpha == 0 {
		cfg.Quality.EMAAlpha = 0.3
	}
	if cfg.Quality.MaxPreferences == 0 {
		cfg.Quality.MaxPreferences = 5
	}

	return &cfg, nil
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
