package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env string `yaml:"env"`

	HTTP struct {
		Addr string `yaml:"addr"` // ":7080"
	} `yaml:"http"`

	Storage struct {
		// "mysql" or "memory" (single-node dev)
		Driver string `yaml:"driver"`
		MySQL  struct {
			DSN          string `yaml:"dsn"`
			MaxOpenConns int    `yaml:"max_open_conns"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"mysql"`
	} `yaml:"storage"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		Database int    `yaml:"database"`
	} `yaml:"redis"`

	Auth struct {
		Enabled bool `yaml:"enabled"`
		Token   struct {
			Header       string `yaml:"header"`
			BearerPrefix string `yaml:"bearer_prefix"`
			QueryKey     string `yaml:"query_key"`
			RedisPrefix  string `yaml:"redis_prefix"`
			Secret       string `yaml:"secret"`
		} `yaml:"token"`
	} `yaml:"auth"`

	Push struct {
		Buffer       int           `yaml:"buffer"` // per-conn outbound queue
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"push"`

	Media struct {
		Dir      string `yaml:"dir"`
		BaseURL  string `yaml:"base_url"`
		MaxBytes int64  `yaml:"max_bytes"`
	} `yaml:"media"`

	Send struct {
		RPS   float64 `yaml:"rps"` // per-user message creation rate
		Burst int     `yaml:"burst"`
	} `yaml:"send"`
}

// Load supports comma-separated config files: "-c common.yml,pairchat.yml"
func Load(pathList string) (*Config, error) {
	if strings.TrimSpace(pathList) == "" {
		return nil, errors.New("config path required (e.g. -c ./config.yml or -c common.yml,pairchat.yml)")
	}
	var c Config
	paths := strings.Split(pathList, ",")
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":7080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "mysql"
	}
	if c.Storage.MySQL.DSN == "" {
		c.Storage.MySQL.DSN = os.Getenv("PAIRCHAT_MYSQL_DSN")
	}
	if c.Redis.Password == "" {
		c.Redis.Password = os.Getenv("PAIRCHAT_REDIS_PASSWORD")
	}
	if c.Auth.Token.Header == "" {
		c.Auth.Token.Header = "Authorization"
	}
	if c.Auth.Token.BearerPrefix == "" {
		c.Auth.Token.BearerPrefix = "Bearer "
	}
	if c.Auth.Token.QueryKey == "" {
		c.Auth.Token.QueryKey = "token"
	}
	if c.Auth.Token.RedisPrefix == "" {
		c.Auth.Token.RedisPrefix = "token:app:"
	}
	if c.Auth.Token.Secret == "" {
		c.Auth.Token.Secret = os.Getenv("PAIRCHAT_TOKEN_SECRET")
	}
	if c.Push.Buffer <= 0 {
		c.Push.Buffer = 256
	}
	if c.Push.WriteTimeout == 0 {
		c.Push.WriteTimeout = 5 * time.Second
	}
	if c.Media.Dir == "" {
		c.Media.Dir = "./uploads"
	}
	if c.Media.BaseURL == "" {
		c.Media.BaseURL = "/uploads"
	}
	if c.Media.MaxBytes <= 0 {
		c.Media.MaxBytes = 10 << 20
	}
	if c.Send.RPS <= 0 {
		c.Send.RPS = 5
	}
	if c.Send.Burst <= 0 {
		c.Send.Burst = 10
	}
}
