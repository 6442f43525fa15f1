package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port         string `mapstructure:"port"`
	DBDSN        string `mapstructure:"db_dsn"`
	LogLevel     string `mapstructure:"log_level"`
	LogFile      string `mapstructure:"log_file"`
	TemplatesDir string `mapstructure:"templates_dir"`
	StaticDir    string `mapstructure:"static_dir"`
	CookieSecure bool   `mapstructure:"cookie_secure"`
	JWTSecret    string `mapstructure:"jwt_secret"`
	RedisAddr    string `mapstructure:"redis_addr"`
	AMQPURL      string `mapstructure:"amqp_url"`
	AMQPExchange string `mapstructure:"amqp_exchange"`
	SeedDemo     bool   `mapstructure:"seed_demo"`
}

// DevJWTSecret is the development default; production deployments must override it.
const DevJWTSecret = "dev-only-secret-change-me"

var defaults = map[string]any{
	"port":          "8080",
	"db_dsn":        "tienda.db", // sqlite file in project root
	"log_level":     "info",
	"log_file":      "",
	"templates_dir": "./web/templates",
	"static_dir":    "./web/static",
	"cookie_secure": false,
	"jwt_secret":    DevJWTSecret,
	"redis_addr":    "",
	"amqp_url":      "",
	"amqp_exchange": "tienda.events",
	"seed_demo":     true,
}

// Load reads .env (if present), then the environment and an optional YAML file
// named by CONFIG_FILE. Environment variables win over the file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Addr is the listen address.
func (c Config) Addr() string { return ":" + c.Port }
