package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig              `json:"server"`
	Database  DatabaseConfig            `json:"database"`
	Providers map[string]ProviderConfig `json:"providers"`
	Agent     AgentConfig               `json:"agent"`
	JWTSecret string                    `json:"jwt_secret"`
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslmode"`

	// Pool sizing; zero values fall back to the database package defaults
	MaxOpenConns        int `json:"max_open_conns"`
	MaxIdleConns        int `json:"max_idle_conns"`
	ConnLifetimeMinutes int `json:"conn_lifetime_minutes"`
}

type ProviderConfig struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	BaseURL string `json:"base_url,omitempty"`
	APIKey  string `json:"api_key,omitempty"`
	Model   string `json:"model"`
}

// AgentConfig controls the chat agent loop.
type AgentConfig struct {
	Provider      string `json:"provider"`
	MaxIterations int    `json:"max_iterations"`
	MaxHistory    int    `json:"max_history"`
	MaxTokens     int    `json:"max_tokens"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	homeDir, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(filepath.Join(homeDir, ".mindstash"))
	}

	// Set defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "mindstash")
	viper.SetDefault("database.database", "mindstash")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_lifetime_minutes", 5)
	viper.SetDefault("agent.provider", "anthropic")
	viper.SetDefault("agent.max_iterations", 10)
	viper.SetDefault("agent.max_history", 50)
	viper.SetDefault("agent.max_tokens", 2048)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			cfg := defaultConfig()
			loadEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyAgentDefaults(&cfg.Agent)
	loadEnvOverrides(&cfg)

	return &cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Host:                "localhost",
			Port:                5432,
			User:                "mindstash",
			Password:            "",
			Database:            "mindstash",
			SSLMode:             "disable",
			MaxOpenConns:        25,
			MaxIdleConns:        5,
			ConnLifetimeMinutes: 5,
		},
		Providers: map[string]ProviderConfig{
			"anthropic": {
				Type:  "anthropic",
				Name:  "Anthropic",
				Model: "claude-haiku-4-5-20251001",
			},
			"openai": {
				Type:  "openai",
				Name:  "OpenAI",
				Model: "gpt-4o-mini",
			},
		},
		Agent: AgentConfig{
			Provider:      "anthropic",
			MaxIterations: 10,
			MaxHistory:    50,
			MaxTokens:     2048,
		},
	}
}

func applyAgentDefaults(a *AgentConfig) {
	if a.Provider == "" {
		a.Provider = "anthropic"
	}
	if a.MaxIterations <= 0 {
		a.MaxIterations = 10
	}
	if a.MaxHistory <= 0 {
		a.MaxHistory = 50
	}
	if a.MaxTokens <= 0 {
		a.MaxTokens = 2048
	}
}

func loadEnvOverrides(cfg *Config) {
	if port := os.Getenv("MINDSTASH_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if host := os.Getenv("MINDSTASH_HOST"); host != "" {
		cfg.Server.Host = host
	}

	// Database overrides
	if dbHost := os.Getenv("POSTGRES_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPort := os.Getenv("POSTGRES_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			cfg.Database.Port = port
		}
	}
	if dbUser := os.Getenv("POSTGRES_USER"); dbUser != "" {
		cfg.Database.User = dbUser
	}
	if dbPass := os.Getenv("POSTGRES_PASSWORD"); dbPass != "" {
		cfg.Database.Password = dbPass
	}
	if dbName := os.Getenv("POSTGRES_DB"); dbName != "" {
		cfg.Database.Database = dbName
	}

	// Provider API keys come from the environment, never the config file
	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderConfig{}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		p := cfg.Providers["anthropic"]
		p.Type = "anthropic"
		p.APIKey = key
		if p.Model == "" {
			p.Model = "claude-haiku-4-5-20251001"
		}
		cfg.Providers["anthropic"] = p
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		p := cfg.Providers["openai"]
		p.Type = "openai"
		p.APIKey = key
		if p.Model == "" {
			p.Model = "gpt-4o-mini"
		}
		cfg.Providers["openai"] = p
	}

	if secret := os.Getenv("MINDSTASH_JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}
}
