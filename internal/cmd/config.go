package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration, loaded from a yaml file with
// environment-variable overrides on top.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Game struct {
		// WinThreshold is served to clients via /config; the server never
		// validates reported scores against it.
		WinThreshold             int `yaml:"win_threshold"`
		CountdownStart           int `yaml:"countdown_start"`
		CountdownIntervalSeconds int `yaml:"countdown_interval_seconds"`
		HistoryLimit             int `yaml:"history_limit"`
	} `yaml:"game"`
	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"database"`
}

// databaseDSN returns the Postgres connection URL for the chat-history store.
func (c *Config) databaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User, c.Database.Password, c.Database.Host,
		c.Database.Port, c.Database.Name, c.Database.SSLMode,
	)
}

func defaultConfig() *Config {
	var config Config
	config.Server.Port = "8080"
	config.Game.WinThreshold = 2
	config.Game.CountdownStart = 5
	config.Game.CountdownIntervalSeconds = 1
	config.Game.HistoryLimit = 50
	config.Database.Host = "localhost"
	config.Database.Port = 5432
	config.Database.User = "postgres"
	config.Database.Password = "postgres"
	config.Database.Name = "cardsync"
	config.Database.SSLMode = "disable"
	return &config
}

// loadConfig reads the yaml config at path. A missing file is not an error;
// defaults plus env overrides apply either way.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config.Server.Port = getEnv("PORT", config.Server.Port)
	config.Game.WinThreshold = getEnvAsInt("WIN_THRESHOLD", config.Game.WinThreshold)
	config.Game.CountdownStart = getEnvAsInt("COUNTDOWN_START", config.Game.CountdownStart)
	config.Database.Host = getEnv("DB_HOST", config.Database.Host)
	config.Database.Port = getEnvAsInt("DB_PORT", config.Database.Port)
	config.Database.User = getEnv("DB_USER", config.Database.User)
	config.Database.Password = getEnv("DB_PASSWORD", config.Database.Password)
	config.Database.Name = getEnv("DB_NAME", config.Database.Name)
	config.Database.SSLMode = getEnv("DB_SSLMODE", config.Database.SSLMode)

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
