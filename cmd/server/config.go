package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/MegaGrindStone/dashboard-chat/internal/conversation"
	"github.com/MegaGrindStone/dashboard-chat/internal/handlers"
	"github.com/MegaGrindStone/dashboard-chat/internal/models"
	"gopkg.in/yaml.v3"
)

type config struct {
	Port           string               `yaml:"port"`
	ServiceURL     string               `yaml:"serviceURL"`
	DefaultUserID  string               `yaml:"defaultUserID"`
	PageTitle      string               `yaml:"pageTitle"`
	RequestTimeout time.Duration        `yaml:"requestTimeout"`
	LogLevel       string               `yaml:"logLevel"`
	QuickActions   []models.QuickAction `yaml:"quickActions"`
}

const (
	defaultPort           = "8080"
	defaultServiceURL     = "http://localhost:8082"
	defaultUserID         = "1"
	defaultPageTitle      = "Chat"
	defaultRequestTimeout = 30 * time.Second
)

func loadConfig(r io.Reader) (config, error) {
	cfg := config{}
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && err != io.EOF {
		return config{}, fmt.Errorf("error decoding config file: %w", err)
	}

	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.ServiceURL == "" {
		cfg.ServiceURL = os.Getenv("CHAT_SERVICE_URL")
	}
	if cfg.ServiceURL == "" {
		cfg.ServiceURL = defaultServiceURL
	}
	if cfg.DefaultUserID == "" {
		cfg.DefaultUserID = defaultUserID
	}
	if cfg.PageTitle == "" {
		cfg.PageTitle = defaultPageTitle
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.QuickActions == nil {
		cfg.QuickActions = conversation.DefaultQuickActions()
	}

	return cfg, nil
}

func (c config) handlersConfig() handlers.Config {
	return handlers.Config{
		DefaultUserID:  c.DefaultUserID,
		PageTitle:      c.PageTitle,
		QuickActions:   c.QuickActions,
		RequestTimeout: c.RequestTimeout,
	}
}

func (c config) logger() (*slog.Logger, error) {
	var level slog.Level
	if c.LogLevel != "" {
		if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
		}
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}
