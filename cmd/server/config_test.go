package main

import (
	"strings"
	"testing"
	"time"

	"github.com/MegaGrindStone/dashboard-chat/internal/conversation"
	"github.com/MegaGrindStone/dashboard-chat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CHAT_SERVICE_URL", "")

	cfg, err := loadConfig(strings.NewReader(""))
	require.NoError(t, err)

	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, defaultServiceURL, cfg.ServiceURL)
	assert.Equal(t, defaultUserID, cfg.DefaultUserID)
	assert.Equal(t, defaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, conversation.DefaultQuickActions(), cfg.QuickActions)

	logger, err := cfg.logger()
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig(strings.NewReader(`
port: "9000"
serviceURL: http://results:8082
defaultUserID: "7"
pageTitle: Chat | IELTS
requestTimeout: 5s
logLevel: debug
quickActions:
  - id: review
    label: Review my results
    description: analyzes the results of the tests and generates reports
    trigger: give_me_review
  - id: improve
    label: Improve my grades
    trigger: give_me_review
`))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "http://results:8082", cfg.ServiceURL)
	assert.Equal(t, "7", cfg.DefaultUserID)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []models.QuickAction{
		{
			ID:          "review",
			Label:       "Review my results",
			Description: "analyzes the results of the tests and generates reports",
			Trigger:     "give_me_review",
		},
		{ID: "improve", Label: "Improve my grades", Trigger: "give_me_review"},
	}, cfg.QuickActions)

	hc := cfg.handlersConfig()
	assert.Equal(t, "Chat | IELTS", hc.PageTitle)
	assert.Equal(t, cfg.QuickActions, hc.QuickActions)
}

func TestLoadConfigInvalid(t *testing.T) {
	_, err := loadConfig(strings.NewReader("requestTimeout: soon"))
	require.Error(t, err)

	cfg, err := loadConfig(strings.NewReader("logLevel: loud"))
	require.NoError(t, err)
	_, err = cfg.logger()
	require.Error(t, err)
}
