package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tranquileza/leadflow/internal/config"
)

func TestServerConfigMapping(t *testing.T) {
	c := &config.Config{}
	c.Webhook.Secret = "hook"
	c.Webhook.DebugToken = "debug"
	c.Reprocess.Secret = "cron"
	c.Reprocess.DefaultBatch = 50
	c.Reprocess.MaxBatch = 150
	c.Mailer.APIKey = "key"
	c.Mailer.TriggerGroups = []string{"111", "222"}

	sc := serverConfig(c)
	assert.Equal(t, "hook", sc.WebhookSecret)
	assert.Equal(t, "debug", sc.DebugToken)
	assert.Equal(t, "cron", sc.ReprocessSecret)
	assert.True(t, sc.MailerKeyPresent)
	assert.Equal(t, []string{"111", "222"}, sc.TriggerGroups)
	assert.Equal(t, 50, sc.DefaultBatch)
	assert.Equal(t, 150, sc.MaxBatch)
}

func TestServerConfigMapping_NoKey(t *testing.T) {
	sc := serverConfig(&config.Config{})
	assert.False(t, sc.MailerKeyPresent)
}
