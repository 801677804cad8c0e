package bootstrap

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/whatsapp-leadbot/internal/config"
	"github.com/wolfman30/whatsapp-leadbot/internal/notify"
	"github.com/wolfman30/whatsapp-leadbot/pkg/logging"
)

func TestBuildRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logging.Discard(), true)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: ""}, logging.Discard(), true))
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: "127.0.0.1:1"}, logging.Discard(), true))
}

func TestOpenDatabasesRequiresURL(t *testing.T) {
	_, err := OpenDatabases(context.Background(), &appconfig.Config{})
	assert.Error(t, err)
}

func TestBuildEmailSender(t *testing.T) {
	sender, err := BuildEmailSender(context.Background(), &appconfig.Config{EmailProvider: "stub"}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &notify.StubEmailSender{}, sender)

	sender, err = BuildEmailSender(context.Background(), &appconfig.Config{
		EmailProvider:     "sendgrid",
		SendGridAPIKey:    "SG.test",
		SendGridFromEmail: "ventas@europa.mx",
	}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &notify.SendGridSender{}, sender)

	_, err = BuildEmailSender(context.Background(), nil, logging.Discard())
	assert.Error(t, err)
}

func TestBuildBot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logging.Discard(), false)
	t.Cleanup(func() { _ = client.Close() })

	cfg := &appconfig.Config{
		Env:                   "production",
		WhatsAppPhoneNumberID: "123",
		WhatsAppAPIToken:      "token",
		BookingIntent:         "cita",
		BotTimezone:           "UTC",
	}
	bot, err := BuildBot(cfg, BotDeps{Pool: mock, Redis: client}, logging.Discard())
	require.NoError(t, err)
	assert.NotNil(t, bot.Processor)
	assert.NotNil(t, bot.Adapter)
	assert.Nil(t, bot.ConversationLog)
}

func TestBuildBotRequiresRedisInProduction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	_, err = BuildBot(&appconfig.Config{Env: "production"}, BotDeps{Pool: mock}, logging.Discard())
	assert.Error(t, err)

	bot, err := BuildBot(&appconfig.Config{Env: "development"}, BotDeps{Pool: mock}, logging.Discard())
	require.NoError(t, err)
	assert.NotNil(t, bot.Sessions)
}
