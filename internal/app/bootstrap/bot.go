package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/whatsapp-leadbot/internal/appointment"
	"github.com/wolfman30/whatsapp-leadbot/internal/channels/whatsapp"
	appconfig "github.com/wolfman30/whatsapp-leadbot/internal/config"
	"github.com/wolfman30/whatsapp-leadbot/internal/content"
	"github.com/wolfman30/whatsapp-leadbot/internal/conversation"
	"github.com/wolfman30/whatsapp-leadbot/internal/intent"
	"github.com/wolfman30/whatsapp-leadbot/internal/notify"
	"github.com/wolfman30/whatsapp-leadbot/internal/observability/metrics"
	"github.com/wolfman30/whatsapp-leadbot/internal/session"
	"github.com/wolfman30/whatsapp-leadbot/internal/support"
	"github.com/wolfman30/whatsapp-leadbot/pkg/logging"
)

// PgxPool is the pgx surface shared by every Postgres repository.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// BotDeps are the external resources the bot runs on. Redis may be nil
// outside production, in which case sessions live in memory.
type BotDeps struct {
	Pool    PgxPool
	SQL     *sql.DB
	Redis   *redis.Client
	Email   notify.EmailSender
	Metrics *metrics.BotMetrics
}

// Bot is the wired conversation engine and its WhatsApp channel.
type Bot struct {
	Detector        *intent.Detector
	Sessions        *session.Manager
	Appointments    *appointment.PostgresRepository
	Advisors        *support.Repository
	ConversationLog *conversation.LogStore
	Client          *whatsapp.Client
	Processor       *conversation.Processor
	Adapter         *whatsapp.Adapter
}

// BuildBot wires every component from config.
func BuildBot(cfg *appconfig.Config, deps BotDeps, logger *logging.Logger) (*Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if deps.Pool == nil {
		return nil, fmt.Errorf("bootstrap: postgres pool is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var backend session.Backend
	if deps.Redis != nil {
		backend = session.NewRedisBackend(deps.Redis, nil)
	} else {
		if cfg.Env == "production" {
			return nil, fmt.Errorf("bootstrap: redis is required in production")
		}
		logger.Warn("redis unavailable; sessions kept in memory")
		backend = session.NewMemoryBackend()
	}
	sessions := session.NewManager(backend)

	if cfg.WhatsAppPhoneNumberID == "" || cfg.WhatsAppAPIToken == "" {
		logger.Warn("whatsapp credentials missing; outbound sends will fail")
	}
	client := whatsapp.NewClient(cfg.WhatsAppPhoneNumberID, cfg.WhatsAppAPIToken)
	client.SetGraphAPIBase(cfg.WhatsAppGraphAPIBase)

	detector := intent.NewDetector(intent.NewPostgresCatalog(deps.Pool), logger,
		intent.WithTTL(cfg.IntentCacheTTL),
		intent.WithReloadObserver(deps.Metrics))

	appointments := appointment.NewPostgresRepository(deps.Pool, logger)
	flow := appointment.NewFlow(sessions, appointments, client, logger,
		appointment.WithLocation(cfg.Location()),
		appointment.WithObserver(deps.Metrics))

	email := deps.Email
	if email == nil {
		email = notify.NewStubEmailSender(logger)
	}
	advisors := support.NewRepository(deps.Pool)
	escalator := support.NewEscalator(advisors, appointments, client, email, logger)

	opts := []conversation.Option{
		conversation.WithBookingIntent(cfg.BookingIntent),
		conversation.WithObserver(deps.Metrics),
	}
	var convLog *conversation.LogStore
	if cfg.PersistConversationLog && deps.SQL != nil {
		convLog = conversation.NewLogStore(deps.SQL)
		opts = append(opts, conversation.WithMessageLog(convLog))
	}

	processor := conversation.NewProcessor(detector, sessions, flow,
		content.NewPostgresRepository(deps.Pool, logger), escalator, logger, opts...)

	adapter := whatsapp.NewAdapter(client, processor, cfg.WhatsAppVerifyToken, cfg.WhatsAppAppSecret, deps.Metrics, logger)
	if cfg.WhatsAppAppSecret == "" {
		logger.Warn("WHATSAPP_APP_SECRET not set; webhook signatures are not verified")
	}

	return &Bot{
		Detector:        detector,
		Sessions:        sessions,
		Appointments:    appointments,
		Advisors:        advisors,
		ConversationLog: convLog,
		Client:          client,
		Processor:       processor,
		Adapter:         adapter,
	}, nil
}
