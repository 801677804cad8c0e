package support

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/whatsapp-leadbot/internal/appointment"
	"github.com/wolfman30/whatsapp-leadbot/internal/notify"
	"github.com/wolfman30/whatsapp-leadbot/pkg/logging"
)

var handoffTracer = otel.Tracer("leadbot/support")

// RequestStore persists advisor requests.
type RequestStore interface {
	Create(ctx context.Context, req NewRequest) (*AdvisorRequest, error)
}

// AgentLookup returns the configured advisor contacts.
type AgentLookup interface {
	DefaultAgent(ctx context.Context) (appointment.AgentConfig, error)
}

// TextSender delivers a WhatsApp text.
type TextSender interface {
	SendText(ctx context.Context, to, message string) (string, error)
}

// Escalator records handoffs and alerts the advisor.
type Escalator struct {
	store  RequestStore
	agents AgentLookup
	texts  TextSender
	email  notify.EmailSender
	logger *logging.Logger
}

func NewEscalator(store RequestStore, agents AgentLookup, texts TextSender, email notify.EmailSender, logger *logging.Logger) *Escalator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Escalator{store: store, agents: agents, texts: texts, email: email, logger: logger}
}

// BusinessHours returns the advisor availability text, empty when unknown.
func (e *Escalator) BusinessHours(ctx context.Context) string {
	if e == nil || e.agents == nil {
		return ""
	}
	agent, err := e.agents.DefaultAgent(ctx)
	if err != nil {
		e.logger.Warn("agent config lookup failed", "error", err)
		return ""
	}
	return agent.BusinessHours
}

// Escalate stores the request and notifies the advisor. Notification
// failures are logged only.
func (e *Escalator) Escalate(ctx context.Context, req NewRequest) (*AdvisorRequest, error) {
	ctx, span := handoffTracer.Start(ctx, "support.escalate")
	defer span.End()
	span.SetAttributes(
		attribute.String("leadbot.reason", req.Reason),
		attribute.Int("leadbot.fallback_count", req.FallbackCount),
	)

	if e == nil || e.store == nil {
		return nil, fmt.Errorf("support: escalator not configured")
	}
	created, err := e.store.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	e.logger.Info("advisor request created",
		"id", created.ID,
		"phone", created.Phone,
		"lead_score", created.LeadScore,
	)

	e.notifyAdvisor(ctx, created, req.LeadStatus)
	return created, nil
}

func (e *Escalator) notifyAdvisor(ctx context.Context, r *AdvisorRequest, leadStatus string) {
	if e.agents == nil {
		return
	}
	agent, err := e.agents.DefaultAgent(ctx)
	if err != nil {
		e.logger.Warn("agent config lookup failed", "error", err)
		return
	}

	phone := agent.AdvisorPhone
	if phone == "" {
		phone = agent.Phone
	}
	if e.texts != nil && phone != "" {
		if _, err := e.texts.SendText(ctx, phone, formatHandoffText(r, leadStatus)); err != nil {
			e.logger.Error("advisor whatsapp notification failed", "error", err, "request_id", r.ID)
		}
	}

	if e.email != nil && agent.AdvisorEmail != "" {
		subject, body := formatHandoffEmail(r, leadStatus)
		if err := e.email.Send(ctx, notify.EmailMessage{
			To:       agent.AdvisorEmail,
			ToName:   agent.Name,
			Subject:  subject,
			Body:     body,
			Category: notify.CategoryAdvisorHandoff,
		}); err != nil {
			e.logger.Error("advisor email notification failed", "error", err, "request_id", r.ID)
		}
	}
}

func formatHandoffText(r *AdvisorRequest, leadStatus string) string {
	var sb strings.Builder
	sb.WriteString("👨‍💼 *Solicitud de asesor*\n\n")
	sb.WriteString(fmt.Sprintf("👤 Nombre: *%s*\n", r.Name))
	sb.WriteString(fmt.Sprintf("📱 WhatsApp: %s\n", waLink(r.Phone)))
	sb.WriteString(fmt.Sprintf("⭐ Lead score: %d", r.LeadScore))
	if leadStatus != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", leadStatus))
	}
	sb.WriteString(fmt.Sprintf("\n✅ Temas vistos: %d\n", r.CheckpointsCompleted))
	if r.LastUserMessage != "" {
		sb.WriteString(fmt.Sprintf("\n💬 Último mensaje: \"%s\"", r.LastUserMessage))
	}
	return sb.String()
}

func formatHandoffEmail(r *AdvisorRequest, leadStatus string) (subject, body string) {
	subject = fmt.Sprintf("Solicitud de asesor: %s", r.Name)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Solicitud: %s\n", r.ID))
	sb.WriteString(fmt.Sprintf("Creada: %s\n\n", r.CreatedAt.Format(time.RFC1123)))
	sb.WriteString(fmt.Sprintf("Nombre: %s\n", r.Name))
	sb.WriteString(fmt.Sprintf("WhatsApp: %s\n", waLink(r.Phone)))
	sb.WriteString(fmt.Sprintf("Motivo: %s\n", r.Reason))
	sb.WriteString(fmt.Sprintf("Intentos fallidos: %d\n", r.FallbackCount))
	sb.WriteString(fmt.Sprintf("Lead score: %d %s\n", r.LeadScore, leadStatus))
	sb.WriteString(fmt.Sprintf("Temas vistos: %d\n", r.CheckpointsCompleted))
	if r.LastUserMessage != "" {
		sb.WriteString("\n--- Último mensaje ---\n")
		sb.WriteString(r.LastUserMessage)
		sb.WriteString("\n")
	}
	return subject, sb.String()
}

func waLink(phone string) string {
	return "https://wa.me/" + strings.TrimPrefix(strings.ReplaceAll(phone, " ", ""), "+")
}
