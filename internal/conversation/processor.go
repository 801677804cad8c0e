package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/whatsapp-leadbot/internal/appointment"
	"github.com/wolfman30/whatsapp-leadbot/internal/content"
	"github.com/wolfman30/whatsapp-leadbot/internal/intent"
	"github.com/wolfman30/whatsapp-leadbot/internal/session"
	"github.com/wolfman30/whatsapp-leadbot/internal/support"
	"github.com/wolfman30/whatsapp-leadbot/pkg/logging"
)

var tracer = otel.Tracer("leadbot/conversation")

// DefaultBookingIntent starts the appointment dialogue.
const DefaultBookingIntent = "cita"

const (
	MsgReshare      = "Con gusto te la comparto nuevamente 😊"
	MsgGenericAck   = "Gracias por tu interés. ¿En qué más puedo ayudarte?"
	MsgOffer        = "📅 Veo que ya tienes buena información del proyecto. ¿Te gustaría agendar una visita para conocerlo personalmente?"
	MsgTechnicalErr = "Disculpa, tuve un problema técnico. ¿Podrías repetir tu pregunta?"
)

// offerThreshold is how many checkpoints trigger the automatic visit offer.
const offerThreshold = 4

// Turn outcomes reported to the Observer.
const (
	OutcomeInactive       = "inactive"
	OutcomeFlow           = "flow"
	OutcomeAutoOffer      = "auto_offer"
	OutcomeAdvisorCapture = "advisor_capture"
	OutcomeDetected       = "detected"
	OutcomeFallback       = "fallback"
	OutcomeError          = "error"
)

// InboundMessage is a user message received from the transport.
type InboundMessage struct {
	From      string
	MessageID string
	Text      string
	Name      string
}

// Result is what the bot answers to one inbound message.
type Result struct {
	Responses     []content.Response
	ShouldSend    bool
	WasDetected   bool
	IsFallback    bool
	Intent        string
	Confidence    float64
	FallbackLevel int
	Outcome       string
}

// IntentDetector classifies a message.
type IntentDetector interface {
	Detect(ctx context.Context, message string) (intent.Result, error)
}

// SessionStore is the session state the processor reads and mutates.
type SessionStore interface {
	FallbackStore
	FindOrCreate(ctx context.Context, phone, name string) (*session.Session, error)
	Touch(ctx context.Context, phone string) error
	ResetFallback(ctx context.Context, phone string) error
	UpdateName(ctx context.Context, phone, name string) error
	RecordIntent(ctx context.Context, phone, intentName string) error
	CompleteCheckpoint(ctx context.Context, phone string, cp session.Checkpoint) (*session.Session, error)
	OfferAppointment(ctx context.Context, phone string) error
	ClearFlow(ctx context.Context, phone string) error
}

// BookingFlow runs the appointment dialogue.
type BookingFlow interface {
	Start(ctx context.Context, phone string) (appointment.Reply, error)
	BeginDateStep(ctx context.Context, phone string) (appointment.Reply, error)
	Process(ctx context.Context, s *session.Session, input string) (appointment.Reply, error)
}

// ResponseSource loads the configured replies for an intent.
type ResponseSource interface {
	ResponsesFor(ctx context.Context, intentName string) ([]content.Response, error)
}

// AdvisorEscalator hands a user over to a human.
type AdvisorEscalator interface {
	Escalate(ctx context.Context, req support.NewRequest) (*support.AdvisorRequest, error)
	BusinessHours(ctx context.Context) string
}

// MessageLog records the conversation for auditing.
type MessageLog interface {
	SaveIncoming(ctx context.Context, userID uuid.UUID, messageID, text string, match *intent.Match) (uuid.UUID, error)
	SaveOutgoing(ctx context.Context, userID uuid.UUID, text string, wasFallback bool, fallbackLevel int) error
	SaveIntentLog(ctx context.Context, entry IntentLogEntry) error
}

// Observer records per-turn metrics.
type Observer interface {
	ObserveTurn(outcome string, elapsed time.Duration)
	ObserveDetection(intentName, method string)
	ObserveFallback(level int)
}

// Processor decides the bot's answer to each inbound message.
type Processor struct {
	detector      IntentDetector
	sessions      SessionStore
	flow          BookingFlow
	responses     ResponseSource
	advisors      AdvisorEscalator
	fallback      *FallbackEscalator
	log           MessageLog
	observer      Observer
	logger        *logging.Logger
	bookingIntent string
}

// Option customizes a Processor.
type Option func(*Processor)

// WithBookingIntent overrides the intent that starts the booking dialogue.
func WithBookingIntent(name string) Option {
	return func(p *Processor) {
		if strings.TrimSpace(name) != "" {
			p.bookingIntent = strings.TrimSpace(name)
		}
	}
}

// WithMessageLog persists every turn.
func WithMessageLog(log MessageLog) Option {
	return func(p *Processor) { p.log = log }
}

// WithObserver attaches a metrics sink.
func WithObserver(o Observer) Option {
	return func(p *Processor) { p.observer = o }
}

func NewProcessor(detector IntentDetector, sessions SessionStore, flow BookingFlow, responses ResponseSource, advisors AdvisorEscalator, logger *logging.Logger, opts ...Option) *Processor {
	if detector == nil || sessions == nil || flow == nil || responses == nil || advisors == nil {
		panic("conversation: processor dependencies required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	p := &Processor{
		detector:      detector,
		sessions:      sessions,
		flow:          flow,
		responses:     responses,
		advisors:      advisors,
		fallback:      NewFallbackEscalator(sessions),
		logger:        logger,
		bookingIntent: DefaultBookingIntent,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessMessage never fails: any internal error becomes the technical
// apology and leaves the fallback counter untouched.
func (p *Processor) ProcessMessage(ctx context.Context, msg InboundMessage) *Result {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "conversation.process")
	defer span.End()
	span.SetAttributes(attribute.String("leadbot.message_id", msg.MessageID))

	res, err := p.process(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Error("message processing failed", "phone", msg.From, "message_id", msg.MessageID, "error", err)
		res = &Result{
			Responses:  content.Texts(MsgTechnicalErr),
			ShouldSend: true,
			IsFallback: true,
			Outcome:    OutcomeError,
		}
	}
	span.SetAttributes(
		attribute.String("leadbot.outcome", res.Outcome),
		attribute.String("leadbot.intent", res.Intent),
	)
	if p.observer != nil {
		p.observer.ObserveTurn(res.Outcome, time.Since(start))
	}
	return res
}

func (p *Processor) process(ctx context.Context, msg InboundMessage) (*Result, error) {
	s, err := p.sessions.FindOrCreate(ctx, msg.From, msg.Name)
	if err != nil {
		return nil, fmt.Errorf("conversation: load session: %w", err)
	}
	if !s.BotActive {
		p.logger.Debug("bot disabled for user, skipping", "phone", msg.From)
		return &Result{Outcome: OutcomeInactive}, nil
	}
	if err := p.sessions.Touch(ctx, s.Phone); err != nil {
		return nil, fmt.Errorf("conversation: touch session: %w", err)
	}

	if s.FlowState.InSubFlow() {
		reply, err := p.flow.Process(ctx, s, msg.Text)
		if err != nil {
			return nil, err
		}
		return p.flowReply(ctx, s, msg, reply, OutcomeFlow)
	}

	if s.FlowState == session.FlowPendingAutoOffer {
		if appointment.IsAffirmative(msg.Text) {
			reply, err := p.flow.BeginDateStep(ctx, s.Phone)
			if err != nil {
				return nil, err
			}
			return p.flowReply(ctx, s, msg, reply, OutcomeAutoOffer)
		}
		if err := p.sessions.ClearFlow(ctx, s.Phone); err != nil {
			return nil, fmt.Errorf("conversation: clear offer: %w", err)
		}
		s.FlowState = session.FlowNone
	}

	if s.AwaitingAdvisorName {
		return p.captureAdvisorName(ctx, s, msg)
	}

	detection, err := p.detector.Detect(ctx, msg.Text)
	if err != nil {
		return nil, fmt.Errorf("conversation: detect intent: %w", err)
	}
	conversationID := p.logIncoming(ctx, s, msg, detection.Intent)

	if !detection.Detected || detection.Intent == nil {
		res, err := p.fallback.Escalate(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("conversation: fallback: %w", err)
		}
		res.Outcome = OutcomeFallback
		if p.observer != nil {
			p.observer.ObserveFallback(res.FallbackLevel)
		}
		p.logOutgoing(ctx, s, res)
		return res, nil
	}

	match := detection.Intent
	if p.observer != nil {
		p.observer.ObserveDetection(match.IntentName, string(match.Method))
	}
	if p.log != nil {
		if err := p.log.SaveIntentLog(ctx, IntentLogEntry{
			UserID:            s.UserID,
			ConversationID:    conversationID,
			Match:             *match,
			OriginalMessage:   msg.Text,
			NormalizedMessage: detection.Message,
		}); err != nil {
			p.logger.Warn("intent log write failed", "error", err)
		}
	}
	if err := p.sessions.ResetFallback(ctx, s.Phone); err != nil {
		return nil, fmt.Errorf("conversation: reset fallback: %w", err)
	}
	if err := p.sessions.RecordIntent(ctx, s.Phone, match.IntentName); err != nil {
		return nil, fmt.Errorf("conversation: record intent: %w", err)
	}

	responses, err := p.handleIntent(ctx, s, match.IntentName)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Responses:   responses,
		ShouldSend:  true,
		WasDetected: true,
		Intent:      match.IntentName,
		Confidence:  match.Confidence,
		Outcome:     OutcomeDetected,
	}
	p.logOutgoing(ctx, s, res)
	return res, nil
}

// handleIntent builds the replies for a detected intent and advances the
// lead's checkpoint progress.
func (p *Processor) handleIntent(ctx context.Context, s *session.Session, intentName string) ([]content.Response, error) {
	if intentName == p.bookingIntent {
		reply, err := p.flow.Start(ctx, s.Phone)
		if err != nil {
			return nil, err
		}
		return content.Texts(reply.Message), nil
	}

	if cp, ok := session.CheckpointForIntent(intentName); ok {
		if s.IsCompleted(cp) {
			responses, err := p.responses.ResponsesFor(ctx, intentName)
			if err != nil {
				return nil, err
			}
			if len(responses) == 0 {
				return content.Texts(MsgGenericAck), nil
			}
			return append(content.Texts(MsgReshare), responses...), nil
		}
		updated, err := p.sessions.CompleteCheckpoint(ctx, s.Phone, cp)
		if err != nil {
			return nil, err
		}
		s = updated
		p.logger.Info("checkpoint completed", "phone", s.Phone, "checkpoint", cp, "lead_score", s.LeadScore)
	}

	responses, err := p.responses.ResponsesFor(ctx, intentName)
	if err != nil {
		return nil, err
	}
	if len(responses) == 0 {
		return content.Texts(MsgGenericAck), nil
	}

	if s.CompletedCount() >= offerThreshold && !s.AppointmentOffered {
		if err := p.sessions.OfferAppointment(ctx, s.Phone); err != nil {
			return nil, fmt.Errorf("conversation: offer appointment: %w", err)
		}
		responses = append(responses, content.Text{Body: MsgOffer})
	}
	return responses, nil
}

func (p *Processor) captureAdvisorName(ctx context.Context, s *session.Session, msg InboundMessage) (*Result, error) {
	name := strings.TrimSpace(msg.Text)
	if err := p.sessions.UpdateName(ctx, s.Phone, name); err != nil {
		return nil, fmt.Errorf("conversation: save name: %w", err)
	}

	if _, err := p.advisors.Escalate(ctx, support.NewRequest{
		UserID:               s.UserID,
		Phone:                s.Phone,
		Name:                 name,
		Reason:               support.ReasonFallbackLimit,
		LastUserMessage:      msg.Text,
		FallbackCount:        s.FallbackAttempts,
		LeadScore:            s.LeadScore,
		LeadStatus:           string(s.LeadStatus),
		CheckpointsCompleted: s.CompletedCount(),
	}); err != nil {
		return nil, err
	}

	if err := p.sessions.SetAwaitingAdvisorName(ctx, s.Phone, false); err != nil {
		return nil, fmt.Errorf("conversation: clear advisor wait: %w", err)
	}
	if err := p.sessions.ResetFallback(ctx, s.Phone); err != nil {
		return nil, fmt.Errorf("conversation: reset fallback: %w", err)
	}

	res := &Result{
		Responses:   content.Texts(AdvisorConfirmation(name, p.advisors.BusinessHours(ctx))),
		ShouldSend:  true,
		WasDetected: true,
		Outcome:     OutcomeAdvisorCapture,
	}
	p.logOutgoing(ctx, s, res)
	return res, nil
}

// AdvisorConfirmation is the reply once an advisor handoff is recorded.
func AdvisorConfirmation(name, businessHours string) string {
	if businessHours == "" {
		businessHours = "en breve"
	}
	return fmt.Sprintf("Gracias %s. Un asesor se comunicará contigo vía WhatsApp %s.\n\n"+
		"Mientras tanto, puedo ayudarte con:\n"+
		"• Precios y modelos disponibles\n"+
		"• Ubicación y amenidades\n"+
		"• Opciones de financiamiento\n"+
		"• Información general (brochure)\n\n"+
		"¿Hay algo en lo que pueda ayudarte ahora?", name, businessHours)
}

func (p *Processor) flowReply(ctx context.Context, s *session.Session, msg InboundMessage, reply appointment.Reply, outcome string) (*Result, error) {
	if err := p.sessions.ResetFallback(ctx, s.Phone); err != nil {
		return nil, fmt.Errorf("conversation: reset fallback: %w", err)
	}
	p.logIncoming(ctx, s, msg, nil)
	res := &Result{
		Responses:   content.Texts(reply.Message),
		ShouldSend:  true,
		WasDetected: true,
		Outcome:     outcome,
	}
	p.logOutgoing(ctx, s, res)
	return res, nil
}

func (p *Processor) logIncoming(ctx context.Context, s *session.Session, msg InboundMessage, match *intent.Match) uuid.UUID {
	if p.log == nil {
		return uuid.Nil
	}
	id, err := p.log.SaveIncoming(ctx, s.UserID, msg.MessageID, msg.Text, match)
	if err != nil {
		p.logger.Warn("incoming message log write failed", "phone", s.Phone, "error", err)
	}
	return id
}

func (p *Processor) logOutgoing(ctx context.Context, s *session.Session, res *Result) {
	if p.log == nil {
		return
	}
	for _, r := range res.Responses {
		if err := p.log.SaveOutgoing(ctx, s.UserID, content.Summary(r), res.IsFallback, res.FallbackLevel); err != nil {
			p.logger.Warn("outgoing message log write failed", "phone", s.Phone, "error", err)
			return
		}
	}
}
