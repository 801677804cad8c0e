package appointment

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/whatsapp-leadbot/internal/session"
	"github.com/wolfman30/whatsapp-leadbot/pkg/logging"
)

// ErrIncompleteFlow means the name step was reached without a date or slot.
var ErrIncompleteFlow = errors.New("appointment: flow data incomplete")

const (
	MsgStart = "📅 ¿Te gustaría agendar una visita al fraccionamiento Europa?"

	MsgAskDate = "¡Perfecto! 📅 ¿Qué día prefieres visitarnos?\n\n" +
		"Puedes escribir:\n" +
		"• \"Hoy\"\n" +
		"• \"Mañana\"\n" +
		"• Un día de la semana: \"Lunes\", \"Martes\"\n" +
		"• Una fecha: \"25 de octubre\""

	MsgDateNotUnderstood = "🤔 No pude entender esa fecha. Por favor intenta con:\n" +
		"• \"Hoy\" o \"Mañana\"\n" +
		"• \"Lunes\", \"Martes\", etc.\n" +
		"• \"25 de octubre\""

	MsgTimeNotUnderstood = "🤔 No entendí ese horario. Por favor escribe:\n" +
		"• \"Mañana\" (9:00 - 11:00)\n" +
		"• \"Mediodía\" (12:00 - 3:00)\n" +
		"• \"Tarde\" (4:00 - 7:00)"

	MsgAskName = "¡Perfecto! Solo necesito tu nombre completo para confirmar la cita."

	MsgDeclined = "Entendido. Cuando quieras agendar una visita, solo dímelo. ¿En qué más puedo ayudarte?"

	MsgFlowError = "Hubo un error. Por favor intenta agendar nuevamente escribiendo \"quiero una cita\"."
)

// FlowStore persists the booking dialogue position on the session.
type FlowStore interface {
	SetFlowState(ctx context.Context, phone string, state session.FlowState) error
	MergeFlowData(ctx context.Context, phone string, state session.FlowState, data session.FlowData) error
	ClearFlow(ctx context.Context, phone string) error
}

// Store is the appointment persistence the flow needs.
type Store interface {
	TimeSlots(ctx context.Context) ([]SlotConfig, error)
	Create(ctx context.Context, req NewAppointment) (*Appointment, error)
	MarkAgentNotified(ctx context.Context, id uuid.UUID) error
	DefaultAgent(ctx context.Context) (AgentConfig, error)
}

// Notifier delivers a plain text WhatsApp message.
type Notifier interface {
	SendText(ctx context.Context, to, message string) (string, error)
}

// Observer records booking outcomes.
type Observer interface {
	ObserveAppointment(outcome string)
}

// Reply is the single message produced by one flow step.
type Reply struct {
	State       session.FlowState
	Message     string
	Appointment *Appointment
}

// Flow drives the booking dialogue.
type Flow struct {
	sessions FlowStore
	store    Store
	notifier Notifier
	observer Observer
	logger   *logging.Logger
	loc      *time.Location
	now      func() time.Time
}

// FlowOption customizes a Flow.
type FlowOption func(*Flow)

// WithLocation sets the business time zone used for "hoy"/"mañana".
func WithLocation(loc *time.Location) FlowOption {
	return func(f *Flow) {
		if loc != nil {
			f.loc = loc
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) FlowOption {
	return func(f *Flow) {
		if now != nil {
			f.now = now
		}
	}
}

// WithObserver attaches a metrics sink.
func WithObserver(o Observer) FlowOption {
	return func(f *Flow) { f.observer = o }
}

func NewFlow(sessions FlowStore, store Store, notifier Notifier, logger *logging.Logger, opts ...FlowOption) *Flow {
	if logger == nil {
		logger = logging.Default()
	}
	f := &Flow{
		sessions: sessions,
		store:    store,
		notifier: notifier,
		logger:   logger,
		loc:      time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Flow) today() time.Time {
	return Today(f.now(), f.loc)
}

// Start asks whether the user wants to book.
func (f *Flow) Start(ctx context.Context, phone string) (Reply, error) {
	if err := f.sessions.SetFlowState(ctx, phone, session.FlowAskConfirmation); err != nil {
		return Reply{}, fmt.Errorf("appointment: start flow: %w", err)
	}
	return Reply{State: session.FlowAskConfirmation, Message: MsgStart}, nil
}

// BeginDateStep skips the confirmation question and asks for a date.
func (f *Flow) BeginDateStep(ctx context.Context, phone string) (Reply, error) {
	if err := f.sessions.SetFlowState(ctx, phone, session.FlowAskDate); err != nil {
		return Reply{}, fmt.Errorf("appointment: begin date step: %w", err)
	}
	return Reply{State: session.FlowAskDate, Message: MsgAskDate}, nil
}

// Process handles one user message while the dialogue is open.
func (f *Flow) Process(ctx context.Context, s *session.Session, input string) (Reply, error) {
	switch s.FlowState {
	case session.FlowAskConfirmation:
		return f.processConfirmation(ctx, s.Phone, input)
	case session.FlowAskDate:
		return f.processDate(ctx, s.Phone, input)
	case session.FlowAskTime:
		return f.processTime(ctx, s.Phone, input)
	case session.FlowAskName:
		return f.processName(ctx, s, input)
	default:
		return f.Start(ctx, s.Phone)
	}
}

func (f *Flow) processConfirmation(ctx context.Context, phone, input string) (Reply, error) {
	if IsAffirmative(input) {
		return f.BeginDateStep(ctx, phone)
	}
	if err := f.sessions.ClearFlow(ctx, phone); err != nil {
		return Reply{}, fmt.Errorf("appointment: clear flow: %w", err)
	}
	f.observe("declined")
	return Reply{State: session.FlowCompleted, Message: MsgDeclined}, nil
}

func (f *Flow) processDate(ctx context.Context, phone, input string) (Reply, error) {
	date, ok := ParseDate(input, f.today())
	if !ok {
		return Reply{State: session.FlowAskDate, Message: MsgDateNotUnderstood}, nil
	}
	data := session.FlowData{RequestedDate: date.Format(DateLayout)}
	if err := f.sessions.MergeFlowData(ctx, phone, session.FlowAskTime, data); err != nil {
		return Reply{}, fmt.Errorf("appointment: save date: %w", err)
	}

	slots, err := f.store.TimeSlots(ctx)
	if err != nil {
		return Reply{}, err
	}
	lines := make([]string, 0, len(slots))
	for _, c := range slots {
		lines = append(lines, fmt.Sprintf("%s %s", c.Emoji, c.Label()))
	}
	msg := fmt.Sprintf("Excelente. ¿En qué horario te acomoda mejor?\n\n%s\n\nEscribe: 'mañana', 'mediodía' o 'tarde'", strings.Join(lines, "\n"))
	return Reply{State: session.FlowAskTime, Message: msg}, nil
}

func (f *Flow) processTime(ctx context.Context, phone, input string) (Reply, error) {
	slot, ok := ParseTimeSlot(input)
	if !ok {
		return Reply{State: session.FlowAskTime, Message: MsgTimeNotUnderstood}, nil
	}
	if err := f.sessions.MergeFlowData(ctx, phone, session.FlowAskName, session.FlowData{TimeSlot: string(slot)}); err != nil {
		return Reply{}, fmt.Errorf("appointment: save time slot: %w", err)
	}
	return Reply{State: session.FlowAskName, Message: MsgAskName}, nil
}

func (f *Flow) processName(ctx context.Context, s *session.Session, input string) (Reply, error) {
	name := strings.TrimSpace(input)
	date, dateErr := time.ParseInLocation(DateLayout, s.FlowData.RequestedDate, f.loc)
	if s.FlowData.RequestedDate == "" || s.FlowData.TimeSlot == "" || dateErr != nil {
		f.logger.Warn("booking reached name step without date or slot", "phone", s.Phone, "error", ErrIncompleteFlow)
		if err := f.sessions.ClearFlow(ctx, s.Phone); err != nil {
			return Reply{}, fmt.Errorf("appointment: clear flow: %w", err)
		}
		return Reply{State: session.FlowCompleted, Message: MsgFlowError}, nil
	}

	slot := TimeSlot(s.FlowData.TimeSlot)
	appt, err := f.store.Create(ctx, NewAppointment{
		UserID:        s.UserID,
		Phone:         s.Phone,
		VisitorName:   name,
		RequestedDate: date,
		TimeSlot:      slot,
	})
	if err != nil {
		return Reply{}, err
	}
	f.observe("booked")

	slots, err := f.store.TimeSlots(ctx)
	if err != nil {
		f.logger.Warn("time slot lookup failed, using defaults", "error", err)
		slots = DefaultSlots()
	}
	slotText := slotLabel(slots, slot)
	dateText := FormatDate(date, f.today())

	if err := f.notifyAgent(ctx, appt, dateText, slotText); err != nil {
		f.logger.Error("agent notification failed", "appointment_id", appt.ID, "error", err)
	}

	if err := f.sessions.ClearFlow(ctx, s.Phone); err != nil {
		return Reply{}, fmt.Errorf("appointment: clear flow: %w", err)
	}

	msg := fmt.Sprintf("¡Listo %s! 🎉\n\n"+
		"Tu visita está agendada para:\n"+
		"📅 Fecha: %s\n"+
		"🕐 Horario: %s\n\n"+
		"Uno de nuestros asesores te contactará pronto para confirmar.\n\n"+
		"¿Hay algo más en lo que pueda ayudarte?", name, dateText, slotText)
	return Reply{State: session.FlowCompleted, Message: msg, Appointment: appt}, nil
}

var nonDigits = regexp.MustCompile(`\D`)

func (f *Flow) notifyAgent(ctx context.Context, appt *Appointment, dateText, slotText string) error {
	if f.notifier == nil {
		return errors.New("appointment: no notifier configured")
	}
	agent, err := f.store.DefaultAgent(ctx)
	if err != nil {
		return err
	}
	msg := RenderAgentMessage(agent, appt.VisitorName, dateText, slotText, appt.Phone)
	if _, err := f.notifier.SendText(ctx, agent.Phone, msg); err != nil {
		return fmt.Errorf("appointment: send agent notification: %w", err)
	}
	if err := f.store.MarkAgentNotified(ctx, appt.ID); err != nil {
		return err
	}
	f.logger.Info("agent notified", "agent", agent.Name, "appointment_id", appt.ID)
	return nil
}

// RenderAgentMessage fills the first occurrence of each template placeholder.
func RenderAgentMessage(agent AgentConfig, visitorName, dateText, slotText, visitorPhone string) string {
	link := "https://wa.me/" + nonDigits.ReplaceAllString(visitorPhone, "")
	msg := agent.Template
	msg = strings.Replace(msg, "{agent_name}", agent.Name, 1)
	msg = strings.Replace(msg, "{visitor_name}", visitorName, 1)
	msg = strings.Replace(msg, "{date}", dateText, 1)
	msg = strings.Replace(msg, "{time_slot}", slotText, 1)
	msg = strings.Replace(msg, "{whatsapp_link}", link, 1)
	return msg
}

func (f *Flow) observe(outcome string) {
	if f.observer != nil {
		f.observer.ObserveAppointment(outcome)
	}
}
