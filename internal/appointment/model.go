package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TimeSlot is a visit window.
type TimeSlot string

const (
	SlotMorning   TimeSlot = "morning"
	SlotAfternoon TimeSlot = "afternoon"
	SlotEvening   TimeSlot = "evening"
)

// Status is the lifecycle of a booked visit.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// SlotConfig describes how a time slot is offered to users.
type SlotConfig struct {
	Slot         TimeSlot `json:"time_slot"`
	DisplayName  string   `json:"display_name"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
	Emoji        string   `json:"emoji"`
	DisplayOrder int      `json:"display_order"`
}

// Label renders "Mañana (09:00 - 11:00)".
func (c SlotConfig) Label() string {
	return fmt.Sprintf("%s (%s - %s)", c.DisplayName, c.StartTime, c.EndTime)
}

// DefaultSlots is used when no slot configuration is stored.
func DefaultSlots() []SlotConfig {
	return []SlotConfig{
		{Slot: SlotMorning, DisplayName: "Mañana", StartTime: "09:00", EndTime: "11:00", Emoji: "🌅", DisplayOrder: 1},
		{Slot: SlotAfternoon, DisplayName: "Mediodía", StartTime: "12:00", EndTime: "15:00", Emoji: "☀️", DisplayOrder: 2},
		{Slot: SlotEvening, DisplayName: "Tarde", StartTime: "16:00", EndTime: "19:00", Emoji: "🌆", DisplayOrder: 3},
	}
}

// slotLabel finds the configured label for slot, or the raw slot name.
func slotLabel(slots []SlotConfig, slot TimeSlot) string {
	for _, c := range slots {
		if c.Slot == slot {
			return c.Label()
		}
	}
	return string(slot)
}

// Appointment is a booked visit.
type Appointment struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	Phone           string     `json:"phone"`
	VisitorName     string     `json:"visitor_name"`
	RequestedDate   time.Time  `json:"requested_date"`
	TimeSlot        TimeSlot   `json:"time_slot"`
	SlotStart       string     `json:"time_slot_start"`
	SlotEnd         string     `json:"time_slot_end"`
	Status          Status     `json:"status"`
	AgentNotifiedAt *time.Time `json:"agent_notified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
}

// NewAppointment is the input to Repository.Create.
type NewAppointment struct {
	UserID        uuid.UUID
	Phone         string
	VisitorName   string
	RequestedDate time.Time
	TimeSlot      TimeSlot
}

// AgentConfig is the sales agent who receives booking notifications and the
// advisor contact used for human handoff.
type AgentConfig struct {
	Phone         string `json:"default_agent_phone"`
	Name          string `json:"default_agent_name"`
	Template      string `json:"notification_template"`
	BusinessHours string `json:"business_hours,omitempty"`
	AdvisorPhone  string `json:"advisor_phone,omitempty"`
	AdvisorEmail  string `json:"advisor_email,omitempty"`
}

const defaultAgentTemplate = "Hola {agent_name} 👋\n\n*{visitor_name}* está interesado en una visita al fraccionamiento.\n\n📅 Fecha solicitada: {date}\n🕐 Horario: {time_slot}\n\nPuedes comunicarte con él al: {whatsapp_link}\n\n¡Que tengas un excelente día!"

// DefaultAgent is used when no agent configuration is stored.
func DefaultAgent() AgentConfig {
	return AgentConfig{
		Phone:         "+525512345678",
		Name:          "Agente Europa",
		Template:      defaultAgentTemplate,
		BusinessHours: "lunes a viernes 9:00 AM - 6:00 PM",
	}
}
