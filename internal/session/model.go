package session

import (
	"time"

	"github.com/google/uuid"
)

// Checkpoint is one of the six information topics a lead can cover.
type Checkpoint string

const (
	CheckpointPrecio    Checkpoint = "precio"
	CheckpointUbicacion Checkpoint = "ubicacion"
	CheckpointModelo    Checkpoint = "modelo"
	CheckpointCreditos  Checkpoint = "creditos"
	CheckpointSeguridad Checkpoint = "seguridad"
	CheckpointBrochure  Checkpoint = "brochure"
)

// Checkpoints lists every checkpoint in display order.
var Checkpoints = []Checkpoint{
	CheckpointPrecio,
	CheckpointUbicacion,
	CheckpointModelo,
	CheckpointCreditos,
	CheckpointSeguridad,
	CheckpointBrochure,
}

// CheckpointForIntent maps an intent name to its checkpoint, if it has one.
func CheckpointForIntent(intentName string) (Checkpoint, bool) {
	for _, cp := range Checkpoints {
		if string(cp) == intentName {
			return cp, true
		}
	}
	return "", false
}

// FlowState is the position inside the appointment booking dialogue.
type FlowState string

const (
	FlowNone             FlowState = "none"
	FlowPendingAutoOffer FlowState = "pending_auto_offer"
	FlowAskConfirmation  FlowState = "ask_confirmation"
	FlowAskDate          FlowState = "ask_date"
	FlowAskTime          FlowState = "ask_time"
	FlowAskName          FlowState = "ask_name"
	FlowCompleted        FlowState = "completed"
)

// InSubFlow reports whether the booking dialogue owns the next message.
func (s FlowState) InSubFlow() bool {
	switch s {
	case FlowAskConfirmation, FlowAskDate, FlowAskTime, FlowAskName:
		return true
	default:
		return false
	}
}

// FlowData holds answers collected while booking.
type FlowData struct {
	RequestedDate string `json:"requested_date,omitempty"`
	TimeSlot      string `json:"time_slot,omitempty"`
}

// LeadStatus buckets the lead score.
type LeadStatus string

const (
	LeadCold LeadStatus = "cold"
	LeadWarm LeadStatus = "warm"
	LeadHot  LeadStatus = "hot"
)

// PointsPerCheckpoint is the lead score contribution of each completed checkpoint.
const PointsPerCheckpoint = 15

// ScoreFor derives lead score and status from completed checkpoints.
func ScoreFor(completed int) (int, LeadStatus) {
	score := completed * PointsPerCheckpoint
	switch {
	case score >= 70:
		return score, LeadHot
	case score >= 40:
		return score, LeadWarm
	default:
		return score, LeadCold
	}
}

// Session is the per-phone conversation state.
type Session struct {
	UserID              uuid.UUID                `json:"user_id"`
	Phone               string                   `json:"phone"`
	Name                string                   `json:"name,omitempty"`
	BotActive           bool                     `json:"bot_active"`
	FallbackAttempts    int                      `json:"fallback_attempts"`
	LastFallbackAt      *time.Time               `json:"last_fallback_at,omitempty"`
	AwaitingAdvisorName bool                     `json:"awaiting_advisor_name"`
	FlowState           FlowState                `json:"appointment_flow_state"`
	FlowData            FlowData                 `json:"appointment_flow_data"`
	Checkpoints         map[Checkpoint]time.Time `json:"checkpoints"`
	AppointmentOffered  bool                     `json:"appointment_offered"`
	AppointmentOfferAt  *time.Time               `json:"appointment_offered_at,omitempty"`
	LeadScore           int                      `json:"lead_score"`
	LeadStatus          LeadStatus               `json:"lead_status"`
	LastIntent          string                   `json:"last_intent,omitempty"`
	LastIntentAt        *time.Time               `json:"last_intent_at,omitempty"`
	FirstContactAt      time.Time                `json:"first_contact_at"`
	LastInteractionAt   time.Time                `json:"last_interaction_at"`
}

// IsCompleted reports whether cp has been covered.
func (s *Session) IsCompleted(cp Checkpoint) bool {
	_, ok := s.Checkpoints[cp]
	return ok
}

// CompletedCount is the number of covered checkpoints.
func (s *Session) CompletedCount() int {
	n := 0
	for _, cp := range Checkpoints {
		if s.IsCompleted(cp) {
			n++
		}
	}
	return n
}

func newSession(phone, name string, now time.Time) *Session {
	return &Session{
		UserID:            uuid.New(),
		Phone:             phone,
		Name:              name,
		BotActive:         true,
		FlowState:         FlowNone,
		Checkpoints:       make(map[Checkpoint]time.Time),
		LeadStatus:        LeadCold,
		FirstContactAt:    now,
		LastInteractionAt: now,
	}
}
