package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Manager applies single-purpose mutations to sessions. Each mutation is a
// load-modify-save; concurrent turns for one phone may overwrite each other.
type Manager struct {
	backend Backend
	now     func() time.Time
}

// NewManager wires a Manager over backend.
func NewManager(backend Backend) *Manager {
	if backend == nil {
		panic("session: backend cannot be nil")
	}
	return &Manager{backend: backend, now: time.Now}
}

// SetClock overrides time.Now, for tests.
func (m *Manager) SetClock(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// FindOrCreate returns the session for phone, creating it on first contact.
// An empty stored name is filled from name.
func (m *Manager) FindOrCreate(ctx context.Context, phone, name string) (*Session, error) {
	s, err := m.backend.Load(ctx, phone)
	if err == nil {
		if s.Name == "" && strings.TrimSpace(name) != "" {
			s.Name = strings.TrimSpace(name)
			if err := m.backend.Save(ctx, s); err != nil {
				return nil, err
			}
		}
		return s, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	s = newSession(phone, strings.TrimSpace(name), m.now())
	if err := m.backend.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Get loads an existing session.
func (m *Manager) Get(ctx context.Context, phone string) (*Session, error) {
	return m.backend.Load(ctx, phone)
}

func (m *Manager) update(ctx context.Context, phone string, fn func(s *Session)) (*Session, error) {
	s, err := m.backend.Load(ctx, phone)
	if err != nil {
		return nil, err
	}
	fn(s)
	if err := m.backend.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Touch records the time of the latest interaction.
func (m *Manager) Touch(ctx context.Context, phone string) error {
	_, err := m.update(ctx, phone, func(s *Session) { s.LastInteractionAt = m.now() })
	return err
}

// IncrementFallback bumps the miss counter and returns the new value.
func (m *Manager) IncrementFallback(ctx context.Context, phone string) (int, error) {
	s, err := m.update(ctx, phone, func(s *Session) {
		now := m.now()
		s.FallbackAttempts++
		s.LastFallbackAt = &now
	})
	if err != nil {
		return 0, fmt.Errorf("session: increment fallback: %w", err)
	}
	return s.FallbackAttempts, nil
}

// ResetFallback zeroes the miss counter.
func (m *Manager) ResetFallback(ctx context.Context, phone string) error {
	_, err := m.update(ctx, phone, func(s *Session) {
		s.FallbackAttempts = 0
		s.LastFallbackAt = nil
	})
	return err
}

// SetAwaitingAdvisorName toggles the advisor-name capture mode.
func (m *Manager) SetAwaitingAdvisorName(ctx context.Context, phone string, awaiting bool) error {
	_, err := m.update(ctx, phone, func(s *Session) { s.AwaitingAdvisorName = awaiting })
	return err
}

// UpdateName stores the user's display name.
func (m *Manager) UpdateName(ctx context.Context, phone, name string) error {
	_, err := m.update(ctx, phone, func(s *Session) { s.Name = name })
	return err
}

// RecordIntent stores the latest detected intent.
func (m *Manager) RecordIntent(ctx context.Context, phone, intentName string) error {
	_, err := m.update(ctx, phone, func(s *Session) {
		now := m.now()
		s.LastIntent = intentName
		s.LastIntentAt = &now
	})
	return err
}

// CompleteCheckpoint marks cp covered and recomputes the lead score in the
// same write. Completing an already covered checkpoint keeps its first
// timestamp.
func (m *Manager) CompleteCheckpoint(ctx context.Context, phone string, cp Checkpoint) (*Session, error) {
	s, err := m.update(ctx, phone, func(s *Session) {
		if !s.IsCompleted(cp) {
			s.Checkpoints[cp] = m.now()
		}
		s.LeadScore, s.LeadStatus = ScoreFor(s.CompletedCount())
	})
	if err != nil {
		return nil, fmt.Errorf("session: complete checkpoint %s: %w", cp, err)
	}
	return s, nil
}

// OfferAppointment records that the visit offer was made and parks the
// session waiting for the answer.
func (m *Manager) OfferAppointment(ctx context.Context, phone string) error {
	_, err := m.update(ctx, phone, func(s *Session) {
		now := m.now()
		s.AppointmentOffered = true
		s.AppointmentOfferAt = &now
		s.FlowState = FlowPendingAutoOffer
	})
	return err
}

// SetFlowState moves the booking dialogue to state.
func (m *Manager) SetFlowState(ctx context.Context, phone string, state FlowState) error {
	_, err := m.update(ctx, phone, func(s *Session) { s.FlowState = state })
	return err
}

// MergeFlowData overwrites the non-empty fields of data and sets state.
func (m *Manager) MergeFlowData(ctx context.Context, phone string, state FlowState, data FlowData) error {
	_, err := m.update(ctx, phone, func(s *Session) {
		if data.RequestedDate != "" {
			s.FlowData.RequestedDate = data.RequestedDate
		}
		if data.TimeSlot != "" {
			s.FlowData.TimeSlot = data.TimeSlot
		}
		s.FlowState = state
	})
	return err
}

// ClearFlow resets the booking dialogue and its collected data.
func (m *Manager) ClearFlow(ctx context.Context, phone string) error {
	_, err := m.update(ctx, phone, func(s *Session) {
		s.FlowState = FlowNone
		s.FlowData = FlowData{}
	})
	return err
}

// SetBotActive enables or disables automatic replies for phone.
func (m *Manager) SetBotActive(ctx context.Context, phone string, active bool) (*Session, error) {
	return m.update(ctx, phone, func(s *Session) { s.BotActive = active })
}
