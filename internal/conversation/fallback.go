package conversation

import (
	"context"
	"fmt"

	"github.com/wolfman30/whatsapp-leadbot/internal/content"
	"github.com/wolfman30/whatsapp-leadbot/internal/session"
)

const (
	MsgFallbackClarify = "🤔 Disculpa, no estoy seguro de entender.\n\n" +
		"¿Preguntas sobre:\n" +
		"• Precios y costos\n" +
		"• Ubicación del proyecto\n" +
		"• Modelos de casas\n" +
		"• Opciones de crédito\n" +
		"• Seguridad\n" +
		"• Información general (brochure)\n\n" +
		"Por favor, repite tu pregunta con otras palabras."

	MsgFallbackMenu = "Te muestro las opciones principales:\n\n" +
		"1️⃣ Precio - Costo de lotes y casas\n" +
		"2️⃣ Ubicación - Dirección y cómo llegar\n" +
		"3️⃣ Modelos - Tipos de casas disponibles\n" +
		"4️⃣ Créditos - Financiamiento e Infonavit\n" +
		"5️⃣ Seguridad - Vigilancia del fraccionamiento\n" +
		"6️⃣ Brochure - Información completa en PDF\n\n" +
		"Escribe el número o el nombre del tema que te interesa."

	MsgFallbackAdvisor = "Veo que necesitas información más específica.\n\n" +
		"👨‍💼 Te voy a conectar con uno de nuestros asesores para que te ayude personalmente.\n\n" +
		"¿Cuál es tu nombre completo?"
)

// FallbackMessage returns the reply for the given consecutive miss count.
func FallbackMessage(level int) string {
	switch level {
	case 1:
		return MsgFallbackClarify
	case 2:
		return MsgFallbackMenu
	default:
		return MsgFallbackAdvisor
	}
}

// FallbackStore is the session state the escalator mutates.
type FallbackStore interface {
	IncrementFallback(ctx context.Context, phone string) (int, error)
	SetAwaitingAdvisorName(ctx context.Context, phone string, awaiting bool) error
}

// FallbackEscalator answers messages no intent matched, escalating with
// every consecutive miss until the user is handed to an advisor.
type FallbackEscalator struct {
	sessions FallbackStore
}

func NewFallbackEscalator(sessions FallbackStore) *FallbackEscalator {
	return &FallbackEscalator{sessions: sessions}
}

// Escalate bumps the miss counter and returns the reply for the new level.
func (f *FallbackEscalator) Escalate(ctx context.Context, s *session.Session) (*Result, error) {
	level, err := f.sessions.IncrementFallback(ctx, s.Phone)
	if err != nil {
		return nil, err
	}
	if level >= 3 {
		if err := f.sessions.SetAwaitingAdvisorName(ctx, s.Phone, true); err != nil {
			return nil, fmt.Errorf("conversation: await advisor name: %w", err)
		}
	}
	return &Result{
		Responses:     content.Texts(FallbackMessage(level)),
		ShouldSend:    true,
		IsFallback:    true,
		FallbackLevel: level,
	}, nil
}
