package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mexicoCity = func() *time.Location {
	loc, err := time.LoadLocation("America/Mexico_City")
	if err != nil {
		return time.FixedZone("CST", -6*60*60)
	}
	return loc
}()

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, mexicoCity)
}

func TestParseDate(t *testing.T) {
	sunday := day(2026, time.October, 18)
	monday := day(2026, time.October, 19)

	tests := []struct {
		name  string
		input string
		today time.Time
		want  time.Time
	}{
		{"today", " Hoy ", sunday, sunday},
		{"tomorrow accented", "Mañana", sunday, monday},
		{"tomorrow plain", "manana", sunday, monday},
		{"next weekday", "el lunes", sunday, monday},
		{"same weekday is next week", "lunes", monday, day(2026, time.October, 26)},
		{"sunday on sunday", "domingo", sunday, day(2026, time.October, 25)},
		{"accented weekday", "Miércoles por favor", sunday, day(2026, time.October, 21)},
		{"explicit date", "25 de octubre", sunday, day(2026, time.October, 25)},
		{"explicit date without de", "el 30 noviembre", sunday, day(2026, time.November, 30)},
		{"explicit date today", "18 de octubre", sunday, sunday},
		{"past date rolls over", "1 de enero", sunday, day(2027, time.January, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.input, tt.today)
			require.True(t, ok)
			assert.Equal(t, tt.want.Format(DateLayout), got.Format(DateLayout))
		})
	}
}

func TestParseDateRejects(t *testing.T) {
	today := day(2026, time.October, 18)
	for _, input := range []string{"nunca", "32 de octubre", "0 de mayo", "25 de brumario", "mañana temprano", ""} {
		_, ok := ParseDate(input, today)
		assert.False(t, ok, input)
	}
}

func TestParseTimeSlot(t *testing.T) {
	tests := map[string]TimeSlot{
		"En la mañana":    SlotMorning,
		"manana":          SlotMorning,
		"a mediodía":      SlotAfternoon,
		"medio dia":       SlotAfternoon,
		"por la tarde":    SlotEvening,
		"en la noche":     SlotEvening,
		"TARDE por favor": SlotEvening,
	}
	for input, want := range tests {
		got, ok := ParseTimeSlot(input)
		require.True(t, ok, input)
		assert.Equal(t, want, got, input)
	}

	_, ok := ParseTimeSlot("cuando sea")
	assert.False(t, ok)
}

func TestFormatDate(t *testing.T) {
	today := day(2026, time.October, 18)

	assert.Equal(t, "Hoy", FormatDate(today, today))
	assert.Equal(t, "Mañana", FormatDate(day(2026, time.October, 19), today))
	assert.Equal(t, "lunes, 26 de octubre de 2026", FormatDate(day(2026, time.October, 26), today))
	assert.Equal(t, "miércoles, 6 de enero de 2027", FormatDate(day(2027, time.January, 6), today))
}

func TestIsAffirmative(t *testing.T) {
	tests := map[string]bool{
		"Sí, claro":         true,
		"si":                true,
		"SI!":               true,
		"vale":              true,
		"Está bien":         true,
		"por favor agenda":  true,
		"me interesa mucho": true,
		"sitio":             false,
		"okey":              false,
		"no gracias":        false,
		"":                  false,
	}
	for input, want := range tests {
		assert.Equal(t, want, IsAffirmative(input), input)
	}
}

func TestRenderAgentMessage(t *testing.T) {
	agent := AgentConfig{Name: "Laura", Template: "{agent_name}: {visitor_name} {date} {time_slot} {whatsapp_link} {agent_name}"}

	msg := RenderAgentMessage(agent, "Juan", "Mañana", "Tarde (16:00 - 19:00)", "+52 1 55-1234-5678")
	assert.Equal(t, "Laura: Juan Mañana Tarde (16:00 - 19:00) https://wa.me/5215512345678 {agent_name}", msg)
}
