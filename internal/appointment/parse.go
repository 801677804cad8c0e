package appointment

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// DateLayout is how requested dates are stored.
const DateLayout = "2006-01-02"

var explicitDatePattern = regexp.MustCompile(`(?i)(\d{1,2})\s+(?:de\s+)?(\w+)`)

var weekdays = []struct {
	name string
	day  time.Weekday
}{
	{"domingo", time.Sunday},
	{"lunes", time.Monday},
	{"martes", time.Tuesday},
	{"miércoles", time.Wednesday},
	{"miercoles", time.Wednesday},
	{"jueves", time.Thursday},
	{"viernes", time.Friday},
	{"sábado", time.Saturday},
	{"sabado", time.Saturday},
}

var months = map[string]time.Month{
	"enero":      time.January,
	"febrero":    time.February,
	"marzo":      time.March,
	"abril":      time.April,
	"mayo":       time.May,
	"junio":      time.June,
	"julio":      time.July,
	"agosto":     time.August,
	"septiembre": time.September,
	"octubre":    time.October,
	"noviembre":  time.November,
	"diciembre":  time.December,
}

var (
	weekdayNames = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}
	monthNames   = [...]string{"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"}
)

// Today truncates now to midnight in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// ParseDate understands "hoy", "mañana", weekday names (next occurrence,
// never today) and "25 de octubre" (rolled to next year once past).
func ParseDate(input string, today time.Time) (time.Time, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))

	switch normalized {
	case "hoy":
		return today, true
	case "mañana", "manana":
		return today.AddDate(0, 0, 1), true
	}

	for _, wd := range weekdays {
		if strings.Contains(normalized, wd.name) {
			diff := (int(wd.day) + 7 - int(today.Weekday())) % 7
			if diff == 0 {
				diff = 7
			}
			return today.AddDate(0, 0, diff), true
		}
	}

	m := explicitDatePattern.FindStringSubmatch(input)
	if m == nil {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(m[1])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}
	month, ok := months[strings.ToLower(m[2])]
	if !ok {
		return time.Time{}, false
	}
	date := time.Date(today.Year(), month, day, 0, 0, 0, 0, today.Location())
	if date.Before(today) {
		date = date.AddDate(1, 0, 0)
	}
	return date, true
}

// ParseTimeSlot maps free text to a slot.
func ParseTimeSlot(input string) (TimeSlot, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	switch {
	case strings.Contains(normalized, "mañana") || strings.Contains(normalized, "manana"):
		return SlotMorning, true
	case strings.Contains(normalized, "mediodia") || strings.Contains(normalized, "mediodía") || strings.Contains(normalized, "medio"):
		return SlotAfternoon, true
	case strings.Contains(normalized, "tarde") || strings.Contains(normalized, "noche"):
		return SlotEvening, true
	}
	return "", false
}

// FormatDate renders "Hoy", "Mañana" or "lunes, 25 de octubre de 2026".
func FormatDate(date, today time.Time) string {
	d := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, today.Location())
	switch {
	case d.Equal(today):
		return "Hoy"
	case d.Equal(today.AddDate(0, 0, 1)):
		return "Mañana"
	}
	return fmt.Sprintf("%s, %d de %s de %d", weekdayNames[d.Weekday()], d.Day(), monthNames[d.Month()-1], d.Year())
}

var affirmations = []string{
	"si", "sí", "claro", "ok", "vale", "dale", "yes",
	"por favor", "porfavor", "esta bien", "está bien",
	"adelante", "vamos", "perfecto", "excelente",
	"me interesa", "quiero", "acepto",
}

// IsAffirmative reports whether the message contains an affirmation as a
// whole word or phrase, so "si" matches "si gracias" but not "sitio".
func IsAffirmative(message string) bool {
	normalized := strings.ToLower(strings.TrimSpace(message))
	for _, a := range affirmations {
		if containsWord(normalized, a) {
			return true
		}
	}
	return false
}

func containsWord(s, word string) bool {
	for start := 0; start <= len(s); {
		idx := strings.Index(s[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)
		if boundaryBefore(s, idx) && boundaryAfter(s, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[idx:])
		start = idx + size
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}
