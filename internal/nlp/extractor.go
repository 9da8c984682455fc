// Package nlp is the default regex-based implementation of the extraction
// contracts the booking engine consumes. It is deliberately conservative:
// a missed signal falls through to a re-prompt, while a wrong signal sends
// the conversation somewhere the customer did not ask for.
package nlp

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lrz80/chatbot-backend-sub000/internal/booking"
	"github.com/lrz80/chatbot-backend-sub000/internal/schedule"
)

var months = map[string]time.Month{
	"jan": time.January, "january": time.January, "enero": time.January,
	"feb": time.February, "february": time.February, "febrero": time.February,
	"mar": time.March, "march": time.March, "marzo": time.March,
	"apr": time.April, "april": time.April, "abril": time.April,
	"may": time.May, "mayo": time.May,
	"jun": time.June, "june": time.June, "junio": time.June,
	"jul": time.July, "july": time.July, "julio": time.July,
	"aug": time.August, "august": time.August, "agosto": time.August,
	"sep": time.September, "september": time.September, "septiembre": time.September,
	"oct": time.October, "october": time.October, "octubre": time.October,
	"nov": time.November, "november": time.November, "noviembre": time.November,
	"dec": time.December, "december": time.December, "diciembre": time.December,
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "domingo": time.Sunday,
	"monday": time.Monday, "lunes": time.Monday,
	"tuesday": time.Tuesday, "martes": time.Tuesday,
	"wednesday": time.Wednesday, "miercoles": time.Wednesday, "miércoles": time.Wednesday,
	"thursday": time.Thursday, "jueves": time.Thursday,
	"friday": time.Friday, "viernes": time.Friday,
	"saturday": time.Saturday, "sabado": time.Saturday, "sábado": time.Saturday,
}

var (
	monthDayRE = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch|zo)?|apr(?:il)?|abril|may(?:o)?|jun(?:e|io)?|jul(?:y|io)?|aug(?:ust)?|agosto|sep(?:tember|tiembre)?|oct(?:ober|ubre)?|nov(?:ember|iembre)?|dec(?:ember)?|diciembre|enero|febrero)\s+(\d{1,2})(?:st|nd|rd|th)?\b`)
	numDateRE  = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	meridiemRE = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(a\.?m\.?|p\.?m\.?)\b`)
	clockRE    = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	emailRE    = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRE    = regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`)
	nameRE     = regexp.MustCompile(`(?i)\b(?:my name is|i am|i'm|this is|me llamo|soy)\s+([A-Za-zÀ-ÿ]+(?:\s+[A-Za-zÀ-ÿ]+)?)`)
)

var bookingWords = []string{
	"book", "appointment", "schedule", "reserve", "reschedule",
	"availability", "available", "come in", "slot", "opening",
	"cita", "reservar", "agendar", "turno",
}

var cancelWords = []string{
	"cancel", "never mind", "nevermind", "forget it", "start over",
	"cancelar", "olvidalo", "olvídalo", "dejalo", "déjalo",
}

var topicWords = []string{
	"how much", "price", "pricing", "cost", "cuanto cuesta", "cuánto cuesta",
	"precio", "where are you", "address", "location", "direccion", "dirección",
	"what are your hours", "are you open", "horario",
}

var moreWords = []string{
	"more times", "more options", "other times", "other options",
	"anything else", "what else", "later times", "earlier times",
	"otras horas", "otras opciones", "mas opciones", "más opciones",
}

var nextDayWords = []string{
	"another day", "different day", "next day", "other days",
	"otro dia", "otro día", "otra fecha",
}

var spanishMarkers = []string{
	"hola", "quiero", "cita", "gracias", "por favor", "buenos dias",
	"buenos días", "buenas tardes", "mañana", "necesito", "puedo",
}

// Extractor derives booking signals from raw message text.
type Extractor struct{}

// New returns the default extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract implements booking.Extractor.
func (e *Extractor) Extract(_ context.Context, text string, loc *time.Location, now time.Time) booking.Signals {
	msg := strings.ToLower(strings.TrimSpace(text))
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)

	sig := booking.Signals{
		Cancel:       containsAny(msg, cancelWords),
		WantsMore:    containsAny(msg, moreWords),
		WantsNextDay: containsAny(msg, nextDayWords),
		Language:     detectLanguage(msg),
	}
	sig.WantsBooking = containsAny(msg, bookingWords)
	if !sig.WantsBooking && !sig.Cancel {
		sig.ChangeTopic = containsAny(msg, topicWords)
	}

	sig.Daypart = detectDaypart(msg)
	sig.YesNo = detectYesNo(msg)
	sig.Purpose = detectPurpose(msg)

	if m := emailRE.FindString(text); m != "" {
		sig.Email = m
	}
	if m := nameRE.FindStringSubmatch(text); len(m) > 1 {
		sig.Name = strings.TrimSpace(m[1])
	}
	if m := phoneRE.FindString(text); m != "" && !strings.Contains(m, "/") {
		sig.Phone = m
	}

	date, hasDate := extractDate(msg, local, loc)
	mins, hasTime := extractTimeOfDay(msg)
	switch {
	case hasDate && hasTime:
		t := date.Add(time.Duration(mins) * time.Minute)
		sig.DateTime = &t
	case hasDate:
		sig.DateOnly = &date
	case hasTime:
		sig.TimeOnlyMin = &mins
	}

	return sig
}

func containsAny(msg string, words []string) bool {
	for _, w := range words {
		if strings.Contains(msg, w) {
			return true
		}
	}
	return false
}

func detectDaypart(msg string) schedule.Daypart {
	switch {
	case strings.Contains(msg, "morning") ||
		((strings.Contains(msg, "manana") || strings.Contains(msg, "mañana")) &&
			(strings.Contains(msg, "por la") || strings.Contains(msg, "en la"))):
		return schedule.DaypartMorning
	case strings.Contains(msg, "afternoon") || strings.Contains(msg, "evening") ||
		strings.Contains(msg, "tarde") || strings.Contains(msg, "noche"):
		return schedule.DaypartAfternoon
	}
	return ""
}

func detectYesNo(msg string) booking.YesNo {
	trimmed := strings.Trim(msg, " .!¡")
	switch trimmed {
	case "yes", "yes please", "yeah", "yep", "yup", "sure", "ok", "okay",
		"confirm", "confirmed", "correct", "si", "sí", "claro", "dale",
		"sounds good", "perfect", "yes book it", "book it":
		return booking.AnswerYes
	case "no", "nope", "nah", "no thanks", "no thank you", "not really",
		"no gracias":
		return booking.AnswerNo
	}
	if strings.HasPrefix(trimmed, "yes") || strings.HasPrefix(trimmed, "si ") {
		return booking.AnswerYes
	}
	if strings.HasPrefix(trimmed, "no ") || strings.HasPrefix(trimmed, "no,") {
		return booking.AnswerNo
	}
	return booking.AnswerUnclear
}

var purposeRE = regexp.MustCompile(`(?i)\b(?:for|para)\s+(?:a|an|una|un)?\s*([a-zà-ÿ]+(?:\s+[a-zà-ÿ]+)?)`)

func detectPurpose(msg string) string {
	m := purposeRE.FindStringSubmatch(msg)
	if len(m) < 2 {
		return ""
	}
	p := strings.TrimSpace(m[1])
	// Time words after "for" are not a purpose.
	switch {
	case p == "", strings.HasPrefix(p, "tomorrow"), strings.HasPrefix(p, "today"),
		strings.HasPrefix(p, "next"), strings.HasPrefix(p, "morning"),
		strings.HasPrefix(p, "afternoon"), strings.HasPrefix(p, "monday"),
		strings.HasPrefix(p, "tuesday"), strings.HasPrefix(p, "wednesday"),
		strings.HasPrefix(p, "thursday"), strings.HasPrefix(p, "friday"),
		strings.HasPrefix(p, "saturday"), strings.HasPrefix(p, "sunday"):
		return ""
	}
	return p
}

// extractDate finds an explicit calendar date: "tomorrow", a weekday name,
// "March 5", or "3/5". Returns local midnight of that date.
func extractDate(msg string, local time.Time, loc *time.Location) (time.Time, bool) {
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	if strings.Contains(msg, "today") || strings.Contains(msg, "hoy") {
		return midnight, true
	}
	if strings.Contains(msg, "tomorrow") ||
		((wholeWord(msg, "manana") || wholeWord(msg, "mañana")) &&
			!strings.Contains(msg, "por la") && !strings.Contains(msg, "en la")) {
		return midnight.AddDate(0, 0, 1), true
	}

	for name, wd := range weekdays {
		if wholeWord(msg, name) {
			ahead := (int(wd) - int(local.Weekday()) + 7) % 7
			if ahead == 0 {
				ahead = 7
			}
			return midnight.AddDate(0, 0, ahead), true
		}
	}

	if m := monthDayRE.FindStringSubmatch(msg); len(m) > 2 {
		mon, ok := months[strings.ToLower(m[1])]
		if ok {
			day, _ := strconv.Atoi(m[2])
			if day >= 1 && day <= 31 {
				d := time.Date(local.Year(), mon, day, 0, 0, 0, 0, loc)
				if d.Before(midnight) {
					d = d.AddDate(1, 0, 0)
				}
				return d, true
			}
		}
	}

	if m := numDateRE.FindStringSubmatch(msg); len(m) > 2 {
		mon, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		if mon >= 1 && mon <= 12 && day >= 1 && day <= 31 {
			year := local.Year()
			if m[3] != "" {
				if y, err := strconv.Atoi(m[3]); err == nil {
					if y < 100 {
						y += 2000
					}
					year = y
				}
			}
			d := time.Date(year, time.Month(mon), day, 0, 0, 0, 0, loc)
			if d.Before(midnight) && m[3] == "" {
				d = d.AddDate(1, 0, 0)
			}
			return d, true
		}
	}

	return time.Time{}, false
}

// extractTimeOfDay finds a wall clock time and returns minutes since
// midnight. A bare "10:30" without meridiem is read as written; "noon"
// and "midnight" are handled as words.
func extractTimeOfDay(msg string) (int, bool) {
	if strings.Contains(msg, "noon") || strings.Contains(msg, "mediodia") || strings.Contains(msg, "mediodía") {
		return 12 * 60, true
	}

	if m := meridiemRE.FindStringSubmatch(msg); len(m) > 0 {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour > 12 || minute > 59 {
			return 0, false
		}
		pm := strings.HasPrefix(strings.ReplaceAll(strings.ToLower(m[3]), ".", ""), "p")
		if pm && hour != 12 {
			hour += 12
		}
		if !pm && hour == 12 {
			hour = 0
		}
		return hour*60 + minute, true
	}

	if m := clockRE.FindStringSubmatch(msg); len(m) > 2 {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour <= 23 && minute <= 59 {
			return hour*60 + minute, true
		}
	}

	return 0, false
}

func wholeWord(msg, word string) bool {
	idx := strings.Index(msg, word)
	if idx < 0 {
		return false
	}
	if idx > 0 {
		if r := msg[idx-1]; r >= 'a' && r <= 'z' {
			return false
		}
	}
	end := idx + len(word)
	if end < len(msg) {
		if r := msg[end]; r >= 'a' && r <= 'z' {
			return false
		}
	}
	return true
}

func detectLanguage(msg string) string {
	for _, marker := range spanishMarkers {
		if strings.Contains(msg, marker) {
			return "es"
		}
	}
	return ""
}
