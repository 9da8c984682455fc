package booking

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lrz80/chatbot-backend-sub000/internal/schedule"
)

// ordinalWords converts ordinal words to 1-based choice numbers.
var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"1st": 1, "2nd": 2, "3rd": 3, "4th": 4, "5th": 5,
}

var (
	optionRE       = regexp.MustCompile(`(?i)^(?:option|number|#|choice)\s*(\d+)$`)
	meridiemTimeRE = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*(a\.?m\.?|p\.?m\.?|am|pm|a|p)\b`)
	bareNumberRE   = regexp.MustCompile(`\b(\d{1,2})\b`)
	monthContextRE = regexp.MustCompile(`(?i)(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)\w*\s+\d`)
)

// morePatterns are phrasings that ask for different times rather than
// selecting one of the offered slots.
var morePatterns = []string{
	"more times", "more options", "other times", "other options",
	"different times", "different options", "later times", "earlier times",
	"any other", "anything else", "what else", "another day", "other days",
	"different day", "next day", "more availability",
}

// isMoreRequest reports whether the message asks for more/different times
// instead of picking an offered slot.
func isMoreRequest(message string) bool {
	msg := strings.ToLower(message)
	for _, pat := range morePatterns {
		if strings.Contains(msg, pat) {
			return true
		}
	}
	return false
}

// SelectSlot matches the customer's reply against the offered slots.
// Accepts a choice number ("2", "option 2", "the second one"), an explicit
// time ("10:30am", "I'll take the 2pm"), or a bare hour when unambiguous.
// Returns nil when the message is not a selection.
func SelectSlot(message string, offered []schedule.Slot, loc *time.Location) *schedule.Slot {
	msg := strings.TrimSpace(strings.ToLower(message))
	if msg == "" || len(offered) == 0 {
		return nil
	}
	if isMoreRequest(msg) {
		return nil
	}

	// Explicit "option N" is always a choice number.
	if m := optionRE.FindStringSubmatch(msg); len(m) > 1 {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= len(offered) {
			return &offered[n-1]
		}
		return nil
	}

	// Ordinal words, unless they are part of a date ("Mar 4th").
	if !monthContextRE.MatchString(msg) {
		for word, n := range ordinalWords {
			if strings.Contains(msg, word) && n >= 1 && n <= len(offered) {
				return &offered[n-1]
			}
		}
	}

	// Time with an explicit meridiem matches against slot wall times.
	if m := meridiemTimeRE.FindStringSubmatch(msg); len(m) > 0 {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		meridiem := strings.ReplaceAll(strings.ToLower(m[3]), ".", "")
		switch meridiem {
		case "p":
			meridiem = "pm"
		case "a":
			meridiem = "am"
		}
		if meridiem == "pm" && hour != 12 {
			hour += 12
		} else if meridiem == "am" && hour == 12 {
			hour = 0
		}
		for i := range offered {
			local := offered[i].Start.In(loc)
			if local.Hour() == hour && local.Minute() == minute {
				return &offered[i]
			}
		}
		// Explicit time that matches no offer is not a selection.
		return nil
	}

	// A bare small number: choice index first, unambiguous hour second.
	if m := bareNumberRE.FindStringSubmatch(msg); len(m) > 1 {
		n, _ := strconv.Atoi(m[1])
		if n >= 1 && n <= len(offered) {
			return &offered[n-1]
		}
		var hourMatches []*schedule.Slot
		for i := range offered {
			h := offered[i].Start.In(loc).Hour()
			if h == n || h == n+12 || (n == 12 && h == 0) {
				hourMatches = append(hourMatches, &offered[i])
			}
		}
		if len(hourMatches) == 1 {
			return hourMatches[0]
		}
	}

	return nil
}
