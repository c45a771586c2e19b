// Package timeparse turns free-text time expressions such as "tomorrow at 9am EST"
// or "in 20 minutes" into absolute UTC timestamps.
package timeparse

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // IANA names must resolve in minimal containers
	"unicode"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
)

// ErrNoTime is wrapped by the ParseError returned when no date or time is found
var ErrNoTime = errors.New("no date or time found")

// Slash dates are read month first
var (
	dateLayouts  = []string{"2006-01-02", "1/2/2006", "1/2/06", "1/2"}
	clockLayouts = []string{"15:04:05", "15:04", "3:04pm", "3:04 pm", "3pm", "3 pm"}
)

// absoluteLayouts are tried before natural-language rules, in order
var absoluteLayouts = buildLayouts()

func buildLayouts() []string {
	layouts := []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"}
	for _, date := range dateLayouts {
		for _, clock := range clockLayouts {
			layouts = append(layouts, date+" "+clock, date+" at "+clock, date+", "+clock)
		}
		layouts = append(layouts, date)
	}
	return layouts
}

// dateWords left outside the natural-language match mean part of the input was ignored
var dateWords = map[string]bool{
	"jan": true, "january": true, "feb": true, "february": true, "mar": true, "march": true,
	"apr": true, "april": true, "jun": true, "june": true, "jul": true, "july": true,
	"aug": true, "august": true, "sep": true, "sept": true, "september": true,
	"oct": true, "october": true, "nov": true, "november": true, "dec": true, "december": true,
	"mon": true, "monday": true, "tue": true, "tues": true, "tuesday": true,
	"wed": true, "wednesday": true, "thu": true, "thur": true, "thurs": true, "thursday": true,
	"fri": true, "friday": true, "saturday": true, "sunday": true,
	"today": true, "tonight": true, "tomorrow": true, "tmr": true, "yesterday": true,
	"noon": true, "midnight": true, "am": true, "pm": true,
	"morning": true, "afternoon": true, "evening": true,
}

// fixedZones maps common abbreviations to their standard offsets.
// Region names (ET, PT, ...) follow daylight saving.
var fixedZones = map[string]*time.Location{
	"UTC":  time.UTC,
	"GMT":  time.UTC,
	"Z":    time.UTC,
	"EST":  time.FixedZone("EST", -5*3600),
	"EDT":  time.FixedZone("EDT", -4*3600),
	"CST":  time.FixedZone("CST", -6*3600),
	"CDT":  time.FixedZone("CDT", -5*3600),
	"MST":  time.FixedZone("MST", -7*3600),
	"MDT":  time.FixedZone("MDT", -6*3600),
	"PST":  time.FixedZone("PST", -8*3600),
	"PDT":  time.FixedZone("PDT", -7*3600),
	"CET":  time.FixedZone("CET", 1*3600),
	"CEST": time.FixedZone("CEST", 2*3600),
	"BST":  time.FixedZone("BST", 1*3600),
}

var regionZones = map[string]string{
	"ET": "America/New_York",
	"CT": "America/Chicago",
	"MT": "America/Denver",
	"PT": "America/Los_Angeles",
}

// Parser resolves time expressions. It is safe for concurrent use.
type Parser struct {
	w *when.Parser
}

// New creates a Parser with the English and common rule sets
func New() *Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Parser{w: w}
}

var defaultParser = New()

// Parse resolves text relative to now using the default Parser
func Parse(text string, now time.Time) (time.Time, error) {
	return defaultParser.Parse(text, now)
}

// ParseFuture resolves text and rejects results at or before now
func ParseFuture(text string, now time.Time) (time.Time, error) {
	return defaultParser.ParseFuture(text, now)
}

// Parse resolves text relative to now and returns the instant in UTC.
// A trailing zone abbreviation or IANA name sets the zone the text is read in;
// otherwise it is read in UTC.
func (p *Parser) Parse(text string, now time.Time) (time.Time, error) {
	input := strings.TrimSpace(text)
	if input == "" {
		return time.Time{}, &apperrors.ParseError{Input: text, Err: ErrNoTime}
	}

	body, loc, err := splitZone(input)
	if err != nil {
		return time.Time{}, &apperrors.ParseError{Input: text, Err: err}
	}
	base := now.In(loc)
	body = trimLeadWord(body)

	t, ok, err := parseAbsolute(body, base)
	if err != nil {
		return time.Time{}, &apperrors.ParseError{Input: text, Err: err}
	}
	if ok {
		return t.UTC(), nil
	}

	r, err := p.w.Parse(body, base)
	if err != nil {
		return time.Time{}, &apperrors.ParseError{Input: text, Err: fmt.Errorf("failed to parse time: %w", err)}
	}
	if r == nil {
		return time.Time{}, &apperrors.ParseError{Input: text, Err: ErrNoTime}
	}

	rest := body[:r.Index] + " " + body[r.Index+len(r.Text):]
	if hasDateText(rest) {
		return time.Time{}, &apperrors.ParseError{
			Input: text,
			Err:   fmt.Errorf("could not understand %q", strings.Join(strings.Fields(rest), " ")),
		}
	}

	return r.Time.Truncate(time.Second).UTC(), nil
}

// parseAbsolute tries the fixed layouts. Dates written without a year take
// the next occurrence on or after base's day.
func parseAbsolute(body string, base time.Time) (time.Time, bool, error) {
	loc := base.Location()
	lower := strings.Join(strings.Fields(strings.ToLower(body)), " ")

	for _, layout := range absoluteLayouts {
		for _, candidate := range []string{lower, body} {
			t, err := time.ParseInLocation(layout, candidate, loc)
			if err != nil {
				continue
			}
			if strings.Contains(layout, "06") {
				return t, true, nil
			}

			year := base.Year()
			if t.Month() < base.Month() || (t.Month() == base.Month() && t.Day() < base.Day()) {
				year++
			}
			dated := time.Date(year, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
			if dated.Day() != t.Day() {
				return time.Time{}, false, fmt.Errorf("%s %d does not exist in %d", t.Month(), t.Day(), year)
			}
			return dated, true, nil
		}
	}

	return time.Time{}, false, nil
}

func trimLeadWord(body string) string {
	for _, word := range []string{"on ", "at "} {
		if len(body) > len(word) && strings.EqualFold(body[:len(word)], word) {
			return strings.TrimSpace(body[len(word):])
		}
	}
	return body
}

func hasDateText(s string) bool {
	if strings.ContainsAny(s, "0123456789") {
		return true
	}
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, word := range words {
		if dateWords[word] {
			return true
		}
	}
	return false
}

// ParseFuture is Parse plus the reminder policy: a time at or before now is a
// ValidationError
func (p *Parser) ParseFuture(text string, now time.Time) (time.Time, error) {
	t, err := p.Parse(text, now)
	if err != nil {
		return time.Time{}, err
	}

	if !t.After(now) {
		return time.Time{}, apperrors.NewValidation("parsed time is in the past")
	}

	return t, nil
}

// splitZone strips a trailing zone token and returns the location it names.
// Text without a recognizable zone is read in UTC.
func splitZone(text string) (string, *time.Location, error) {
	idx := strings.LastIndexAny(text, " \t")
	if idx < 0 {
		return text, time.UTC, nil
	}
	body, token := strings.TrimSpace(text[:idx]), text[idx+1:]

	if loc, ok := fixedZones[strings.ToUpper(token)]; ok {
		return body, loc, nil
	}
	if name, ok := regionZones[strings.ToUpper(token)]; ok {
		loc, err := time.LoadLocation(name)
		if err != nil {
			return "", nil, fmt.Errorf("failed to load time zone %s: %w", name, err)
		}
		return body, loc, nil
	}
	if strings.Contains(token, "/") && !strings.ContainsAny(token, "0123456789") {
		loc, err := time.LoadLocation(token)
		if err != nil {
			return "", nil, fmt.Errorf("unknown time zone %q", token)
		}
		return body, loc, nil
	}

	return text, time.UTC, nil
}
