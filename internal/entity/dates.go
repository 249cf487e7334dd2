package entity

import (
	"regexp"
	"strings"
	"time"
)

var dateTokenPattern = regexp.MustCompile(`^\d{4}-\d{1,2}-\d{1,2}$`)

var dueLayouts = []string{
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006-1-2T15:04:05",
	"2006-1-2",
	"2006/1/2",
}

// DateParser converts absolute date strings into epoch milliseconds in a
// fixed location.
type DateParser struct {
	loc *time.Location
}

// NewDateParser creates a parser for loc (Local when nil).
func NewDateParser(loc *time.Location) *DateParser {
	if loc == nil {
		loc = time.Local
	}
	return &DateParser{loc: loc}
}

// Location returns the parser's time zone.
func (p *DateParser) Location() *time.Location {
	return p.loc
}

// ParseDue parses YYYY-MM-DD with an optional HH:MM[:SS] part. Relative
// expressions are not handled here; they only arrive already resolved.
func (p *DateParser) ParseDue(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, layout := range dueLayouts {
		if t, err := time.ParseInLocation(layout, s, p.loc); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

// FormatDate renders epoch milliseconds as YYYY-MM-DD.
func (p *DateParser) FormatDate(ms int64) string {
	return time.UnixMilli(ms).In(p.loc).Format("2006-01-02")
}

// FormatDue renders epoch milliseconds as a date, adding the clock time
// when it is not midnight.
func (p *DateParser) FormatDue(ms int64) string {
	t := time.UnixMilli(ms).In(p.loc)
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04")
}

// IsDateToken reports whether token is a literal, valid YYYY-MM-DD date.
func IsDateToken(token string) bool {
	if !dateTokenPattern.MatchString(token) {
		return false
	}
	_, err := time.Parse("2006-1-2", token)
	return err == nil
}
