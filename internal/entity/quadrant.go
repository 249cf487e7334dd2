// Package entity converts raw extracted parameters (priority words, date
// strings, owner names) into canonical values.
package entity

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Quadrant is an Eisenhower-matrix classification.
type Quadrant string

const (
	UrgentImportant       Quadrant = "urgent-important"
	NotUrgentImportant    Quadrant = "not_urgent-important"
	UrgentNotImportant    Quadrant = "urgent-not_important"
	NotUrgentNotImportant Quadrant = "not_urgent-not_important"

	// DefaultQuadrant is used whenever the input does not resolve.
	DefaultQuadrant = NotUrgentImportant
)

var quadrantLabels = map[Quadrant]string{
	UrgentImportant:       "重要且紧急",
	NotUrgentImportant:    "重要不紧急",
	UrgentNotImportant:    "紧急不重要",
	NotUrgentNotImportant: "不重要不紧急",
}

// Quadrants lists the four canonical values.
func Quadrants() []Quadrant {
	return []Quadrant{UrgentImportant, NotUrgentImportant, UrgentNotImportant, NotUrgentNotImportant}
}

// Valid reports whether q is one of the four canonical values.
func (q Quadrant) Valid() bool {
	_, ok := quadrantLabels[q]
	return ok
}

// Label returns the display label stored in the task table.
func (q Quadrant) Label() string {
	if l, ok := quadrantLabels[q]; ok {
		return l
	}
	return quadrantLabels[DefaultQuadrant]
}

type priorityWord struct {
	word     string
	quadrant Quadrant
}

// priorityWords maps priority vocabulary in Chinese and English to
// quadrants. Multi-rune Chinese words also match inside a longer segment;
// everything else must be a whole token.
var priorityWords = []priorityWord{
	{"重要且紧急", UrgentImportant},
	{"紧急且重要", UrgentImportant},
	{"紧急重要", UrgentImportant},
	{"紧急", UrgentImportant},
	{"加急", UrgentImportant},
	{"马上", UrgentImportant},
	{"立刻", UrgentImportant},
	{"立即", UrgentImportant},
	{"火急", UrgentImportant},
	{"急", UrgentImportant},
	{"高", UrgentImportant},
	{"urgent", UrgentImportant},
	{"asap", UrgentImportant},
	{"critical", UrgentImportant},
	{"high", UrgentImportant},
	{"p0", UrgentImportant},

	{"重要不紧急", NotUrgentImportant},
	{"不紧急", NotUrgentImportant},
	{"不急", NotUrgentImportant},
	{"重要", NotUrgentImportant},
	{"中", NotUrgentImportant},
	{"important", NotUrgentImportant},
	{"medium", NotUrgentImportant},
	{"p1", NotUrgentImportant},

	{"紧急不重要", UrgentNotImportant},
	{"不重要但紧急", UrgentNotImportant},
	{"p2", UrgentNotImportant},

	{"不重要不紧急", NotUrgentNotImportant},
	{"不紧急不重要", NotUrgentNotImportant},
	{"不重要", NotUrgentNotImportant},
	{"有空再说", NotUrgentNotImportant},
	{"低", NotUrgentNotImportant},
	{"low", NotUrgentNotImportant},
	{"someday", NotUrgentNotImportant},
	{"p3", NotUrgentNotImportant},
}

var (
	wholeWords  map[string]Quadrant
	infixWords  []priorityWord // longest first
	labelLookup map[string]Quadrant
)

func init() {
	wholeWords = make(map[string]Quadrant, len(priorityWords))
	for _, pw := range priorityWords {
		wholeWords[pw.word] = pw.quadrant
		if isInfixWord(pw.word) {
			infixWords = append(infixWords, pw)
		}
	}
	sort.SliceStable(infixWords, func(i, j int) bool {
		return utf8.RuneCountInString(infixWords[i].word) > utf8.RuneCountInString(infixWords[j].word)
	})

	labelLookup = make(map[string]Quadrant, 8)
	for q, l := range quadrantLabels {
		labelLookup[string(q)] = q
		labelLookup[l] = q
	}
}

func isInfixWord(w string) bool {
	if utf8.RuneCountInString(w) < 2 {
		return false
	}
	for _, r := range w {
		if r < 0x2E80 {
			return false
		}
	}
	return true
}

// ParseQuadrant resolves a canonical key, a table label or a priority word.
func ParseQuadrant(s string) (Quadrant, bool) {
	s = strings.TrimSpace(s)
	if q, ok := labelLookup[s]; ok {
		return q, true
	}
	if q, ok := wholeWords[strings.ToLower(s)]; ok {
		return q, true
	}
	return "", false
}

// NormalizeQuadrant is ParseQuadrant with DefaultQuadrant for anything
// unresolved, so the result is always canonical.
func NormalizeQuadrant(s string) Quadrant {
	if q, ok := ParseQuadrant(s); ok {
		return q
	}
	return DefaultQuadrant
}

// ScanPriority looks for priority words in one token. A token that is
// itself a priority word is consumed whole. Otherwise Chinese priority
// words are cut out of the token; when several occur the last one wins.
// rest is what remains of the token.
func ScanPriority(token string) (q Quadrant, rest string, found bool) {
	if q, ok := wholeWords[strings.ToLower(token)]; ok {
		return q, "", true
	}

	var sb strings.Builder
	for i := 0; i < len(token); {
		matched := false
		for _, pw := range infixWords {
			if strings.HasPrefix(token[i:], pw.word) {
				q, found, matched = pw.quadrant, true, true
				i += len(pw.word)
				break
			}
		}
		if !matched {
			_, size := utf8.DecodeRuneInString(token[i:])
			sb.WriteString(token[i : i+size])
			i += size
		}
	}
	return q, sb.String(), found
}
