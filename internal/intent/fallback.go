package intent

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/alekspetrov/dobby/internal/entity"
)

// Query words. ASCII entries match whole words, the rest match anywhere.
var queryKeywords = []string{
	"query", "my tasks", "list", "todo list",
	"我的任务", "任务列表", "查任务", "有什么任务",
}

// Short query words that also occur inside task names ("跟进设计进度"),
// so they count only when they open the message.
var queryPrefixes = []string{"查询", "进度", "还有啥"}

var (
	donePrefixPattern = regexp.MustCompile(`(?i)^(?:done|finished|closed)\s+(.+)$`)
	doneCJKPattern    = regexp.MustCompile(`^(?:已完成|完成|搞定)[\s:：]+(.+)$`)
	doneSuffixPattern = regexp.MustCompile(`^(.+?)\s*(?:已完成|完成了|搞定了|修好了|上线了)$`)

	remindPattern = regexp.MustCompile(`(?i)\bremind me(?: to)?\b|\breminder\b`)
	tokenSplit    = regexp.MustCompile(`[\s，。！？；、：,;]+`)
)

var nativeTriggersCJK = []string{"提醒我", "建个任务", "群任务"}

var asciiWordPatterns = map[string]*regexp.Regexp{}

func init() {
	for _, kw := range queryKeywords {
		if isASCII(kw) {
			asciiWordPatterns[kw] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
		}
	}
}

// FallbackInput is what the deterministic rules see.
type FallbackInput struct {
	// Text is the message with mention placeholders removed.
	Text string
	// MentionNames are the display names of non-bot mentions, in order.
	MentionNames []string
}

// Fallback classifies a message without a model. Rules run in order:
// query keywords, then a completion phrase, then task creation from the
// remaining tokens. Only empty text yields ActionUnknown.
func Fallback(in FallbackInput) *Result {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return Unknown()
	}

	if isQuery(text) {
		return Query()
	}

	if kw, ok := completionKeyword(text); ok {
		return NewUpdate(kw, DefaultTargetStatus)
	}

	return NewCreate(scanCreate(text, in.MentionNames))
}

func isQuery(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range queryKeywords {
		if re, ok := asciiWordPatterns[kw]; ok {
			if re.MatchString(lower) {
				return true
			}
			continue
		}
		if strings.Contains(lower, kw) {
			return true
		}
	}
	for _, p := range queryPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

func completionKeyword(text string) (string, bool) {
	for _, re := range []*regexp.Regexp{donePrefixPattern, doneCJKPattern, doneSuffixPattern} {
		if m := re.FindStringSubmatch(text); m != nil {
			if kw := strings.TrimSpace(m[1]); kw != "" {
				return kw, true
			}
		}
	}
	return "", false
}

func scanCreate(text string, mentionNames []string) CreateParams {
	p := CreateParams{
		Quadrant: entity.DefaultQuadrant,
		Owners:   append([]string(nil), mentionNames...),
	}

	body := text
	if remindPattern.MatchString(body) {
		p.CreateNativeTask = true
		body = remindPattern.ReplaceAllString(body, " ")
	}
	for _, trigger := range nativeTriggersCJK {
		if strings.Contains(body, trigger) {
			p.CreateNativeTask = true
			body = strings.ReplaceAll(body, trigger, " ")
		}
	}

	var kept []string
	for _, token := range tokenSplit.Split(body, -1) {
		if token == "" {
			continue
		}
		if entity.IsDateToken(token) {
			p.DueDate = token
			continue
		}
		if q, rest, found := entity.ScanPriority(token); found {
			p.Quadrant = q
			token = rest
		}
		if token != "" {
			kept = append(kept, token)
		}
	}

	p.TaskName = joinTokens(kept)
	if p.TaskName == "" {
		p.TaskName = text
	}
	return p
}

// joinTokens glues Chinese tokens together and separates everything else
// with a space.
func joinTokens(tokens []string) string {
	var sb strings.Builder
	for i, t := range tokens {
		if i > 0 {
			prev, _ := utf8.DecodeLastRuneInString(tokens[i-1])
			next, _ := utf8.DecodeRuneInString(t)
			if !(isHan(prev) && isHan(next)) {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(t)
	}
	return sb.String()
}

func isHan(r rune) bool {
	return unicode.Is(unicode.Han, r)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
