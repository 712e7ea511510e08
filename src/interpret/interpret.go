// Package interpret turns raw model output into a structured answer. It does
// no I/O and never fails: text it cannot read yields None.
package interpret

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind tags a Result.
type Kind int

const (
	None Kind = iota
	Letter
	FreeForm
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Letter:
		return "letter"
	case FreeForm:
		return "free-form"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is the interpreted answer.
type Result struct {
	Kind   Kind
	Letter rune
	Text   string
}

func (r Result) String() string {
	switch r.Kind {
	case Letter:
		return string(r.Letter)
	case FreeForm:
		return r.Text
	default:
		return ""
	}
}

// FreeResponseType is the question_type value that selects a free-form answer.
const FreeResponseType = "free_response"

var (
	fencedBlock = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*\\s*\\n?(.*?)```")
	labeled     = regexp.MustCompile(`\b(?i:answer|option|choice)\b(?:\s+(?i:is))?\s*[:=\-]?\s*[\(\[]?([A-Za-z])[\)\]]?(?:[^A-Za-z0-9]|$)`)
	standalone  = regexp.MustCompile(`(?:^|[^A-Za-z0-9])([A-Z])(?:[^A-Za-z0-9]|$)`)
)

// Interpret reads text as a model response.
func Interpret(text string) Result {
	if obj, ok := extractObject(text); ok {
		return fromObject(obj)
	}
	return fromPlainText(text)
}

// extractObject walks the JSON fallbacks in order: the whole text, the
// braces inside a fenced code block, then the first balanced {...} anywhere.
func extractObject(text string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(text)
	if obj, ok := parseObject(trimmed); ok {
		return obj, true
	}
	for _, m := range fencedBlock.FindAllStringSubmatch(trimmed, -1) {
		body := m[1]
		start := strings.Index(body, "{")
		end := strings.LastIndex(body, "}")
		if start < 0 || end <= start {
			continue
		}
		if obj, ok := parseObject(body[start : end+1]); ok {
			return obj, true
		}
	}
	if span, ok := firstBraceSpan(trimmed); ok {
		if obj, ok := parseObject(span); ok {
			return obj, true
		}
	}
	return nil, false
}

func parseObject(s string) (map[string]any, bool) {
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// firstBraceSpan returns the balanced {...} starting at the first '{',
// skipping braces inside JSON string literals.
func firstBraceSpan(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func fromObject(obj map[string]any) Result {
	answer := field(obj, "answer")
	if strings.EqualFold(field(obj, "question_type"), FreeResponseType) {
		if free := field(obj, "free_response_answer"); free != "" {
			return Result{Kind: FreeForm, Text: free}
		}
		if answer != "" {
			return Result{Kind: FreeForm, Text: answer}
		}
		return Result{}
	}
	if r, ok := singleLetter(answer); ok {
		return Result{Kind: Letter, Letter: r}
	}
	return Result{}
}

// field renders a JSON value as trimmed text; null and containers are empty.
func field(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// singleLetter accepts "C", "c", "(C)", "C)" and "C." as the letter C.
func singleLetter(s string) (rune, bool) {
	s = strings.Trim(s, " \t()[].:")
	if len(s) != 1 {
		return 0, false
	}
	r := rune(strings.ToUpper(s)[0])
	if r < 'A' || r > 'Z' {
		return 0, false
	}
	return r, true
}

func fromPlainText(text string) Result {
	if m := labeled.FindStringSubmatch(text); m != nil {
		return Result{Kind: Letter, Letter: rune(strings.ToUpper(m[1])[0])}
	}
	if m := standalone.FindStringSubmatch(text); m != nil {
		return Result{Kind: Letter, Letter: rune(m[1][0])}
	}
	return Result{}
}
