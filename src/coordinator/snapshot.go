package coordinator

import (
	"fmt"
	"strings"

	"screen-answer-llm/src/answer"
	"screen-answer-llm/src/corners"
	"screen-answer-llm/src/icon"
)

const tooltipTitle = "Screen Answer"

// Snapshot is a consistent view of the coordinator at one instant.
type Snapshot struct {
	Answer      answer.State
	Busy        bool
	TopLeft     corners.Point
	BottomRight corners.Point
	Revisions   [2]uint64
	Consumed    [2]uint64
	LastError   string
	Cycles      int
}

// Descriptor maps the snapshot onto the icon renderer's input.
func (s Snapshot) Descriptor() icon.Descriptor {
	return icon.Descriptor{State: s.Answer, Busy: s.Busy}
}

// AnswerText is the text a user would copy: the letter or the free-form
// answer, empty otherwise.
func (s Snapshot) AnswerText() string {
	switch s.Answer.Kind {
	case answer.Letter:
		return string(s.Answer.Letter)
	case answer.FreeForm:
		return s.Answer.Text
	default:
		return ""
	}
}

// Tooltip is a short one-line description for the tray.
func (s Snapshot) Tooltip() string {
	var b strings.Builder
	b.WriteString(tooltipTitle)
	b.WriteString(" - ")
	switch s.Answer.Kind {
	case answer.FreeForm:
		b.WriteString("free-form: ")
		b.WriteString(truncate(s.Answer.Text, 80))
	default:
		b.WriteString(s.Answer.String())
	}
	if s.LastError != "" {
		b.WriteString(" (last error: ")
		b.WriteString(truncate(s.LastError, 60))
		b.WriteString(")")
	}
	return b.String()
}

// Status is a multi-line report for the resident's STATUS command.
func (s Snapshot) Status() string {
	var b strings.Builder
	fmt.Fprintf(&b, "state: %s\n", s.Answer)
	fmt.Fprintf(&b, "busy: %t\n", s.Busy)
	fmt.Fprintf(&b, "top-left: %d,%d (rev %d, consumed %d)\n", s.TopLeft.X, s.TopLeft.Y, s.Revisions[corners.TopLeft], s.Consumed[corners.TopLeft])
	fmt.Fprintf(&b, "bottom-right: %d,%d (rev %d, consumed %d)\n", s.BottomRight.X, s.BottomRight.Y, s.Revisions[corners.BottomRight], s.Consumed[corners.BottomRight])
	fmt.Fprintf(&b, "cycles: %d\n", s.Cycles)
	if text := s.AnswerText(); text != "" {
		fmt.Fprintf(&b, "answer: %s\n", text)
	}
	if s.LastError != "" {
		fmt.Fprintf(&b, "last error: %s\n", s.LastError)
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
