package interpret

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpret(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Result
	}{
		{
			name: "free response field",
			in:   `{"question_type":"free_response","free_response_answer":"42"}`,
			want: Result{Kind: FreeForm, Text: "42"},
		},
		{
			name: "question type is case insensitive",
			in:   `{"question_type":" Free_Response ","free_response_answer":"Paris"}`,
			want: Result{Kind: FreeForm, Text: "Paris"},
		},
		{
			name: "free response falls back to answer",
			in:   `{"question_type":"free_response","free_response_answer":"","answer":"x = 3"}`,
			want: Result{Kind: FreeForm, Text: "x = 3"},
		},
		{
			name: "free response numeric answer",
			in:   `{"question_type":"free_response","answer":12.5}`,
			want: Result{Kind: FreeForm, Text: "12.5"},
		},
		{
			name: "free response with nothing",
			in:   `{"question_type":"free_response","free_response_answer":"  ","answer":null}`,
			want: Result{},
		},
		{
			name: "letter answer",
			in:   `{"answer":"C"}`,
			want: Result{Kind: Letter, Letter: 'C'},
		},
		{
			name: "multiple choice with surrounding whitespace",
			in:   "\n  {\"question_type\":\"multiple_choice\",\"answer\":\"d\"}  \n",
			want: Result{Kind: Letter, Letter: 'D'},
		},
		{
			name: "parenthesised letter",
			in:   `{"answer":"(B)"}`,
			want: Result{Kind: Letter, Letter: 'B'},
		},
		{
			name: "json answer that is not a letter yields none",
			in:   `{"question_type":"multiple_choice","answer":"Paris"}`,
			want: Result{},
		},
		{
			name: "fenced json",
			in:   "Here you go:\n```json\n{\"question_type\":\"multiple_choice\",\"answer\":\"A\"}\n```\nThanks",
			want: Result{Kind: Letter, Letter: 'A'},
		},
		{
			name: "fenced json with nested object",
			in:   "```\n{\"answer\":\"E\",\"meta\":{\"confidence\":0.9}}\n```",
			want: Result{Kind: Letter, Letter: 'E'},
		},
		{
			name: "embedded object in prose",
			in:   `Sure! {"question_type":"free_response","free_response_answer":"use a {brace}"} hope that helps`,
			want: Result{Kind: FreeForm, Text: "use a {brace}"},
		},
		{
			name: "labelled letter in prose",
			in:   "The correct answer is: (B)",
			want: Result{Kind: Letter, Letter: 'B'},
		},
		{
			name: "option label",
			in:   "I would pick option D because it fits",
			want: Result{Kind: Letter, Letter: 'D'},
		},
		{
			name: "choice label with brackets",
			in:   "choice [C] is right",
			want: Result{Kind: Letter, Letter: 'C'},
		},
		{
			name: "lowercase labelled letter",
			in:   "The answer is b",
			want: Result{Kind: Letter, Letter: 'B'},
		},
		{
			name: "lowercase letter in parentheses",
			in:   "Answer: (c)",
			want: Result{Kind: Letter, Letter: 'C'},
		},
		{
			name: "lowercase choice with trailing period",
			in:   "correct choice: d.",
			want: Result{Kind: Letter, Letter: 'D'},
		},
		{
			name: "lowercase standalone letter is not an answer",
			in:   "maybe b, hard to say",
			want: Result{},
		},
		{
			name: "standalone letter token",
			in:   "after reviewing everything, E.",
			want: Result{Kind: Letter, Letter: 'E'},
		},
		{
			name: "broken json falls back to text",
			in:   `{"answer": "B"`,
			want: Result{Kind: Letter, Letter: 'B'},
		},
		{
			name: "noise",
			in:   "lorem ipsum 123 ??? no idea",
			want: Result{},
		},
		{
			name: "empty",
			in:   "",
			want: Result{},
		},
		{
			name: "json array is not an object",
			in:   `["A"]`,
			want: Result{Kind: Letter, Letter: 'A'},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Interpret(tt.in))
		})
	}
}

func TestInterpretNeverPanics(t *testing.T) {
	inputs := []string{
		"{", "}", "{{{{", "```", "```json\n{\n```", `{"answer":`, "\x00\xff", `{"answer":{"x":1}}`,
		"answer:", "option (", `"{"`, `{"a":"\"}"}`,
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { Interpret(in) }, "input %q", in)
	}
}

func TestFirstBraceSpanSkipsStrings(t *testing.T) {
	span, ok := firstBraceSpan(`x {"a":"}"} y`)
	assert.True(t, ok)
	assert.Equal(t, `{"a":"}"}`, span)

	_, ok = firstBraceSpan(`{"a":1`)
	assert.False(t, ok)
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "C", Result{Kind: Letter, Letter: 'C'}.String())
	assert.Equal(t, "42", Result{Kind: FreeForm, Text: "42"}.String())
	assert.Equal(t, "", Result{}.String())
}
