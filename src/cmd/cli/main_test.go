package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLegacyArgs(t *testing.T) {
	got := normalizeLegacyArgs([]string{"cli", "analyze", "-file", "x.png", "-json", "-api-key-path=/k", "-v"})
	assert.Equal(t, []string{"cli", "analyze", "--file", "x.png", "--json", "--api-key-path=/k", "-v"}, got)
}

func writeReply(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reply.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestInterpretLetter(t *testing.T) {
	path := writeReply(t, "```json\n{\"question_type\":\"multiple_choice\",\"answer\":\"C\"}\n```")
	var out bytes.Buffer

	err := runWithArgs([]string{"cli", "interpret", "--file", path}, strings.NewReader(""), &out, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "C\n", out.String())
}

func TestInterpretFromStdinAsJSON(t *testing.T) {
	reply := `{"question_type":"free_response","free_response_answer":"Paris"}`
	var out bytes.Buffer

	err := runWithArgs([]string{"cli", "interpret", "--file", "-", "--json"}, strings.NewReader(reply), &out, &bytes.Buffer{})
	require.NoError(t, err)

	var res AnalysisResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, "free-form", res.Kind)
	assert.Equal(t, "Paris", res.Answer)
	assert.Equal(t, reply, res.Raw)
	assert.Equal(t, "-", res.Source)
	assert.NotEmpty(t, res.Timestamp)
}

func TestInterpretUnparseable(t *testing.T) {
	path := writeReply(t, "i cannot read this image")

	err := runWithArgs([]string{"cli", "interpret", "--file", path}, strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no answer found")
}

func TestInterpretUnparseableJSONReportsNone(t *testing.T) {
	path := writeReply(t, "i cannot read this image")
	var out bytes.Buffer

	err := runWithArgs([]string{"cli", "interpret", "--file", path, "--json"}, strings.NewReader(""), &out, &bytes.Buffer{})
	require.NoError(t, err)

	var res AnalysisResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, "none", res.Kind)
	assert.Empty(t, res.Answer)
}

func TestInterpretMissingFile(t *testing.T) {
	err := runWithArgs([]string{"cli", "interpret", "--file", filepath.Join(t.TempDir(), "nope.txt")}, strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read file")
}

func TestAnalyzeRequiresFile(t *testing.T) {
	err := runWithArgs([]string{"cli", "analyze"}, strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file")
}

func TestSpoolStdin(t *testing.T) {
	path, err := spoolStdin(strings.NewReader("png-bytes"))
	require.NoError(t, err)
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}
