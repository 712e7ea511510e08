package analysis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	reply  string
	err    error
	prompt string
	data   []byte
}

func (f *fakeClient) QueryVision(_ context.Context, prompt string, data []byte) (string, error) {
	f.prompt, f.data = prompt, data
	return f.reply, f.err
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func writePNG(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(path, append(append([]byte{}, pngMagic...), 1, 2, 3), 0o600))
	return path
}

func TestAnalyzeUsesDefaultPrompt(t *testing.T) {
	client := &fakeClient{reply: `{"answer":"A"}`}
	p := New(client, quiet)

	text, err := p.Analyze(context.Background(), "", writePNG(t))
	require.NoError(t, err)
	assert.Equal(t, `{"answer":"A"}`, text)
	assert.Equal(t, DefaultPrompt, client.prompt)
	assert.Equal(t, pngMagic, client.data[:8])
}

func TestAnalyzeWrapsClientFailure(t *testing.T) {
	p := New(&fakeClient{err: errors.New("quota exhausted")}, quiet)
	_, err := p.Analyze(context.Background(), "p", writePNG(t))
	assert.ErrorIs(t, err, ErrPipeline)
	assert.NotErrorIs(t, err, ErrBadImage)
}

func TestAnalyzeRejectsBadImage(t *testing.T) {
	client := &fakeClient{reply: "A"}
	p := New(client, quiet)

	_, err := p.Analyze(context.Background(), "p", filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, ErrBadImage)

	junk := filepath.Join(t.TempDir(), "junk.png")
	require.NoError(t, os.WriteFile(junk, []byte("GIF89a......"), 0o600))
	_, err = p.Analyze(context.Background(), "p", junk)
	assert.ErrorIs(t, err, ErrBadImage)
	assert.Nil(t, client.data, "client must not be called for unusable images")
}

func TestLoadPrompt(t *testing.T) {
	got, err := LoadPrompt("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPrompt, got)

	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("  answer in JSON  \n"), 0o600))
	got, err = LoadPrompt(path)
	require.NoError(t, err)
	assert.Equal(t, "answer in JSON", got)

	_, err = LoadPrompt(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
