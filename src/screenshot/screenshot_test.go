package screenshot

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-answer-llm/src/corners"
)

type fakeGrabber struct {
	displays []image.Rectangle
	err      error
	captured []image.Rectangle
}

func (f *fakeGrabber) Displays() []image.Rectangle { return f.displays }

func (f *fakeGrabber) CaptureRect(rect image.Rectangle) (*image.RGBA, error) {
	f.captured = append(f.captured, rect)
	if f.err != nil {
		return nil, f.err
	}
	img := image.NewRGBA(rect)
	img.Set(rect.Min.X, rect.Min.Y, color.White)
	return img, nil
}

func TestClamp(t *testing.T) {
	primary := image.Rect(0, 0, 1920, 1080)
	secondary := image.Rect(1920, 0, 3840, 1080)

	tests := []struct {
		name     string
		rect     image.Rectangle
		displays []image.Rectangle
		want     image.Rectangle
		wantErr  bool
	}{
		{"inside", image.Rect(10, 10, 100, 100), []image.Rectangle{primary}, image.Rect(10, 10, 100, 100), false},
		{"reversed corners", image.Rect(100, 100, 10, 10), []image.Rectangle{primary}, image.Rect(10, 10, 100, 100), false},
		{"partial overlap clamped", image.Rect(-50, -50, 100, 100), []image.Rectangle{primary}, image.Rect(0, 0, 100, 100), false},
		{"spanning picks larger share", image.Rect(1900, 0, 2100, 50), []image.Rectangle{primary, secondary}, image.Rect(1920, 0, 2100, 50), false},
		{"zero width", image.Rect(10, 10, 10, 100), []image.Rectangle{primary}, image.Rectangle{}, true},
		{"zero height", image.Rect(10, 10, 100, 10), []image.Rectangle{primary}, image.Rectangle{}, true},
		{"outside", image.Rect(5000, 5000, 5100, 5100), []image.Rectangle{primary}, image.Rectangle{}, true},
		{"no displays", image.Rect(0, 0, 10, 10), nil, image.Rectangle{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Clamp(tt.rect, tt.displays)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrRegionInvalid))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCaptureWritesPNG(t *testing.T) {
	g := &fakeGrabber{displays: []image.Rectangle{image.Rect(0, 0, 800, 600)}}
	c := NewCapturer(Options{Dir: t.TempDir(), Grabber: g, ReadyTimeout: time.Second, ReadyPoll: 10 * time.Millisecond})

	img, err := c.Capture(context.Background(), corners.Point{X: 700, Y: 500}, corners.Point{X: 900, Y: 650})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(700, 500, 800, 600), img.Rect)
	assert.Equal(t, []image.Rectangle{img.Rect}, g.captured)
	assert.True(t, isReady(img.Path))
	_, err = os.Stat(img.Path + ".part")
	assert.True(t, os.IsNotExist(err))
}

func TestCaptureRejectsDegenerateRegion(t *testing.T) {
	g := &fakeGrabber{displays: []image.Rectangle{image.Rect(0, 0, 800, 600)}}
	c := NewCapturer(Options{Dir: t.TempDir(), Grabber: g})

	_, err := c.Capture(context.Background(), corners.Point{X: 5, Y: 5}, corners.Point{X: 5, Y: 50})
	assert.ErrorIs(t, err, ErrRegionInvalid)
	assert.Empty(t, g.captured)
}

func TestCaptureGrabFailure(t *testing.T) {
	g := &fakeGrabber{displays: []image.Rectangle{image.Rect(0, 0, 800, 600)}, err: errors.New("no X server")}
	c := NewCapturer(Options{Dir: t.TempDir(), Grabber: g})

	_, err := c.Capture(context.Background(), corners.Point{}, corners.Point{X: 10, Y: 10})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRegionInvalid)
}

func TestWaitReadyTimesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.png")
	start := time.Now()
	err := WaitReady(context.Background(), path, 100*time.Millisecond, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrImageNotReady)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestWaitReadyRejectsNonPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.png")
	require.NoError(t, os.WriteFile(path, []byte("not a png at all"), 0o600))
	err := WaitReady(context.Background(), path, 50*time.Millisecond, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrImageNotReady)
}

func TestWaitReadySeesLateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "late.png")
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = writeFileAtomic(path, append(append([]byte{}, pngMagic...), 0, 0, 0, 0))
	}()
	require.NoError(t, WaitReady(context.Background(), path, 2*time.Second, 20*time.Millisecond))
}
