// Package coordinator decides when to capture, runs capture cycles on a
// worker, and commits their outcome to the shared answer state.
//
// One mutex guards the corner tracker, the gate and the answer cell together.
// Workers never hold it during capture or analysis; they take it only to
// commit. Icon refreshes render from a snapshot taken under the same lock.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"screen-answer-llm/src/analysis"
	"screen-answer-llm/src/answer"
	"screen-answer-llm/src/corners"
	"screen-answer-llm/src/gate"
	"screen-answer-llm/src/icon"
	"screen-answer-llm/src/interpret"
	"screen-answer-llm/src/requestlog"
	"screen-answer-llm/src/screenshot"
	"screen-answer-llm/src/worker"
)

// ErrCaptureUnavailable is returned when a cycle is already in flight. It is
// an expected outcome; the caller must not retry.
var ErrCaptureUnavailable = errors.New("capture unavailable: a cycle is already in flight")

// DefaultDeadline bounds one cycle (capture plus analysis).
const DefaultDeadline = 60 * time.Second

// Capturer grabs the rectangle between two corners to an image file.
type Capturer interface {
	Capture(ctx context.Context, topLeft, bottomRight corners.Point) (screenshot.Image, error)
}

// Analyzer asks the model about an image file.
type Analyzer interface {
	Analyze(ctx context.Context, prompt, imagePath string) (string, error)
}

// Display shows a rendered icon. Show is called with the coordinator's lock
// held and must not call back into the coordinator.
type Display interface {
	Show(iconData []byte, tooltip string)
}

// Submitter runs a job asynchronously or reports that it cannot.
type Submitter interface {
	Submit(ctx context.Context, run worker.Job) bool
}

// Options wires a Coordinator to its collaborators.
type Options struct {
	Capturer Capturer
	Analyzer Analyzer
	Pool     Submitter
	Display  Display
	Sink     requestlog.Sink
	Render   func(icon.Descriptor) []byte
	Prompt   string
	Deadline time.Duration
	Logger   *slog.Logger

	// TopLeft and BottomRight seed the starting rectangle. Seeding does not
	// count as a corner update.
	TopLeft     corners.Point
	BottomRight corners.Point
}

// Coordinator is the process-wide capture state. Create one with New and
// pass the handle around.
type Coordinator struct {
	capturer Capturer
	analyzer Analyzer
	pool     Submitter
	display  Display
	sink     requestlog.Sink
	render   func(icon.Descriptor) []byte
	prompt   string
	deadline time.Duration
	logger   *slog.Logger

	inflight sync.WaitGroup

	mu        sync.Mutex
	tracker   corners.Tracker
	gate      gate.Gate
	cell      answer.Cell
	lastError string
	cycles    int
}

// New builds a Coordinator. Capturer, Analyzer and Pool are required.
func New(opts Options) (*Coordinator, error) {
	if opts.Capturer == nil || opts.Analyzer == nil || opts.Pool == nil {
		return nil, errors.New("coordinator: capturer, analyzer and pool are required")
	}
	c := &Coordinator{
		capturer: opts.Capturer,
		analyzer: opts.Analyzer,
		pool:     opts.Pool,
		display:  opts.Display,
		sink:     opts.Sink,
		render:   opts.Render,
		prompt:   opts.Prompt,
		deadline: opts.Deadline,
		logger:   opts.Logger,
	}
	if c.sink == nil {
		c.sink = requestlog.Discard{}
	}
	if c.render == nil {
		c.render = icon.Render
	}
	if c.deadline <= 0 {
		c.deadline = DefaultDeadline
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.tracker.Seed(opts.TopLeft, opts.BottomRight)
	return c, nil
}

// UpdateResult reports what a corner update did.
type UpdateResult struct {
	// Changed is false when the corner was already at the point.
	Changed bool
	// Triggered is true when the update started a cycle.
	Triggered bool
	// Rejected is true when both corners were ready but a cycle was in flight.
	Rejected bool
}

// UpdateCorner moves one corner. A real move drops any cached answer right
// away and, once both corners have moved since the last capture, tries to
// start a cycle.
func (c *Coordinator) UpdateCorner(corner corners.Corner, p corners.Point) UpdateResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.tracker.Update(corner, p) {
		return UpdateResult{}
	}
	res := UpdateResult{Changed: true}
	c.cell.ClearAnswer()
	c.logger.Debug("corner updated", "corner", corner, "x", p.X, "y", p.Y, "revision", c.tracker.Revision(corner))

	if c.tracker.BothUpdatedSinceLastCapture() {
		if err := c.startLocked("corners"); err != nil {
			res.Rejected = true
		} else {
			res.Triggered = true
		}
	}
	c.refreshLocked()
	return res
}

// CaptureNow starts a cycle for the current corners regardless of whether
// they moved.
func (c *Coordinator) CaptureNow() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.startLocked("explicit")
	c.refreshLocked()
	return err
}

// Reset drops a cached answer and the last error. Corner revisions are
// untouched.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cell.ClearAnswer()
	c.lastError = ""
	c.refreshLocked()
}

// Refresh pushes the current state to the display.
func (c *Coordinator) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshLocked()
}

// Snapshot returns a consistent copy of the state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Wait blocks until every started cycle has committed.
func (c *Coordinator) Wait() {
	c.inflight.Wait()
}

func (c *Coordinator) startLocked(reason string) error {
	if !c.gate.TryAcquire() {
		c.logger.Info("capture rejected, cycle in flight", "trigger", reason)
		return ErrCaptureUnavailable
	}
	start := c.tracker.Snapshot()
	id := requestlog.NewID()
	ctx, cancel := context.WithTimeout(context.Background(), c.deadline)

	c.inflight.Add(1)
	submitted := c.pool.Submit(ctx, func(ctx context.Context) {
		defer c.inflight.Done()
		defer cancel()
		c.runCycle(ctx, id, start)
	})
	if !submitted {
		c.inflight.Done()
		cancel()
		c.gate.Release()
		c.logger.Warn("capture rejected, worker unavailable", "trigger", reason)
		return fmt.Errorf("%w: worker unavailable", ErrCaptureUnavailable)
	}

	c.cell.SetLoading()
	c.cycles++
	c.logger.Info("capture cycle started", "cycle", id, "trigger", reason, "rect", start.Rect())
	return nil
}

// outcome is what a worker hands back to commit.
type outcome struct {
	consume bool
	result  interpret.Result
	err     error
}

func (c *Coordinator) runCycle(ctx context.Context, id string, start corners.Snapshot) {
	began := time.Now()
	entry := requestlog.Entry{ID: id, At: began, Rect: start.Rect()}

	out := c.execute(ctx, start, &entry)
	c.commit(id, start, out)

	entry.Duration = time.Since(began)
	entry.OK = out.err == nil
	if out.err != nil {
		entry.Payload = out.err.Error()
	}
	entry.Answer = out.result.String()
	if err := c.sink.Append(context.Background(), entry); err != nil {
		c.logger.Warn("request log append failed", "cycle", id, "error", err)
	}
}

func (c *Coordinator) execute(ctx context.Context, start corners.Snapshot, entry *requestlog.Entry) outcome {
	img, err := c.capturer.Capture(ctx, start.Points[corners.TopLeft], start.Points[corners.BottomRight])
	if err != nil {
		return outcome{err: fmt.Errorf("capture failed: %w", err)}
	}
	entry.ImagePath = img.Path
	entry.Rect = img.Rect

	text, err := c.analyzer.Analyze(ctx, c.prompt, img.Path)
	if err != nil {
		// An image the pipeline could not even load never reached the model.
		return outcome{consume: !errors.Is(err, analysis.ErrBadImage), err: err}
	}
	entry.Payload = text
	return outcome{consume: true, result: interpret.Interpret(text)}
}

func (c *Coordinator) commit(id string, start corners.Snapshot, out outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if out.consume {
		c.tracker.MarkConsumed(start)
	}
	stale := c.tracker.ChangedSince(start)
	c.cell.Clear()
	switch {
	case out.err != nil:
		c.lastError = out.err.Error()
		c.logger.Warn("capture cycle failed", "cycle", id, "consumed", out.consume, "error", out.err)
	case stale:
		c.lastError = ""
		c.logger.Info("capture cycle finished for a moved rectangle, answer dropped", "cycle", id)
	default:
		c.lastError = ""
		switch out.result.Kind {
		case interpret.Letter:
			if err := c.cell.SetLetter(out.result.Letter); err != nil {
				c.logger.Warn("letter answer rejected", "cycle", id, "error", err)
			}
		case interpret.FreeForm:
			c.cell.SetFreeForm(out.result.Text)
		}
		c.logger.Info("capture cycle finished", "cycle", id, "answer_kind", out.result.Kind)
	}
	c.gate.Release()
	c.refreshLocked()
}

func (c *Coordinator) snapshotLocked() Snapshot {
	ts := c.tracker.Snapshot()
	return Snapshot{
		Answer:      c.cell.Current(c.tracker.UpdatedCount()),
		Busy:        c.gate.Busy(),
		TopLeft:     ts.Points[corners.TopLeft],
		BottomRight: ts.Points[corners.BottomRight],
		Revisions:   ts.Revisions,
		Consumed:    [2]uint64{c.tracker.Consumed(corners.TopLeft), c.tracker.Consumed(corners.BottomRight)},
		LastError:   c.lastError,
		Cycles:      c.cycles,
	}
}

func (c *Coordinator) refreshLocked() {
	if c.display == nil {
		return
	}
	s := c.snapshotLocked()
	c.display.Show(c.render(s.Descriptor()), s.Tooltip())
}
