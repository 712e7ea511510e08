package corners

import (
	"image"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateSamePositionIsNoop(t *testing.T) {
	var tr Tracker
	require.True(t, tr.Update(TopLeft, Point{X: 10, Y: 20}))
	assert.Equal(t, uint64(1), tr.Revision(TopLeft))

	assert.False(t, tr.Update(TopLeft, Point{X: 10, Y: 20}))
	assert.Equal(t, uint64(1), tr.Revision(TopLeft))
}

func TestZeroPointIsCurrentInitially(t *testing.T) {
	var tr Tracker
	assert.False(t, tr.Update(BottomRight, Point{}))
	assert.Equal(t, uint64(0), tr.Revision(BottomRight))
}

func TestSeedDoesNotCountAsUpdate(t *testing.T) {
	var tr Tracker
	tr.Seed(Point{X: 100, Y: 100}, Point{X: 700, Y: 500})

	assert.Equal(t, 0, tr.UpdatedCount())
	assert.Equal(t, image.Rect(100, 100, 700, 500), tr.Snapshot().Rect())
	assert.False(t, tr.Update(TopLeft, Point{X: 100, Y: 100}))
	assert.True(t, tr.Update(TopLeft, Point{X: 101, Y: 100}))
}

func TestBothUpdatedSinceLastCapture(t *testing.T) {
	var tr Tracker
	assert.False(t, tr.BothUpdatedSinceLastCapture())

	tr.Update(TopLeft, Point{X: 1, Y: 1})
	assert.False(t, tr.BothUpdatedSinceLastCapture())
	assert.Equal(t, 1, tr.UpdatedCount())

	tr.Update(TopLeft, Point{X: 2, Y: 2})
	assert.False(t, tr.BothUpdatedSinceLastCapture(), "two moves of one corner must not trigger")

	tr.Update(BottomRight, Point{X: 50, Y: 60})
	assert.True(t, tr.BothUpdatedSinceLastCapture())
	assert.Equal(t, 2, tr.UpdatedCount())

	tr.MarkConsumed(tr.Snapshot())
	assert.False(t, tr.BothUpdatedSinceLastCapture())
	assert.Equal(t, 0, tr.UpdatedCount())
}

func TestMarkConsumedKeepsLaterRevisionsPending(t *testing.T) {
	var tr Tracker
	tr.Update(TopLeft, Point{X: 1, Y: 1})
	tr.Update(BottomRight, Point{X: 9, Y: 9})
	start := tr.Snapshot()

	// Moves that land while the cycle for start is in flight.
	tr.Update(TopLeft, Point{X: 3, Y: 3})
	require.True(t, tr.ChangedSince(start))

	tr.MarkConsumed(start)
	assert.Equal(t, uint64(1), tr.Consumed(TopLeft))
	assert.Equal(t, uint64(2), tr.Revision(TopLeft))
	assert.Equal(t, 1, tr.UpdatedCount())
	assert.False(t, tr.BothUpdatedSinceLastCapture())

	tr.Update(BottomRight, Point{X: 10, Y: 10})
	assert.True(t, tr.BothUpdatedSinceLastCapture())
}

func TestMarkConsumedNeverMovesBackward(t *testing.T) {
	var tr Tracker
	old := tr.Snapshot()
	tr.Update(TopLeft, Point{X: 1, Y: 1})
	tr.Update(BottomRight, Point{X: 2, Y: 2})
	tr.MarkAllConsumed()

	tr.MarkConsumed(old)
	assert.Equal(t, uint64(1), tr.Consumed(TopLeft))
	assert.Equal(t, uint64(1), tr.Consumed(BottomRight))
}

// Random update sequences: the trigger predicate equals "each corner got a
// position-changing update since the last consume".
func TestTriggerMatchesModel(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var tr Tracker
	var moved [2]bool
	for i := 0; i < 5000; i++ {
		switch rng.Intn(5) {
		case 0:
			tr.MarkAllConsumed()
			moved = [2]bool{}
		default:
			c := Corner(rng.Intn(2))
			p := Point{X: rng.Intn(3), Y: rng.Intn(3)}
			changed := tr.Update(c, p)
			if changed {
				moved[c] = true
			}
		}
		require.Equal(t, moved[0] && moved[1], tr.BothUpdatedSinceLastCapture(), "step %d", i)
		require.LessOrEqual(t, tr.Consumed(TopLeft), tr.Revision(TopLeft))
		require.LessOrEqual(t, tr.Consumed(BottomRight), tr.Revision(BottomRight))
	}
}

func TestSnapshotRectIsCanonical(t *testing.T) {
	var tr Tracker
	tr.Update(TopLeft, Point{X: 100, Y: 80})
	tr.Update(BottomRight, Point{X: 10, Y: 20})
	assert.Equal(t, image.Rect(10, 20, 100, 80), tr.Snapshot().Rect())
}

func TestUnknownCornerIgnored(t *testing.T) {
	var tr Tracker
	assert.False(t, tr.Update(Corner(5), Point{X: 1}))
	assert.Equal(t, "corner(5)", Corner(5).String())
	assert.Equal(t, uint64(0), tr.Revision(Corner(5)))
}
