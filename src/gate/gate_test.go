package gate

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTryAcquireTwice(t *testing.T) {
	var g Gate
	assert.True(t, g.TryAcquire())
	assert.False(t, g.TryAcquire())
	assert.True(t, g.Busy())

	g.Release()
	assert.False(t, g.Busy())
	assert.True(t, g.TryAcquire())
}

func TestReleaseIsUnconditional(t *testing.T) {
	var g Gate
	g.Release()
	g.Release()
	assert.True(t, g.TryAcquire())
}

func TestConcurrentAcquireSingleWinner(t *testing.T) {
	var g Gate
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if g.TryAcquire() {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
