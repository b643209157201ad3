package dedupe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(ttl time.Duration, max int) (*Cache, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(ttl, max)
	c.now = clk.now
	return c, clk
}

func TestSeen_FirstThenDuplicate(t *testing.T) {
	c, _ := newTestCache(time.Minute, 10)
	assert.False(t, c.Seen("a"))
	assert.True(t, c.Seen("a"))
	assert.False(t, c.Seen("b"))
	assert.Equal(t, 2, c.Len())
}

func TestSeen_Expires(t *testing.T) {
	c, clk := newTestCache(time.Minute, 10)
	assert.False(t, c.Seen("a"))

	clk.advance(59 * time.Second)
	assert.True(t, c.Seen("a"))

	// The duplicate refreshed the key.
	clk.advance(59 * time.Second)
	assert.True(t, c.Seen("a"))

	clk.advance(time.Minute)
	assert.False(t, c.Seen("a"))
}

func TestLen_DropsExpired(t *testing.T) {
	c, clk := newTestCache(time.Minute, 10)
	c.Seen("a")
	clk.advance(30 * time.Second)
	c.Seen("b")
	clk.advance(40 * time.Second)
	assert.Equal(t, 1, c.Len())
}

func TestSeen_EvictsOldestAtCapacity(t *testing.T) {
	c, _ := newTestCache(time.Hour, 3)
	for _, k := range []string{"a", "b", "c"} {
		c.Seen(k)
	}
	c.Seen("a") // refresh a, b is now oldest
	c.Seen("d")

	assert.Equal(t, 3, c.Len())
	assert.False(t, c.Seen("b"), "b should have been evicted")
}

func TestSeen_Unbounded(t *testing.T) {
	c, _ := newTestCache(time.Hour, 0)
	for i := 0; i < 100; i++ {
		c.Seen(fmt.Sprint(i))
	}
	assert.Equal(t, 100, c.Len())
}

func TestSeen_ConcurrentSameKey(t *testing.T) {
	c := New(time.Minute, 100)
	var fresh atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !c.Seen("same") {
				fresh.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), fresh.Load())
}
