package registry

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/errors"
)

func TestInFlight(t *testing.T) {
	r := NewInFlight()

	release, err := r.Acquire("a")
	require.NoError(t, err)
	assert.True(t, r.Active("a"))

	_, err = r.Acquire("a")
	require.Error(t, err)
	assert.True(t, errors.IsUploadInProgress(err))
	assert.Equal(t, errors.CodeUploadInProgress, errors.CodeOf(err))

	releaseB, err := r.Acquire("b")
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	release()
	release()
	assert.False(t, r.Active("a"))
	assert.Equal(t, 1, r.Len())

	again, err := r.Acquire("a")
	require.NoError(t, err)
	again()
	releaseB()
	assert.Equal(t, 0, r.Len())
}

func TestInFlightExclusive(t *testing.T) {
	r := NewInFlight()
	var won atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := r.Acquire("key"); err == nil {
				won.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), won.Load())
}

func TestDownloads(t *testing.T) {
	d := NewDownloads(time.Minute)

	done := d.Start("paper.pdf")
	assert.True(t, d.Downloading("paper.pdf"))
	assert.False(t, d.Downloading("other.pdf"))
	_, recent := d.RecentlyDownloaded("paper.pdf")
	assert.False(t, recent)

	done(true)
	done(true)
	assert.False(t, d.Downloading("paper.pdf"))
	age, recent := d.RecentlyDownloaded("paper.pdf")
	assert.True(t, recent)
	assert.Less(t, age, time.Minute)
}

func TestDownloadsFailedNotRecent(t *testing.T) {
	d := NewDownloads(time.Minute)
	d.Start("a.txt")(false)

	assert.False(t, d.Downloading("a.txt"))
	_, recent := d.RecentlyDownloaded("a.txt")
	assert.False(t, recent)
}

func TestDownloadsOverlapping(t *testing.T) {
	d := NewDownloads(time.Minute)
	first := d.Start("a.txt")
	second := d.Start("a.txt")

	first(true)
	assert.True(t, d.Downloading("a.txt"))
	second(true)
	assert.False(t, d.Downloading("a.txt"))
}

func TestDownloadsWindowExpires(t *testing.T) {
	d := NewDownloads(20 * time.Millisecond)
	d.Start("a.txt")(true)

	_, recent := d.RecentlyDownloaded("a.txt")
	require.True(t, recent)

	assert.Eventually(t, func() bool {
		_, recent := d.RecentlyDownloaded("a.txt")
		return !recent
	}, time.Second, 10*time.Millisecond)
}

func TestDownloadsWindowDisabled(t *testing.T) {
	d := NewDownloads(0)
	d.Start("a.txt")(true)

	_, recent := d.RecentlyDownloaded("a.txt")
	assert.False(t, recent)
}
