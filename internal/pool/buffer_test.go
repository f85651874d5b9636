package pool

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPut(t *testing.T) {
	buf := Get()
	require.NotNil(t, buf)
	assert.Len(t, *buf, CopyBufferSize)

	*buf = (*buf)[:10]
	Put(buf)

	again := Get()
	assert.Len(t, *again, CopyBufferSize)
	Put(again)
}

func TestPutDropsForeignBuffers(t *testing.T) {
	small := make([]byte, 16)
	assert.NotPanics(t, func() {
		Put(&small)
		Put(nil)
	})
}

type failingReader struct{ n int }

func (r *failingReader) Read(p []byte) (int, error) {
	if r.n == 0 {
		return 0, errors.New("disk gone")
	}
	n := min(len(p), r.n)
	r.n -= n
	return n, nil
}

func TestCopy(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{name: "empty", size: 0},
		{name: "smaller than buffer", size: 100},
		{name: "spans buffers", size: 3*CopyBufferSize + 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := strings.Repeat("x", tt.size)
			var dst bytes.Buffer
			n, err := Copy(&dst, strings.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, int64(tt.size), n)
			assert.Equal(t, data, dst.String())
		})
	}

	t.Run("read error", func(t *testing.T) {
		var dst bytes.Buffer
		n, err := Copy(&dst, &failingReader{n: 10})
		require.Error(t, err)
		assert.Equal(t, int64(10), n)
	})
}

func TestCopyConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data := strings.Repeat(string(rune('a'+i)), CopyBufferSize+i)
			var dst bytes.Buffer
			_, err := Copy(&dst, strings.NewReader(data))
			assert.NoError(t, err)
			assert.Equal(t, data, dst.String())
		}(i)
	}
	wg.Wait()
}
