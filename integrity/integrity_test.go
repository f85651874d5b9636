package integrity

import (
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/errors"
)

const helloMD5 = "5d41402abc4b2a76b9719d911017c592"

func TestHashBytes(t *testing.T) {
	assert.Equal(t, helloMD5, HashBytes([]byte("hello")))
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", HashBytes(nil))
}

func TestHashReader(t *testing.T) {
	hash, n, err := HashReader(strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, helloMD5, hash)
	assert.Equal(t, int64(5), n)
}

func TestHashFile(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/a/hello.txt", []byte("hello"), 0o644))
	v := NewVerifier(fs)

	hash, err := v.HashFile("/a/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, helloMD5, hash)

	_, err = v.HashFile("/a/missing.txt")
	require.Error(t, err)
	assert.True(t, errors.IsIntegrity(err))
	assert.Equal(t, errors.CodeIntegrity, errors.CodeOf(err))
}

func TestVerify(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/hello.txt", []byte("hello"), 0o644))
	v := NewVerifier(fs)

	tests := []struct {
		name     string
		path     string
		expected string
		want     Result
	}{
		{
			name: "no expectation",
			path: "/hello.txt",
			want: Result{Hash: helloMD5, Size: 5, Valid: true},
		},
		{
			name:     "matching expectation",
			path:     "/hello.txt",
			expected: strings.ToUpper(helloMD5),
			want:     Result{Hash: helloMD5, Size: 5, Valid: true},
		},
		{
			name:     "mismatch",
			path:     "/hello.txt",
			expected: "00000000000000000000000000000000",
			want:     Result{Hash: helloMD5, Size: 5, Valid: false},
		},
		{
			name:     "missing file",
			path:     "/nope.txt",
			expected: helloMD5,
			want:     Result{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Verify(tt.path, tt.expected))
		})
	}
}

func TestMatch(t *testing.T) {
	assert.True(t, Match(`"`+helloMD5+`"`, strings.ToUpper(helloMD5)))
	assert.False(t, Match(helloMD5, ""))
}
