package metadata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

func TestBuild(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := Build("/home/user/論文 final.pdf", 1234, "abc123", now)

	assert.Equal(t, map[string]string{
		KeyOriginalFileName: EncodeHeaderValue("論文 final.pdf"),
		KeyUploadDate:       "2024-05-01T12:00:00.000Z",
		KeyMD5Hash:          "abc123",
		KeyFileSize:         "1234",
	}, m)

	for _, v := range m {
		for _, r := range v {
			assert.Less(t, r, rune(0x80), "header values must be ASCII")
		}
	}

	assert.Equal(t, EncodeHeaderValue(UnknownFileName), Build("/dir/", 0, "x", now)[KeyOriginalFileName])
	assert.Equal(t, EncodeHeaderValue("w.doc"), Build(`C:\docs\w.doc`, 0, "x", now)[KeyOriginalFileName])
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]string
		want s3types.CustomMetadata
	}{
		{
			name: "lower-cased keys",
			in: map[string]string{
				"originalfilename": EncodeHeaderValue("résumé.pdf"),
				"uploaddate":       "2024-01-01T00:00:00.000Z",
				"md5hash":          "d41d8cd98f00b204e9800998ecf8427e",
				"filesize":         "0",
			},
			want: s3types.CustomMetadata{
				OriginalFileName: "résumé.pdf",
				UploadDate:       "2024-01-01T00:00:00.000Z",
				MD5Hash:          "d41d8cd98f00b204e9800998ecf8427e",
				FileSize:         "0",
			},
		},
		{
			name: "legacy camelCase and plain name",
			in: map[string]string{
				"originalFileName": "report-v2.pdf",
				"uploadDate":       "2023-01-01",
				"md5Hash":          "ff",
				"fileSize":         "10",
			},
			want: s3types.CustomMetadata{
				OriginalFileName: "report-v2.pdf",
				UploadDate:       "2023-01-01",
				MD5Hash:          "ff",
				FileSize:         "10",
			},
		},
		{
			name: "nil map",
			in:   nil,
			want: s3types.CustomMetadata{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.in))
		})
	}
}

func TestValid(t *testing.T) {
	full := Build("/a.txt", 1, "ff", time.Now())
	assert.True(t, Valid(full))

	for _, k := range []string{KeyOriginalFileName, KeyUploadDate, KeyMD5Hash, KeyFileSize} {
		partial := map[string]string{}
		for kk, v := range full {
			if kk != k {
				partial[kk] = v
			}
		}
		assert.False(t, Valid(partial), "missing %s", k)
	}
	assert.False(t, Valid(nil))
}

func TestEqual(t *testing.T) {
	a := map[string]string{"md5hash": "ff", "filesize": "1", "uploaddate": "x"}
	b := map[string]string{"md5Hash": "ff", "fileSize": "1", "uploaddate": "y"}
	c := map[string]string{"md5hash": "ee", "filesize": "1"}

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(a, nil))
}

func TestHeaderValueRoundTrip(t *testing.T) {
	for _, s := range []string{"plain.txt", "日本語のファイル.pdf", "a b+c/d.pdf", ""} {
		assert.Equal(t, s, DecodeHeaderValue(EncodeHeaderValue(s)))
	}
	assert.Equal(t, "not base64!", DecodeHeaderValue("not base64!"))
	assert.Equal(t, "abcd", DecodeHeaderValue("abcd"))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "no metadata", Describe(nil))
	m := Build("/x/y.pdf", 3, "ff", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	assert.Equal(t, "file: y.pdf, uploaded: 2024-01-02T03:04:05.000Z, size: 3 bytes, md5: ff", Describe(m))
}
