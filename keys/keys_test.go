package keys

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

func TestNamerGenerate(t *testing.T) {
	fixed := func() time.Time { return time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC) }

	tests := []struct {
		name      string
		namer     Namer
		itemID    int64
		fileName  string
		hierarchy string
		want      string
	}{
		{
			name:     "date grouping",
			namer:    Namer{Now: fixed},
			itemID:   123,
			fileName: "paper.pdf",
			want:     "zotero-attachments/2024-03-09/123-paper.pdf",
		},
		{
			name:      "hierarchy grouping",
			namer:     Namer{UseHierarchy: true},
			itemID:    7,
			fileName:  "論文.pdf",
			hierarchy: "Research/ML: Notes",
			want:      "zotero-attachments/Research/ML_ Notes/7-論文.pdf",
		},
		{
			name:     "empty hierarchy",
			namer:    Namer{UseHierarchy: true},
			itemID:   1,
			fileName: "a.txt",
			want:     "zotero-attachments/uncategorized/1-a.txt",
		},
		{
			name:     "custom prefix",
			namer:    Namer{Prefix: "/backups/", Now: fixed},
			itemID:   2,
			fileName: "b.txt",
			want:     "backups/2024-03-09/2-b.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.namer.Generate(tt.itemID, tt.fileName, tt.hierarchy))
		})
	}
}

func TestSanitizeHierarchy(t *testing.T) {
	assert.Equal(t, "a/b_c", SanitizeHierarchy("//a///b?c/"))
	assert.Equal(t, "uncategorized", SanitizeHierarchy("///"))
	assert.Equal(t, "x_y_z", SanitizeHierarchy(`x<y>z`))
}

func TestExtractFileName(t *testing.T) {
	assert.Equal(t, "paper.pdf", ExtractFileName("zotero-attachments/2024-01-01/123-paper.pdf"))
	assert.Equal(t, "notes.txt", ExtractFileName("prefix/notes.txt"))
	assert.Equal(t, "a-b.txt", ExtractFileName("9-a-b.txt"))
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "untitled"},
		{"   ", "untitled"},
		{"C:", "C:"},
		{`a<b>c:d"e|f?g*h.pdf`, "a_b_c_d_e_f_g_h.pdf"},
		{"tab\there.txt", "tab_here.txt"},
		{"a___b", "a_b"},
		{"  .hidden. ", "hidden"},
		{"CON", "_CON"},
		{"lpt3", "_lpt3"},
		{"...", "untitled"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFileName(tt.in))
		})
	}

	long := strings.Repeat("x", 250) + ".pdf"
	got := SanitizeFileName(long)
	assert.Len(t, got, 200)
	assert.True(t, strings.HasSuffix(got, ".pdf"))

	assert.Len(t, SanitizeFileName(strings.Repeat("y", 300)), 200)
}

func TestSafeFileName(t *testing.T) {
	assert.Equal(t, "paper.pdf", SafeFileName("p/2024-01-01/1-paper.pdf", "fallback.pdf"))
	assert.Equal(t, "fallback.pdf", SafeFileName("p/2024-01-01/1-...", "fallback.pdf"))

	got := SafeFileName("p/2024-01-01/1-...", "")
	assert.True(t, strings.HasPrefix(got, "download_"))
}

func TestSanitizeFilePath(t *testing.T) {
	got, err := SanitizeFilePath("/tmp//dir/a?b.pdf")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/dir/a_b.pdf", got)

	got, err = SanitizeFilePath(`C:\Users\me\a|b.pdf`)
	require.NoError(t, err)
	assert.Equal(t, `C:\Users\me\a_b.pdf`, got)

	_, err = SanitizeFilePath("")
	assert.Error(t, err)

	_, err = SanitizeFilePath("/" + strings.Repeat("a/", 130))
	assert.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	keys := []string{
		"zotero-attachments/2024-01-01/1-plain.pdf",
		"zotero-attachments/My Papers/2-with space.pdf",
		"zotero-attachments/研究/3-論文 (final).pdf",
		"a/b%20c/d#e?f&g+h.pdf",
	}
	for _, k := range keys {
		encoded := EncodeForURL(k)
		assert.NotContains(t, encoded, " ")
		assert.Equal(t, strings.Count(k, "/"), strings.Count(encoded, "/"))
		assert.Equal(t, k, DecodeFromURL(encoded))
	}
	assert.Equal(t, "bad%zz", DecodeFromURL("bad%zz"))
}

func TestObjectURL(t *testing.T) {
	tests := []struct {
		name    string
		creds   s3types.Credentials
		want    string
		wantErr bool
	}{
		{
			name:  "aws virtual hosted",
			creds: s3types.Credentials{Provider: s3types.ProviderAWS, BucketName: "bkt"},
			want:  "https://bkt.s3.amazonaws.com/a/b%20c.pdf",
		},
		{
			name:  "r2 path style",
			creds: s3types.Credentials{Provider: s3types.ProviderR2, BucketName: "bkt", Endpoint: "https://acct.r2.cloudflarestorage.com/"},
			want:  "https://acct.r2.cloudflarestorage.com/bkt/a/b%20c.pdf",
		},
		{
			name:  "minio without scheme",
			creds: s3types.Credentials{Provider: s3types.ProviderMinIO, BucketName: "bkt", Endpoint: "localhost:9000"},
			want:  "https://localhost:9000/bkt/a/b%20c.pdf",
		},
		{
			name:    "custom without endpoint",
			creds:   s3types.Credentials{Provider: s3types.ProviderCustom, BucketName: "bkt"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ObjectURL(&tt.creds, "a/b c.pdf")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
