package s3sync_test

import (
	"context"
	"fmt"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/credentials"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/keys"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/storage"
)

func ExampleSyncer_Upload() {
	ctx := context.Background()
	clock := func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	fs := memfs.New()
	_ = util.WriteFile(fs, "/library/paper.pdf", []byte("%PDF-1.7 example"), 0o644)

	fake := testutil.NewFakeS3()
	store := credentials.NewStore(s3types.Credentials{
		Provider:        s3types.ProviderMinIO,
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		BucketName:      "papers",
		Endpoint:        "http://localhost:9000",
	})

	syncer := s3sync.New(store,
		s3sync.WithFilesystem(fs),
		s3sync.WithClock(clock),
		s3sync.WithKeyNamer(keys.Namer{Now: clock}),
		s3sync.WithStorageFactory(func(_ context.Context, creds *s3types.Credentials, opts ...s3types.Option) (*storage.Client, error) {
			return storage.NewWithAPI(fake, creds, opts...), nil
		}),
	)

	key := syncer.KeyFor(42, "/library/paper.pdf", "")
	first, err := syncer.Upload(ctx, "/library/paper.pdf", key)
	if err != nil {
		fmt.Println("upload failed:", err)
		return
	}
	fmt.Println(first.Status, first.Key)
	fmt.Println(first.Location)

	// The same content under another item id is recognized and not sent again.
	second, err := syncer.Upload(ctx, "/library/paper.pdf", syncer.KeyFor(43, "/library/paper.pdf", ""))
	if err != nil {
		fmt.Println("upload failed:", err)
		return
	}
	fmt.Println(second.Status, second.DuplicateKey == key)

	// Output:
	// uploaded zotero-attachments/2024-03-01/42-paper.pdf
	// http://localhost:9000/papers/zotero-attachments/2024-03-01/42-paper.pdf
	// duplicate true
}
