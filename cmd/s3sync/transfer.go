package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

var (
	uploadItemID      int64
	uploadHierarchy   string
	uploadContentType string
	uploadNoDedup     bool
	uploadForce       bool

	downloadNoVerify bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file> [key]",
	Short: "Upload a file",
	Long: `Upload a file to the bucket.

Without a key, the key is derived from --item-id and the file name:
{prefix}/{date}/{item-id}-{name}, or {prefix}/{hierarchy}/{item-id}-{name}
with use_hierarchy enabled.

Examples:
  s3sync upload ./paper.pdf --item-id 42
  s3sync upload ./paper.pdf --item-id 42 --hierarchy "Research/ML"
  s3sync upload ./paper.pdf zotero-attachments/manual/paper.pdf`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runUpload,
}

var downloadCmd = &cobra.Command{
	Use:   "download <key> [destination]",
	Short: "Download an object",
	Long: `Download an object to a file.

When the destination is omitted or is an existing directory, the file name is
derived from the key. The written file is checked against the stored MD5 and
removed when it does not match.

Examples:
  s3sync download zotero-attachments/2024-03-01/42-paper.pdf
  s3sync download zotero-attachments/2024-03-01/42-paper.pdf ./restored.pdf`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDownload,
}

func init() {
	uploadCmd.Flags().Int64Var(&uploadItemID, "item-id", 0, "item identifier used to derive the key")
	uploadCmd.Flags().StringVar(&uploadHierarchy, "hierarchy", "", "hierarchy label used to derive the key")
	uploadCmd.Flags().StringVarP(&uploadContentType, "content-type", "t", "", "override content-type")
	uploadCmd.Flags().BoolVar(&uploadNoDedup, "no-dedup", false, "upload even if identical content is already stored")
	uploadCmd.Flags().BoolVar(&uploadForce, "force", false, "upload even if the file was just downloaded or its type is ignored")

	downloadCmd.Flags().BoolVar(&downloadNoVerify, "no-verify", false, "skip the MD5 check of the written file")
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	syncer, cfg, err := newSyncer(ctx)
	if err != nil {
		return err
	}

	path, err := absPath(args[0])
	if err != nil {
		return err
	}

	var key string
	switch {
	case len(args) == 2:
		key = args[1]
	case cmd.Flags().Changed("item-id"):
		key = syncer.KeyFor(uploadItemID, path, uploadHierarchy)
	default:
		return errors.New("either a key or --item-id is required")
	}

	if !uploadForce {
		if reason, skip := syncer.ShouldSkipUpload(path, key); skip {
			return fmt.Errorf("skipping %s: %s (use --force to upload anyway)", path, reason)
		}
	}

	progress, finish := progressBar("uploading")
	outcome, err := syncer.Upload(ctx, path, key,
		s3sync.WithUploadProgress(progress),
		s3sync.WithCheckDuplicates(cfg.Sync.CheckDuplicates && !uploadNoDedup),
		s3sync.WithContentType(uploadContentType),
	)
	finish()
	if err != nil {
		return err
	}

	return output(os.Stdout, outcome, func(w io.Writer) error {
		switch outcome.Status {
		case s3types.StatusCanceled:
			_, err := fmt.Fprintln(w, "upload canceled")
			return err
		case s3types.StatusDuplicate:
			_, err := fmt.Fprintf(w, "duplicate of %s\n%s\n", outcome.DuplicateKey, outcome.Location)
			return err
		}
		_, err := fmt.Fprintf(w, "uploaded %s (%d bytes, md5 %s)\n%s\n",
			outcome.Key, outcome.Size, outcome.MD5Hash, outcome.Location)
		return err
	})
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	syncer, cfg, err := newSyncer(ctx)
	if err != nil {
		return err
	}

	key := args[0]
	dest := "."
	if len(args) == 2 {
		dest = args[1]
	}
	dest, err = absPath(dest)
	if err != nil {
		return err
	}

	progress, finish := progressBar("downloading")
	opts := []s3types.DownloadOption{
		s3sync.WithDownloadProgress(progress),
		s3sync.WithVerifyIntegrity(cfg.Sync.VerifyIntegrity && !downloadNoVerify),
	}

	var outcome *s3types.DownloadOutcome
	if info, statErr := os.Stat(dest); statErr == nil && info.IsDir() {
		outcome, err = syncer.DownloadToDir(ctx, key, dest, opts...)
	} else {
		outcome, err = syncer.Download(ctx, key, filepath.Clean(dest), opts...)
	}
	finish()
	if err != nil {
		return err
	}

	return output(os.Stdout, outcome, func(w io.Writer) error {
		if outcome.Status == s3types.StatusCanceled {
			_, err := fmt.Fprintln(w, "download canceled")
			return err
		}
		verified := "not verified"
		if outcome.Verified {
			verified = "md5 " + outcome.MD5Hash
		}
		_, err := fmt.Fprintf(w, "downloaded %s to %s (%d bytes, %s)\n", outcome.Key, outcome.Path, outcome.Size, verified)
		return err
	})
}
