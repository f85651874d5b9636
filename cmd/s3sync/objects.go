package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/deletion"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <key>...",
	Short: "Delete objects and wait until they are gone",
	Long: `Delete objects from the bucket.

Each deletion is confirmed with a HEAD request and retried with a fixed delay
while the backend still returns the object. Deleting a missing object
succeeds.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

var headCmd = &cobra.Command{
	Use:   "head <key>",
	Short: "Show an object's metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runHead,
}

var listCmd = &cobra.Command{
	Use:   "list [prefix]",
	Short: "List objects under a prefix (default: the sync prefix)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runList,
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the configured credentials can list the bucket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		syncer, cfg, err := newSyncer(cmd.Context())
		if err != nil {
			return err
		}
		if err := syncer.TestConnection(cmd.Context()); err != nil {
			return err
		}
		return output(os.Stdout, map[string]string{"status": "ok", "bucket": cfg.Storage.Bucket}, func(w io.Writer) error {
			_, err := fmt.Fprintln(w, "ok")
			return err
		})
	},
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	syncer, _, err := newSyncer(ctx)
	if err != nil {
		return err
	}

	results := make([]*deletion.Result, 0, len(args))
	var failed error
	for _, key := range args {
		res, err := syncer.Delete(ctx, key)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "delete %s: %v\n", key, err)
			failed = err
		}
	}

	if err := output(os.Stdout, results, func(w io.Writer) error {
		for _, r := range results {
			if _, err := fmt.Fprintf(w, "%s\t%s\tattempts=%d\n", r.Key, r.State, r.Deletes); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}
	return failed
}

func runHead(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	syncer, _, err := newSyncer(ctx)
	if err != nil {
		return err
	}

	md, err := syncer.GetMetadata(ctx, args[0])
	if err != nil {
		return err
	}

	return output(os.Stdout, md, func(w io.Writer) error {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "key\t%s\n", md.Object.Key)
		fmt.Fprintf(tw, "size\t%d\n", md.Object.Size)
		fmt.Fprintf(tw, "etag\t%s\n", md.Object.ETag)
		fmt.Fprintf(tw, "content-type\t%s\n", md.Object.ContentType)
		fmt.Fprintf(tw, "last-modified\t%s\n", md.Object.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(tw, "original-name\t%s\n", md.Custom.OriginalFileName)
		fmt.Fprintf(tw, "upload-date\t%s\n", md.Custom.UploadDate)
		fmt.Fprintf(tw, "md5\t%s\n", md.Custom.MD5Hash)
		fmt.Fprintf(tw, "file-size\t%s\n", md.Custom.FileSize)
		fmt.Fprintf(tw, "metadata-valid\t%t\n", md.Valid)
		return tw.Flush()
	})
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	syncer, _, err := newSyncer(ctx)
	if err != nil {
		return err
	}

	prefix := ""
	if len(args) == 1 {
		prefix = args[0]
	}
	objects, err := syncer.List(ctx, prefix)
	if err != nil {
		return err
	}
	if objects == nil {
		objects = []s3types.StoredObject{}
	}

	return output(os.Stdout, objects, func(w io.Writer) error {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, o := range objects {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", o.LastModified.Format("2006-01-02 15:04:05"), o.Size, o.Key)
		}
		return tw.Flush()
	})
}
