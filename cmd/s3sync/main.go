package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/config"
)

var (
	version = "dev"

	cfgFiles   []string
	jsonOutput bool
	noProgress bool
)

var rootCmd = &cobra.Command{
	Use:     "s3sync",
	Version: version,
	Short:   "Sync attachment files with S3-compatible object storage",
	Long: `s3sync uploads, downloads and manages attachment files in an
S3-compatible bucket (AWS S3, Cloudflare R2, MinIO).

Uploads skip content that is already stored under the sync prefix and verify
the stored MD5 afterwards. Downloads verify the written file and remove it
when the hash does not match.

Configuration is read from s3sync.yaml, S3SYNC_* environment variables and
flags, in increasing order of precedence. Static access keys are read from
S3SYNC_STORAGE_ACCESS_KEY_ID and S3SYNC_STORAGE_SECRET_ACCESS_KEY or from an
AWS Secrets Manager secret named by --secret-id.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFiles, cmd.Flags())
		if err != nil {
			return err
		}
		setupLogging(cfg.Log)
		startMetricsServer(cfg.Metrics.Listen)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringSliceVarP(&cfgFiles, "config", "c", nil, "config files, later files override earlier ones (default: ./s3sync.yaml)")
	flags.BoolVar(&jsonOutput, "json", false, "output as JSON")
	flags.BoolVar(&noProgress, "no-progress", false, "do not draw progress bars")

	flags.String("provider", "", "storage provider: aws, r2, minio, custom (env: S3SYNC_STORAGE_PROVIDER)")
	flags.String("bucket", "", "bucket name (env: S3SYNC_STORAGE_BUCKET)")
	flags.String("endpoint", "", "S3 endpoint URL, required for non-AWS providers (env: S3SYNC_STORAGE_ENDPOINT)")
	flags.String("region", "", "bucket region (env: S3SYNC_STORAGE_REGION)")
	flags.String("secret-id", "", "read credentials from this Secrets Manager secret (env: S3SYNC_STORAGE_SECRET_ID)")
	flags.String("prefix", "", "sync key prefix (default: zotero-attachments)")
	flags.Bool("use-hierarchy", false, "group keys by hierarchy label instead of date")
	flags.Int("concurrency", 0, "multipart parts in flight (default: 4)")
	flags.Bool("disable-checksum", false, "turn off response checksum validation for every download")
	flags.String("strategy", "", "public URL strategy: auto, custom, providerDev, disabled")
	flags.String("custom-domain", "", "custom domain serving the bucket")
	flags.String("api-token", "", "provider management API token (env: S3SYNC_URL_API_TOKEN)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text, json")
	flags.String("metrics-listen", "", "serve Prometheus metrics on this address")
	flags.Int("delete-retries", 0, "delete confirmations before giving up (default: 3)")
	flags.Duration("delete-retry-wait", 0, "wait between delete attempts (default: 1s)")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(headCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(urlCmd)
	rootCmd.AddCommand(dedupCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
