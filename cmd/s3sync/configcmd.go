package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged configuration with secrets redacted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		redacted := cfg.Redacted()
		return output(os.Stdout, redacted, func(w io.Writer) error {
			enc := yaml.NewEncoder(w)
			enc.SetIndent(2)
			if err := enc.Encode(redacted); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		})
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
