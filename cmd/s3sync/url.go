package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

var urlStrategy string

var urlCmd = &cobra.Command{
	Use:   "url",
	Short: "Build and parse public object URLs",
}

var urlResolveCmd = &cobra.Command{
	Use:   "resolve <key>",
	Short: "Print the public URL of a key",
	Long: `Print the public URL of a key.

The auto strategy tries the custom domain, then the provider development
domain, then the canonical endpoint/bucket/key URL.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		syncer, _, err := newSyncer(cmd.Context())
		if err != nil {
			return err
		}
		u, err := syncer.ResolvePublicURL(cmd.Context(), args[0], s3types.URLStrategy(urlStrategy))
		if err != nil {
			return err
		}
		return printURL(u)
	},
}

var urlExtractCmd = &cobra.Command{
	Use:   "extract <url>",
	Short: "Recover the key from a public URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		syncer, _, err := newSyncer(cmd.Context())
		if err != nil {
			return err
		}
		key, ok := syncer.ExtractKeyFromURL(cmd.Context(), args[0])
		if !ok {
			return errors.New("no key found in url")
		}
		return output(os.Stdout, map[string]string{"key": key}, func(w io.Writer) error {
			_, err := fmt.Fprintln(w, key)
			return err
		})
	},
}

var urlEnableDevCmd = &cobra.Command{
	Use:   "enable-dev [key]",
	Short: "Enable the provider development domain for the bucket",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		syncer, _, err := newSyncer(cmd.Context())
		if err != nil {
			return err
		}
		key := ""
		if len(args) == 1 {
			key = args[0]
		}
		u, err := syncer.EnableDevDomain(cmd.Context(), key)
		if err != nil {
			return err
		}
		return printURL(u)
	},
}

var urlCustomStatusCmd = &cobra.Command{
	Use:   "custom-status [domain]",
	Short: "Show whether a custom domain is connected to the bucket",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		syncer, _, err := newSyncer(cmd.Context())
		if err != nil {
			return err
		}
		domain := ""
		if len(args) == 1 {
			domain = args[0]
		}
		report, err := syncer.CustomDomainStatus(cmd.Context(), domain)
		if err != nil {
			return err
		}
		return output(os.Stdout, report, func(w io.Writer) error {
			fmt.Fprintf(w, "connected: %t\nstatus: %s\n", report.Connected, report.Status)
			for _, e := range report.Errors {
				fmt.Fprintf(w, "error: %s\n", e)
			}
			return nil
		})
	},
}

func init() {
	urlResolveCmd.Flags().StringVar(&urlStrategy, "as", "", "strategy for this URL: auto, custom, providerDev, disabled (default: configured strategy)")

	urlCmd.AddCommand(urlResolveCmd)
	urlCmd.AddCommand(urlExtractCmd)
	urlCmd.AddCommand(urlEnableDevCmd)
	urlCmd.AddCommand(urlCustomStatusCmd)
}

func printURL(u string) error {
	return output(os.Stdout, map[string]string{"url": u}, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, u)
		return err
	})
}
