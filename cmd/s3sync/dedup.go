package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/dedup"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Inspect duplicated content under the sync prefix",
}

var dedupStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize duplicated content",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		syncer, _, err := newSyncer(cmd.Context())
		if err != nil {
			return err
		}
		stats, err := syncer.DuplicateStatistics(cmd.Context())
		if err != nil {
			return err
		}
		return output(os.Stdout, stats, func(w io.Writer) error {
			_, err := fmt.Fprintf(w,
				"files: %d\nduplicate groups: %d\nduplicate files: %d\nreclaimable bytes: %d\nskipped: %d\n",
				stats.TotalFiles, stats.DuplicateGroups, stats.DuplicateFiles, stats.SavedSpace, stats.Skipped)
			return err
		})
	},
}

var dedupGroupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List objects sharing the same content",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		syncer, _, err := newSyncer(cmd.Context())
		if err != nil {
			return err
		}
		groups, err := syncer.DuplicateGroups(cmd.Context())
		if err != nil {
			return err
		}
		if groups == nil {
			groups = []dedup.Group{}
		}
		return output(os.Stdout, groups, func(w io.Writer) error {
			for _, g := range groups {
				fmt.Fprintf(w, "%s (%d objects)\n", g.MD5, len(g.Objects))
				for _, o := range g.Objects {
					fmt.Fprintf(w, "  %s\t%d\n", o.Key, o.Size)
				}
			}
			return nil
		})
	},
}

var dedupFindCmd = &cobra.Command{
	Use:   "find <file>",
	Short: "Find a stored object with the same content as a local file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		syncer, _, err := newSyncer(cmd.Context())
		if err != nil {
			return err
		}
		path, err := absPath(args[0])
		if err != nil {
			return err
		}
		key, found, err := syncer.FindDuplicate(cmd.Context(), path)
		if err != nil {
			return err
		}
		res := struct {
			Found bool   `json:"found"`
			Key   string `json:"key,omitempty"`
		}{found, key}
		return output(os.Stdout, res, func(w io.Writer) error {
			if !found {
				_, err := fmt.Fprintln(w, "no duplicate")
				return err
			}
			_, err := fmt.Fprintln(w, key)
			return err
		})
	},
}

func init() {
	dedupCmd.AddCommand(dedupStatsCmd)
	dedupCmd.AddCommand(dedupGroupsCmd)
	dedupCmd.AddCommand(dedupFindCmd)
}
