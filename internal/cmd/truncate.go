package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hnm/search/internal/search"
)

func (a *app) newTruncateCmd() *cobra.Command {
	var groups []string

	cmd := &cobra.Command{
		Use:   "truncate",
		Short: "Remove all entries, or all entries of the given groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.setup()
			if err != nil {
				return err
			}
			defer e.Close()

			ix := e.indexer()
			var n int64
			if len(groups) > 0 {
				n, err = ix.TruncateGroups(cmd.Context(), groups...)
			} else {
				n, err = ix.Truncate(cmd.Context())
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", n)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&groups, "group", "g", nil, "Only remove entries of this group key (repeatable)")
	return cmd
}

func (a *app) newGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage entry groups",
	}

	var locale, label, labelURL string
	labelCmd := &cobra.Command{
		Use:   "label <group-key>",
		Short: "Set the label and landing page of a group in one locale",
		Example: `  sitesearch group label news --locale en --label News --url https://example.com/news`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.setup()
			if err != nil {
				return err
			}
			defer e.Close()

			err = e.indexer().SetGroupLabel(cmd.Context(), search.GroupLabel{
				GroupKey: args[0],
				Locale:   locale,
				Label:    label,
				URL:      labelURL,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Labeled group %s (%s)\n", args[0], locale)
			return nil
		},
	}
	labelCmd.Flags().StringVarP(&locale, "locale", "l", "", "Locale of the label (required)")
	labelCmd.Flags().StringVar(&label, "label", "", "Label shown with results of the group")
	labelCmd.Flags().StringVar(&labelURL, "url", "", "Landing page of the group")
	_ = labelCmd.MarkFlagRequired("locale")

	cmd.AddCommand(labelCmd)
	return cmd
}
