package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hnm/search/internal/search"
)

func (a *app) newSearchCmd() *cobra.Command {
	var (
		locale     string
		groups     []string
		limit      int
		recordStat bool
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search the index",
		Example: `  sitesearch search --locale en fish chips
  sitesearch search --locale de_CH --group news --json wahlen`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.setup()
			if err != nil {
				return err
			}
			defer e.Close()

			text := strings.Join(args, " ")
			hits, err := e.searcher().Search(cmd.Context(), search.Query{
				Text:       text,
				Locale:     locale,
				GroupKeys:  groups,
				Limit:      limit,
				RecordStat: recordStat,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				type result struct {
					Title   string `json:"title"`
					URL     string `json:"url"`
					Snippet string `json:"snippet"`
					Group   string `json:"group,omitempty"`
				}
				results := make([]result, 0, len(hits))
				for i := range hits {
					r := result{
						Title:   hits[i].Title,
						URL:     hits[i].URL,
						Snippet: search.Snippet(&hits[i].Entry, text),
					}
					if hits[i].GroupLabel != nil {
						r.Group = hits[i].GroupLabel.Label
					}
					results = append(results, r)
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			if len(hits) == 0 {
				fmt.Fprintln(out, "No results")
				return nil
			}
			for i := range hits {
				hit := &hits[i]
				title := hit.Title
				if title == "" {
					title = hit.URL
				}
				fmt.Fprintf(out, "%d. %s\n   %s\n", i+1, title, hit.URL)
				if hit.GroupLabel != nil && hit.GroupLabel.Label != "" {
					fmt.Fprintf(out, "   [%s]\n", hit.GroupLabel.Label)
				}
				if snippet := search.Snippet(&hit.Entry, text); snippet != "" {
					fmt.Fprintf(out, "   %s\n", snippet)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&locale, "locale", "l", "", "Locale to search in (required)")
	cmd.Flags().StringSliceVarP(&groups, "group", "g", nil, "Restrict results to group key (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().BoolVar(&recordStat, "stat", false, "Record the search in the statistics")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	_ = cmd.MarkFlagRequired("locale")

	return cmd
}

func (a *app) newStatsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index size, last check and the most frequent searches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.setup()
			if err != nil {
				return err
			}
			defer e.Close()

			stats, err := e.searcher().TopSearches(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			count, err := e.store.CountEntries(cmd.Context())
			if err != nil {
				return err
			}
			lastCheck, err := e.store.GetMeta(cmd.Context(), lastCheckKey)
			if err != nil {
				return err
			}
			if lastCheck == "" {
				lastCheck = "never"
			}
			fmt.Fprintf(out, "Entries: %d\nLast check: %s\n\n", count, lastCheck)

			if len(stats) == 0 {
				fmt.Fprintln(out, "No searches recorded")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TEXT\tSEARCHES\tLAST RESULTS\tLAST SEARCHED")
			for _, s := range stats {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", s.Text, s.SearchAmount, s.ResultAmount, s.LastSearched.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	return cmd
}
