package cmd

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hnm/search/internal/fetch"
	"github.com/hnm/search/internal/search"
)

func (a *app) newIndexCmd() *cobra.Command {
	var (
		file          string
		locale        string
		group         string
		allowParams   []string
		noTitle       bool
		noDescription bool
		noKeywords    bool
		headers       []string
	)

	cmd := &cobra.Command{
		Use:   "index <url>",
		Short: "Add or replace the index entry of a page",
		Long: `Index scans a page and stores it under its URL, replacing any entry
with the same URL. The page is downloaded unless --file names a local copy.`,
		Example: `  sitesearch index --locale de_CH --group news https://example.com/news/1
  sitesearch index --file page.html --locale en https://example.com/about`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.setup()
			if err != nil {
				return err
			}
			defer e.Close()

			pageURL := args[0]
			var document string
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}
				document = string(data)
			} else {
				custom, err := parseHeaders(headers)
				if err != nil {
					return err
				}
				username, password := e.cfg.GetBasicAuthCredentials()
				client := fetch.NewClient(e.cfg.UserAgent, e.cfg.Fetch.Timeout,
					fetch.WithBasicAuth(username, password),
					fetch.WithHeaders(e.cfg.Fetch.Headers),
					fetch.WithHeaders(custom),
				)
				defer client.Close()

				page, err := client.Download(cmd.Context(), pageURL)
				if err != nil {
					return fmt.Errorf("failed to download %s: %w", pageURL, err)
				}
				if page.StatusCode != http.StatusOK {
					return fmt.Errorf("failed to download %s: status %d", pageURL, page.StatusCode)
				}
				if page.Truncated {
					e.logger.Warn("page truncated", "url", page.URL)
				}
				e.logger.Debug("downloaded page",
					"url", page.URL,
					"first_byte", page.Timing.FirstByte,
					"total", page.Timing.Total,
					"bytes", len(page.HTML),
				)
				document = page.HTML
			}

			entry, err := e.indexer().AddFromHTML(cmd.Context(), pageURL, document, locale, search.HTMLOptions{
				GroupKey:           group,
				AllowedQueryParams: allowParams,
				AutoTitle:          !noTitle,
				AutoDescription:    !noDescription,
				AutoKeywords:       !noKeywords,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %s (id %d)\n", entry.URL, entry.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the page from a local file instead of downloading it")
	cmd.Flags().StringVarP(&locale, "locale", "l", "", "Locale of the page, e.g. en or de_CH (required)")
	cmd.Flags().StringVarP(&group, "group", "g", "", "Group key of the page")
	cmd.Flags().StringSliceVar(&allowParams, "allow-param", nil, "Query parameter to keep in the entry URL (repeatable)")
	cmd.Flags().BoolVar(&noTitle, "no-title", false, "Do not take the title from the page")
	cmd.Flags().BoolVar(&noDescription, "no-description", false, "Do not take the meta description from the page")
	cmd.Flags().BoolVar(&noKeywords, "no-keywords", false, "Do not take the meta keywords from the page")
	cmd.Flags().StringSliceVarP(&headers, "header", "H", nil, "Custom HTTP header in 'Name: Value' format (repeatable)")
	_ = cmd.MarkFlagRequired("locale")

	return cmd
}

func (a *app) newRemoveCmd() *cobra.Command {
	var allowParams []string

	cmd := &cobra.Command{
		Use:   "remove <url>",
		Short: "Remove the index entry of a page",
		Long: `Remove deletes the entry stored under the given URL. When no entry has
exactly that URL, query parameters are dropped the way index drops them;
pass the same --allow-param values used when indexing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.setup()
			if err != nil {
				return err
			}
			defer e.Close()

			removed, err := e.indexer().Remove(cmd.Context(), args[0], allowParams...)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("no entry for %s", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&allowParams, "allow-param", nil, "Query parameter kept when the entry was indexed (repeatable)")
	return cmd
}

// parseHeaders converts "Name: Value" strings into a header map.
func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, want 'Name: Value'", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}
