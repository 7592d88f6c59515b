package cmd

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newRankCmd(opts *options) *cobra.Command {
	var (
		period string
		date   string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Show terms ranked by presence time for a day, week or month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("period", period)
			if date != "" {
				q.Set("date", date)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}

			var resp rankingResponse
			if err := getJSON(cmd.Context(), opts, "/api/v1/rankings", q, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, color.New(color.Bold).Sprint(resp.Title))
			if len(resp.Items) == 0 {
				fmt.Fprintln(out, "no terms in this period")
				return nil
			}
			top := color.New(color.FgYellow, color.Bold)
			table := newTable(out)
			rows := make([][]string, 0, len(resp.Items))
			for _, it := range resp.Items {
				rank := strconv.Itoa(it.Rank)
				if it.Rank == 1 {
					rank = top.Sprint(rank)
				}
				rows = append(rows, []string{rank, it.Term, it.Duration, strconv.FormatInt(it.Hits, 10), it.Link})
			}
			table.Header([]string{"Rank", "Term", "Duration", "Hits", "Link"})
			if err := table.Bulk(rows); err != nil {
				return err
			}
			return table.Render()
		},
	}
	cmd.Flags().StringVarP(&period, "period", "p", "day", "day, week or month")
	cmd.Flags().StringVarP(&date, "date", "d", "", "anchor date YYYY-MM-DD (default today on the server)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of rows (default server setting)")
	return cmd
}
