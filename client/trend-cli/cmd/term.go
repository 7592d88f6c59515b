package cmd

import (
	"fmt"
	"net/url"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newTermCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "term [text]",
		Short: "Show a term's sighting count and recent presence sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp termResponse
			if err := getJSON(cmd.Context(), opts, "/api/v1/terms/"+url.PathEscape(args[0]), nil, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  seen in %d polls\n", color.New(color.Bold).Sprint(resp.Text), resp.OccurrenceCount)

			table := newTable(out)
			rows := make([][]string, 0, len(resp.Sessions))
			for _, s := range resp.Sessions {
				closed := color.GreenString("on the board")
				length := time.Since(s.OpenedAt)
				if s.ClosedAt != nil {
					closed = s.ClosedAt.Format(time.DateTime)
					length = s.ClosedAt.Sub(s.OpenedAt)
				}
				rows = append(rows, []string{s.OpenedAt.Format(time.DateTime), closed, length.Round(time.Minute).String()})
			}
			table.Header([]string{"Opened", "Closed", "Length"})
			if err := table.Bulk(rows); err != nil {
				return err
			}
			return table.Render()
		},
	}
}
