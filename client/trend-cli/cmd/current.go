package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newCurrentCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show the live board from the latest poll",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp currentResponse
			if err := getJSON(cmd.Context(), opts, "/api/v1/rankings/current", nil, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if resp.UpdatedAt == nil || len(resp.Items) == 0 {
				fmt.Fprintln(out, "no snapshot yet")
				return nil
			}
			fmt.Fprintf(out, "%s %s\n",
				color.New(color.Bold).Sprint("Updated"),
				color.CyanString("%s (%s)", resp.UpdatedAt.Format(time.DateTime), resp.Source))

			table := newTable(out)
			rows := make([][]string, 0, len(resp.Items))
			for _, it := range resp.Items {
				rows = append(rows, []string{strconv.Itoa(it.Position), it.Term})
			}
			table.Header([]string{"#", "Term"})
			if err := table.Bulk(rows); err != nil {
				return err
			}
			return table.Render()
		},
	}
}
