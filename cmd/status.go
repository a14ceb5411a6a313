package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent ingest runs and row counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		total, err := st.CountTenders(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("tenders: %d\n\n", total)

		entries, err := st.ListIngests(ctx, statusLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no ingest runs recorded")
			return nil
		}

		fmt.Printf("%-6s %-20s %-28s %-10s %8s %8s  %s\n",
			"ID", "SOURCE", "WINDOW", "STATUS", "FETCHED", "UPSERTED", "STARTED")
		for _, e := range entries {
			window := ""
			if e.Window != nil {
				window = *e.Window
			}
			fmt.Printf("%-6d %-20s %-28s %-10s %8d %8d  %s\n",
				e.ID, e.Source, window, e.Status, e.Fetched, e.Upserted,
				e.StartedAt.Format("2006-01-02 15:04:05"))
			if e.Error != nil {
				fmt.Printf("       error: %s\n", *e.Error)
			}
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "max runs to show")
	rootCmd.AddCommand(statusCmd)
}
