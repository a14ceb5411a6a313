package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/civicwatch/watchboard/internal/ingest"
)

var enrichLimit int

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Re-derive missing amounts from stored raw payloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		sum, err := ingest.Enrich(cmd.Context(), st, enrichLimit)
		if err != nil {
			return err
		}
		fmt.Printf("scanned=%d updated=%d skipped=%d\n", sum.Scanned, sum.Updated, sum.Skipped)
		return nil
	},
}

func init() {
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 50, "max rows to scan")
	rootCmd.AddCommand(enrichCmd)
}
