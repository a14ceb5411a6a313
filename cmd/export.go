package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civicwatch/watchboard/internal/export"
	"github.com/civicwatch/watchboard/internal/store"
	"github.com/civicwatch/watchboard/internal/tender"
)

var (
	exportOut    string
	exportScope  string
	exportSource string
	exportQuery  string
	exportMax    int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export tenders to an xlsx file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		// Page through the listing with the same keyset the API uses.
		var (
			rows   []tender.Tender
			cursor store.TenderCursor
		)
		for len(rows) < exportMax {
			page, err := st.ListTenders(ctx, store.TenderFilter{
				Scope:  exportScope,
				Source: exportSource,
				Query:  exportQuery,
				Limit:  100,
				Cursor: cursor,
			})
			if err != nil {
				return err
			}
			rows = append(rows, page...)
			if len(page) < 100 {
				break
			}
			last := page[len(page)-1]
			cursor = store.TenderCursor{AnnouncedAt: last.AnnouncedAt, BidNo: last.BidNo}
		}
		if len(rows) > exportMax {
			rows = rows[:exportMax]
		}

		if err := export.WriteTenders(exportOut, rows); err != nil {
			return err
		}
		zap.L().Info("export written", zap.String("path", exportOut), zap.Int("rows", len(rows)))
		fmt.Printf("wrote %d rows to %s\n", len(rows), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "tenders.xlsx", "output file")
	exportCmd.Flags().StringVar(&exportScope, "scope", "", "filter by scope (CITY, EDU, OTHER)")
	exportCmd.Flags().StringVar(&exportSource, "source", "", "filter by source")
	exportCmd.Flags().StringVar(&exportQuery, "q", "", "substring filter over title, agency, bid number")
	exportCmd.Flags().IntVar(&exportMax, "max", 5000, "max rows to export")
	rootCmd.AddCommand(exportCmd)
}
