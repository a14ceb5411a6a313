// Package export writes tender listings to spreadsheet files for the
// manual review workflows that still live in Excel.
package export

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/civicwatch/watchboard/internal/tender"
)

var headerRow = []string{
	"공고번호", "공고명", "공고기관", "수요기관", "공고일", "개찰일시",
	"예산", "기초금액", "추정가격", "구분", "출처",
}

// WriteTenders writes one sheet with a header row and one row per tender.
func WriteTenders(path string, tenders []tender.Tender) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("tenders")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	row := sheet.AddRow()
	for _, h := range headerRow {
		row.AddCell().SetString(h)
	}

	for _, t := range tenders {
		row := sheet.AddRow()
		row.AddCell().SetString(t.BidNo)
		row.AddCell().SetString(strOrEmpty(t.Title))
		row.AddCell().SetString(strOrEmpty(t.Agency))
		row.AddCell().SetString(strOrEmpty(t.DemandOrg))
		row.AddCell().SetString(t.AnnouncedDate())
		row.AddCell().SetString(strOrEmpty(t.OpenAt))
		row.AddCell().SetString(amountOrEmpty(t.Budget))
		row.AddCell().SetString(amountOrEmpty(t.BaseAmount))
		row.AddCell().SetString(amountOrEmpty(t.EstimatedPrice))
		row.AddCell().SetString(strOrEmpty(t.Scope))
		row.AddCell().SetString(strOrEmpty(t.Source))
	}

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func amountOrEmpty(f *float64) string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%.0f", *f)
}
