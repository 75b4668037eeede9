package reports

import (
	"bytes"
	"context"
	"time"

	"github.com/graintrack/mill_backend/models"
	"github.com/graintrack/mill_backend/utils"
	"github.com/xuri/excelize/v2"
)

// ExportStockSummaryXlsx renders the stock summary report as an xlsx sheet
// and returns the file bytes for download.
func ExportStockSummaryXlsx(ctx context.Context, millId string, fromDate models.DateString, toDate models.DateString, commodity *models.Commodity) (*bytes.Buffer, error) {
	rows, err := GetStockSummaryReport(ctx, millId, fromDate, toDate, commodity)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Sheet1"

	headers := []string{"Commodity", "Variety", "Opening Stock (Qtl)", "Qty In (Qtl)", "Qty Out (Qtl)", "Closing Stock (Qtl)"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}

	for i, row := range rows {
		values := []interface{}{
			row.Commodity,
			row.Variety,
			row.OpeningStock.InexactFloat64(),
			row.QtyIn.InexactFloat64(),
			row.QtyOut.InexactFloat64(),
			row.ClosingStock.InexactFloat64(),
		}
		for j, v := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	// footer: generation time in the mill's local timezone
	generatedAt := utils.ConvertToLocalTime(time.Now().UTC(), models.MillTimezone(ctx, millId))
	footerCell, err := excelize.CoordinatesToCellName(1, len(rows)+3)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellValue(sheet, footerCell, "Generated at "+generatedAt.Format("2006-01-02 15:04")); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, utils.NewInternalError("failed to generate export")
	}
	return buf, nil
}
