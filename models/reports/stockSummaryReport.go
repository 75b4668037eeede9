package reports

import (
	"context"
	"errors"

	"github.com/graintrack/mill_backend/config"
	"github.com/graintrack/mill_backend/models"
	"github.com/graintrack/mill_backend/utils"
	"github.com/shopspring/decimal"
)

type StockSummaryReportResponse struct {
	Commodity    string          `json:"commodity"`
	Variety      string          `json:"variety"`
	OpeningStock decimal.Decimal `json:"openingStock"`
	QtyIn        decimal.Decimal `json:"qtyIn"`
	QtyOut       decimal.Decimal `json:"qtyOut"`
	ClosingStock decimal.Decimal `json:"closingStock"`
}

// GetStockSummaryReport computes the opening/in/out/closing movement per
// commodity+variety for a date range, straight from the ledger.
func GetStockSummaryReport(ctx context.Context, millId string, fromDate models.DateString, toDate models.DateString, commodity *models.Commodity) ([]*StockSummaryReportResponse, error) {

	sqlT := `
WITH Ledger AS (
    SELECT
        st.commodity,
        st.variety,
        SUM(CASE WHEN st.date < @fromDate THEN (CASE WHEN st.direction = 'CREDIT' THEN st.qty ELSE -st.qty END) ELSE 0 END) AS opening_stock,
        SUM(CASE WHEN st.date BETWEEN @fromDate AND @toDate AND st.direction = 'CREDIT' THEN st.qty ELSE 0 END) AS qty_in,
        SUM(CASE WHEN st.date BETWEEN @fromDate AND @toDate AND st.direction = 'DEBIT' THEN st.qty ELSE 0 END) AS qty_out
    FROM stock_transactions st
    WHERE st.mill_id = @millId
      {{- if .commodity }} AND st.commodity = @commodity {{- end }}
    GROUP BY st.commodity, st.variety
)
SELECT
    l.commodity,
    l.variety,
    COALESCE(ROUND(l.opening_stock, 2), 0) AS opening_stock,
    COALESCE(ROUND(l.qty_in, 2), 0) AS qty_in,
    COALESCE(ROUND(l.qty_out, 2), 0) AS qty_out,
    COALESCE(ROUND(l.opening_stock + l.qty_in - l.qty_out, 2), 0) AS closing_stock
FROM Ledger l
ORDER BY l.commodity, l.variety;
`
	if millId == "" {
		return nil, errors.New("mill id is required")
	}
	timezone := models.MillTimezone(ctx, millId)
	if err := fromDate.StartOfDayUTCTime(timezone); err != nil {
		return nil, err
	}
	if err := toDate.EndOfDayUTCTime(timezone); err != nil {
		return nil, err
	}

	commodityValue := ""
	if commodity != nil && *commodity != "" {
		if !commodity.IsValid() {
			return nil, errors.New("invalid commodity")
		}
		commodityValue = string(*commodity)
	}

	sql, err := utils.ExecTemplate(sqlT, map[string]interface{}{
		"commodity": commodityValue,
	})
	if err != nil {
		return nil, err
	}

	// GORM expands named params to positional placeholders per-occurrence.
	// Only include commodity when the placeholder is present, otherwise the
	// driver errors with a placeholder/argument count mismatch.
	args := map[string]interface{}{
		"fromDate": fromDate,
		"toDate":   toDate,
		"millId":   millId,
	}
	if commodityValue != "" {
		args["commodity"] = commodityValue
	}

	var results []*StockSummaryReportResponse
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, args).Scan(&results).Error; err != nil {
		return nil, err
	}

	return results, nil
}
