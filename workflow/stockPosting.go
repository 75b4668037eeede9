package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/graintrack/mill_backend/models"
	"gorm.io/gorm"
)

// ProcessStockPosting performs the actual ledger posting for one outbox row:
// insert the StockTransaction and apply the running-balance delta, in the
// caller's transaction.
//
// Idempotent on (mill_id, ref_model, ref_id): if the ledger already has an
// entry for the document, the row is treated as posted and nothing is written.
func ProcessStockPosting(tx *gorm.DB, rec *models.StockPostingRecord) error {
	if rec == nil {
		return fmt.Errorf("nil posting record")
	}

	var count int64
	if err := tx.Model(&models.StockTransaction{}).
		Where("mill_id = ? AND ref_model = ? AND ref_id = ?", rec.MillId, rec.RefModel, rec.RefId).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		// Already posted (e.g. dispatcher crashed between posting and marking).
		return nil
	}

	var req models.StockPostingRequest
	if err := json.Unmarshal(rec.Payload, &req); err != nil {
		return fmt.Errorf("invalid posting payload: %v", err)
	}

	transaction := models.StockTransaction{
		MillId:    rec.MillId,
		Date:      req.Date,
		Commodity: req.Commodity,
		Variety:   req.Variety,
		Direction: req.Direction,
		Qty:       req.Qty,
		Bags:      req.Bags,
		RefModel:  rec.RefModel,
		RefId:     rec.RefId,
		Remarks:   req.Remarks,
		CreatedBy: req.CreatedBy,
	}
	if err := tx.Create(&transaction).Error; err != nil {
		return err
	}

	return models.ApplyStockSummaryDelta(tx, rec.MillId, req.Commodity, req.Variety, req.Direction, req.Qty, req.Bags)
}
