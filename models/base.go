package models

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/graintrack/mill_backend/utils"
	"gorm.io/gorm"
)

// QueueStockPosting implements the transactional outbox for ledger postings:
// it writes the posting record inside the caller's DB transaction but does NOT
// touch the ledger. Posting is performed asynchronously by the dispatcher
// after commit, so a document is never committed without its posting intent.
func QueueStockPosting(ctx context.Context, tx *gorm.DB, millId string, refModel StockReferenceType, refId int, req *StockPostingRequest) error {

	if !req.Direction.IsValid() {
		return utils.NewValidationError("invalid transaction direction")
	}
	if !req.Commodity.IsValid() {
		return utils.NewValidationError("invalid commodity")
	}
	if req.Qty.IsNegative() {
		return utils.NewValidationError("quantity cannot be negative")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	record := StockPostingRecord{
		MillId:        millId,
		RefModel:      refModel,
		RefId:         refId,
		Payload:       payload,
		Status:        StockPostingStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
