package models

import (
	"context"
	"time"

	"github.com/graintrack/mill_backend/config"
	"github.com/graintrack/mill_backend/utils"
	"github.com/shopspring/decimal"
)

type StockPostingStatus string

const (
	StockPostingStatusPending    StockPostingStatus = "PENDING"
	StockPostingStatusProcessing StockPostingStatus = "PROCESSING"
	StockPostingStatusFailed     StockPostingStatus = "FAILED"
	StockPostingStatusDead       StockPostingStatus = "DEAD"
	StockPostingStatusPosted     StockPostingStatus = "POSTED"
)

// StockPostingRequest is the immutable snapshot of what a source document
// wants posted to the ledger. Serialized into the outbox row at write time so
// later edits to the document never change what gets posted.
type StockPostingRequest struct {
	Date      time.Time            `json:"date"`
	Commodity Commodity            `json:"commodity"`
	Variety   string               `json:"variety"`
	Direction TransactionDirection `json:"direction"`
	Qty       decimal.Decimal      `json:"qty"`
	Bags      int                  `json:"bags"`
	Remarks   string               `json:"remarks"`
	CreatedBy int                  `json:"createdBy"`
}

// StockPostingRecord is the transactional-outbox row for ledger postings.
// It is written inside the source document's transaction; the dispatcher
// picks it up after commit and performs the actual posting.
type StockPostingRecord struct {
	ID            int                `gorm:"primary_key" json:"id"`
	MillId        string             `gorm:"index;size:36;not null" json:"mill_id"`
	RefModel      StockReferenceType `gorm:"index:idx_stock_posting_ref,priority:1;size:20;not null" json:"ref_model"`
	RefId         int                `gorm:"index:idx_stock_posting_ref,priority:2;not null" json:"ref_id"`
	Payload       []byte             `gorm:"type:json" json:"payload"`
	Status        StockPostingStatus `gorm:"index;size:20;default:PENDING" json:"status"`
	Attempts      int                `gorm:"default:0" json:"attempts"`
	NextAttemptAt *time.Time         `json:"next_attempt_at"`
	LockedAt      *time.Time         `json:"locked_at"`
	LockedBy      *string            `gorm:"size:64" json:"locked_by"`
	LastError     *string            `gorm:"type:text" json:"last_error"`
	CorrelationId string             `gorm:"size:64" json:"correlation_id"`
	CreatedAt     time.Time          `gorm:"autoCreateTime" json:"created_at"`
	PostedAt      *time.Time         `json:"posted_at"`
}

// GetStockPostingStatus returns the latest outbox row for a document,
// so the UI can show whether its ledger posting has landed.
func GetStockPostingStatus(ctx context.Context, millId string, refModel StockReferenceType, refId int) (*StockPostingRecord, error) {
	if millId == "" {
		return nil, utils.NewValidationError("mill id is required")
	}

	var record StockPostingRecord
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("mill_id = ? AND ref_model = ? AND ref_id = ?", millId, refModel, refId).
		Order("id DESC").
		First(&record).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &record, nil
}

// ReplayStockPosting requeues a FAILED/DEAD outbox row for immediate retry.
// Attempts are reset to zero so a DEAD row gets a fresh retry budget instead
// of being re-marked DEAD on the next claim.
func ReplayStockPosting(ctx context.Context, millId string, recordId int) error {
	if millId == "" || recordId <= 0 {
		return utils.NewValidationError("mill_id and record_id are required")
	}
	record, err := utils.FetchSingleModel[StockPostingRecord](ctx, recordId)
	if err != nil {
		return err
	}
	if record.MillId != millId {
		return utils.ErrorRecordNotFound
	}

	now := time.Now().UTC()
	db := config.GetDB()
	return db.WithContext(ctx).
		Model(&StockPostingRecord{}).
		Where("id = ? AND mill_id = ?", recordId, millId).
		Updates(map[string]interface{}{
			"status":          StockPostingStatusFailed,
			"attempts":        0,
			"next_attempt_at": &now,
			"locked_at":       nil,
			"locked_by":       nil,
			"last_error":      nil,
		}).Error
}
