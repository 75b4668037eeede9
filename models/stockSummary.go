package models

import (
	"context"
	"errors"
	"time"

	"github.com/graintrack/mill_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockSummary is the running balance per commodity+variety, maintained
// additively as ledger entries land. RebuildStockSummaries recomputes it
// from the ledger when the two drift.
type StockSummary struct {
	ID         int             `gorm:"primary_key" json:"id"`
	MillId     string          `gorm:"index;size:36;not null" json:"millId"`
	Commodity  Commodity       `gorm:"type:enum('Paddy','Rice','Gunny','FRK','Bran');not null" json:"commodity"`
	Variety    string          `gorm:"size:100" json:"variety"`
	CreditQty  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"creditQty"`
	DebitQty   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"debitQty"`
	CurrentQty decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"currentQty"`
	CreditBags int             `gorm:"default:0" json:"creditBags"`
	DebitBags  int             `gorm:"default:0" json:"debitBags"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

func FirstOrCreateStockSummary(tx *gorm.DB, millId string, commodity Commodity, variety string) (*StockSummary, error) {
	stockSummary := StockSummary{
		MillId:    millId,
		Commodity: commodity,
		Variety:   variety,
	}
	// FirstOrCreate will try to find a record matching the conditions, and if it doesn't find one, it will create a new record
	result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("mill_id = ? AND commodity = ? AND variety = ?", millId, commodity, variety).
		FirstOrCreate(&stockSummary)
	if result.Error != nil {
		return nil, result.Error
	}
	return &stockSummary, nil
}

// ApplyStockSummaryDelta adds one ledger entry to the running balance.
// Must run in the same transaction as the ledger insert.
func ApplyStockSummaryDelta(tx *gorm.DB, millId string, commodity Commodity, variety string, direction TransactionDirection, qty decimal.Decimal, bags int) error {
	stockSummary, err := FirstOrCreateStockSummary(tx, millId, commodity, variety)
	if err != nil {
		return err
	}

	if direction == TransactionDirectionCredit {
		return tx.Exec("UPDATE stock_summaries SET credit_qty = credit_qty + ?, credit_bags = credit_bags + ?, current_qty = current_qty + ? WHERE id = ?",
			qty, bags, qty, stockSummary.ID).Error
	}
	return tx.Exec("UPDATE stock_summaries SET debit_qty = debit_qty + ?, debit_bags = debit_bags + ?, current_qty = current_qty - ? WHERE id = ?",
		qty, bags, qty, stockSummary.ID).Error
}

// GetCurrentStocks lists non-zero balances for the mill.
func GetCurrentStocks(ctx context.Context, millId string) ([]*StockSummary, error) {
	if millId == "" {
		return nil, errors.New("mill id is required")
	}

	var stockSummaries []*StockSummary
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("mill_id = ?", millId).
		Not("current_qty = 0").
		Order("commodity, variety").
		Find(&stockSummaries).Error; err != nil {
		return nil, err
	}
	return stockSummaries, nil
}

// RebuildStockSummaries recomputes all running balances for a mill from the
// ledger. Used by the rebuild job after manual data repair.
func RebuildStockSummaries(ctx context.Context, millId string) error {
	if millId == "" {
		return errors.New("mill id is required")
	}

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM stock_summaries WHERE mill_id = ?", millId).Error; err != nil {
			return err
		}
		return tx.Exec(`
INSERT INTO stock_summaries (mill_id, commodity, variety, credit_qty, debit_qty, current_qty, credit_bags, debit_bags, created_at, updated_at)
SELECT
    mill_id,
    commodity,
    variety,
    COALESCE(SUM(CASE WHEN direction = 'CREDIT' THEN qty ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN direction = 'DEBIT' THEN qty ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN direction = 'CREDIT' THEN qty ELSE -qty END), 0),
    COALESCE(SUM(CASE WHEN direction = 'CREDIT' THEN bags ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN direction = 'DEBIT' THEN bags ELSE 0 END), 0),
    UTC_TIMESTAMP(),
    UTC_TIMESTAMP()
FROM stock_transactions
WHERE mill_id = ?
GROUP BY mill_id, commodity, variety`, millId).Error
	})
}
