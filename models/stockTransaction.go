package models

import (
	"context"
	"errors"
	"time"

	"github.com/graintrack/mill_backend/config"
	"github.com/graintrack/mill_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockTransaction is the append-only commodity ledger. Rows are never
// updated or deleted; corrections are posted as offsetting entries.
type StockTransaction struct {
	ID        int                  `gorm:"primary_key" json:"id"`
	MillId    string               `gorm:"index;size:36;not null" json:"millId"`
	Date      time.Time            `gorm:"index;not null" json:"date"`
	Commodity Commodity            `gorm:"type:enum('Paddy','Rice','Gunny','FRK','Bran');not null" json:"commodity"`
	Variety   string               `gorm:"size:100" json:"variety"`
	Direction TransactionDirection `gorm:"type:enum('CREDIT','DEBIT');not null" json:"direction"`
	Qty       decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"qty"`
	Bags      int                  `gorm:"default:0" json:"bags"`
	RefModel  StockReferenceType   `gorm:"index:idx_stock_txn_ref,priority:1;size:20" json:"refModel"`
	RefId     int                  `gorm:"index:idx_stock_txn_ref,priority:2" json:"refId"`
	Remarks   string               `gorm:"type:text" json:"remarks"`
	CreatedBy int                  `json:"createdBy"`
	CreatedAt time.Time            `gorm:"autoCreateTime" json:"createdAt"`
}

// BeforeSave enforces ledger invariants.
//
// We ensure:
// - Direction is always CREDIT or DEBIT
// - Qty and Bags are never negative (direction carries the sign)
// - Commodity is a known value
func (st *StockTransaction) BeforeSave(tx *gorm.DB) error {
	if st == nil {
		return nil
	}
	if !st.Direction.IsValid() {
		return errors.New("invalid transaction direction")
	}
	if st.Qty.IsNegative() {
		return errors.New("quantity cannot be negative")
	}
	if st.Bags < 0 {
		return errors.New("bags cannot be negative")
	}
	if !st.Commodity.IsValid() {
		return errors.New("invalid commodity")
	}
	return nil
}

type NewStockTransaction struct {
	Date      DateString           `json:"date" binding:"required"`
	Commodity Commodity            `json:"commodity" binding:"required"`
	Variety   string               `json:"variety"`
	Direction TransactionDirection `json:"direction" binding:"required"`
	Qty       decimal.Decimal      `json:"qty"`
	Bags      int                  `json:"bags"`
	Remarks   string               `json:"remarks"`
}

// RecordStockTransaction posts a manual ledger entry (adjustments, opening
// stock, corrections). Source-document postings go through the outbox instead.
func RecordStockTransaction(ctx context.Context, millId string, input *NewStockTransaction) (*StockTransaction, error) {
	if millId == "" {
		return nil, utils.NewValidationError("mill id is required")
	}
	if !input.Commodity.IsValid() {
		return nil, utils.NewValidationError("invalid commodity")
	}
	if !input.Direction.IsValid() {
		return nil, utils.NewValidationError("invalid transaction direction")
	}
	if input.Qty.IsNegative() {
		return nil, utils.NewValidationError("quantity cannot be negative")
	}
	if input.Bags < 0 {
		return nil, utils.NewValidationError("bags cannot be negative")
	}

	userId, _ := utils.GetUserIdFromContext(ctx)

	transaction := StockTransaction{
		MillId:    millId,
		Date:      time.Time(input.Date),
		Commodity: input.Commodity,
		Variety:   input.Variety,
		Direction: input.Direction,
		Qty:       input.Qty,
		Bags:      input.Bags,
		RefModel:  StockReferenceTypeManual,
		Remarks:   input.Remarks,
		CreatedBy: userId,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&transaction).Error; err != nil {
			return err
		}
		return ApplyStockSummaryDelta(tx, millId, input.Commodity, input.Variety, input.Direction, input.Qty, input.Bags)
	})
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

// GetStockBalance sums the ledger for one commodity (optionally one variety),
// credits minus debits, as of an optional cutoff date.
func GetStockBalance(ctx context.Context, millId string, commodity Commodity, variety string, asOf *time.Time) (decimal.Decimal, error) {
	if millId == "" {
		return decimal.Zero, utils.NewValidationError("mill id is required")
	}
	if !commodity.IsValid() {
		return decimal.Zero, utils.NewValidationError("invalid commodity")
	}

	var balance decimal.Decimal
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).
		Model(&StockTransaction{}).
		Select("COALESCE(SUM(CASE WHEN direction = 'CREDIT' THEN qty ELSE -qty END), 0)").
		Where("mill_id = ?", millId).
		Where("commodity = ?", commodity)
	if variety != "" {
		dbCtx = dbCtx.Where("variety = ?", variety)
	}
	if asOf != nil {
		dbCtx = dbCtx.Where("date <= ?", *asOf)
	}

	err := dbCtx.Scan(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return balance, nil
}

// StockLedgerSummary is the fixed-shape aggregate for a date range.
// Always fully populated; an empty range yields zeros, not nulls.
type StockLedgerSummary struct {
	TotalCredit      decimal.Decimal `json:"totalCredit"`
	TotalDebit       decimal.Decimal `json:"totalDebit"`
	NetMovement      decimal.Decimal `json:"netMovement"`
	CreditBags       int64           `json:"creditBags"`
	DebitBags        int64           `json:"debitBags"`
	TransactionCount int64           `json:"transactionCount"`
}

func GetStockLedgerSummary(ctx context.Context, millId string, commodity *Commodity, startDate *DateString, endDate *DateString) (*StockLedgerSummary, error) {
	if millId == "" {
		return nil, utils.NewValidationError("mill id is required")
	}

	timezone := MillTimezone(ctx, millId)

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).
		Model(&StockTransaction{}).
		Select("COALESCE(ROUND(SUM(CASE WHEN direction = 'CREDIT' THEN qty ELSE 0 END), 2), 0) AS total_credit, " +
			"COALESCE(ROUND(SUM(CASE WHEN direction = 'DEBIT' THEN qty ELSE 0 END), 2), 0) AS total_debit, " +
			"COALESCE(ROUND(SUM(CASE WHEN direction = 'CREDIT' THEN qty ELSE -qty END), 2), 0) AS net_movement, " +
			"COALESCE(SUM(CASE WHEN direction = 'CREDIT' THEN bags ELSE 0 END), 0) AS credit_bags, " +
			"COALESCE(SUM(CASE WHEN direction = 'DEBIT' THEN bags ELSE 0 END), 0) AS debit_bags, " +
			"COUNT(id) AS transaction_count").
		Where("mill_id = ?", millId)
	if commodity != nil && *commodity != "" {
		if !commodity.IsValid() {
			return nil, utils.NewValidationError("invalid commodity")
		}
		dbCtx = dbCtx.Where("commodity = ?", *commodity)
	}
	dbCtx, err := ApplyDateRange(dbCtx, "date", timezone, startDate, endDate)
	if err != nil {
		return nil, err
	}

	var summary StockLedgerSummary
	if err := dbCtx.Scan(&summary).Error; err != nil {
		return nil, err
	}
	return &summary, nil
}

var stockTransactionQuerySpec = QuerySpec{
	SearchColumns: []string{"variety", "remarks"},
	FilterColumns: map[string]string{
		"commodity": "commodity",
		"variety":   "variety",
		"direction": "direction",
		"refModel":  "ref_model",
	},
	SortColumns: map[string]string{
		"date": "date",
		"qty":  "qty",
	},
	DateColumn:        "date",
	DefaultSortColumn: "date",
}

func PaginateStockTransactions(ctx context.Context, millId string, params *QueryParams) ([]*StockTransaction, *Pagination, error) {
	return PaginateModels[StockTransaction](ctx, millId, stockTransactionQuerySpec, params)
}

func GetStockTransaction(ctx context.Context, millId string, id int) (*StockTransaction, error) {
	return utils.FetchModel[StockTransaction](ctx, millId, id)
}
