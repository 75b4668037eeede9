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

// SaleDeal records a sale of milled output (rice, bran, gunnies).
// Creating a deal queues a DEBIT posting to the stock ledger.
type SaleDeal struct {
	ID          int             `gorm:"primary_key" json:"id"`
	MillId      string          `gorm:"index;size:36;not null" json:"millId"`
	Date        time.Time       `gorm:"index;not null" json:"date"`
	PartyId     int             `gorm:"index" json:"partyId"`
	PartyName   string          `gorm:"size:100" json:"partyName"`
	Commodity   Commodity       `gorm:"type:enum('Paddy','Rice','Gunny','FRK','Bran');not null" json:"commodity"`
	Variety     string          `gorm:"size:100" json:"variety"`
	QtyQuintals decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qtyQuintals"`
	Bags        int             `gorm:"default:0" json:"bags"`
	Rate        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rate"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	BrokerName  string          `gorm:"size:100" json:"brokerName"`
	Remarks     string          `gorm:"type:text" json:"remarks"`
	CreatedBy   int             `json:"createdBy"`
	UpdatedBy   int             `json:"updatedBy"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewSaleDeal struct {
	Date        DateString      `json:"date" binding:"required"`
	PartyId     int             `json:"partyId"`
	PartyName   string          `json:"partyName"`
	Commodity   Commodity       `json:"commodity" binding:"required"`
	Variety     string          `json:"variety"`
	QtyQuintals decimal.Decimal `json:"qtyQuintals"`
	Bags        int             `json:"bags"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
	BrokerName  string          `json:"brokerName"`
	Remarks     string          `json:"remarks"`
}

func (input *NewSaleDeal) validate(ctx context.Context, millId string, id int) error {
	if !input.Commodity.IsValid() {
		return utils.NewValidationError("invalid commodity")
	}
	if input.QtyQuintals.IsNegative() {
		return utils.NewValidationError("quantity cannot be negative")
	}
	if input.Bags < 0 {
		return utils.NewValidationError("bags cannot be negative")
	}
	if input.Rate.IsNegative() || input.Amount.IsNegative() {
		return utils.NewValidationError("rate and amount cannot be negative")
	}
	if input.PartyId > 0 {
		if err := utils.ValidateResourceId[Party](ctx, millId, input.PartyId); err != nil {
			return utils.NewValidationError("party not found")
		}
	}
	return nil
}

func CreateSaleDeal(ctx context.Context, millId string, input *NewSaleDeal) (*SaleDeal, error) {
	if millId == "" {
		return nil, errors.New("mill id is required")
	}
	if err := input.validate(ctx, millId, 0); err != nil {
		return nil, err
	}

	userId, _ := utils.GetUserIdFromContext(ctx)

	deal := SaleDeal{
		MillId:      millId,
		Date:        time.Time(input.Date),
		PartyId:     input.PartyId,
		PartyName:   input.PartyName,
		Commodity:   input.Commodity,
		Variety:     input.Variety,
		QtyQuintals: input.QtyQuintals,
		Bags:        input.Bags,
		Rate:        input.Rate,
		Amount:      input.Amount,
		BrokerName:  input.BrokerName,
		Remarks:     input.Remarks,
		CreatedBy:   userId,
		UpdatedBy:   userId,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&deal).Error; err != nil {
			return err
		}
		return QueueStockPosting(ctx, tx, millId, StockReferenceTypeSale, deal.ID, &StockPostingRequest{
			Date:      deal.Date,
			Commodity: deal.Commodity,
			Variety:   deal.Variety,
			Direction: TransactionDirectionDebit,
			Qty:       deal.QtyQuintals,
			Bags:      deal.Bags,
			Remarks:   deal.Remarks,
			CreatedBy: userId,
		})
	})
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

func GetSaleDeal(ctx context.Context, millId string, id int) (*SaleDeal, error) {
	return utils.FetchModel[SaleDeal](ctx, millId, id)
}

func UpdateSaleDeal(ctx context.Context, millId string, id int, input *NewSaleDeal) (*SaleDeal, error) {
	if millId == "" {
		return nil, errors.New("mill id is required")
	}
	if err := input.validate(ctx, millId, id); err != nil {
		return nil, err
	}

	deal, err := utils.FetchModel[SaleDeal](ctx, millId, id)
	if err != nil {
		return nil, err
	}

	userId, _ := utils.GetUserIdFromContext(ctx)

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&deal).Updates(map[string]interface{}{
		"Date":        time.Time(input.Date),
		"PartyId":     input.PartyId,
		"PartyName":   input.PartyName,
		"Commodity":   input.Commodity,
		"Variety":     input.Variety,
		"QtyQuintals": input.QtyQuintals,
		"Bags":        input.Bags,
		"Rate":        input.Rate,
		"Amount":      input.Amount,
		"BrokerName":  input.BrokerName,
		"Remarks":     input.Remarks,
		"UpdatedBy":   userId,
	}).Error
	if err != nil {
		return nil, err
	}
	return deal, nil
}

func DeleteSaleDeal(ctx context.Context, millId string, id int) (*SaleDeal, error) {
	if millId == "" {
		return nil, errors.New("mill id is required")
	}

	deal, err := utils.FetchModel[SaleDeal](ctx, millId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(&deal).Error; err != nil {
		return nil, err
	}
	return deal, nil
}

func BulkDeleteSaleDeals(ctx context.Context, millId string, ids []int) (int64, error) {
	return BulkDeleteModels[SaleDeal](ctx, millId, ids)
}

var saleDealQuerySpec = QuerySpec{
	SearchColumns: []string{"party_name", "variety", "broker_name", "remarks"},
	FilterColumns: map[string]string{
		"commodity":  "commodity",
		"variety":    "variety",
		"partyName":  "party_name",
		"brokerName": "broker_name",
	},
	SortColumns: map[string]string{
		"date":   "date",
		"qty":    "qty_quintals",
		"amount": "amount",
	},
	DateColumn:        "date",
	DefaultSortColumn: "date",
}

func PaginateSaleDeals(ctx context.Context, millId string, params *QueryParams) ([]*SaleDeal, *Pagination, error) {
	return PaginateModels[SaleDeal](ctx, millId, saleDealQuerySpec, params)
}

type SaleSummary struct {
	TotalDeals  int64           `json:"totalDeals"`
	TotalBags   int64           `json:"totalBags"`
	TotalQty    decimal.Decimal `json:"totalQty"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

func GetSaleSummary(ctx context.Context, millId string, startDate *DateString, endDate *DateString) (*SaleSummary, error) {
	if millId == "" {
		return nil, errors.New("mill id is required")
	}

	timezone := MillTimezone(ctx, millId)

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).
		Model(&SaleDeal{}).
		Select("COUNT(id) AS total_deals, " +
			"COALESCE(SUM(bags), 0) AS total_bags, " +
			"COALESCE(ROUND(SUM(qty_quintals), 2), 0) AS total_qty, " +
			"COALESCE(ROUND(SUM(amount), 2), 0) AS total_amount").
		Where("mill_id = ?", millId)
	dbCtx, err := ApplyDateRange(dbCtx, "date", timezone, startDate, endDate)
	if err != nil {
		return nil, err
	}

	var summary SaleSummary
	if err := dbCtx.Scan(&summary).Error; err != nil {
		return nil, err
	}
	return &summary, nil
}
