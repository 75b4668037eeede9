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

// PurchaseDeal records a paddy purchase from a farmer or trader.
// Quantity is captured directly in quintals; creating a deal queues a
// CREDIT posting to the stock ledger.
type PurchaseDeal struct {
	ID          int             `gorm:"primary_key" json:"id"`
	MillId      string          `gorm:"index;size:36;not null" json:"millId"`
	Date        time.Time       `gorm:"index;not null" json:"date"`
	PartyId     int             `gorm:"index" json:"partyId"`
	PartyName   string          `gorm:"size:100" json:"partyName"`
	PaddyType   string          `gorm:"size:100" json:"paddyType"`
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

type NewPurchaseDeal struct {
	Date        DateString      `json:"date" binding:"required"`
	PartyId     int             `json:"partyId"`
	PartyName   string          `json:"partyName"`
	PaddyType   string          `json:"paddyType"`
	QtyQuintals decimal.Decimal `json:"qtyQuintals"`
	Bags        int             `json:"bags"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
	BrokerName  string          `json:"brokerName"`
	Remarks     string          `json:"remarks"`
}

func (input *NewPurchaseDeal) validate(ctx context.Context, millId string, id int) error {
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

func CreatePurchaseDeal(ctx context.Context, millId string, input *NewPurchaseDeal) (*PurchaseDeal, error) {
	if millId == "" {
		return nil, errors.New("mill id is required")
	}
	if err := input.validate(ctx, millId, 0); err != nil {
		return nil, err
	}

	userId, _ := utils.GetUserIdFromContext(ctx)

	deal := PurchaseDeal{
		MillId:      millId,
		Date:        time.Time(input.Date),
		PartyId:     input.PartyId,
		PartyName:   input.PartyName,
		PaddyType:   input.PaddyType,
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
		return QueueStockPosting(ctx, tx, millId, StockReferenceTypePurchase, deal.ID, &StockPostingRequest{
			Date:      deal.Date,
			Commodity: CommodityPaddy,
			Variety:   deal.PaddyType,
			Direction: TransactionDirectionCredit,
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

func GetPurchaseDeal(ctx context.Context, millId string, id int) (*PurchaseDeal, error) {
	return utils.FetchModel[PurchaseDeal](ctx, millId, id)
}

func UpdatePurchaseDeal(ctx context.Context, millId string, id int, input *NewPurchaseDeal) (*PurchaseDeal, error) {
	if millId == "" {
		return nil, errors.New("mill id is required")
	}
	if err := input.validate(ctx, millId, id); err != nil {
		return nil, err
	}

	deal, err := utils.FetchModel[PurchaseDeal](ctx, millId, id)
	if err != nil {
		return nil, err
	}

	userId, _ := utils.GetUserIdFromContext(ctx)

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&deal).Updates(map[string]interface{}{
		"Date":        time.Time(input.Date),
		"PartyId":     input.PartyId,
		"PartyName":   input.PartyName,
		"PaddyType":   input.PaddyType,
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

func DeletePurchaseDeal(ctx context.Context, millId string, id int) (*PurchaseDeal, error) {
	if millId == "" {
		return nil, errors.New("mill id is required")
	}

	deal, err := utils.FetchModel[PurchaseDeal](ctx, millId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(&deal).Error; err != nil {
		return nil, err
	}
	return deal, nil
}

func BulkDeletePurchaseDeals(ctx context.Context, millId string, ids []int) (int64, error) {
	return BulkDeleteModels[PurchaseDeal](ctx, millId, ids)
}

var purchaseDealQuerySpec = QuerySpec{
	SearchColumns: []string{"party_name", "paddy_type", "broker_name", "remarks"},
	FilterColumns: map[string]string{
		"paddyType":  "paddy_type",
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

func PaginatePurchaseDeals(ctx context.Context, millId string, params *QueryParams) ([]*PurchaseDeal, *Pagination, error) {
	return PaginateModels[PurchaseDeal](ctx, millId, purchaseDealQuerySpec, params)
}

type PurchaseSummary struct {
	TotalDeals  int64           `json:"totalDeals"`
	TotalBags   int64           `json:"totalBags"`
	TotalQty    decimal.Decimal `json:"totalQty"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

func GetPurchaseSummary(ctx context.Context, millId string, startDate *DateString, endDate *DateString) (*PurchaseSummary, error) {
	if millId == "" {
		return nil, errors.New("mill id is required")
	}

	timezone := MillTimezone(ctx, millId)

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).
		Model(&PurchaseDeal{}).
		Select("COUNT(id) AS total_deals, " +
			"COALESCE(SUM(bags), 0) AS total_bags, " +
			"COALESCE(ROUND(SUM(qty_quintals), 2), 0) AS total_qty, " +
			"COALESCE(ROUND(SUM(amount), 2), 0) AS total_amount").
		Where("mill_id = ?", millId)
	dbCtx, err := ApplyDateRange(dbCtx, "date", timezone, startDate, endDate)
	if err != nil {
		return nil, err
	}

	var summary PurchaseSummary
	if err := dbCtx.Scan(&summary).Error; err != nil {
		return nil, err
	}
	return &summary, nil
}
