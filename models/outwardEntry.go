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

// OutwardEntry records a weighed dispatch leaving the mill gate
// (rice to the depot, bran to a buyer, gunnies returned). Creating one
// queues a DEBIT posting to the stock ledger.
type OutwardEntry struct {
	ID            int             `gorm:"primary_key" json:"id"`
	MillId        string          `gorm:"index;size:36;not null" json:"millId"`
	Date          time.Time       `gorm:"index;not null" json:"date"`
	VehicleNumber string          `gorm:"size:20" json:"vehicleNumber"`
	PartyId       int             `gorm:"index" json:"partyId"`
	PartyName     string          `gorm:"size:100" json:"partyName"`
	Commodity     Commodity       `gorm:"type:enum('Paddy','Rice','Gunny','FRK','Bran');not null" json:"commodity"`
	Variety       string          `gorm:"size:100" json:"variety"`
	Bags          int             `gorm:"default:0" json:"bags"`
	GrossWeight   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"grossWeight"`
	TareWeight    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tareWeight"`
	NetWeight     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"netWeight"`
	Destination   string          `gorm:"size:255" json:"destination"`
	Remarks       string          `gorm:"type:text" json:"remarks"`
	CreatedBy     int             `json:"createdBy"`
	UpdatedBy     int             `json:"updatedBy"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewOutwardEntry struct {
	Date          DateString      `json:"date" binding:"required"`
	VehicleNumber string          `json:"vehicleNumber"`
	PartyId       int             `json:"partyId"`
	PartyName     string          `json:"partyName"`
	Commodity     Commodity       `json:"commodity" binding:"required"`
	Variety       string          `json:"variety"`
	Bags          int             `json:"bags"`
	GrossWeight   decimal.Decimal `json:"grossWeight"`
	TareWeight    decimal.Decimal `json:"tareWeight"`
	NetWeight     decimal.Decimal `json:"netWeight"`
	Destination   string          `json:"destination"`
	Remarks       string          `json:"remarks"`
}

func (input *NewOutwardEntry) validate(ctx context.Context, millId string, id int) error {
	if !input.Commodity.IsValid() {
		return utils.NewValidationError("invalid commodity")
	}
	if input.Bags < 0 {
		return utils.NewValidationError("bags cannot be negative")
	}
	if input.NetWeight.IsNegative() || input.GrossWeight.IsNegative() || input.TareWeight.IsNegative() {
		return utils.NewValidationError("weights cannot be negative")
	}
	if input.PartyId > 0 {
		if err := utils.ValidateResourceId[Party](ctx, millId, input.PartyId); err != nil {
			return utils.NewValidationError("party not found")
		}
	}
	return nil
}

// postingQty maps a dispatch onto ledger units: gunnies are tracked by bag
// count, everything else by net weight in quintals.
func (input *NewOutwardEntry) postingQty() decimal.Decimal {
	if input.Commodity == CommodityGunny {
		return decimal.NewFromInt(int64(input.Bags))
	}
	return QuintalsFromKg(input.NetWeight)
}

func CreateOutwardEntry(ctx context.Context, millId string, input *NewOutwardEntry) (*OutwardEntry, error) {
	if millId == "" {
		return nil, errors.New("mill id is required")
	}
	if err := input.validate(ctx, millId, 0); err != nil {
		return nil, err
	}

	userId, _ := utils.GetUserIdFromContext(ctx)

	entry := OutwardEntry{
		MillId:        millId,
		Date:          time.Time(input.Date),
		VehicleNumber: input.VehicleNumber,
		PartyId:       input.PartyId,
		PartyName:     input.PartyName,
		Commodity:     input.Commodity,
		Variety:       input.Variety,
		Bags:          input.Bags,
		GrossWeight:   input.GrossWeight,
		TareWeight:    input.TareWeight,
		NetWeight:     input.NetWeight,
		Destination:   input.Destination,
		Remarks:       input.Remarks,
		CreatedBy:     userId,
		UpdatedBy:     userId,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		return QueueStockPosting(ctx, tx, millId, StockReferenceTypeOutward, entry.ID, &StockPostingRequest{
			Date:      entry.Date,
			Commodity: entry.Commodity,
			Variety:   entry.Variety,
			Direction: TransactionDirectionDebit,
			Qty:       input.postingQty(),
			Bags:      entry.Bags,
			Remarks:   entry.Remarks,
			CreatedBy: userId,
		})
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func GetOutwardEntry(ctx context.Context, millId string, id int) (*OutwardEntry, error) {
	return utils.FetchModel[OutwardEntry](ctx, millId, id)
}

func UpdateOutwardEntry(ctx context.Context, millId string, id int, input *NewOutwardEntry) (*OutwardEntry, error) {
	if millId == "" {
		return nil, errors.New("mill id is required")
	}
	if err := input.validate(ctx, millId, id); err != nil {
		return nil, err
	}

	entry, err := utils.FetchModel[OutwardEntry](ctx, millId, id)
	if err != nil {
		return nil, err
	}

	userId, _ := utils.GetUserIdFromContext(ctx)

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&entry).Updates(map[string]interface{}{
		"Date":          time.Time(input.Date),
		"VehicleNumber": input.VehicleNumber,
		"PartyId":       input.PartyId,
		"PartyName":     input.PartyName,
		"Commodity":     input.Commodity,
		"Variety":       input.Variety,
		"Bags":          input.Bags,
		"GrossWeight":   input.GrossWeight,
		"TareWeight":    input.TareWeight,
		"NetWeight":     input.NetWeight,
		"Destination":   input.Destination,
		"Remarks":       input.Remarks,
		"UpdatedBy":     userId,
	}).Error
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func DeleteOutwardEntry(ctx context.Context, millId string, id int) (*OutwardEntry, error) {
	if millId == "" {
		return nil, errors.New("mill id is required")
	}

	entry, err := utils.FetchModel[OutwardEntry](ctx, millId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(&entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func BulkDeleteOutwardEntries(ctx context.Context, millId string, ids []int) (int64, error) {
	return BulkDeleteModels[OutwardEntry](ctx, millId, ids)
}

var outwardEntryQuerySpec = QuerySpec{
	SearchColumns: []string{"vehicle_number", "party_name", "variety", "destination", "remarks"},
	FilterColumns: map[string]string{
		"commodity":     "commodity",
		"variety":       "variety",
		"partyName":     "party_name",
		"vehicleNumber": "vehicle_number",
	},
	SortColumns: map[string]string{
		"date":      "date",
		"netWeight": "net_weight",
		"bags":      "bags",
	},
	DateColumn:        "date",
	DefaultSortColumn: "date",
}

func PaginateOutwardEntries(ctx context.Context, millId string, params *QueryParams) ([]*OutwardEntry, *Pagination, error) {
	return PaginateModels[OutwardEntry](ctx, millId, outwardEntryQuerySpec, params)
}

type OutwardSummary struct {
	TotalEntries   int64           `json:"totalEntries"`
	TotalBags      int64           `json:"totalBags"`
	TotalNetWeight decimal.Decimal `json:"totalNetWeight"`
}

func GetOutwardSummary(ctx context.Context, millId string, startDate *DateString, endDate *DateString) (*OutwardSummary, error) {
	if millId == "" {
		return nil, errors.New("mill id is required")
	}

	timezone := MillTimezone(ctx, millId)

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).
		Model(&OutwardEntry{}).
		Select("COUNT(id) AS total_entries, " +
			"COALESCE(SUM(bags), 0) AS total_bags, " +
			"COALESCE(ROUND(SUM(net_weight), 2), 0) AS total_net_weight").
		Where("mill_id = ?", millId)
	dbCtx, err := ApplyDateRange(dbCtx, "date", timezone, startDate, endDate)
	if err != nil {
		return nil, err
	}

	var summary OutwardSummary
	if err := dbCtx.Scan(&summary).Error; err != nil {
		return nil, err
	}
	return &summary, nil
}
