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

// InwardEntry records a weighed paddy arrival at the mill gate.
// Creating one queues a CREDIT posting to the stock ledger; later edits and
// deletes do NOT touch the ledger (corrections are offsetting ledger entries).
type InwardEntry struct {
	ID            int             `gorm:"primary_key" json:"id"`
	MillId        string          `gorm:"index;size:36;not null" json:"millId"`
	Date          time.Time       `gorm:"index;not null" json:"date"`
	VehicleNumber string          `gorm:"size:20" json:"vehicleNumber"`
	PartyId       int             `gorm:"index" json:"partyId"`
	PartyName     string          `gorm:"size:100" json:"partyName"`
	PaddyType     string          `gorm:"size:100" json:"paddyType"`
	Bags          int             `gorm:"default:0" json:"bags"`
	GrossWeight   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"grossWeight"`
	TareWeight    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tareWeight"`
	NetWeight     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"netWeight"`
	Moisture      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"moisture"`
	Remarks       string          `gorm:"type:text" json:"remarks"`
	CreatedBy     int             `json:"createdBy"`
	UpdatedBy     int             `json:"updatedBy"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewInwardEntry struct {
	Date          DateString      `json:"date" binding:"required"`
	VehicleNumber string          `json:"vehicleNumber"`
	PartyId       int             `json:"partyId"`
	PartyName     string          `json:"partyName"`
	PaddyType     string          `json:"paddyType"`
	Bags          int             `json:"bags"`
	GrossWeight   decimal.Decimal `json:"grossWeight"`
	TareWeight    decimal.Decimal `json:"tareWeight"`
	NetWeight     decimal.Decimal `json:"netWeight"`
	Moisture      decimal.Decimal `json:"moisture"`
	Remarks       string          `json:"remarks"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewInwardEntry) validate(ctx context.Context, millId string, id int) error {
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

func CreateInwardEntry(ctx context.Context, millId string, input *NewInwardEntry) (*InwardEntry, error) {
	if millId == "" {
		return nil, errors.New("mill id is required")
	}
	if err := input.validate(ctx, millId, 0); err != nil {
		return nil, err
	}

	userId, _ := utils.GetUserIdFromContext(ctx)

	entry := InwardEntry{
		MillId:        millId,
		Date:          time.Time(input.Date),
		VehicleNumber: input.VehicleNumber,
		PartyId:       input.PartyId,
		PartyName:     input.PartyName,
		PaddyType:     input.PaddyType,
		Bags:          input.Bags,
		GrossWeight:   input.GrossWeight,
		TareWeight:    input.TareWeight,
		NetWeight:     input.NetWeight,
		Moisture:      input.Moisture,
		Remarks:       input.Remarks,
		CreatedBy:     userId,
		UpdatedBy:     userId,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		return QueueStockPosting(ctx, tx, millId, StockReferenceTypeInward, entry.ID, &StockPostingRequest{
			Date:      entry.Date,
			Commodity: CommodityPaddy,
			Variety:   entry.PaddyType,
			Direction: TransactionDirectionCredit,
			Qty:       QuintalsFromKg(entry.NetWeight),
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

func GetInwardEntry(ctx context.Context, millId string, id int) (*InwardEntry, error) {
	return utils.FetchModel[InwardEntry](ctx, millId, id)
}

// UpdateInwardEntry edits document fields only. The ledger keeps the original
// posting; weight corrections need an offsetting manual ledger entry.
func UpdateInwardEntry(ctx context.Context, millId string, id int, input *NewInwardEntry) (*InwardEntry, error) {
	if millId == "" {
		return nil, errors.New("mill id is required")
	}
	if err := input.validate(ctx, millId, id); err != nil {
		return nil, err
	}

	entry, err := utils.FetchModel[InwardEntry](ctx, millId, id)
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
		"PaddyType":     input.PaddyType,
		"Bags":          input.Bags,
		"GrossWeight":   input.GrossWeight,
		"TareWeight":    input.TareWeight,
		"NetWeight":     input.NetWeight,
		"Moisture":      input.Moisture,
		"Remarks":       input.Remarks,
		"UpdatedBy":     userId,
	}).Error
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// DeleteInwardEntry removes the document. Ledger entries are kept as the
// audit trail; use a manual DEBIT entry to back the stock out if needed.
func DeleteInwardEntry(ctx context.Context, millId string, id int) (*InwardEntry, error) {
	if millId == "" {
		return nil, errors.New("mill id is required")
	}

	entry, err := utils.FetchModel[InwardEntry](ctx, millId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(&entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func BulkDeleteInwardEntries(ctx context.Context, millId string, ids []int) (int64, error) {
	return BulkDeleteModels[InwardEntry](ctx, millId, ids)
}

var inwardEntryQuerySpec = QuerySpec{
	SearchColumns: []string{"vehicle_number", "party_name", "paddy_type", "remarks"},
	FilterColumns: map[string]string{
		"paddyType":     "paddy_type",
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

func PaginateInwardEntries(ctx context.Context, millId string, params *QueryParams) ([]*InwardEntry, *Pagination, error) {
	return PaginateModels[InwardEntry](ctx, millId, inwardEntryQuerySpec, params)
}

// InwardSummary is the fixed-shape aggregate for the inward register.
type InwardSummary struct {
	TotalEntries     int64           `json:"totalEntries"`
	TotalBags        int64           `json:"totalBags"`
	TotalNetWeight   decimal.Decimal `json:"totalNetWeight"`
	TotalGrossWeight decimal.Decimal `json:"totalGrossWeight"`
}

func GetInwardSummary(ctx context.Context, millId string, startDate *DateString, endDate *DateString) (*InwardSummary, error) {
	if millId == "" {
		return nil, errors.New("mill id is required")
	}

	timezone := MillTimezone(ctx, millId)

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).
		Model(&InwardEntry{}).
		Select("COUNT(id) AS total_entries, " +
			"COALESCE(SUM(bags), 0) AS total_bags, " +
			"COALESCE(ROUND(SUM(net_weight), 2), 0) AS total_net_weight, " +
			"COALESCE(ROUND(SUM(gross_weight), 2), 0) AS total_gross_weight").
		Where("mill_id = ?", millId)
	dbCtx, err := ApplyDateRange(dbCtx, "date", timezone, startDate, endDate)
	if err != nil {
		return nil, err
	}

	var summary InwardSummary
	if err := dbCtx.Scan(&summary).Error; err != nil {
		return nil, err
	}
	return &summary, nil
}
