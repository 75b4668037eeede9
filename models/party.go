package models

import (
	"context"
	"errors"
	"time"

	"github.com/graintrack/mill_backend/config"
	"github.com/graintrack/mill_backend/utils"
)

// Party is a farmer, trader, or buyer the mill deals with.
type Party struct {
	ID        int       `gorm:"primary_key" json:"id"`
	MillId    string    `gorm:"index;size:36;not null" json:"millId"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Village   string    `gorm:"size:100" json:"village"`
	GstNo     string    `gorm:"size:20" json:"gstNo"`
	IsActive  *bool     `gorm:"default:true" json:"isActive"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewParty struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone"`
	Village string `json:"village"`
	GstNo   string `json:"gstNo"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewParty) validate(ctx context.Context, millId string, id int) error {
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return utils.NewValidationError("invalid phone number")
		}
	}
	if err := utils.ValidateUnique[Party](ctx, millId, "name", input.Name, id); err != nil {
		return utils.NewValidationError(err.Error())
	}
	return nil
}

func CreateParty(ctx context.Context, millId string, input *NewParty) (*Party, error) {
	if millId == "" {
		return nil, errors.New("mill id is required")
	}
	if err := input.validate(ctx, millId, 0); err != nil {
		return nil, err
	}

	party := Party{
		MillId:   millId,
		Name:     input.Name,
		Phone:    input.Phone,
		Village:  input.Village,
		GstNo:    input.GstNo,
		IsActive: utils.NewTrue(),
	}

	// db action
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&party).Error; err != nil {
		return nil, err
	}
	return &party, nil
}

func GetParty(ctx context.Context, millId string, id int) (*Party, error) {
	cached, err := utils.RetrieveRedis[Party](id)
	if err != nil {
		return nil, err
	}
	if cached != nil && cached.MillId == millId {
		return cached, nil
	}

	party, err := utils.FetchModel[Party](ctx, millId, id)
	if err != nil {
		return nil, err
	}
	// caching
	if err := utils.StoreRedis[Party](party, party.ID); err != nil {
		return nil, err
	}
	return party, nil
}

func UpdateParty(ctx context.Context, millId string, id int, input *NewParty) (*Party, error) {
	if millId == "" {
		return nil, errors.New("mill id is required")
	}
	if err := input.validate(ctx, millId, id); err != nil {
		return nil, err
	}

	party, err := utils.FetchModel[Party](ctx, millId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&party).Updates(map[string]interface{}{
		"Name":    input.Name,
		"Phone":   input.Phone,
		"Village": input.Village,
		"GstNo":   input.GstNo,
	}).Error
	if err != nil {
		return nil, err
	}

	if err := utils.RemoveRedis[Party](id); err != nil {
		return nil, err
	}
	return party, nil
}

func DeleteParty(ctx context.Context, millId string, id int) (*Party, error) {
	if millId == "" {
		return nil, errors.New("mill id is required")
	}

	db := config.GetDB()
	party, err := utils.FetchModel[Party](ctx, millId, id)
	if err != nil {
		return nil, err
	}

	// check if party is referenced by documents
	if n, err := utils.ResourceCountWhere[InwardEntry](ctx, millId, "party_id = ?", id); err != nil {
		return nil, err
	} else if n > 0 {
		return nil, utils.NewValidationError("party has inward entries")
	}
	if n, err := utils.ResourceCountWhere[OutwardEntry](ctx, millId, "party_id = ?", id); err != nil {
		return nil, err
	} else if n > 0 {
		return nil, utils.NewValidationError("party has outward entries")
	}
	if n, err := utils.ResourceCountWhere[PurchaseDeal](ctx, millId, "party_id = ?", id); err != nil {
		return nil, err
	} else if n > 0 {
		return nil, utils.NewValidationError("party has purchase deals")
	}
	if n, err := utils.ResourceCountWhere[SaleDeal](ctx, millId, "party_id = ?", id); err != nil {
		return nil, err
	} else if n > 0 {
		return nil, utils.NewValidationError("party has sale deals")
	}

	if err := db.WithContext(ctx).Delete(&party).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedis[Party](id); err != nil {
		return nil, err
	}
	return party, nil
}

var partyQuerySpec = QuerySpec{
	SearchColumns: []string{"name", "phone", "village", "gst_no"},
	FilterColumns: map[string]string{
		"village": "village",
	},
	SortColumns: map[string]string{
		"name":      "name",
		"createdAt": "created_at",
	},
	DateColumn:        "created_at",
	DefaultSortColumn: "created_at",
}

func PaginateParties(ctx context.Context, millId string, params *QueryParams) ([]*Party, *Pagination, error) {
	return PaginateModels[Party](ctx, millId, partyQuerySpec, params)
}

func ListParties(ctx context.Context, millId string) ([]*Party, error) {
	return utils.FetchAllModels[Party](ctx, millId)
}
