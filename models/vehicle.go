package models

import (
	"context"
	"errors"
	"time"

	"github.com/graintrack/mill_backend/config"
	"github.com/graintrack/mill_backend/utils"
)

type Vehicle struct {
	ID            int       `gorm:"primary_key" json:"id"`
	MillId        string    `gorm:"index;size:36;not null" json:"millId"`
	VehicleNumber string    `gorm:"size:20;not null" json:"vehicleNumber"`
	VehicleType   string    `gorm:"size:50" json:"vehicleType"`
	OwnerName     string    `gorm:"size:100" json:"ownerName"`
	IsActive      *bool     `gorm:"default:true" json:"isActive"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewVehicle struct {
	VehicleNumber string `json:"vehicleNumber" binding:"required"`
	VehicleType   string `json:"vehicleType"`
	OwnerName     string `json:"ownerName"`
}

func (input *NewVehicle) validate(ctx context.Context, millId string, id int) error {
	if err := utils.ValidateUnique[Vehicle](ctx, millId, "vehicle_number", input.VehicleNumber, id); err != nil {
		return utils.NewValidationError(err.Error())
	}
	return nil
}

func CreateVehicle(ctx context.Context, millId string, input *NewVehicle) (*Vehicle, error) {
	if millId == "" {
		return nil, errors.New("mill id is required")
	}
	if err := input.validate(ctx, millId, 0); err != nil {
		return nil, err
	}

	vehicle := Vehicle{
		MillId:        millId,
		VehicleNumber: input.VehicleNumber,
		VehicleType:   input.VehicleType,
		OwnerName:     input.OwnerName,
		IsActive:      utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&vehicle).Error; err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func GetVehicle(ctx context.Context, millId string, id int) (*Vehicle, error) {
	return utils.FetchModel[Vehicle](ctx, millId, id)
}

func UpdateVehicle(ctx context.Context, millId string, id int, input *NewVehicle) (*Vehicle, error) {
	if millId == "" {
		return nil, errors.New("mill id is required")
	}
	if err := input.validate(ctx, millId, id); err != nil {
		return nil, err
	}

	vehicle, err := utils.FetchModel[Vehicle](ctx, millId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&vehicle).Updates(map[string]interface{}{
		"VehicleNumber": input.VehicleNumber,
		"VehicleType":   input.VehicleType,
		"OwnerName":     input.OwnerName,
	}).Error
	if err != nil {
		return nil, err
	}
	return vehicle, nil
}

func DeleteVehicle(ctx context.Context, millId string, id int) (*Vehicle, error) {
	if millId == "" {
		return nil, errors.New("mill id is required")
	}

	vehicle, err := utils.FetchModel[Vehicle](ctx, millId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(&vehicle).Error; err != nil {
		return nil, err
	}
	return vehicle, nil
}

var vehicleQuerySpec = QuerySpec{
	SearchColumns: []string{"vehicle_number", "owner_name"},
	FilterColumns: map[string]string{
		"vehicleType": "vehicle_type",
	},
	SortColumns: map[string]string{
		"vehicleNumber": "vehicle_number",
		"createdAt":     "created_at",
	},
	DateColumn:        "created_at",
	DefaultSortColumn: "created_at",
}

func PaginateVehicles(ctx context.Context, millId string, params *QueryParams) ([]*Vehicle, *Pagination, error) {
	return PaginateModels[Vehicle](ctx, millId, vehicleQuerySpec, params)
}

func ListVehicles(ctx context.Context, millId string) ([]*Vehicle, error) {
	return utils.FetchAllModels[Vehicle](ctx, millId)
}
