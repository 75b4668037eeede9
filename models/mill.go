package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/graintrack/mill_backend/config"
	"github.com/graintrack/mill_backend/utils"
)

// Mill is the tenant. Every scoped table carries its id in a mill_id column.
type Mill struct {
	ID        string    `gorm:"primary_key;size:36" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Address   string    `gorm:"size:255" json:"address"`
	Timezone  string    `gorm:"size:50" json:"timezone"`
	IsActive  *bool     `gorm:"default:true" json:"isActive"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewMill struct {
	Name     string `json:"name" binding:"required"`
	Address  string `json:"address"`
	Timezone string `json:"timezone"`
}

func (m *Mill) StoreRedis() error {
	return config.SetRedisObject("Mill:"+m.ID, m, 0)
}

func CreateMill(ctx context.Context, input *NewMill) (*Mill, error) {
	if input.Timezone != "" {
		if _, err := time.LoadLocation(input.Timezone); err != nil {
			return nil, utils.NewValidationError("invalid timezone")
		}
	}

	mill := Mill{
		ID:       uuid.NewString(),
		Name:     input.Name,
		Address:  input.Address,
		Timezone: input.Timezone,
		IsActive: utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&mill).Error; err != nil {
		return nil, err
	}
	return &mill, nil
}

func GetMillById(ctx context.Context, id string) (*Mill, error) {

	var result Mill

	exists, err := config.GetRedisObject("Mill:"+id, &result)
	if err != nil {
		return nil, err
	}

	if !exists {
		db := config.GetDB()
		// db query
		err := db.WithContext(ctx).Where("id = ?", id).First(&result).Error
		if err != nil {
			return nil, utils.ErrorRecordNotFound
		}
		// caching
		if err := result.StoreRedis(); err != nil {
			return nil, err
		}
	}
	return &result, nil
}

// MillTimezone resolves the mill's timezone for day-boundary math.
// Falls back to the default zone so list queries keep working for
// mills created before timezones were recorded.
func MillTimezone(ctx context.Context, millId string) string {
	mill, err := GetMillById(ctx, millId)
	if err != nil || mill.Timezone == "" {
		return DefaultTimezone
	}
	return mill.Timezone
}

func GetMill(ctx context.Context) (*Mill, error) {
	millId, ok := utils.GetMillIdFromContext(ctx)
	if !ok || millId == "" {
		return nil, errors.New("mill id is required")
	}
	return GetMillById(ctx, millId)
}
