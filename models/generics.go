package models

import (
	"context"

	"github.com/graintrack/mill_backend/config"
	"github.com/graintrack/mill_backend/utils"
)

// BulkDeleteModels deletes the given ids for one mill and reports how many
// rows actually went away. Ids belonging to other mills are ignored, and
// re-running with the same ids is a no-op (deletedCount 0).
func BulkDeleteModels[T any](ctx context.Context, millId string, ids []int) (int64, error) {
	if millId == "" {
		return 0, utils.NewValidationError("mill id is required")
	}
	if len(ids) == 0 {
		return 0, nil
	}
	unqIds := utils.UniqueSlice(ids)

	var model T
	db := config.GetDB()
	result := db.WithContext(ctx).
		Where("mill_id = ?", millId).
		Where("id IN ?", unqIds).
		Delete(&model)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
