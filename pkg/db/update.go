package db

import (
	"context"

	"gorm.io/gorm"
)

// UpdateColumns writes only the named columns of model, matched by its
// primary key, and bumps updated_at. Columns that were not named keep their
// stored value even if a concurrent transaction changed them after model was
// read. A missing or soft-deleted row reports gorm.ErrRecordNotFound; the
// row is never re-inserted.
func UpdateColumns(ctx context.Context, conn *gorm.DB, model any, columns ...string) error {
	if len(columns) == 0 {
		return nil
	}
	selected := make([]string, 0, len(columns)+1)
	selected = append(selected, columns...)
	selected = append(selected, "updated_at")

	res := conn.WithContext(ctx).Model(model).Select(selected).Updates(model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
