package store

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// upsert inserts rec, or on violation of the unique index over conflictCols
// updates updateCols on the conflicting row. The conflict is resolved by the
// database in a single statement, so concurrent callers racing to create the
// same natural key cannot produce duplicates. The row's columns, including
// the surrogate id, are written back into rec in both branches.
func upsert(db *gorm.DB, rec any, conflictCols []string, updateCols []string) error {
	cols := make([]clause.Column, 0, len(conflictCols))
	for _, c := range conflictCols {
		cols = append(cols, clause.Column{Name: c})
	}
	err := db.Clauses(
		clause.OnConflict{
			Columns:   cols,
			DoUpdates: clause.AssignmentColumns(updateCols),
		},
		clause.Returning{},
	).Create(rec).Error
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}
