// Package repo holds the pieces every gorm repository in the service shares.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Base binds a repository to a connection or to an open transaction.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// Bind returns a Base on tx, or b itself when tx is nil.
func (b Base) Bind(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// DB returns the connection bound to ctx.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Upsert inserts value, or overwrites updates on the row matching the conflict key.
// Status tables use it so a row per key always reflects the last write.
func (b Base) Upsert(ctx context.Context, value any, conflict []string, updates []string) error {
	cols := make([]clause.Column, 0, len(conflict))
	for _, name := range conflict {
		cols = append(cols, clause.Column{Name: name})
	}
	return b.DB(ctx).Clauses(clause.OnConflict{
		Columns:   cols,
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(value).Error
}

// InsertIgnore inserts value unless a row with the same unique key exists. It reports
// whether a row was written.
func (b Base) InsertIgnore(ctx context.Context, value any) (bool, error) {
	res := b.DB(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(value)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
