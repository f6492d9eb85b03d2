// Package softdelete implements logical deletion with a tombstone timestamp.
//
// Entities embed Model and every query path picks one of the explicit scopes
// (Live, Only, All); there is no implicit default view, so a repository can
// never accidentally leak tombstoned rows.
package softdelete

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Model is embedded by soft-deletable entities.
type Model struct {
	DeletedAt *time.Time `gorm:"column:deleted_at;index" json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the tombstone is set.
func (m Model) IsDeleted() bool {
	return m.DeletedAt != nil
}

// Live scopes the query to rows whose tombstone is unset.
func Live(db *gorm.DB) *gorm.DB {
	return db.Where("deleted_at IS NULL")
}

// Only scopes the query to tombstoned rows.
func Only(db *gorm.DB) *gorm.DB {
	return db.Where("deleted_at IS NOT NULL")
}

// All is the identity scope; it exists so call sites state their view choice.
func All(db *gorm.DB) *gorm.DB {
	return db
}

// LiveOn qualifies the tombstone check with a table name for joined queries.
func LiveOn(table string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(table + ".deleted_at IS NULL")
	}
}

// SoftDelete sets the tombstone on the given entity. Idempotent: a row that is
// already tombstoned is left untouched, preserving the original deletion time.
func SoftDelete(ctx context.Context, db *gorm.DB, entity any) error {
	return db.WithContext(ctx).
		Model(entity).
		Where("deleted_at IS NULL").
		UpdateColumn("deleted_at", time.Now().UTC()).Error
}

// Restore clears the tombstone. Idempotent: a live row is a no-op.
func Restore(ctx context.Context, db *gorm.DB, entity any) error {
	return db.WithContext(ctx).
		Model(entity).
		Where("deleted_at IS NOT NULL").
		UpdateColumn("deleted_at", nil).Error
}

// HardDelete physically removes the row, bypassing the tombstone policy.
// Reserved for administrative cleanup; never invoked by ordinary requests.
func HardDelete(ctx context.Context, db *gorm.DB, entity any) error {
	return db.WithContext(ctx).Delete(entity).Error
}
