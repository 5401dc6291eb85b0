// Package properties is the listing directory contracts are created from.
package properties

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aldoetobex/rentify-backend/pkg/models"
)

// Directory reads listings from the database.
type Directory struct{ db *gorm.DB }

func NewDirectory(db *gorm.DB) *Directory { return &Directory{db: db} }

// FindProperty loads a listing. A missing listing wraps gorm.ErrRecordNotFound.
func (d *Directory) FindProperty(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	var p models.Property
	if err := d.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("find property %s: %w", id, err)
	}
	return &p, nil
}
