// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aldoetobex/rentify-backend/pkg/database"
	"github.com/aldoetobex/rentify-backend/pkg/models"
)

// OpenDB opens a private in-memory SQLite database with every table migrated.
// The pool holds a single connection, so code running inside a transaction
// must only use the transaction handle.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])

	db, err := database.Open(database.Options{Type: "sqlite", DSN: dsn, MaxOpenConns: 1, LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// SeedUser inserts a user with the given role.
func SeedUser(t *testing.T, db *gorm.DB, role models.Role, firstName string) models.User {
	t.Helper()
	u := models.User{
		Email:        strings.ToLower(firstName) + "-" + uuid.NewString()[:8] + "@example.com",
		PasswordHash: "x",
		Role:         role,
		FirstName:    firstName,
		LastName:     "Tester",
		Phone:        "+63 917 555 0101",
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

// SeedProperty inserts an available listing owned by ownerID.
func SeedProperty(t *testing.T, db *gorm.DB, ownerID uuid.UUID) models.Property {
	t.Helper()
	p := models.Property{
		OwnerID:     ownerID,
		Name:        "Sunset Loft",
		Description: "Two bedroom loft near the bay",
		Address:     "12 Mabini St",
		City:        "Makati",
		Province:    "Metro Manila",
		ZipCode:     "1200",
		Type:        "Condo",
		Price:       decimal.RequireFromString("15000"),
		Status:      models.PropertyAvailable,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}
