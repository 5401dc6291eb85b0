package properties

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aldoetobex/rentify-backend/internal/auth"
	"github.com/aldoetobex/rentify-backend/internal/testutil"
	"github.com/aldoetobex/rentify-backend/pkg/models"
)

/* ============================================================================
   Helpers
   ============================================================================ */

// injectAuth stands in for RequireAuth in handler tests.
func injectAuth(userID uuid.UUID, role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("userID", userID.String())
		c.Locals("role", string(role))
		return c.Next()
	}
}

func newApp(db *gorm.DB, userID uuid.UUID, role models.Role) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	api := app.Group("/api", injectAuth(userID, role))
	NewHandler(db, nil).Register(api)
	return app
}

func call(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

/* ============================================================================
   Directory
   ============================================================================ */

func Test_Directory_FindProperty(t *testing.T) {
	db := testutil.OpenDB(t)
	owner := testutil.SeedUser(t, db, models.RoleUser, "Olivia")
	p := testutil.SeedProperty(t, db, owner.ID)

	dir := NewDirectory(db)
	got, err := dir.FindProperty(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, got.ListingOwner())
	assert.True(t, decimal.RequireFromString("15000").Equal(got.Price))

	_, err = dir.FindProperty(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

/* ============================================================================
   Handlers
   ============================================================================ */

func Test_Create_And_Get(t *testing.T) {
	db := testutil.OpenDB(t)
	owner := testutil.SeedUser(t, db, models.RoleUser, "Olivia")
	app := newApp(db, owner.ID, models.RoleUser)

	code, body := call(t, app, http.MethodPost, "/api/properties",
		`{"name":"Bay View","address":"1 Roxas Blvd","city":"Pasay","type":"Condo","price":"22000.50","description":"Call 0917 123 4567"}`)
	require.Equal(t, fiber.StatusCreated, code)
	prop := body["property"].(map[string]any)
	assert.Equal(t, "Available", prop["status"])
	assert.Equal(t, owner.ID.String(), prop["owner_id"])

	// owner sees the raw description
	code, body = call(t, app, http.MethodGet, "/api/properties/"+prop["id"].(string), "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Contains(t, body["property"].(map[string]any)["description"], "0917")

	// another user sees it redacted
	other := testutil.SeedUser(t, db, models.RoleRenter, "Rico")
	code, body = call(t, newApp(db, other.ID, models.RoleRenter), http.MethodGet, "/api/properties/"+prop["id"].(string), "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Contains(t, body["property"].(map[string]any)["description"], "[redacted phone]")
}

func Test_Create_RenterForbidden(t *testing.T) {
	db := testutil.OpenDB(t)
	renter := testutil.SeedUser(t, db, models.RoleRenter, "Rico")
	code, _ := call(t, newApp(db, renter.ID, models.RoleRenter), http.MethodPost, "/api/properties",
		`{"name":"X","address":"Y","price":"1"}`)
	assert.Equal(t, fiber.StatusForbidden, code)
}

func Test_Create_Validation(t *testing.T) {
	db := testutil.OpenDB(t)
	owner := testutil.SeedUser(t, db, models.RoleUser, "Olivia")
	code, body := call(t, newApp(db, owner.ID, models.RoleUser), http.MethodPost, "/api/properties", `{"status":"Sold"}`)
	require.Equal(t, fiber.StatusBadRequest, code)
	errs := body["errors"].(map[string]any)
	assert.Contains(t, errs, "name")
	assert.Contains(t, errs, "address")
	assert.Contains(t, errs, "status")
}

func Test_Get_NotFound(t *testing.T) {
	db := testutil.OpenDB(t)
	u := testutil.SeedUser(t, db, models.RoleUser, "Olivia")
	code, body := call(t, newApp(db, u.ID, models.RoleUser), http.MethodGet, "/api/properties/"+uuid.NewString(), "")
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func Test_Marketplace_Filters_And_Mine(t *testing.T) {
	db := testutil.OpenDB(t)
	owner := testutil.SeedUser(t, db, models.RoleUser, "Olivia")
	renter := testutil.SeedUser(t, db, models.RoleRenter, "Rico")

	p1 := testutil.SeedProperty(t, db, owner.ID) // Makati, Condo
	p1.Description = "Email me at olivia@example.com"
	require.NoError(t, db.Save(&p1).Error)

	p2 := testutil.SeedProperty(t, db, owner.ID)
	require.NoError(t, db.Model(&p2).Updates(map[string]any{"city": "Cebu", "type": "House"}).Error)

	p3 := testutil.SeedProperty(t, db, owner.ID)
	require.NoError(t, db.Model(&p3).Update("status", models.PropertyOccupied).Error)

	app := newApp(db, renter.ID, models.RoleRenter)

	code, body := call(t, app, http.MethodGet, "/api/properties?city=Makati", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.EqualValues(t, 1, body["total"])
	items := body["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Contains(t, item["preview"], "[redacted email]")
	assert.Equal(t, false, item["is_mine"])

	code, body = call(t, app, http.MethodGet, "/api/properties?status=Occupied", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.EqualValues(t, 1, body["total"])

	code, body = call(t, app, http.MethodGet, "/api/properties/mine", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.EqualValues(t, 0, body["total"])
	assert.NotNil(t, body["items"])

	code, body = call(t, newApp(db, owner.ID, models.RoleUser), http.MethodGet, "/api/properties/mine?pageSize=2", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.EqualValues(t, 3, body["total"])
	assert.EqualValues(t, 2, body["pages"])
	assert.Len(t, body["items"].([]any), 2)
}

func Test_Marketplace_PriceAndLocation(t *testing.T) {
	db := testutil.OpenDB(t)
	owner := testutil.SeedUser(t, db, models.RoleUser, "Olivia")

	cheap := testutil.SeedProperty(t, db, owner.ID) // 15000, Makati
	mid := testutil.SeedProperty(t, db, owner.ID)
	require.NoError(t, db.Model(&mid).Updates(map[string]any{"price": decimal.RequireFromString("22000"), "address": "8 Ayala Ave"}).Error)
	dear := testutil.SeedProperty(t, db, owner.ID)
	require.NoError(t, db.Model(&dear).Updates(map[string]any{"price": decimal.RequireFromString("40000"), "city": "Taguig"}).Error)

	app := newApp(db, owner.ID, models.RoleUser)
	ids := func(body map[string]any) []string {
		var out []string
		for _, it := range body["items"].([]any) {
			out = append(out, it.(map[string]any)["id"].(string))
		}
		return out
	}

	code, body := call(t, app, http.MethodGet, "/api/properties?min_price=20000&max_price=30000", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, []string{mid.ID.String()}, ids(body))

	code, body = call(t, app, http.MethodGet, "/api/properties?max_price=15000", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, []string{cheap.ID.String()}, ids(body))

	code, body = call(t, app, http.MethodGet, "/api/properties?location=ayala", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, []string{mid.ID.String()}, ids(body))

	code, body = call(t, app, http.MethodGet, "/api/properties?location=TAGUIG&min_price=30000", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, []string{dear.ID.String()}, ids(body))

	code, body = call(t, app, http.MethodGet, "/api/properties?min_price=cheap", "")
	require.Equal(t, fiber.StatusBadRequest, code)
	assert.Contains(t, body["errors"], "min_price")
}

func Test_Update_Property(t *testing.T) {
	db := testutil.OpenDB(t)
	owner := testutil.SeedUser(t, db, models.RoleUser, "Olivia")
	admin := testutil.SeedUser(t, db, models.RoleAdmin, "Ada")
	other := testutil.SeedUser(t, db, models.RoleUser, "Oscar")
	p := testutil.SeedProperty(t, db, owner.ID)
	path := "/api/properties/" + p.ID.String()

	code, body := call(t, newApp(db, owner.ID, models.RoleUser), http.MethodPut, path,
		`{"price":"18000","status":"Occupied","name":" Sunset Loft II "}`)
	require.Equal(t, fiber.StatusOK, code)
	prop := body["property"].(map[string]any)
	assert.Equal(t, "18000", prop["price"])
	assert.Equal(t, "Occupied", prop["status"])
	assert.Equal(t, "Sunset Loft II", prop["name"])
	assert.Equal(t, p.Address, prop["address"], "absent fields are kept")

	code, _ = call(t, newApp(db, other.ID, models.RoleUser), http.MethodPut, path, `{"price":"1"}`)
	assert.Equal(t, fiber.StatusForbidden, code)

	code, body = call(t, newApp(db, owner.ID, models.RoleUser), http.MethodPut, path, `{"price":"-5"}`)
	require.Equal(t, fiber.StatusBadRequest, code)
	assert.Contains(t, body["errors"], "price")

	code, body = call(t, newApp(db, owner.ID, models.RoleUser), http.MethodPut, path, `{"status":"Sold"}`)
	require.Equal(t, fiber.StatusBadRequest, code)
	assert.Contains(t, body["errors"], "status")

	code, _ = call(t, newApp(db, admin.ID, models.RoleAdmin), http.MethodPut, path, `{"type":"Loft"}`)
	require.Equal(t, fiber.StatusOK, code)

	var stored models.Property
	require.NoError(t, db.First(&stored, "id = ?", p.ID).Error)
	assert.Equal(t, "Loft", stored.Type)
	assert.True(t, decimal.RequireFromString("18000").Equal(stored.Price))
	assert.Equal(t, owner.ID, stored.OwnerID)
}

func Test_Delete_Property(t *testing.T) {
	db := testutil.OpenDB(t)
	owner := testutil.SeedUser(t, db, models.RoleUser, "Olivia")
	other := testutil.SeedUser(t, db, models.RoleUser, "Oscar")
	renter := testutil.SeedUser(t, db, models.RoleRenter, "Rico")
	app := newApp(db, owner.ID, models.RoleUser)

	free := testutil.SeedProperty(t, db, owner.ID)
	code, _ := call(t, newApp(db, other.ID, models.RoleUser), http.MethodDelete, "/api/properties/"+free.ID.String(), "")
	assert.Equal(t, fiber.StatusForbidden, code)

	// cancelled bookings do not block deletion and go with the listing
	require.NoError(t, db.Create(&models.Booking{
		UserID: renter.ID, PropertyID: free.ID, Name: "old stay",
		TotalPrice: decimal.Zero, Status: models.BookingCancelled,
	}).Error)
	code, body := call(t, app, http.MethodDelete, "/api/properties/"+free.ID.String(), "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, true, body["success"])
	var n int64
	require.NoError(t, db.Model(&models.Property{}).Where("id = ?", free.ID).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, db.Model(&models.Booking{}).Where("property_id = ?", free.ID).Count(&n).Error)
	assert.Zero(t, n)

	code, _ = call(t, app, http.MethodDelete, "/api/properties/"+free.ID.String(), "")
	assert.Equal(t, fiber.StatusNotFound, code)

	leased := testutil.SeedProperty(t, db, owner.ID)
	require.NoError(t, db.Create(&models.Contract{
		PropertyID: leased.ID, OwnerID: owner.ID, RenterID: &renter.ID,
		Currency: "PHP", Status: models.ContractPending,
	}).Error)
	code, body = call(t, app, http.MethodDelete, "/api/properties/"+leased.ID.String(), "")
	assert.Equal(t, fiber.StatusConflict, code)
	assert.Equal(t, "CONFLICT", body["code"])

	booked := testutil.SeedProperty(t, db, owner.ID)
	require.NoError(t, db.Create(&models.Booking{
		UserID: renter.ID, PropertyID: booked.ID, Name: "stay",
		TotalPrice: decimal.Zero, Status: models.BookingPending,
	}).Error)
	code, _ = call(t, app, http.MethodDelete, "/api/properties/"+booked.ID.String(), "")
	assert.Equal(t, fiber.StatusConflict, code)

	require.NoError(t, db.Model(&models.Property{}).Where("id IN ?", []uuid.UUID{leased.ID, booked.ID}).Count(&n).Error)
	assert.EqualValues(t, 2, n)
}
