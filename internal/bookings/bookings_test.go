package bookings

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aldoetobex/rentify-backend/internal/auth"
	"github.com/aldoetobex/rentify-backend/internal/properties"
	"github.com/aldoetobex/rentify-backend/internal/testutil"
	"github.com/aldoetobex/rentify-backend/pkg/models"
)

/* ============================================================================
   Helpers
   ============================================================================ */

// injectAuth stands in for RequireAuth in handler tests.
func injectAuth(u models.User) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(auth.LocalUserID, u.ID.String())
		c.Locals(auth.LocalRole, string(u.Role))
		return c.Next()
	}
}

type fixture struct {
	db                            *gorm.DB
	owner, guest, admin, stranger models.User
	prop                          models.Property
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	f := &fixture{
		db:       db,
		owner:    testutil.SeedUser(t, db, models.RoleUser, "Olivia"),
		guest:    testutil.SeedUser(t, db, models.RoleRenter, "Rico"),
		admin:    testutil.SeedUser(t, db, models.RoleAdmin, "Ada"),
		stranger: testutil.SeedUser(t, db, models.RoleRenter, "Sam"),
	}
	f.prop = testutil.SeedProperty(t, db, f.owner.ID)
	return f
}

func (f *fixture) app(u models.User) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	api := app.Group("/api", injectAuth(u))
	NewHandler(f.db, properties.NewDirectory(f.db), nil).Register(api)
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

func bookingOf(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	b, ok := body["booking"].(map[string]any)
	require.True(t, ok, "response has a booking: %v", body)
	return b
}

// book creates a pending booking as the fixture guest and returns its id.
func (f *fixture) book(t *testing.T) string {
	t.Helper()
	code, body := call(t, f.app(f.guest), http.MethodPost, "/api/bookings", fmt.Sprintf(
		`{"property_id":"%s","check_in":"2025-06-01","check_out":"2025-06-05","total_price":"6000.00"}`, f.prop.ID))
	require.Equal(t, fiber.StatusCreated, code, "%v", body)
	return bookingOf(t, body)["id"].(string)
}

/* ============================================================================
   Create
   ============================================================================ */

func Test_Create_Booking(t *testing.T) {
	f := newFixture(t)
	code, body := call(t, f.app(f.guest), http.MethodPost, "/api/bookings", fmt.Sprintf(
		`{"property_id":"%s","check_in":"2025-06-01","check_out":"2025-06-05","total_price":"6000.50"}`, f.prop.ID))
	require.Equal(t, fiber.StatusCreated, code)

	b := bookingOf(t, body)
	assert.Equal(t, "Pending", b["status"])
	assert.Equal(t, f.guest.ID.String(), b["user_id"])
	assert.Equal(t, "6000.5", b["total_price"])
	assert.Equal(t, f.prop.Name, b["name"], "name defaults to the listing")
	assert.Equal(t, f.prop.Address, b["address"])
	assert.True(t, strings.HasPrefix(b["check_in"].(string), "2025-06-01"))
}

func Test_Create_PropertyNotFound(t *testing.T) {
	f := newFixture(t)
	code, body := call(t, f.app(f.guest), http.MethodPost, "/api/bookings", fmt.Sprintf(
		`{"property_id":"%s","check_in":"2025-06-01","check_out":"2025-06-05"}`, uuid.New()))
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func Test_Create_Validation(t *testing.T) {
	f := newFixture(t)
	app := f.app(f.guest)

	code, body := call(t, app, http.MethodPost, "/api/bookings", `{"property_id":"nope","check_in":"06/01/2025"}`)
	require.Equal(t, fiber.StatusBadRequest, code)
	errs := body["errors"].(map[string]any)
	assert.Contains(t, errs, "property_id")
	assert.Contains(t, errs, "check_in")
	assert.Contains(t, errs, "check_out")

	code, body = call(t, app, http.MethodPost, "/api/bookings", fmt.Sprintf(
		`{"property_id":"%s","check_in":"2025-06-05","check_out":"2025-06-01","total_price":"-1"}`, f.prop.ID))
	require.Equal(t, fiber.StatusBadRequest, code)
	errs = body["errors"].(map[string]any)
	assert.Contains(t, errs, "check_out")
	assert.Contains(t, errs, "total_price")

	// same-day stay is allowed
	code, _ = call(t, app, http.MethodPost, "/api/bookings", fmt.Sprintf(
		`{"property_id":"%s","check_in":"2025-06-05","check_out":"2025-06-05"}`, f.prop.ID))
	assert.Equal(t, fiber.StatusCreated, code)
}

/* ============================================================================
   Read
   ============================================================================ */

func Test_Get_Access(t *testing.T) {
	f := newFixture(t)
	id := f.book(t)

	for _, u := range []models.User{f.guest, f.owner, f.admin} {
		code, body := call(t, f.app(u), http.MethodGet, "/api/bookings/"+id, "")
		require.Equal(t, fiber.StatusOK, code, u.FirstName)
		assert.Equal(t, id, bookingOf(t, body)["id"])
	}

	code, _ := call(t, f.app(f.stranger), http.MethodGet, "/api/bookings/"+id, "")
	assert.Equal(t, fiber.StatusForbidden, code)

	code, _ = call(t, f.app(f.guest), http.MethodGet, "/api/bookings/"+uuid.NewString(), "")
	assert.Equal(t, fiber.StatusNotFound, code)
}

func Test_ListMine_And_ForProperty(t *testing.T) {
	f := newFixture(t)
	f.book(t)
	f.book(t)

	code, body := call(t, f.app(f.guest), http.MethodGet, "/api/bookings/mine", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.EqualValues(t, 2, body["total"])
	first := body["bookings"].([]any)[0].(map[string]any)
	assert.NotNil(t, first["property"])

	code, body = call(t, f.app(f.stranger), http.MethodGet, "/api/bookings/mine", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.EqualValues(t, 0, body["total"])
	assert.NotNil(t, body["bookings"])

	path := "/api/bookings/property/" + f.prop.ID.String()
	code, body = call(t, f.app(f.owner), http.MethodGet, path, "")
	require.Equal(t, fiber.StatusOK, code)
	assert.EqualValues(t, 2, body["total"])

	code, _ = call(t, f.app(f.guest), http.MethodGet, path, "")
	assert.Equal(t, fiber.StatusForbidden, code)

	code, _ = call(t, f.app(f.owner), http.MethodGet, "/api/bookings/property/"+uuid.NewString(), "")
	assert.Equal(t, fiber.StatusNotFound, code)
}

/* ============================================================================
   Update / status
   ============================================================================ */

func Test_Update_Booking(t *testing.T) {
	f := newFixture(t)
	id := f.book(t)

	code, body := call(t, f.app(f.guest), http.MethodPut, "/api/bookings/"+id,
		`{"check_out":"2025-06-08","total_price":"9000","description":"late arrival"}`)
	require.Equal(t, fiber.StatusOK, code)
	b := bookingOf(t, body)
	assert.True(t, strings.HasPrefix(b["check_out"].(string), "2025-06-08"))
	assert.Equal(t, "9000", b["total_price"])
	assert.Equal(t, "late arrival", b["description"])

	// check-out may not move before check-in
	code, body = call(t, f.app(f.guest), http.MethodPut, "/api/bookings/"+id, `{"check_out":"2025-05-30"}`)
	require.Equal(t, fiber.StatusBadRequest, code)
	assert.Contains(t, body["errors"], "check_out")

	// the host can see the booking but not rewrite it
	code, _ = call(t, f.app(f.owner), http.MethodPut, "/api/bookings/"+id, `{"total_price":"1"}`)
	assert.Equal(t, fiber.StatusForbidden, code)

	var stored models.Booking
	require.NoError(t, f.db.First(&stored, "id = ?", id).Error)
	assert.Equal(t, "9000", stored.TotalPrice.String())
}

func Test_Confirm_And_Cancel(t *testing.T) {
	f := newFixture(t)
	id := f.book(t)

	code, _ := call(t, f.app(f.guest), http.MethodPost, "/api/bookings/"+id+"/confirm", "")
	assert.Equal(t, fiber.StatusForbidden, code, "guests cannot confirm their own booking")

	code, body := call(t, f.app(f.owner), http.MethodPost, "/api/bookings/"+id+"/confirm", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "Confirmed", bookingOf(t, body)["status"])

	code, _ = call(t, f.app(f.owner), http.MethodPost, "/api/bookings/"+id+"/confirm", "")
	assert.Equal(t, fiber.StatusConflict, code)

	code, _ = call(t, f.app(f.stranger), http.MethodPost, "/api/bookings/"+id+"/cancel", "")
	assert.Equal(t, fiber.StatusForbidden, code)

	code, body = call(t, f.app(f.guest), http.MethodPost, "/api/bookings/"+id+"/cancel", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "Cancelled", bookingOf(t, body)["status"])

	code, body = call(t, f.app(f.guest), http.MethodPost, "/api/bookings/"+id+"/cancel", "")
	assert.Equal(t, fiber.StatusConflict, code)
	assert.Equal(t, "CONFLICT", body["code"])

	code, _ = call(t, f.app(f.guest), http.MethodPut, "/api/bookings/"+id, `{"name":"again"}`)
	assert.Equal(t, fiber.StatusConflict, code, "cancelled bookings are frozen")
}

func Test_Delete_Booking(t *testing.T) {
	f := newFixture(t)
	id := f.book(t)

	code, _ := call(t, f.app(f.owner), http.MethodDelete, "/api/bookings/"+id, "")
	assert.Equal(t, fiber.StatusForbidden, code)

	code, body := call(t, f.app(f.admin), http.MethodDelete, "/api/bookings/"+id, "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, true, body["success"])

	var n int64
	require.NoError(t, f.db.Model(&models.Booking{}).Where("id = ?", id).Count(&n).Error)
	assert.Zero(t, n)

	code, _ = call(t, f.app(f.guest), http.MethodDelete, "/api/bookings/"+id, "")
	assert.Equal(t, fiber.StatusNotFound, code)
}
