// Package bookings lets renters reserve a stay at a listed property.
package bookings

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/aldoetobex/rentify-backend/internal/auth"
	"github.com/aldoetobex/rentify-backend/pkg/models"
	"github.com/aldoetobex/rentify-backend/pkg/validation"
)

// ===== DTOs =====

type CreateBookingRequest struct {
	PropertyID  string          `json:"property_id" validate:"required,uuid"`
	Name        string          `json:"name" validate:"max=120"`
	Description string          `json:"description" validate:"max=2000"`
	CheckIn     string          `json:"check_in" validate:"required,isodate" example:"2025-06-01"`
	CheckOut    string          `json:"check_out" validate:"required,isodate" example:"2025-06-05"`
	TotalPrice  decimal.Decimal `json:"total_price" swaggertype:"string" example:"6000.00"`
}

// UpdateBookingRequest changes only the fields that are present.
type UpdateBookingRequest struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=120"`
	Description *string          `json:"description" validate:"omitempty,max=2000"`
	CheckIn     *string          `json:"check_in" validate:"omitempty,isodate"`
	CheckOut    *string          `json:"check_out" validate:"omitempty,isodate"`
	TotalPrice  *decimal.Decimal `json:"total_price" swaggertype:"string"`
}

// PropertyLookup resolves listings. A missing listing is reported with an
// error wrapping gorm.ErrRecordNotFound.
type PropertyLookup interface {
	FindProperty(ctx context.Context, id uuid.UUID) (*models.Property, error)
}

type Handler struct {
	db    *gorm.DB
	props PropertyLookup
	log   logrus.FieldLogger
}

func NewHandler(db *gorm.DB, props PropertyLookup, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{db: db, props: props, log: log}
}

// Register mounts the booking routes on an authenticated router.
func (h *Handler) Register(r fiber.Router) {
	g := r.Group("/bookings")
	g.Post("/", h.Create)
	g.Get("/mine", h.ListMine)
	g.Get("/property/:propertyId", h.ListForProperty)
	g.Get("/:id", h.Get)
	g.Put("/:id", h.Update)
	g.Post("/:id/confirm", h.Confirm)
	g.Post("/:id/cancel", h.Cancel)
	g.Delete("/:id", h.Delete)
}

func parsePage(c *fiber.Ctx) (page, size int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	size, _ = strconv.Atoi(c.Query("pageSize", "10"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 50 {
		size = 10
	}
	return
}

// checkStay validates the date order and price of a booking.
func checkStay(b *models.Booking) validation.Errors {
	errs := validation.Errors{}
	if time.Time(b.CheckOut).Before(time.Time(b.CheckIn)) {
		errs.Add("check_out", "Must not be before check_in")
	}
	if b.TotalPrice.IsNegative() {
		errs.Add("total_price", "Must not be negative")
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func toDate(s string) datatypes.Date {
	t, _ := validation.ParseDate(s)
	if t == nil {
		return datatypes.Date{}
	}
	return datatypes.Date(*t)
}

/* ================================ Create ================================ */

// Create Booking godoc
// @Summary      Book a stay
// @Description  Reserves a property between two dates. The booking starts Pending.
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      CreateBookingRequest  true  "Booking"
// @Success      201      {object}  models.BookingResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      404      {object}  models.ErrorResponse  "property not found"
// @Router       /bookings [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	me, _, err := auth.Identity(c)
	if err != nil {
		return err
	}
	var in CreateBookingRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	prop, err := h.props.FindProperty(c.UserContext(), uuid.MustParse(in.PropertyID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "property not found")
		}
		h.log.WithError(err).Error("lookup property failed")
		return fiber.ErrInternalServerError
	}

	b := models.Booking{
		UserID:      me,
		PropertyID:  prop.ID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Address:     prop.Address,
		CheckIn:     toDate(in.CheckIn),
		CheckOut:    toDate(in.CheckOut),
		TotalPrice:  in.TotalPrice,
		Status:      models.BookingPending,
	}
	if b.Name == "" {
		b.Name = prop.Name
	}
	if errs := checkStay(&b); errs != nil {
		return validation.Respond(c, errs)
	}

	if err := h.db.WithContext(c.UserContext()).Create(&b).Error; err != nil {
		h.log.WithError(err).Error("create booking failed")
		return fiber.ErrInternalServerError
	}
	b.Property = prop
	return c.Status(fiber.StatusCreated).JSON(models.BookingResponse{Success: true, Booking: &b})
}

/* ================================= Read ================================= */

// List My Bookings godoc
// @Summary      My bookings
// @Description  Bookings made by the caller, newest first
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        page      query int false "page"
// @Param        pageSize  query int false "pageSize"
// @Success      200  {object}  models.BookingListResponse
// @Router       /bookings/mine [get]
func (h *Handler) ListMine(c *fiber.Ctx) error {
	me, _, err := auth.Identity(c)
	if err != nil {
		return err
	}
	q := h.db.WithContext(c.UserContext()).Model(&models.Booking{}).Where("user_id = ?", me)
	return h.page(c, q)
}

// List Property Bookings godoc
// @Summary      Bookings for a property
// @Description  Property owner or admin sees every booking of the listing
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        propertyId  path   string  true  "property id (uuid)"
// @Param        page        query  int     false "page"
// @Param        pageSize    query  int     false "pageSize"
// @Success      200  {object}  models.BookingListResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /bookings/property/{propertyId} [get]
func (h *Handler) ListForProperty(c *fiber.Ctx) error {
	me, role, err := auth.Identity(c)
	if err != nil {
		return err
	}
	pid, err := uuid.Parse(c.Params("propertyId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid property id")
	}
	prop, err := h.props.FindProperty(c.UserContext(), pid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "property not found")
		}
		return fiber.ErrInternalServerError
	}
	if prop.ListingOwner() != me && role != models.RoleAdmin {
		return fiber.NewError(fiber.StatusForbidden, "not the owner of this property")
	}
	q := h.db.WithContext(c.UserContext()).Model(&models.Booking{}).Where("property_id = ?", pid)
	return h.page(c, q)
}

func (h *Handler) page(c *fiber.Ctx, q *gorm.DB) error {
	page, size := parsePage(c)

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		h.log.WithError(err).Error("count bookings failed")
		return fiber.ErrInternalServerError
	}
	list := []models.Booking{}
	if err := q.Session(&gorm.Session{}).Preload("Property").
		Order("created_at DESC").Order("id").
		Offset((page - 1) * size).Limit(size).
		Find(&list).Error; err != nil {
		h.log.WithError(err).Error("list bookings failed")
		return fiber.ErrInternalServerError
	}
	return c.JSON(models.BookingListResponse{
		Success:  true,
		Page:     page,
		PageSize: size,
		Total:    total,
		Pages:    int(math.Ceil(float64(total) / float64(size))),
		Bookings: list,
	})
}

// Get Booking godoc
// @Summary      Booking detail
// @Description  Visible to the guest who booked, the property owner and admins
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "booking id (uuid)"
// @Success      200  {object}  models.BookingResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /bookings/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	b, err := h.load(c, guest|host)
	if err != nil {
		return err
	}
	return c.JSON(models.BookingResponse{Success: true, Booking: b})
}

/* ================================ Update ================================ */

// Update Booking godoc
// @Summary      Change booking
// @Description  Guest or admin changes dates, price or notes of a booking that is not cancelled
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                true  "booking id (uuid)"
// @Param        payload  body      UpdateBookingRequest  true  "Fields to change"
// @Success      200      {object}  models.BookingResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      403      {object}  models.ErrorResponse
// @Failure      409      {object}  models.ErrorResponse  "booking cancelled"
// @Router       /bookings/{id} [put]
func (h *Handler) Update(c *fiber.Ctx) error {
	b, err := h.load(c, guest)
	if err != nil {
		return err
	}
	if b.Status == models.BookingCancelled {
		return fiber.NewError(fiber.StatusConflict, "booking is cancelled")
	}
	var in UpdateBookingRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	if in.Name != nil {
		b.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		b.Description = strings.TrimSpace(*in.Description)
	}
	if in.CheckIn != nil {
		b.CheckIn = toDate(*in.CheckIn)
	}
	if in.CheckOut != nil {
		b.CheckOut = toDate(*in.CheckOut)
	}
	if in.TotalPrice != nil {
		b.TotalPrice = *in.TotalPrice
	}
	if errs := checkStay(b); errs != nil {
		return validation.Respond(c, errs)
	}

	if err := h.db.WithContext(c.UserContext()).Omit("Property").Save(b).Error; err != nil {
		h.log.WithError(err).WithField("booking_id", b.ID).Error("update booking failed")
		return fiber.ErrInternalServerError
	}
	return c.JSON(models.BookingResponse{Success: true, Booking: b})
}

// Confirm Booking godoc
// @Summary      Confirm booking
// @Description  Property owner or admin confirms a pending booking
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "booking id (uuid)"
// @Success      200  {object}  models.BookingResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse  "not pending"
// @Router       /bookings/{id}/confirm [post]
func (h *Handler) Confirm(c *fiber.Ctx) error {
	b, err := h.load(c, host)
	if err != nil {
		return err
	}
	return h.transition(c, b, models.BookingPending, models.BookingConfirmed)
}

// Cancel Booking godoc
// @Summary      Cancel booking
// @Description  Guest, property owner or admin cancels a booking
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "booking id (uuid)"
// @Success      200  {object}  models.BookingResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse  "already cancelled"
// @Router       /bookings/{id}/cancel [post]
func (h *Handler) Cancel(c *fiber.Ctx) error {
	b, err := h.load(c, guest|host)
	if err != nil {
		return err
	}
	return h.transition(c, b, "", models.BookingCancelled)
}

// transition moves b to next. from restricts the current status when set;
// a booking is never moved to the status it already has.
func (h *Handler) transition(c *fiber.Ctx, b *models.Booking, from, next models.BookingStatus) error {
	if b.Status == next || (from != "" && b.Status != from) {
		return fiber.NewError(fiber.StatusConflict, "booking is "+strings.ToLower(string(b.Status)))
	}
	prev := b.Status
	res := h.db.WithContext(c.UserContext()).Model(&models.Booking{}).
		Where("id = ? AND status = ?", b.ID, prev).
		Updates(map[string]any{"status": next, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		h.log.WithError(res.Error).WithField("booking_id", b.ID).Error("booking status update failed")
		return fiber.ErrInternalServerError
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusConflict, "booking changed concurrently")
	}
	b.Status = next
	h.log.WithFields(logrus.Fields{"booking_id": b.ID, "from": prev, "to": next}).Info("booking status changed")
	return c.JSON(models.BookingResponse{Success: true, Booking: b})
}

// Delete Booking godoc
// @Summary      Delete booking
// @Description  Guest or admin removes a booking
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "booking id (uuid)"
// @Success      200  {object}  models.MessageResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /bookings/{id} [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	b, err := h.load(c, guest)
	if err != nil {
		return err
	}
	if err := h.db.WithContext(c.UserContext()).Delete(&models.Booking{}, "id = ?", b.ID).Error; err != nil {
		h.log.WithError(err).WithField("booking_id", b.ID).Error("delete booking failed")
		return fiber.ErrInternalServerError
	}
	return c.JSON(models.MessageResponse{Success: true, Message: "Booking deleted"})
}

/* ================================ Access ================================ */

type party uint8

const (
	guest party = 1 << iota // the user who booked
	host                    // the property owner
)

// load fetches the booking in :id with its property and checks that the
// caller is one of allowed. Admins always pass.
func (h *Handler) load(c *fiber.Ctx, allowed party) (*models.Booking, error) {
	me, role, err := auth.Identity(c)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	var b models.Booking
	if err := h.db.WithContext(c.UserContext()).Preload("Property").First(&b, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "booking not found")
		}
		return nil, fiber.ErrInternalServerError
	}
	if role == models.RoleAdmin {
		return &b, nil
	}
	if allowed&guest != 0 && b.UserID == me {
		return &b, nil
	}
	if allowed&host != 0 && b.Property != nil && b.Property.ListingOwner() == me {
		return &b, nil
	}
	return nil, fiber.NewError(fiber.StatusForbidden, "not allowed to manage this booking")
}
