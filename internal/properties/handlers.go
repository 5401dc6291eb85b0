package properties

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/aldoetobex/rentify-backend/internal/auth"
	"github.com/aldoetobex/rentify-backend/pkg/models"
	"github.com/aldoetobex/rentify-backend/pkg/sanitize"
	"github.com/aldoetobex/rentify-backend/pkg/validation"
)

// ===== DTOs =====

type CreatePropertyRequest struct {
	Name        string          `json:"name" validate:"required,max=120"`
	Description string          `json:"description" validate:"max=4000"`
	Address     string          `json:"address" validate:"required,max=255"`
	City        string          `json:"city" validate:"max=80"`
	Province    string          `json:"province" validate:"max=80"`
	ZipCode     string          `json:"zip_code" validate:"max=20"`
	Type        string          `json:"type" validate:"max=40"`
	Price       decimal.Decimal `json:"price" swaggertype:"string" example:"15000.00"`
	Status      string          `json:"status" validate:"omitempty,oneof=Available Occupied 'Under Maintenance'"`
}

// UpdatePropertyRequest changes only the fields that are present.
type UpdatePropertyRequest struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=120"`
	Description *string          `json:"description" validate:"omitempty,max=4000"`
	Address     *string          `json:"address" validate:"omitempty,min=1,max=255"`
	City        *string          `json:"city" validate:"omitempty,max=80"`
	Province    *string          `json:"province" validate:"omitempty,max=80"`
	ZipCode     *string          `json:"zip_code" validate:"omitempty,max=20"`
	Type        *string          `json:"type" validate:"omitempty,max=40"`
	Price       *decimal.Decimal `json:"price" swaggertype:"string" example:"16000.00"`
	Status      *string          `json:"status" validate:"omitempty,oneof=Available Occupied 'Under Maintenance'"`
}

type PropertyResponse struct {
	Success  bool             `json:"success" example:"true"`
	Property *models.Property `json:"property"`
}

type MarketItem struct {
	ID        uuid.UUID             `json:"id"`
	Name      string                `json:"name"`
	City      string                `json:"city"`
	Province  string                `json:"province"`
	Type      string                `json:"type"`
	Price     decimal.Decimal       `json:"price" swaggertype:"string"`
	Status    models.PropertyStatus `json:"status"`
	Preview   string                `json:"preview"`
	IsMine    bool                  `json:"is_mine"`
	CreatedAt time.Time             `json:"created_at"`
}

type PageProperties struct {
	Success  bool         `json:"success" example:"true"`
	Page     int          `json:"page"`
	PageSize int          `json:"pageSize"`
	Total    int64        `json:"total"`
	Pages    int          `json:"pages"`
	Items    []MarketItem `json:"items"`
}

type Handler struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

func NewHandler(db *gorm.DB, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{db: db, log: log}
}

// Register mounts the property routes on an authenticated router.
func (h *Handler) Register(r fiber.Router) {
	g := r.Group("/properties")
	g.Post("/", auth.RequireRole(models.RoleUser, models.RoleAdmin), h.Create)
	g.Get("/", h.Marketplace)
	g.Get("/mine", h.ListMine)
	g.Get("/:id", h.Get)
	g.Put("/:id", h.Update)
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

// Create Property godoc
// @Summary      Create listing
// @Description  Property owner lists a property for rent
// @Tags         properties
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      CreatePropertyRequest  true  "Listing"
// @Success      201      {object}  PropertyResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      403      {object}  models.ErrorResponse
// @Router       /properties [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	ownerID, _, err := auth.Identity(c)
	if err != nil {
		return err
	}
	var in CreatePropertyRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	if in.Price.IsNegative() {
		return validation.Field(c, "price", "Must not be negative")
	}

	status := models.PropertyStatus(in.Status)
	if status == "" {
		status = models.PropertyAvailable
	}
	p := models.Property{
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Address:     strings.TrimSpace(in.Address),
		City:        strings.TrimSpace(in.City),
		Province:    strings.TrimSpace(in.Province),
		ZipCode:     strings.TrimSpace(in.ZipCode),
		Type:        strings.TrimSpace(in.Type),
		Price:       in.Price,
		Status:      status,
	}
	if err := h.db.WithContext(c.UserContext()).Create(&p).Error; err != nil {
		h.log.WithError(err).Error("create property failed")
		return fiber.ErrInternalServerError
	}
	return c.Status(fiber.StatusCreated).JSON(PropertyResponse{Success: true, Property: &p})
}

// Get Property godoc
// @Summary      Listing detail
// @Description  Contact details in the description are redacted for everyone but the owner and admins
// @Tags         properties
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "property id (uuid)"
// @Success      200  {object}  PropertyResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /properties/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	me, role, err := auth.Identity(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var p models.Property
	if err := h.db.WithContext(c.UserContext()).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	if p.ListingOwner() != me && role != models.RoleAdmin {
		p.Description = sanitize.RedactPII(p.Description)
	}
	return c.JSON(PropertyResponse{Success: true, Property: &p})
}

// Update Property godoc
// @Summary      Update listing
// @Description  Owner or admin changes listing fields; absent fields are left as they are
// @Tags         properties
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "property id (uuid)"
// @Param        payload  body      UpdatePropertyRequest  true  "Fields to change"
// @Success      200      {object}  PropertyResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      403      {object}  models.ErrorResponse
// @Failure      404      {object}  models.ErrorResponse
// @Router       /properties/{id} [put]
func (h *Handler) Update(c *fiber.Ctx) error {
	p, err := h.loadManaged(c)
	if err != nil {
		return err
	}
	var in UpdatePropertyRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	if in.Price != nil && in.Price.IsNegative() {
		return validation.Field(c, "price", "Must not be negative")
	}

	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&p.Name, in.Name)
	set(&p.Description, in.Description)
	set(&p.Address, in.Address)
	set(&p.City, in.City)
	set(&p.Province, in.Province)
	set(&p.ZipCode, in.ZipCode)
	set(&p.Type, in.Type)
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Status != nil {
		p.Status = models.PropertyStatus(*in.Status)
	}

	if err := h.db.WithContext(c.UserContext()).Save(p).Error; err != nil {
		h.log.WithError(err).WithField("property_id", p.ID).Error("update property failed")
		return fiber.ErrInternalServerError
	}
	return c.JSON(PropertyResponse{Success: true, Property: p})
}

// Delete Property godoc
// @Summary      Delete listing
// @Description  Owner or admin removes a listing. Listings referenced by contracts or open bookings cannot be deleted.
// @Tags         properties
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "property id (uuid)"
// @Success      200  {object}  models.MessageResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /properties/{id} [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	p, err := h.loadManaged(c)
	if err != nil {
		return err
	}

	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Contract{}).Where("property_id = ?", p.ID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fiber.NewError(fiber.StatusConflict, "property is referenced by contracts")
		}
		if err := tx.Model(&models.Booking{}).
			Where("property_id = ? AND status <> ?", p.ID, models.BookingCancelled).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fiber.NewError(fiber.StatusConflict, "property has open bookings")
		}
		if err := tx.Where("property_id = ?", p.ID).Delete(&models.Booking{}).Error; err != nil {
			return err
		}
		return tx.Delete(p).Error
	})
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return fe
		}
		h.log.WithError(err).WithField("property_id", p.ID).Error("delete property failed")
		return fiber.ErrInternalServerError
	}
	return c.JSON(models.MessageResponse{Success: true, Message: "Property deleted"})
}

// loadManaged loads the listing in :id and checks the caller may change it.
func (h *Handler) loadManaged(c *fiber.Ctx) (*models.Property, error) {
	me, role, err := auth.Identity(c)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	var p models.Property
	if err := h.db.WithContext(c.UserContext()).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.ErrNotFound
		}
		return nil, fiber.ErrInternalServerError
	}
	if p.ListingOwner() != me && role != models.RoleAdmin {
		return nil, fiber.NewError(fiber.StatusForbidden, "not the owner of this property")
	}
	return &p, nil
}

// List My Properties godoc
// @Summary      My listings
// @Description  Listings owned by the caller, newest first
// @Tags         properties
// @Security     BearerAuth
// @Produce      json
// @Param        page      query int false "page"
// @Param        pageSize  query int false "pageSize"
// @Success      200  {object}  PageProperties
// @Router       /properties/mine [get]
func (h *Handler) ListMine(c *fiber.Ctx) error {
	me, _, err := auth.Identity(c)
	if err != nil {
		return err
	}
	q := h.db.WithContext(c.UserContext()).Model(&models.Property{}).
		Where("owner_id = ? OR (owner_id = ? AND posted_by_id = ?)", me, uuid.Nil, me)
	return h.page(c, q, me, false)
}

// Marketplace godoc
// @Summary      Marketplace
// @Description  Browse listings with server-side filters; previews have contact details redacted
// @Tags         properties
// @Security     BearerAuth
// @Produce      json
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Param        city      query string false "city"
// @Param        type      query string false "property type"
// @Param        status    query string false "Available (default), Occupied, Under Maintenance"
// @Param        location  query string false "substring of address or city"
// @Param        min_price query string false "minimum monthly price"
// @Param        max_price query string false "maximum monthly price"
// @Success      200  {object}  PageProperties
// @Router       /properties [get]
func (h *Handler) Marketplace(c *fiber.Ctx) error {
	me, _, err := auth.Identity(c)
	if err != nil {
		return err
	}
	status := strings.TrimSpace(c.Query("status", string(models.PropertyAvailable)))

	q := h.db.WithContext(c.UserContext()).Model(&models.Property{}).Where("status = ?", status)
	if city := strings.TrimSpace(c.Query("city")); city != "" {
		q = q.Where("city = ?", city)
	}
	if typ := strings.TrimSpace(c.Query("type")); typ != "" {
		q = q.Where("type = ?", typ)
	}
	if loc := strings.ToLower(strings.TrimSpace(c.Query("location"))); loc != "" {
		like := "%" + loc + "%"
		q = q.Where("(LOWER(address) LIKE ? OR LOWER(city) LIKE ?)", like, like)
	}
	for _, b := range []struct{ param, op string }{{"min_price", ">="}, {"max_price", "<="}} {
		raw := strings.TrimSpace(c.Query(b.param))
		if raw == "" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return validation.Field(c, b.param, "Must be a number")
		}
		q = q.Where("price "+b.op+" ?", v)
	}
	return h.page(c, q, me, true)
}

func (h *Handler) page(c *fiber.Ctx, q *gorm.DB, me uuid.UUID, redact bool) error {
	page, size := parsePage(c)

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		h.log.WithError(err).Error("count properties failed")
		return fiber.ErrInternalServerError
	}

	var list []models.Property
	if err := q.Session(&gorm.Session{}).Order("created_at DESC").Order("id").
		Offset((page - 1) * size).Limit(size).
		Find(&list).Error; err != nil {
		h.log.WithError(err).Error("list properties failed")
		return fiber.ErrInternalServerError
	}

	items := make([]MarketItem, 0, len(list))
	for _, p := range list {
		desc := p.Description
		if redact {
			desc = sanitize.RedactPII(desc)
		}
		items = append(items, MarketItem{
			ID:        p.ID,
			Name:      p.Name,
			City:      p.City,
			Province:  p.Province,
			Type:      p.Type,
			Price:     p.Price,
			Status:    p.Status,
			Preview:   sanitize.Summary(desc, 240),
			IsMine:    p.ListingOwner() == me,
			CreatedAt: p.CreatedAt,
		})
	}

	return c.JSON(PageProperties{
		Success:  true,
		Page:     page,
		PageSize: size,
		Total:    total,
		Pages:    int(math.Ceil(float64(total) / float64(size))),
		Items:    items,
	})
}
