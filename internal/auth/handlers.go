package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/aldoetobex/rentify-backend/pkg/models"
	"github.com/aldoetobex/rentify-backend/pkg/validation"
)

/* ================================ DTOs ================================= */

// Request body for /signup. Admins are created with contractctl.
type SignupRequest struct {
	Role      string `json:"role" validate:"required,oneof=user renter"`
	FirstName string `json:"first_name" validate:"required,min=1,max=80"`
	LastName  string `json:"last_name" validate:"max=80"`
	Phone     string `json:"phone" validate:"max=40"`
	Email     string `json:"email" validate:"required,email,max=120"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
}

// Request body for /login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=120"`
	Password string `json:"password" validate:"required"`
}

// Standard auth response
type AuthResponse struct {
	Success bool   `json:"success" example:"true"`
	Token   string `json:"token"`
	Role    string `json:"role"`
}

// Profile response for /me
type UserProfileResponse struct {
	Success   bool        `json:"success" example:"true"`
	ID        uuid.UUID   `json:"id"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Phone     string      `json:"phone"`
	CreatedAt time.Time   `json:"created_at"`
}

/* ============================== Handler ================================= */

type Handler struct {
	db     *gorm.DB
	secret string
	ttl    time.Duration
	log    logrus.FieldLogger
}

func NewHandler(db *gorm.DB, secret string, ttl time.Duration, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{db: db, secret: secret, ttl: ttl, log: log}
}

// Register mounts /signup, /login and the authenticated /me.
func (h *Handler) Register(r fiber.Router) {
	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)
	r.Get("/me", RequireAuth(h.secret), h.Me)
}

// HashPassword returns the bcrypt hash stored on users.
func HashPassword(pw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

/* =============================== Signup ================================= */

// @Summary      Sign up
// @Description  Register a new user (user or renter)
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  SignupRequest  true  "Signup payload"
// @Success      201      {object}  AuthResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      409      {object}  models.ErrorResponse  "email already exists"
// @Router       /signup [post]
func (h *Handler) Signup(c *fiber.Ctx) error {
	var in SignupRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var exists int64
	if err := h.db.WithContext(c.UserContext()).Model(&models.User{}).
		Where("email = ?", in.Email).Count(&exists).Error; err != nil {
		h.log.WithError(err).Error("signup lookup failed")
		return fiber.ErrInternalServerError
	}
	if exists > 0 {
		return fiber.NewError(fiber.StatusConflict, "email already exists")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return fiber.ErrInternalServerError
	}

	u := models.User{
		Email:        in.Email,
		PasswordHash: hash,
		Role:         models.Role(in.Role),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        strings.TrimSpace(in.Phone),
	}
	if err := h.db.WithContext(c.UserContext()).Create(&u).Error; err != nil {
		// Lost a race on the unique email index.
		return fiber.NewError(fiber.StatusConflict, "email already exists")
	}

	token, err := IssueToken(h.secret, h.ttl, u.ID.String(), string(u.Role))
	if err != nil {
		h.log.WithError(err).Error("issue token failed")
		return fiber.ErrInternalServerError
	}
	h.log.WithFields(logrus.Fields{"user_id": u.ID, "role": u.Role}).Info("user signed up")
	return c.Status(fiber.StatusCreated).JSON(AuthResponse{Success: true, Token: token, Role: string(u.Role)})
}

/* ================================ Login ================================= */

// @Summary      Login
// @Description  Authenticate and receive a JWT
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  LoginRequest  true  "Login payload"
// @Success      200      {object}  AuthResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      401      {object}  models.ErrorResponse
// @Router       /login [post]
func (h *Handler) Login(c *fiber.Ctx) error {
	var in LoginRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var u models.User
	if err := h.db.WithContext(c.UserContext()).Where("email = ?", in.Email).First(&u).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			h.log.WithError(err).Error("login lookup failed")
		}
		return fiber.ErrUnauthorized
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return fiber.ErrUnauthorized
	}

	token, err := IssueToken(h.secret, h.ttl, u.ID.String(), string(u.Role))
	if err != nil {
		h.log.WithError(err).Error("issue token failed")
		return fiber.ErrInternalServerError
	}
	return c.JSON(AuthResponse{Success: true, Token: token, Role: string(u.Role)})
}

/* ================================= Me =================================== */

// @Summary      Get current user profile
// @Description  Return the profile of the authenticated user
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  UserProfileResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /me [get]
func (h *Handler) Me(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(string)
	if !ok || userID == "" {
		return fiber.ErrUnauthorized
	}

	var u models.User
	if err := h.db.WithContext(c.UserContext()).First(&u, "id = ?", userID).Error; err != nil {
		return fiber.ErrUnauthorized
	}

	return c.JSON(UserProfileResponse{
		Success:   true,
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		CreatedAt: u.CreatedAt,
	})
}
