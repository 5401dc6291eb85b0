package contracts

import (
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/aldoetobex/rentify-backend/internal/auth"
	"github.com/aldoetobex/rentify-backend/pkg/models"
	"github.com/aldoetobex/rentify-backend/pkg/validation"
)

/* ================================ DTOs ================================= */

type ScheduleItemRequest struct {
	DueDate    string          `json:"due_date" validate:"required,isodate"`
	Amount     decimal.Decimal `json:"amount" swaggertype:"string" example:"15000.00"`
	Status     string          `json:"status" validate:"omitempty,oneof=due paid overdue"`
	PaymentRef string          `json:"payment_ref" validate:"max=120"`
}

type CreateContractRequest struct {
	PropertyID      string                `json:"property_id" validate:"required,uuid"`
	RenterID        string                `json:"renter_id" validate:"omitempty,uuid"`
	StartDate       string                `json:"start_date" validate:"omitempty,isodate" example:"2025-04-01"`
	EndDate         string                `json:"end_date" validate:"omitempty,isodate" example:"2026-03-31"`
	RentAmount      *decimal.Decimal      `json:"rent_amount" swaggertype:"string" example:"15000.00"`
	SecurityDeposit *decimal.Decimal      `json:"security_deposit" swaggertype:"string" example:"30000.00"`
	TotalAmount     *decimal.Decimal      `json:"total_amount" swaggertype:"string"`
	Currency        string                `json:"currency" validate:"omitempty,currency" example:"PHP"`
	Notes           string                `json:"notes" validate:"max=2000"`
	PaymentSchedule []ScheduleItemRequest `json:"payment_schedule" validate:"omitempty,max=120,dive"`
}

type UpdateContractRequest struct {
	RenterID        *string                `json:"renter_id" validate:"omitempty,uuid"`
	StartDate       *string                `json:"start_date" validate:"omitempty,isodate"`
	EndDate         *string                `json:"end_date" validate:"omitempty,isodate"`
	RentAmount      *decimal.Decimal       `json:"rent_amount" swaggertype:"string"`
	SecurityDeposit *decimal.Decimal       `json:"security_deposit" swaggertype:"string"`
	TotalAmount     *decimal.Decimal       `json:"total_amount" swaggertype:"string"`
	Currency        *string                `json:"currency" validate:"omitempty,currency"`
	Notes           *string                `json:"notes" validate:"omitempty,max=2000"`
	PaymentSchedule *[]ScheduleItemRequest `json:"payment_schedule" validate:"omitempty,max=120,dive"`
	Payments        *[]string              `json:"payments" validate:"omitempty,max=100"`
}

type SignatureRequest struct {
	Name string `json:"name" validate:"max=120"`
}

type AcceptRequest struct {
	Signature SignatureRequest `json:"signature"`
	Notes     string           `json:"notes" validate:"max=1000"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

type NotesRequest struct {
	Notes string `json:"notes" validate:"required,max=2000"`
}

type CompleteRequest struct {
	Notes string `json:"notes" validate:"max=1000"`
}

type UploadResponse struct {
	Success  bool                      `json:"success" example:"true"`
	Added    []models.ContractDocument `json:"added"`
	Contract *models.Contract          `json:"contract"`
}

type SignedURLResponse struct {
	Success   bool      `json:"success" example:"true"`
	URL       string    `json:"url"`
	ExpiresIn int       `json:"expires_in" example:"60"`
	Now       time.Time `json:"now"`
}

type PDFJobResponse struct {
	Success bool           `json:"success" example:"true"`
	Job     *models.PDFJob `json:"job"`
}

/* ============================== Handler ================================= */

type Handler struct {
	svc *Service
	log logrus.FieldLogger
}

func NewHandler(svc *Service, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{svc: svc, log: log}
}

// Register mounts the contract routes. Static paths come before /:id so
// they are not captured by it.
func (h *Handler) Register(r fiber.Router) {
	g := r.Group("/contracts")

	g.Post("/", h.Create)
	g.Get("/me", h.ListMine)
	g.Get("/user/:userId", h.ListByUser)
	g.Get("/property/:propertyId", h.ListByProperty)

	g.Get("/:id", h.Get)
	g.Put("/:id", h.Update)
	g.Post("/:id/docs", h.UploadDocuments)
	g.Get("/:id/documents/:docId/url", h.DocumentURL)
	g.Post("/:id/accept", h.Accept)
	g.Post("/:id/cancel", h.Cancel)
	g.Post("/:id/complete", h.Complete)
	g.Post("/:id/propose-edit", h.ProposeEdit)
	g.Get("/:id/pdf", h.ExportPDF)
	g.Post("/:id/pdf/regenerate", auth.RequireRole(models.RoleAdmin), h.RegeneratePDF)
}

func callerFrom(c *fiber.Ctx) (Caller, error) {
	id, role, err := auth.Identity(c)
	if err != nil {
		return Caller{}, err
	}
	return Caller{ID: id, Role: role}, nil
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func parsePage(c *fiber.Ctx) PageRequest {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	size, _ := strconv.Atoi(c.Query("pageSize", "10"))
	return PageRequest{Page: page, PageSize: size}.normalized()
}

// fail converts a service error to a fiber error and logs internal ones.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe
	}
	fe = toFiberError(err)
	if fe.Code == fiber.StatusInternalServerError {
		h.log.WithError(err).WithFields(logrus.Fields{
			"method": c.Method(),
			"path":   c.Path(),
		}).Error("request failed")
	}
	return fe
}

func (h *Handler) contract(c *fiber.Ctx, status int, ct *models.Contract) error {
	return c.Status(status).JSON(models.ContractResponse{Success: true, Contract: ct})
}

func (h *Handler) page(c *fiber.Ctx, res *ListResult) error {
	return c.JSON(models.ContractListResponse{
		Success:   true,
		Page:      res.Page,
		PageSize:  res.PageSize,
		Total:     res.Total,
		Pages:     res.Pages,
		Contracts: res.Contracts,
	})
}

/* =============================== Create ================================= */

// Create godoc
// @Summary      Create contract
// @Description  Opens a pending contract for a property. The owner is taken from the listing.
// @Tags         contracts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      CreateContractRequest  true  "Contract terms"
// @Success      201      {object}  models.ContractResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      404      {object}  models.ErrorResponse  "property not found"
// @Router       /contracts [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	var in CreateContractRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	input := CreateInput{
		PropertyID:      uuid.MustParse(in.PropertyID),
		RentAmount:      in.RentAmount,
		SecurityDeposit: in.SecurityDeposit,
		TotalAmount:     in.TotalAmount,
		Currency:        in.Currency,
		Notes:           in.Notes,
	}
	if in.RenterID != "" {
		rid := uuid.MustParse(in.RenterID)
		input.RenterID = &rid
	}
	// Formats were checked by the isodate rule.
	input.StartDate, _ = validation.ParseDate(in.StartDate)
	input.EndDate, _ = validation.ParseDate(in.EndDate)
	input.PaymentSchedule = scheduleInputs(in.PaymentSchedule)

	ct, err := h.svc.Create(c.UserContext(), caller, input)
	if err != nil {
		return h.fail(c, err)
	}
	return h.contract(c, fiber.StatusCreated, ct)
}

func scheduleInputs(items []ScheduleItemRequest) []ScheduleInput {
	out := make([]ScheduleInput, 0, len(items))
	for _, it := range items {
		due, _ := validation.ParseDate(it.DueDate)
		si := ScheduleInput{
			Amount:     it.Amount,
			Status:     models.ScheduleStatus(it.Status),
			PaymentRef: it.PaymentRef,
		}
		if due != nil {
			si.DueDate = *due
		}
		out = append(out, si)
	}
	return out
}

/* =============================== Queries ================================ */

// Get godoc
// @Summary      Contract detail
// @Description  Parties to the contract and admins can read it
// @Tags         contracts
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "contract id (uuid)"
// @Success      200  {object}  models.ContractResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /contracts/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	ct, err := h.svc.Get(c.UserContext(), caller, id)
	if err != nil {
		return h.fail(c, err)
	}
	return h.contract(c, fiber.StatusOK, ct)
}

// ListMine godoc
// @Summary      My contracts
// @Description  Contracts where the caller is owner or renter, newest first
// @Tags         contracts
// @Security     BearerAuth
// @Produce      json
// @Param        page      query     int  false  "page"
// @Param        pageSize  query     int  false  "pageSize (max 50)"
// @Success      200       {object}  models.ContractListResponse
// @Failure      401       {object}  models.ErrorResponse
// @Router       /contracts/me [get]
func (h *Handler) ListMine(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	res, err := h.svc.ListByUser(c.UserContext(), caller, caller.ID, parsePage(c))
	if err != nil {
		return h.fail(c, err)
	}
	return h.page(c, res)
}

// ListByUser godoc
// @Summary      Contracts of a user
// @Description  The user themself or an admin
// @Tags         contracts
// @Security     BearerAuth
// @Produce      json
// @Param        userId    path      string  true   "user id (uuid)"
// @Param        page      query     int     false  "page"
// @Param        pageSize  query     int     false  "pageSize (max 50)"
// @Success      200       {object}  models.ContractListResponse
// @Failure      403       {object}  models.ErrorResponse
// @Router       /contracts/user/{userId} [get]
func (h *Handler) ListByUser(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	userID, err := paramUUID(c, "userId")
	if err != nil {
		return err
	}
	res, err := h.svc.ListByUser(c.UserContext(), caller, userID, parsePage(c))
	if err != nil {
		return h.fail(c, err)
	}
	return h.page(c, res)
}

// ListByProperty godoc
// @Summary      Contracts of a property
// @Description  Listing owner and admins see all contracts; other users only their own
// @Tags         contracts
// @Security     BearerAuth
// @Produce      json
// @Param        propertyId  path      string  true   "property id (uuid)"
// @Param        page        query     int     false  "page"
// @Param        pageSize    query     int     false  "pageSize (max 50)"
// @Success      200         {object}  models.ContractListResponse
// @Failure      404         {object}  models.ErrorResponse
// @Router       /contracts/property/{propertyId} [get]
func (h *Handler) ListByProperty(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	propertyID, err := paramUUID(c, "propertyId")
	if err != nil {
		return err
	}
	res, err := h.svc.ListByProperty(c.UserContext(), caller, propertyID, parsePage(c))
	if err != nil {
		return h.fail(c, err)
	}
	return h.page(c, res)
}

/* =============================== Update ================================= */

// Update godoc
// @Summary      Update contract terms
// @Description  Owner or admin; only while the contract is draft or pending
// @Tags         contracts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "contract id (uuid)"
// @Param        payload  body      UpdateContractRequest  true  "Fields to change"
// @Success      200      {object}  models.ContractResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      403      {object}  models.ErrorResponse
// @Failure      409      {object}  models.ErrorResponse
// @Router       /contracts/{id} [put]
func (h *Handler) Update(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var in UpdateContractRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	input := UpdateInput{
		RentAmount:      in.RentAmount,
		SecurityDeposit: in.SecurityDeposit,
		TotalAmount:     in.TotalAmount,
		Currency:        in.Currency,
		Notes:           in.Notes,
		Payments:        in.Payments,
	}
	if in.RenterID != nil {
		rid, err := uuid.Parse(*in.RenterID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid renter_id")
		}
		input.RenterID = &rid
	}
	if in.StartDate != nil {
		input.StartDate, _ = validation.ParseDate(*in.StartDate)
	}
	if in.EndDate != nil {
		input.EndDate, _ = validation.ParseDate(*in.EndDate)
	}
	if in.PaymentSchedule != nil {
		items := scheduleInputs(*in.PaymentSchedule)
		input.PaymentSchedule = &items
	}

	ct, err := h.svc.Update(c.UserContext(), caller, id, input)
	if err != nil {
		return h.fail(c, err)
	}
	return h.contract(c, fiber.StatusOK, ct)
}

/* ============================== Documents =============================== */

// UploadDocuments godoc
// @Summary      Upload contract documents
// @Description  Parties or admin attach up to 5 files (field "docs")
// @Tags         contracts
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id    path      string  true  "contract id (uuid)"
// @Param        docs  formData  []file  true  "files"
// @Success      201   {object}  UploadResponse
// @Failure      400   {object}  models.ErrorResponse
// @Failure      403   {object}  models.ErrorResponse
// @Failure      404   {object}  models.ErrorResponse
// @Router       /contracts/{id}/docs [post]
func (h *Handler) UploadDocuments(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart form required; use docs")
	}
	// Swagger UI and some clients send docs[] or files.
	files := form.File["docs"]
	if len(files) == 0 {
		files = form.File["docs[]"]
	}
	if len(files) == 0 {
		files = form.File["files"]
	}

	uploads := make([]Upload, 0, len(files))
	for _, fh := range files {
		uploads = append(uploads, Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Open:        func() (io.ReadCloser, error) { return fh.Open() },
		})
	}

	ct, added, err := h.svc.UploadDocuments(c.UserContext(), caller, id, uploads)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(UploadResponse{Success: true, Added: added, Contract: ct})
}

// DocumentURL godoc
// @Summary      Signed document URL
// @Description  Short-lived download link for a contract document
// @Tags         contracts
// @Security     BearerAuth
// @Produce      json
// @Param        id     path      string  true  "contract id (uuid)"
// @Param        docId  path      string  true  "document id (uuid)"
// @Success      200    {object}  SignedURLResponse
// @Failure      403    {object}  models.ErrorResponse
// @Failure      404    {object}  models.ErrorResponse
// @Router       /contracts/{id}/documents/{docId}/url [get]
func (h *Handler) DocumentURL(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	docID, err := paramUUID(c, "docId")
	if err != nil {
		return err
	}
	url, ttl, err := h.svc.DocumentURL(c.UserContext(), caller, id, docID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(SignedURLResponse{Success: true, URL: url, ExpiresIn: int(ttl.Seconds()), Now: time.Now().UTC()})
}

/* ============================= Transitions ============================== */

// Accept godoc
// @Summary      Accept contract
// @Description  Owner or renter accepts with an optional signature name; admins leave an audit note
// @Tags         contracts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string         true   "contract id (uuid)"
// @Param        payload  body      AcceptRequest  false  "Signature"
// @Success      200      {object}  models.ContractResponse
// @Failure      403      {object}  models.ErrorResponse
// @Failure      404      {object}  models.ErrorResponse
// @Failure      409      {object}  models.ErrorResponse  "cancelled or completed"
// @Router       /contracts/{id}/accept [post]
func (h *Handler) Accept(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var in AcceptRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid json")
		}
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	ct, err := h.svc.Accept(c.UserContext(), caller, id, AcceptInput{
		SignatureName: in.Signature.Name,
		Notes:         in.Notes,
		IP:            c.IP(),
		UserAgent:     c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return h.fail(c, err)
	}
	return h.contract(c, fiber.StatusOK, ct)
}

// Cancel godoc
// @Summary      Cancel contract
// @Description  Owner, renter or admin; not allowed once completed
// @Tags         contracts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string         true   "contract id (uuid)"
// @Param        payload  body      CancelRequest  false  "Reason"
// @Success      200      {object}  models.ContractResponse
// @Failure      403      {object}  models.ErrorResponse
// @Failure      409      {object}  models.ErrorResponse
// @Router       /contracts/{id}/cancel [post]
func (h *Handler) Cancel(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var in CancelRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid json")
		}
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	ct, err := h.svc.Cancel(c.UserContext(), caller, id, in.Reason)
	if err != nil {
		return h.fail(c, err)
	}
	return h.contract(c, fiber.StatusOK, ct)
}

// Complete godoc
// @Summary      Complete contract
// @Description  Owner or admin closes an active contract
// @Tags         contracts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string           true   "contract id (uuid)"
// @Param        payload  body      CompleteRequest  false  "Notes"
// @Success      200      {object}  models.ContractResponse
// @Failure      403      {object}  models.ErrorResponse
// @Failure      409      {object}  models.ErrorResponse
// @Router       /contracts/{id}/complete [post]
func (h *Handler) Complete(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var in CompleteRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid json")
		}
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	ct, err := h.svc.Complete(c.UserContext(), caller, id, in.Notes)
	if err != nil {
		return h.fail(c, err)
	}
	return h.contract(c, fiber.StatusOK, ct)
}

// ProposeEdit godoc
// @Summary      Propose an edit
// @Description  Records a free-text amendment request in the contract history
// @Tags         contracts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string        true  "contract id (uuid)"
// @Param        payload  body      NotesRequest  true  "Proposed change"
// @Success      200      {object}  models.ContractResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      403      {object}  models.ErrorResponse
// @Router       /contracts/{id}/propose-edit [post]
func (h *Handler) ProposeEdit(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var in NotesRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	ct, err := h.svc.ProposeEdit(c.UserContext(), caller, id, in.Notes)
	if err != nil {
		return h.fail(c, err)
	}
	return h.contract(c, fiber.StatusOK, ct)
}

/* ================================= PDF ================================== */

// ExportPDF godoc
// @Summary      Download contract PDF
// @Description  Renders the agreement on demand
// @Tags         contracts
// @Security     BearerAuth
// @Produce      application/pdf
// @Param        id   path  string  true  "contract id (uuid)"
// @Success      200  {file}    binary
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /contracts/{id}/pdf [get]
func (h *Handler) ExportPDF(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	data, err := h.svc.ExportPDF(c.UserContext(), caller, id)
	if err != nil {
		return h.fail(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, "attachment; filename=contract-"+id.String()+".pdf")
	return c.Send(data)
}

// RegeneratePDF godoc
// @Summary      Regenerate stored PDF
// @Description  Admin re-queues the PDF for the contract's current status
// @Tags         contracts
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "contract id (uuid)"
// @Success      202  {object}  PDFJobResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /contracts/{id}/pdf/regenerate [post]
func (h *Handler) RegeneratePDF(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	job, err := h.svc.RegeneratePDF(c.UserContext(), caller, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(PDFJobResponse{Success: true, Job: job})
}
