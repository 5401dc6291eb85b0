package contracts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/aldoetobex/rentify-backend/internal/storage"
	"github.com/aldoetobex/rentify-backend/pkg/models"
)

/* ============================ Collaborators ============================= */

// PropertyLookup resolves listings. A missing listing is reported with an
// error wrapping gorm.ErrRecordNotFound.
type PropertyLookup interface {
	FindProperty(ctx context.Context, id uuid.UUID) (*models.Property, error)
}

// DocumentRenderer turns a fully loaded contract into PDF bytes.
type DocumentRenderer interface {
	Render(c *models.Contract) ([]byte, error)
}

// Caller is the authenticated identity performing an operation.
type Caller struct {
	ID   uuid.UUID
	Role models.Role
}

func (c Caller) IsAdmin() bool { return c.Role == models.RoleAdmin }

/* =============================== Service ================================ */

type Options struct {
	DefaultCurrency string
	SignedURLTTL    time.Duration
	MaxUploadFiles  int
	MaxUploadBytes  int64
	// Version-conflict retries before giving up with ErrConflict.
	MaxRetries    uint64
	RetryInterval time.Duration
}

func (o *Options) withDefaults() {
	if o.DefaultCurrency == "" {
		o.DefaultCurrency = "PHP"
	}
	if o.SignedURLTTL <= 0 {
		o.SignedURLTTL = time.Minute
	}
	if o.MaxUploadFiles <= 0 {
		o.MaxUploadFiles = 5
	}
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 10 * 1024 * 1024
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 5
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 20 * time.Millisecond
	}
}

// Service implements the contract lifecycle.
type Service struct {
	db       *gorm.DB
	props    PropertyLookup
	blob     storage.Blob
	renderer DocumentRenderer
	log      logrus.FieldLogger
	opts     Options

	// wake is signalled after a PDF job is enqueued.
	wake chan struct{}
	now  func() time.Time
}

func NewService(db *gorm.DB, props PropertyLookup, blob storage.Blob, renderer DocumentRenderer, log logrus.FieldLogger, opts Options) *Service {
	opts.withDefaults()
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		db:       db,
		props:    props,
		blob:     blob,
		renderer: renderer,
		log:      log.WithField("component", "contracts"),
		opts:     opts,
		wake:     make(chan struct{}, 1),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

/* ================================ Inputs ================================ */

type ScheduleInput struct {
	DueDate    time.Time
	Amount     decimal.Decimal
	Status     models.ScheduleStatus
	PaymentRef string
}

type CreateInput struct {
	PropertyID      uuid.UUID
	RenterID        *uuid.UUID
	StartDate       *time.Time
	EndDate         *time.Time
	RentAmount      *decimal.Decimal
	SecurityDeposit *decimal.Decimal
	TotalAmount     *decimal.Decimal
	Currency        string
	Notes           string
	PaymentSchedule []ScheduleInput
}

// UpdateInput carries a partial update; nil fields are left unchanged.
type UpdateInput struct {
	RenterID        *uuid.UUID
	StartDate       *time.Time
	EndDate         *time.Time
	RentAmount      *decimal.Decimal
	SecurityDeposit *decimal.Decimal
	TotalAmount     *decimal.Decimal
	Currency        *string
	Notes           *string
	PaymentSchedule *[]ScheduleInput
	Payments        *[]string
}

type AcceptInput struct {
	SignatureName string
	Notes         string
	IP            string
	UserAgent     string
}

type PageRequest struct {
	Page     int
	PageSize int
}

func (p PageRequest) normalized() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 50 {
		p.PageSize = 10
	}
	return p
}

type ListResult struct {
	Contracts []models.Contract
	Total     int64
	Page      int
	PageSize  int
	Pages     int
}

/* ================================ Create ================================ */

// Create opens a pending contract for a listing. The owner comes from the
// listing, falling back to the caller when the listing records none.
func (s *Service) Create(ctx context.Context, caller Caller, in CreateInput) (*models.Contract, error) {
	if in.PropertyID == uuid.Nil {
		return nil, fmt.Errorf("%w: property_id is required", ErrInvalidArgument)
	}
	if err := checkTerm(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}
	for _, amt := range []*decimal.Decimal{in.RentAmount, in.SecurityDeposit, in.TotalAmount} {
		if amt != nil && amt.IsNegative() {
			return nil, fmt.Errorf("%w: amounts must not be negative", ErrInvalidArgument)
		}
	}
	schedule, err := buildSchedule(in.PaymentSchedule)
	if err != nil {
		return nil, err
	}

	prop, err := s.props.FindProperty(ctx, in.PropertyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: property not found", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: find property: %v", ErrInternal, err)
	}

	ownerID := prop.ListingOwner()
	if ownerID == uuid.Nil {
		ownerID = caller.ID
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.opts.DefaultCurrency
	}

	c := models.Contract{
		PropertyID:      prop.ID,
		OwnerID:         ownerID,
		RenterID:        in.RenterID,
		StartDate:       toDate(in.StartDate),
		EndDate:         toDate(in.EndDate),
		RentAmount:      nullDecimal(in.RentAmount),
		SecurityDeposit: nullDecimal(in.SecurityDeposit),
		TotalAmount:     nullDecimal(in.TotalAmount),
		Currency:        currency,
		Notes:           strings.TrimSpace(in.Notes),
		Status:          models.ContractPending,
		Payments:        datatypes.JSONSlice[string]{},
		Version:         1,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.RenterID != nil {
			if err := s.checkRenter(tx, *in.RenterID, ownerID); err != nil {
				return err
			}
		}
		if err := tx.Omit("Property", "Owner", "Renter", "Documents", "History", "PaymentSchedule").
			Create(&c).Error; err != nil {
			return fmt.Errorf("%w: create contract: %v", ErrInternal, err)
		}
		if len(schedule) > 0 {
			for i := range schedule {
				schedule[i].ContractID = c.ID
			}
			if err := tx.Create(&schedule).Error; err != nil {
				return fmt.Errorf("%w: create schedule: %v", ErrInternal, err)
			}
		}
		return appendHistory(tx, c.ID, s.now(), []models.ContractHistory{
			{Action: models.ActionCreated, ByID: ptr(caller.ID), Notes: "Created"},
		})
	})
	if err != nil {
		if errors.Is(err, ErrInternal) {
			s.log.WithError(err).Error("create contract failed")
		}
		return nil, err
	}

	actionsTotal.WithLabelValues(models.ActionCreated).Inc()
	s.log.WithFields(logrus.Fields{"contract_id": c.ID, "property_id": prop.ID}).Info("contract created")
	return s.load(ctx, c.ID)
}

func (s *Service) checkRenter(tx *gorm.DB, renterID, ownerID uuid.UUID) error {
	if renterID == ownerID {
		return fmt.Errorf("%w: renter cannot be the property owner", ErrInvalidArgument)
	}
	var n int64
	if err := tx.Model(&models.User{}).Where("id = ?", renterID).Count(&n).Error; err != nil {
		return fmt.Errorf("%w: find renter: %v", ErrInternal, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: renter not found", ErrInvalidArgument)
	}
	return nil
}

/* ================================ Queries =============================== */

// Get returns a contract visible to its parties and admins.
func (s *Service) Get(ctx context.Context, caller Caller, id uuid.UUID) (*models.Contract, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && !c.IsParty(caller.ID) {
		return nil, fmt.Errorf("%w: not a party to this contract", ErrForbidden)
	}
	return c, nil
}

// ListByUser lists contracts where userID is owner or renter.
func (s *Service) ListByUser(ctx context.Context, caller Caller, userID uuid.UUID, p PageRequest) (*ListResult, error) {
	if !caller.IsAdmin() && caller.ID != userID {
		return nil, fmt.Errorf("%w: cannot list another user's contracts", ErrForbidden)
	}
	q := s.db.WithContext(ctx).Model(&models.Contract{}).
		Where("owner_id = ? OR renter_id = ?", userID, userID)
	return s.list(q, p)
}

// ListByProperty lists the contracts of a listing. The listing owner and
// admins see all of them; anyone else only sees contracts they are party to.
func (s *Service) ListByProperty(ctx context.Context, caller Caller, propertyID uuid.UUID, p PageRequest) (*ListResult, error) {
	prop, err := s.props.FindProperty(ctx, propertyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: property not found", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: find property: %v", ErrInternal, err)
	}

	q := s.db.WithContext(ctx).Model(&models.Contract{}).Where("property_id = ?", prop.ID)
	if !caller.IsAdmin() && prop.ListingOwner() != caller.ID {
		q = q.Where("renter_id = ? OR owner_id = ?", caller.ID, caller.ID)
	}
	return s.list(q, p)
}

func (s *Service) list(q *gorm.DB, p PageRequest) (*ListResult, error) {
	p = p.normalized()

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("%w: count contracts: %v", ErrInternal, err)
	}

	rows := make([]models.Contract, 0, p.PageSize)
	if err := withPreloads(q.Session(&gorm.Session{})).
		Order("created_at DESC").Order("id").
		Offset((p.Page - 1) * p.PageSize).Limit(p.PageSize).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: list contracts: %v", ErrInternal, err)
	}
	for i := range rows {
		normalize(&rows[i])
	}

	return &ListResult{
		Contracts: rows,
		Total:     total,
		Page:      p.Page,
		PageSize:  p.PageSize,
		Pages:     int(math.Ceil(float64(total) / float64(p.PageSize))),
	}, nil
}

func withPreloads(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Property").
		Preload("Owner").
		Preload("Renter").
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("uploaded_at ASC").Order("id") }).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Preload("PaymentSchedule", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") })
}

// load reads a contract with every relation.
func (s *Service) load(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	var c models.Contract
	if err := withPreloads(s.db.WithContext(ctx)).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: contract not found", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: load contract: %v", ErrInternal, err)
	}
	normalize(&c)
	return &c, nil
}

// normalize keeps JSON arrays non-null.
func normalize(c *models.Contract) {
	if c.Documents == nil {
		c.Documents = []models.ContractDocument{}
	}
	if c.History == nil {
		c.History = []models.ContractHistory{}
	}
	if c.PaymentSchedule == nil {
		c.PaymentSchedule = []models.PaymentScheduleItem{}
	}
	if c.Payments == nil {
		c.Payments = datatypes.JSONSlice[string]{}
	}
}

/* ================================ Update ================================ */

var editableStatuses = map[models.ContractStatus]bool{
	models.ContractDraft:   true,
	models.ContractPending: true,
}

// Update changes contract terms while the contract is still a draft or
// pending. Only the owner or an admin may do so. Changing any term after a
// party accepted clears both acceptances.
func (s *Service) Update(ctx context.Context, caller Caller, id uuid.UUID, in UpdateInput) (*models.Contract, error) {
	var schedule []models.PaymentScheduleItem
	if in.PaymentSchedule != nil {
		var err error
		if schedule, err = buildSchedule(*in.PaymentSchedule); err != nil {
			return nil, err
		}
	}
	for _, amt := range []*decimal.Decimal{in.RentAmount, in.SecurityDeposit, in.TotalAmount} {
		if amt != nil && amt.IsNegative() {
			return nil, fmt.Errorf("%w: amounts must not be negative", ErrInvalidArgument)
		}
	}

	return s.mutate(ctx, id, func(tx *gorm.DB, c *models.Contract) (*change, error) {
		if !caller.IsAdmin() && caller.ID != c.OwnerID {
			return nil, fmt.Errorf("%w: only the owner can update the contract", ErrForbidden)
		}
		if !editableStatuses[c.Status] {
			return nil, fmt.Errorf("%w: contract is %s and can no longer be edited", ErrConflict, c.Status)
		}

		ch := &change{}
		var changed []string

		if in.RenterID != nil && (c.RenterID == nil || *c.RenterID != *in.RenterID) {
			if c.RenterAccepted.Accepted {
				return nil, fmt.Errorf("%w: renter already accepted and cannot be replaced", ErrConflict)
			}
			if err := s.checkRenter(tx, *in.RenterID, c.OwnerID); err != nil {
				return nil, err
			}
			ch.set("renter_id", *in.RenterID)
			changed = append(changed, "renter")
		}

		start, end := fromDate(c.StartDate), fromDate(c.EndDate)
		if in.StartDate != nil {
			start = in.StartDate
		}
		if in.EndDate != nil {
			end = in.EndDate
		}
		if err := checkTerm(start, end); err != nil {
			return nil, err
		}
		if in.StartDate != nil && !sameDate(c.StartDate, in.StartDate) {
			ch.set("start_date", *toDate(in.StartDate))
			changed = append(changed, "start_date")
		}
		if in.EndDate != nil && !sameDate(c.EndDate, in.EndDate) {
			ch.set("end_date", *toDate(in.EndDate))
			changed = append(changed, "end_date")
		}

		for _, f := range []struct {
			column string
			cur    decimal.NullDecimal
			next   *decimal.Decimal
		}{
			{"rent_amount", c.RentAmount, in.RentAmount},
			{"security_deposit", c.SecurityDeposit, in.SecurityDeposit},
			{"total_amount", c.TotalAmount, in.TotalAmount},
		} {
			if f.next != nil && (!f.cur.Valid || !f.cur.Decimal.Equal(*f.next)) {
				ch.set(f.column, nullDecimal(f.next))
				changed = append(changed, f.column)
			}
		}

		if in.Currency != nil {
			cur := strings.ToUpper(strings.TrimSpace(*in.Currency))
			if cur != "" && cur != c.Currency {
				ch.set("currency", cur)
				changed = append(changed, "currency")
			}
		}
		if in.Notes != nil {
			if n := strings.TrimSpace(*in.Notes); n != c.Notes {
				ch.set("notes", n)
				changed = append(changed, "notes")
			}
		}
		if in.Payments != nil {
			ch.set("payments", datatypes.JSONSlice[string](*in.Payments))
			changed = append(changed, "payments")
		}
		if in.PaymentSchedule != nil {
			ch.replaceSchedule = true
			ch.schedule = cloneSchedule(schedule)
			changed = append(changed, "payment_schedule")
		}

		if len(changed) == 0 {
			return nil, nil
		}
		ch.record(models.ActionUpdated, ptr(caller.ID), "Updated: "+strings.Join(changed, ", "))

		// A signature covers the terms as they were; payment references are not terms.
		if (c.OwnerAccepted.Accepted || c.RenterAccepted.Accepted) && changesTerms(changed) {
			setAcceptance(ch, "owner_", models.Acceptance{})
			setAcceptance(ch, "renter_", models.Acceptance{})
			ch.record(models.ActionAcceptanceReset, ptr(caller.ID), "Terms changed; both parties must accept again")
		}
		return ch, nil
	})
}

/* ================================ Accept ================================ */

// Accept records the caller's acceptance. The owner and renter each set their
// own flag; an admin who is neither leaves an audit note. Once both flags are
// set the contract becomes active and a PDF job is queued in the same write.
func (s *Service) Accept(ctx context.Context, caller Caller, id uuid.UUID, in AcceptInput) (*models.Contract, error) {
	sig := models.Signature{
		Name:      truncate(strings.TrimSpace(in.SignatureName), 120),
		IP:        truncate(in.IP, 64),
		UserAgent: truncate(in.UserAgent, 255),
	}
	notes := strings.TrimSpace(in.Notes)

	return s.mutate(ctx, id, func(_ *gorm.DB, c *models.Contract) (*change, error) {
		isOwner := caller.ID == c.OwnerID
		isRenter := c.RenterID != nil && *c.RenterID == caller.ID
		if !isOwner && !isRenter && !caller.IsAdmin() {
			return nil, fmt.Errorf("%w: not a party to this contract", ErrForbidden)
		}
		if c.Status == models.ContractCancelled || c.Status == models.ContractCompleted {
			return nil, fmt.Errorf("%w: contract is %s", ErrConflict, c.Status)
		}

		now := s.now()
		ch := &change{}
		switch {
		case isOwner:
			c.OwnerAccepted = models.Acceptance{Accepted: true, At: &now, Signature: sig}
			setAcceptance(ch, "owner_", c.OwnerAccepted)
			ch.record(models.ActionOwnerAccepted, ptr(caller.ID), notes)
		case isRenter:
			c.RenterAccepted = models.Acceptance{Accepted: true, At: &now, Signature: sig}
			setAcceptance(ch, "renter_", c.RenterAccepted)
			ch.record(models.ActionRenterAccepted, ptr(caller.ID), notes)
		default:
			ch.record(models.ActionAcceptedByAdmin, ptr(caller.ID), notes)
		}

		if c.OwnerAccepted.Accepted && c.RenterAccepted.Accepted && c.Status != models.ContractActive {
			ch.set("status", models.ContractActive)
			ch.record(models.ActionActivated, ptr(caller.ID), "Both parties accepted")
			ch.enqueue = append(ch.enqueue, models.ContractActive)
		}
		return ch, nil
	})
}

func changesTerms(changed []string) bool {
	for _, f := range changed {
		if f != "payments" {
			return true
		}
	}
	return false
}

func setAcceptance(ch *change, prefix string, a models.Acceptance) {
	ch.set(prefix+"accepted", a.Accepted)
	ch.set(prefix+"at", a.At)
	ch.set(prefix+"sig_name", a.Signature.Name)
	ch.set(prefix+"sig_ip", a.Signature.IP)
	ch.set(prefix+"sig_user_agent", a.Signature.UserAgent)
}

/* ========================= Cancel / Complete / Edit ===================== */

// Cancel moves the contract to cancelled from any status. Cancelling again
// appends another entry.
func (s *Service) Cancel(ctx context.Context, caller Caller, id uuid.UUID, reason string) (*models.Contract, error) {
	reason = strings.TrimSpace(reason)
	return s.mutate(ctx, id, func(_ *gorm.DB, c *models.Contract) (*change, error) {
		if !caller.IsAdmin() && !c.IsParty(caller.ID) {
			return nil, fmt.Errorf("%w: not a party to this contract", ErrForbidden)
		}
		ch := &change{}
		ch.set("status", models.ContractCancelled)
		ch.record(models.ActionCancelled, ptr(caller.ID), reason)
		return ch, nil
	})
}

// Complete closes an active contract.
func (s *Service) Complete(ctx context.Context, caller Caller, id uuid.UUID, notes string) (*models.Contract, error) {
	notes = strings.TrimSpace(notes)
	return s.mutate(ctx, id, func(_ *gorm.DB, c *models.Contract) (*change, error) {
		if !caller.IsAdmin() && caller.ID != c.OwnerID {
			return nil, fmt.Errorf("%w: only the owner can complete the contract", ErrForbidden)
		}
		if c.Status != models.ContractActive {
			return nil, fmt.Errorf("%w: only active contracts can be completed", ErrConflict)
		}
		ch := &change{}
		ch.set("status", models.ContractCompleted)
		ch.record(models.ActionCompleted, ptr(caller.ID), notes)
		return ch, nil
	})
}

// ProposeEdit records a free-text amendment request in the history.
func (s *Service) ProposeEdit(ctx context.Context, caller Caller, id uuid.UUID, text string) (*models.Contract, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: notes are required", ErrInvalidArgument)
	}
	return s.mutate(ctx, id, func(_ *gorm.DB, c *models.Contract) (*change, error) {
		if !caller.IsAdmin() && !c.IsParty(caller.ID) {
			return nil, fmt.Errorf("%w: not a party to this contract", ErrForbidden)
		}
		ch := &change{}
		ch.record(models.ActionEditProposed, ptr(caller.ID), text)
		return ch, nil
	})
}

/* ================================= PDF ================================== */

// ExportPDF renders the agreement on demand without storing it.
func (s *Service) ExportPDF(ctx context.Context, caller Caller, id uuid.UUID) ([]byte, error) {
	c, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	data, err := s.renderer.Render(c)
	if err != nil {
		s.log.WithField("contract_id", id).WithError(err).Error("render contract pdf failed")
		return nil, fmt.Errorf("%w: render pdf: %v", ErrInternal, err)
	}
	return data, nil
}

// RegeneratePDF queues a new PDF for the contract's current status.
func (s *Service) RegeneratePDF(ctx context.Context, caller Caller, id uuid.UUID) (*models.PDFJob, error) {
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: admin only", ErrForbidden)
	}
	var job models.PDFJob
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Contract
		if err := tx.Select("id", "status").First(&c, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: contract not found", ErrNotFound)
			}
			return fmt.Errorf("%w: load contract: %v", ErrInternal, err)
		}
		if c.Status != models.ContractActive && c.Status != models.ContractCompleted {
			return fmt.Errorf("%w: contract is %s; nothing to render", ErrConflict, c.Status)
		}
		if err := enqueuePDF(tx, c.ID, c.Status, s.now()); err != nil {
			return err
		}
		if err := tx.Where("contract_id = ? AND target_status = ?", c.ID, c.Status).First(&job).Error; err != nil {
			return fmt.Errorf("%w: read pdf job: %v", ErrInternal, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"contract_id": id, "job_id": job.ID}).Info("pdf regeneration queued")
	s.notify()
	return &job, nil
}

/* ================================ Helpers =============================== */

func checkTerm(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return fmt.Errorf("%w: end_date must not be before start_date", ErrInvalidArgument)
	}
	return nil
}

func buildSchedule(items []ScheduleInput) ([]models.PaymentScheduleItem, error) {
	out := make([]models.PaymentScheduleItem, 0, len(items))
	for i, it := range items {
		if it.DueDate.IsZero() {
			return nil, fmt.Errorf("%w: payment_schedule[%d].due_date is required", ErrInvalidArgument, i)
		}
		if !it.Amount.IsPositive() {
			return nil, fmt.Errorf("%w: payment_schedule[%d].amount must be positive", ErrInvalidArgument, i)
		}
		status := it.Status
		if status == "" {
			status = models.ScheduleDue
		}
		item := models.PaymentScheduleItem{
			Seq:     i + 1,
			DueDate: datatypes.Date(it.DueDate),
			Amount:  it.Amount,
			Status:  status,
		}
		if ref := strings.TrimSpace(it.PaymentRef); ref != "" {
			item.PaymentRef = &ref
		}
		out = append(out, item)
	}
	return out, nil
}

// cloneSchedule gives each write attempt its own rows, since inserts assign IDs.
func cloneSchedule(in []models.PaymentScheduleItem) []models.PaymentScheduleItem {
	out := make([]models.PaymentScheduleItem, len(in))
	copy(out, in)
	return out
}

func toDate(t *time.Time) *datatypes.Date {
	if t == nil {
		return nil
	}
	d := datatypes.Date(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
	return &d
}

func fromDate(d *datatypes.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := time.Time(*d)
	return &t
}

func sameDate(d *datatypes.Date, t *time.Time) bool {
	if d == nil || t == nil {
		return d == nil && t == nil
	}
	return time.Time(*d).Format("2006-01-02") == t.Format("2006-01-02")
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}

func ptr[T any](v T) *T { return &v }
