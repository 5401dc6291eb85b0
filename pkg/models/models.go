package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

/* =============================== Enums ================================== */

// Role defines the type of user in the system.
type Role string

const (
	RoleUser   Role = "user"
	RoleRenter Role = "renter"
	RoleAdmin  Role = "admin"
)

// PropertyStatus is the availability of a listing.
type PropertyStatus string

const (
	PropertyAvailable        PropertyStatus = "Available"
	PropertyOccupied         PropertyStatus = "Occupied"
	PropertyUnderMaintenance PropertyStatus = "Under Maintenance"
)

// ContractStatus defines lifecycle states for a rental contract.
type ContractStatus string

const (
	ContractDraft     ContractStatus = "draft"
	ContractPending   ContractStatus = "pending"
	ContractActive    ContractStatus = "active"
	ContractCancelled ContractStatus = "cancelled"
	ContractCompleted ContractStatus = "completed"
)

// BookingStatus defines lifecycle states for a stay booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "Pending"
	BookingConfirmed BookingStatus = "Confirmed"
	BookingCancelled BookingStatus = "Cancelled"
)

// ScheduleStatus defines the state of one installment in a payment schedule.
type ScheduleStatus string

const (
	ScheduleDue     ScheduleStatus = "due"
	SchedulePaid    ScheduleStatus = "paid"
	ScheduleOverdue ScheduleStatus = "overdue"
)

// JobStatus defines lifecycle states for a PDF generation job.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// History actions recorded on a contract.
const (
	ActionCreated           = "created"
	ActionOwnerAccepted     = "owner_accepted"
	ActionRenterAccepted    = "renter_accepted"
	ActionAcceptedByAdmin   = "accepted_by_admin"
	ActionActivated         = "activated"
	ActionPDFGenerated      = "pdf_generated"
	ActionPDFFailed         = "pdf_failed"
	ActionDocumentsUploaded = "documents_uploaded"
	ActionCancelled         = "cancelled"
	ActionCompleted         = "completed"
	ActionUpdated           = "updated"
	ActionEditProposed      = "edit_proposed"
	ActionPDFSkipped        = "pdf_skipped"
	ActionAcceptanceReset   = "acceptance_reset"
)

/* =============================== Entities =============================== */

// User represents a property owner, renter or administrator.
type User struct {
	ID           uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	Email        string    `gorm:"size:120;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         Role      `gorm:"type:varchar(20);not null;default:'user'" json:"role"`
	FirstName    string    `gorm:"size:80;not null" json:"first_name"`
	LastName     string    `gorm:"size:80" json:"last_name"`
	Phone        string    `gorm:"size:40" json:"phone"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// DisplayName joins first and last name.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Property is a rental listing.
type Property struct {
	ID uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	// OwnerID is the listing owner. Imported listings may only carry PostedByID.
	OwnerID     uuid.UUID       `gorm:"type:char(36);index" json:"owner_id"`
	PostedByID  *uuid.UUID      `gorm:"type:char(36)" json:"posted_by_id,omitempty"`
	Name        string          `gorm:"size:120;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Address     string          `gorm:"size:255;not null" json:"address"`
	City        string          `gorm:"size:80;index" json:"city"`
	Province    string          `gorm:"size:80" json:"province"`
	ZipCode     string          `gorm:"size:20" json:"zip_code"`
	Type        string          `gorm:"size:40;index" json:"type"`
	Price       decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"price"`
	Status      PropertyStatus  `gorm:"type:varchar(20);not null;default:'Available'" json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (p *Property) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ListingOwner returns the owner recorded on the listing, falling back to the
// legacy posted-by field. uuid.Nil means no owner is recorded.
func (p *Property) ListingOwner() uuid.UUID {
	if p.OwnerID != uuid.Nil {
		return p.OwnerID
	}
	if p.PostedByID != nil {
		return *p.PostedByID
	}
	return uuid.Nil
}

// Booking is a renter's request to stay at a property between two dates.
type Booking struct {
	ID          uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`
	UserID      uuid.UUID       `gorm:"type:char(36);not null;index" json:"user_id"`
	PropertyID  uuid.UUID       `gorm:"type:char(36);not null;index" json:"property_id"`
	Name        string          `gorm:"size:120;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Address     string          `gorm:"size:255" json:"address"`
	CheckIn     datatypes.Date  `gorm:"not null" json:"check_in"`
	CheckOut    datatypes.Date  `gorm:"not null" json:"check_out"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_price"`
	Status      BookingStatus   `gorm:"type:varchar(20);not null;default:'Pending';index" json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	Property *Property `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
}

func (b *Booking) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Signature is the metadata captured when a party accepts a contract.
type Signature struct {
	Name      string `gorm:"size:120" json:"name"`
	IP        string `gorm:"size:64" json:"ip"`
	UserAgent string `gorm:"size:255" json:"user_agent"`
}

// Acceptance records one party's agreement to the contract terms.
type Acceptance struct {
	Accepted  bool       `gorm:"not null;default:false" json:"accepted"`
	At        *time.Time `json:"at,omitempty"`
	Signature Signature  `gorm:"embedded;embeddedPrefix:sig_" json:"signature"`
}

// Contract is the rental agreement between a property owner and a renter.
type Contract struct {
	ID         uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	PropertyID uuid.UUID  `gorm:"type:char(36);not null;index" json:"property_id"`
	OwnerID    uuid.UUID  `gorm:"type:char(36);not null;index" json:"owner_id"`
	RenterID   *uuid.UUID `gorm:"type:char(36);index" json:"renter_id,omitempty"`

	StartDate       *datatypes.Date     `json:"start_date,omitempty"`
	EndDate         *datatypes.Date     `json:"end_date,omitempty"`
	RentAmount      decimal.NullDecimal `gorm:"type:decimal(14,2)" json:"rent_amount"`
	Currency        string              `gorm:"type:varchar(3);not null;default:'PHP'" json:"currency"`
	SecurityDeposit decimal.NullDecimal `gorm:"type:decimal(14,2)" json:"security_deposit"`
	TotalAmount     decimal.NullDecimal `gorm:"type:decimal(14,2)" json:"total_amount"`
	Notes           string              `gorm:"type:text" json:"notes"`

	Status         ContractStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	OwnerAccepted  Acceptance     `gorm:"embedded;embeddedPrefix:owner_" json:"owner_accepted"`
	RenterAccepted Acceptance     `gorm:"embedded;embeddedPrefix:renter_" json:"renter_accepted"`

	// Payments holds opaque references to payments made through the payment provider.
	Payments datatypes.JSONSlice[string] `json:"payments"`

	// Version is bumped by every write; writers update WHERE version = <loaded>.
	Version   int64     `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Property        *Property             `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
	Owner           *User                 `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Renter          *User                 `gorm:"foreignKey:RenterID" json:"renter,omitempty"`
	Documents       []ContractDocument    `json:"documents"`
	History         []ContractHistory     `json:"history"`
	PaymentSchedule []PaymentScheduleItem `json:"payment_schedule"`
}

func (c *Contract) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// IsParty reports whether the user is the owner or the renter of the contract.
func (c *Contract) IsParty(userID uuid.UUID) bool {
	if userID == c.OwnerID {
		return true
	}
	return c.RenterID != nil && *c.RenterID == userID
}

// ContractDocument is a file attached to a contract.
type ContractDocument struct {
	ID          uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	ContractID  uuid.UUID `gorm:"type:char(36);not null;index" json:"contract_id"`
	Filename    string    `gorm:"size:255;not null" json:"filename"`
	URL         string    `gorm:"size:1024" json:"url"`
	StorageKey  string    `gorm:"size:512;not null" json:"storage_key"`
	ContentType string    `gorm:"size:100" json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `gorm:"not null" json:"uploaded_at"`
}

func (d *ContractDocument) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// ContractHistory is an audit log entry for a contract. Entries are never
// updated or deleted; Seq orders entries written in the same instant.
type ContractHistory struct {
	ID         uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	ContractID uuid.UUID  `gorm:"type:char(36);not null;uniqueIndex:ux_history_seq" json:"contract_id"`
	Seq        int        `gorm:"not null;uniqueIndex:ux_history_seq" json:"seq"`
	Action     string     `gorm:"type:varchar(50);not null" json:"action"`
	ByID       *uuid.UUID `gorm:"type:char(36)" json:"by,omitempty"`
	At         time.Time  `gorm:"not null" json:"at"`
	Notes      string     `gorm:"type:text" json:"notes"`
}

func (h *ContractHistory) BeforeCreate(*gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// PaymentScheduleItem is one installment of a contract's payment schedule.
type PaymentScheduleItem struct {
	ID         uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`
	ContractID uuid.UUID       `gorm:"type:char(36);not null;index" json:"contract_id"`
	Seq        int             `gorm:"not null" json:"seq"`
	DueDate    datatypes.Date  `gorm:"not null" json:"due_date"`
	Amount     decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Status     ScheduleStatus  `gorm:"type:varchar(20);not null;default:'due'" json:"status"`
	PaymentRef *string         `gorm:"size:120" json:"payment,omitempty"`
}

func (p *PaymentScheduleItem) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PDFJob is the follow-up work of rendering and storing a contract PDF once
// the contract reaches TargetStatus.
type PDFJob struct {
	ID           uuid.UUID      `gorm:"type:char(36);primaryKey" json:"id"`
	ContractID   uuid.UUID      `gorm:"type:char(36);not null;uniqueIndex:ux_pdf_job_target" json:"contract_id"`
	TargetStatus ContractStatus `gorm:"type:varchar(20);not null;uniqueIndex:ux_pdf_job_target" json:"target_status"`
	Status       JobStatus      `gorm:"type:varchar(20);not null;default:'queued';index" json:"status"`
	Attempts     int            `gorm:"not null;default:0" json:"attempts"`
	LastError    string         `gorm:"type:text" json:"last_error"`
	NextRunAt    time.Time      `gorm:"not null;index" json:"next_run_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (j *PDFJob) BeforeCreate(*gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// TableName keeps the table name readable.
func (PDFJob) TableName() string { return "pdf_jobs" }

// All lists every entity managed by migrations.
func All() []any {
	return []any{
		&User{}, &Property{}, &Booking{}, &Contract{}, &ContractDocument{},
		&ContractHistory{}, &PaymentScheduleItem{}, &PDFJob{},
	}
}
