package contractpdf

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/aldoetobex/rentify-backend/pkg/models"
)

const a4Height = 841.89

func texts(lines []Line) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Text)
	}
	return out
}

func fullContract() *models.Contract {
	created := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	signed := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	start := datatypes.Date(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	end := datatypes.Date(time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC))
	renterID := uuid.New()

	return &models.Contract{
		ID:              uuid.MustParse("6f1c2a4e-7b8d-4c3e-9a10-1b2c3d4e5f60"),
		OwnerID:         uuid.New(),
		RenterID:        &renterID,
		StartDate:       &start,
		EndDate:         &end,
		RentAmount:      decimal.NewNullDecimal(decimal.RequireFromString("15000")),
		SecurityDeposit: decimal.NewNullDecimal(decimal.RequireFromString("30000.5")),
		Currency:        "PHP",
		Status:          models.ContractActive,
		CreatedAt:       created,
		OwnerAccepted: models.Acceptance{
			Accepted:  true,
			At:        &signed,
			Signature: models.Signature{Name: "Maria Santos"},
		},
		RenterAccepted: models.Acceptance{Accepted: true},
		Property: &models.Property{
			Name:        "Sunset Loft",
			Address:     "12 Mabini St",
			City:        "Makati",
			Province:    "Metro Manila",
			Type:        "Condo",
			Description: "Two bedroom loft",
		},
		Owner:  &models.User{FirstName: "Maria", LastName: "Santos", Email: "maria@example.com", Phone: "+63 917 000 0000"},
		Renter: &models.User{FirstName: "Juan", Email: "juan@example.com"},
	}
}

/* ================================ Lines ================================= */

func Test_Lines_Placeholders(t *testing.T) {
	c := &models.Contract{ID: uuid.New(), Currency: "PHP"}
	got := texts(Lines(c, ""))

	assert.Equal(t, "RENTAL AGREEMENT", got[0])
	assert.Contains(t, got, "Effective Date: Not recorded")
	assert.Contains(t, got, "  Owner / Landlord: No name provided")
	assert.Contains(t, got, "  Tenant / Renter: No name provided")
	assert.Contains(t, got, "    Email: No email provided")
	assert.Contains(t, got, "    Phone: No phone provided")
	assert.Contains(t, got, "  Address: No address provided")
	assert.Contains(t, got, "  Description: No description provided")
	assert.Contains(t, got, "  Monthly Rent: TBD PHP")
	assert.Contains(t, got, "  Security Deposit: TBD PHP")
	assert.Contains(t, got, "  Owner: (not signed)")
	assert.Contains(t, got, "  Renter: (not signed)")
	assert.Contains(t, got, "  Commencement: ")
	assert.Equal(t, "This document was generated by the Rentify web application and is a summary of the agreement between the parties.", got[len(got)-1])
}

func Test_Lines_FullContract(t *testing.T) {
	got := texts(Lines(fullContract(), "Rentify"))

	assert.Contains(t, got, "Contract ID: 6f1c2a4e-7b8d-4c3e-9a10-1b2c3d4e5f60")
	assert.Contains(t, got, "Effective Date: 2025-03-01")
	assert.Contains(t, got, "  Owner / Landlord: Maria Santos")
	assert.Contains(t, got, "    Phone: +63 917 000 0000")
	assert.Contains(t, got, "  Tenant / Renter: Juan")
	assert.Contains(t, got, "  Address: 12 Mabini St, Makati, Metro Manila")
	assert.Contains(t, got, "  Type: Condo")
	assert.Contains(t, got, "  Commencement: 2025-04-01")
	assert.Contains(t, got, "  Termination: 2026-03-31")
	assert.Contains(t, got, "  Monthly Rent: 15000.00 PHP")
	assert.Contains(t, got, "  Security Deposit: 30000.50 PHP")
	assert.Contains(t, got, "  Owner: Maria Santos")
	assert.Contains(t, got, "    Signed at: 2025-03-02")
	// Renter accepted without a signature name: falls back to the display name.
	assert.Contains(t, got, "  Renter: Juan")
}

func Test_Lines_SectionOrder(t *testing.T) {
	var headings []string
	for _, l := range Lines(fullContract(), "") {
		if l.Style == StyleHeading {
			headings = append(headings, l.Text)
		}
	}
	assert.Equal(t, []string{
		"PARTIES:", "PROPERTY:", "TERM:", "RENT AND PAYMENT:", "USE AND MAINTENANCE:",
		"TERMINATION:", "DIGITAL ACCEPTANCE:", "SIGNATURES:",
	}, headings)
}

/* ================================= wrap ================================= */

func Test_wrap(t *testing.T) {
	assert.Equal(t, []string{""}, wrap("", 90))
	assert.Equal(t, []string{"short line"}, wrap("short line", 90))

	long := strings.Repeat("word ", 30) // 150 chars
	parts := wrap(long, 90)
	require.Len(t, parts, 2)
	for _, p := range parts {
		assert.LessOrEqual(t, len(p), 90)
		assert.False(t, strings.HasSuffix(p, " "))
	}

	// No usable space: hard cut at the width.
	solid := strings.Repeat("x", 200)
	parts = wrap(solid, 90)
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 90)
	assert.Len(t, parts[2], 20)

	// A space at or before column 20 is ignored.
	early := "abc " + strings.Repeat("y", 120)
	parts = wrap(early, 90)
	assert.Len(t, parts[0], 90)
}

/* ================================ layout ================================ */

func Test_layout_StartsNewPages(t *testing.T) {
	c := fullContract()
	for i := 1; i <= 80; i++ {
		c.PaymentSchedule = append(c.PaymentSchedule, models.PaymentScheduleItem{
			Seq:     i,
			DueDate: datatypes.Date(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC).AddDate(0, i-1, 0)),
			Amount:  decimal.RequireFromString("15000"),
			Status:  models.ScheduleDue,
		})
	}

	pages := layout(Lines(c, ""), a4Height)
	require.GreaterOrEqual(t, len(pages), 3)

	assert.Equal(t, "RENTAL AGREEMENT", pages[0][0].Text)
	assert.Equal(t, margin, pages[0][0].Y)
	for i, page := range pages {
		require.NotEmpty(t, page)
		if i > 0 {
			assert.Equal(t, margin, page[0].Y)
		}
		for _, p := range page {
			assert.GreaterOrEqual(t, a4Height-p.Y, margin+30)
		}
	}
}

/* ================================ Render ================================ */

func Test_Render_Deterministic(t *testing.T) {
	r := NewRenderer("Rentify")
	c := fullContract()

	a, err := r.Render(c)
	require.NoError(t, err)
	b, err := r.Render(c)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(a, []byte("%PDF-")))
	assert.True(t, bytes.Equal(a, b), "same snapshot must render identical bytes")

	c.Notes = "ignored by the document"
	d, err := r.Render(c)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a, d))

	c.Status = models.ContractCompleted
	c.RenterAccepted.Signature.Name = "Juan Dela Cruz"
	e, err := r.Render(c)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(a, e))
}

func Test_Render_ZeroCreatedAtIsStable(t *testing.T) {
	r := NewRenderer("")
	c := &models.Contract{ID: uuid.New()}

	a, err := r.Render(c)
	require.NoError(t, err)
	b, err := r.Render(c)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func Test_Render_NilContract(t *testing.T) {
	_, err := NewRenderer("").Render(nil)
	assert.Error(t, err)
}
