package contractpdf

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/aldoetobex/rentify-backend/pkg/models"
)

// Style selects font and spacing for a line.
type Style int

const (
	StyleBody Style = iota
	StyleHeading
	StyleTitle
)

// Line is one logical line of the agreement before wrapping.
type Line struct {
	Text  string
	Style Style
}

const (
	noName        = "No name provided"
	noEmail       = "No email provided"
	noPhone       = "No phone provided"
	noAddress     = "No address provided"
	noDescription = "No description provided"
	notSigned     = "(not signed)"
	tbd           = "TBD"
	notRecorded   = "Not recorded"
)

const dateLayout = "2006-01-02"

// Lines builds the agreement text for a fully loaded contract (property,
// owner and renter preloaded). Only contract data is used, never the clock.
func Lines(c *models.Contract, appName string) []Line {
	var out []Line
	body := func(texts ...string) {
		for _, t := range texts {
			out = append(out, Line{Text: t})
		}
	}
	heading := func(t string) { out = append(out, Line{Text: t, Style: StyleHeading}) }

	out = append(out, Line{Text: "RENTAL AGREEMENT", Style: StyleTitle})

	effective := notRecorded
	if !c.CreatedAt.IsZero() {
		effective = c.CreatedAt.UTC().Format(dateLayout)
	}
	body("Contract ID: "+c.ID.String(), "Effective Date: "+effective, "")

	ownerName := personName(c.Owner)
	renterName := personName(c.Renter)

	heading("PARTIES:")
	body(
		"  Owner / Landlord: "+ownerName,
		"    Email: "+orDefault(email(c.Owner), noEmail),
		"    Phone: "+orDefault(phone(c.Owner), noPhone),
		"",
		"  Tenant / Renter: "+renterName,
		"    Email: "+orDefault(email(c.Renter), noEmail),
		"    Phone: "+orDefault(phone(c.Renter), noPhone),
		"",
	)

	heading("PROPERTY:")
	var address, ptype, desc string
	if p := c.Property; p != nil {
		address = orDefault(p.Address, p.Name)
		if city := joinNonEmpty(", ", p.City, p.Province, p.ZipCode); city != "" && address != "" {
			address += ", " + city
		}
		ptype = p.Type
		desc = orDefault(p.Description, p.Name)
	}
	body("  Address: " + orDefault(address, noAddress))
	if ptype != "" {
		body("  Type: " + ptype)
	}
	body("  Description: "+orDefault(desc, noDescription), "")

	heading("TERM:")
	body("  Commencement: "+date(c.StartDate), "  Termination: "+date(c.EndDate), "")

	heading("RENT AND PAYMENT:")
	body("  Monthly Rent: " + money(c.RentAmount, c.Currency))
	body("  Security Deposit: " + money(c.SecurityDeposit, c.Currency))
	if c.TotalAmount.Valid {
		body("  Total Amount: " + money(c.TotalAmount, c.Currency))
	}
	for _, it := range c.PaymentSchedule {
		body(fmt.Sprintf("  Installment %d: %s due %s (%s)",
			it.Seq, strings.TrimSpace(it.Amount.StringFixed(2)+" "+c.Currency),
			time.Time(it.DueDate).Format(dateLayout), it.Status))
	}
	body("")

	heading("USE AND MAINTENANCE:")
	body("  Tenant shall use the Property as a residential dwelling and maintain it in good condition.", "")

	heading("TERMINATION:")
	body("  Termination and notice provisions are governed by applicable law and this Agreement.", "")

	heading("DIGITAL ACCEPTANCE:")
	body("  Electronic acceptance via the web application (checkbox with recorded signature name and timestamp) constitutes a valid signature.", "")

	heading("SIGNATURES:")
	body(signature("Owner", c.OwnerAccepted, ownerName)...)
	body(signature("Renter", c.RenterAccepted, renterName)...)

	if appName == "" {
		appName = "Rentify"
	}
	body("", fmt.Sprintf("This document was generated by the %s web application and is a summary of the agreement between the parties.", appName))
	return out
}

func signature(role string, a models.Acceptance, fallback string) []string {
	if !a.Accepted {
		return []string{"  " + role + ": " + notSigned}
	}
	out := []string{"  " + role + ": " + orDefault(strings.TrimSpace(a.Signature.Name), fallback)}
	if a.At != nil {
		out = append(out, "    Signed at: "+a.At.UTC().Format(dateLayout))
	}
	return out
}

func personName(u *models.User) string {
	if u == nil {
		return noName
	}
	if n := u.DisplayName(); n != "" {
		return n
	}
	return orDefault(u.Email, noName)
}

func email(u *models.User) string {
	if u == nil {
		return ""
	}
	return u.Email
}

func phone(u *models.User) string {
	if u == nil {
		return ""
	}
	return u.Phone
}

func date(d *datatypes.Date) string {
	if d == nil {
		return ""
	}
	return time.Time(*d).Format(dateLayout)
}

func money(d decimal.NullDecimal, currency string) string {
	if !d.Valid {
		return strings.TrimSpace(tbd + " " + currency)
	}
	return strings.TrimSpace(d.Decimal.StringFixed(2) + " " + currency)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func joinNonEmpty(sep string, parts ...string) string {
	var keep []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keep = append(keep, p)
		}
	}
	return strings.Join(keep, sep)
}

// wrap splits text into chunks of at most width characters, breaking at the
// last space of a chunk when that space is past column 20.
func wrap(text string, width int) []string {
	if text == "" {
		return []string{""}
	}
	var out []string
	rest := []rune(text)
	for len(rest) > width {
		cut := width
		if i := lastSpace(rest[:width]); i > 20 {
			cut = i
		}
		out = append(out, strings.TrimSpace(string(rest[:cut])))
		rest = []rune(strings.TrimSpace(string(rest[cut:])))
	}
	if len(rest) > 0 {
		out = append(out, string(rest))
	}
	return out
}

func lastSpace(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if r[i] == ' ' {
			return i
		}
	}
	return -1
}
