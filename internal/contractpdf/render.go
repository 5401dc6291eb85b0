package contractpdf

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/aldoetobex/rentify-backend/pkg/models"
)

/* ================================ Layout ================================ */

const (
	margin      = 50.0
	bodySize    = 11.0
	headingSize = 13.0
	titleSize   = 18.0
	titleStep   = 28.0
	lineGap     = 6.0
	wrapWidth   = 90
)

// Used when a contract has no creation time, so output stays reproducible.
var fallbackDate = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

type placed struct {
	Text  string
	Style Style
	Y     float64 // baseline, measured from the top edge
}

func fontSize(s Style) float64 {
	switch s {
	case StyleTitle:
		return titleSize
	case StyleHeading:
		return headingSize
	default:
		return bodySize
	}
}

// layout wraps lines and assigns them to pages of the given height.
func layout(lines []Line, pageHeight float64) [][]placed {
	pages := [][]placed{nil}
	y := margin
	for _, l := range lines {
		if l.Style == StyleTitle {
			pages[len(pages)-1] = append(pages[len(pages)-1], placed{Text: l.Text, Style: l.Style, Y: y})
			y += titleStep
			continue
		}
		size := fontSize(l.Style)
		for _, chunk := range wrap(l.Text, wrapWidth) {
			if pageHeight-y < margin+30 {
				pages = append(pages, nil)
				y = margin
			}
			pages[len(pages)-1] = append(pages[len(pages)-1], placed{Text: chunk, Style: l.Style, Y: y})
			y += size + lineGap
		}
	}
	return pages
}

/* =============================== Renderer =============================== */

// Renderer produces the agreement PDF for a contract.
type Renderer struct {
	AppName string
}

func NewRenderer(appName string) *Renderer { return &Renderer{AppName: appName} }

// Render returns the PDF bytes. The same contract snapshot always yields the
// same bytes.
func (r *Renderer) Render(c *models.Contract) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Write(&buf, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write renders the PDF into w.
func (r *Renderer) Write(w io.Writer, c *models.Contract) error {
	if c == nil {
		return fmt.Errorf("contractpdf: nil contract")
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCatalogSort(true)
	stamp := c.CreatedAt.UTC()
	if c.CreatedAt.IsZero() {
		stamp = fallbackDate
	}
	pdf.SetCreationDate(stamp)
	pdf.SetModificationDate(stamp)
	pdf.SetTitle("Rental Agreement "+c.ID.String(), true)
	pdf.SetCreator(r.AppName, true)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, 0)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	_, pageHeight := pdf.GetPageSize()

	for _, page := range layout(Lines(c, r.AppName), pageHeight) {
		pdf.AddPage()
		for _, p := range page {
			if p.Text == "" {
				continue
			}
			style := ""
			if p.Style != StyleBody {
				style = "B"
			}
			pdf.SetFont("Helvetica", style, fontSize(p.Style))
			pdf.Text(margin, p.Y, tr(p.Text))
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("contractpdf: %w", err)
	}
	return nil
}
