package contracts

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aldoetobex/rentify-backend/internal/contractpdf"
	"github.com/aldoetobex/rentify-backend/internal/properties"
	"github.com/aldoetobex/rentify-backend/internal/storage"
	"github.com/aldoetobex/rentify-backend/internal/testutil"
	"github.com/aldoetobex/rentify-backend/pkg/models"
)

/* ============================================================================
   Fixture
   ============================================================================ */

type fixture struct {
	db   *gorm.DB
	svc  *Service
	blob *storage.Memory

	owner, renter, admin, stranger models.User
	prop                           models.Property

	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, contractpdf.NewRenderer("Rentify"), nil)
}

// newFixtureWith builds a service over a fresh database. blob defaults to an
// in-memory store.
func newFixtureWith(t *testing.T, renderer DocumentRenderer, blob storage.Blob) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	f := &fixture{
		db:    db,
		blob:  storage.NewMemory(),
		clock: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	if blob == nil {
		blob = f.blob
	}
	f.svc = NewService(db, properties.NewDirectory(db), blob, renderer, nil, Options{
		MaxRetries:    3,
		RetryInterval: time.Millisecond,
	})
	f.svc.now = func() time.Time { return f.clock }

	f.owner = testutil.SeedUser(t, db, models.RoleUser, "Olivia")
	f.renter = testutil.SeedUser(t, db, models.RoleRenter, "Rico")
	f.admin = testutil.SeedUser(t, db, models.RoleAdmin, "Ada")
	f.stranger = testutil.SeedUser(t, db, models.RoleRenter, "Sam")
	f.prop = testutil.SeedProperty(t, db, f.owner.ID)
	return f
}

func (f *fixture) as(u models.User) Caller { return Caller{ID: u.ID, Role: u.Role} }

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

// create opens a pending contract between the fixture owner and renter.
func (f *fixture) create(t *testing.T) *models.Contract {
	t.Helper()
	c, err := f.svc.Create(context.Background(), f.as(f.renter), CreateInput{
		PropertyID: f.prop.ID,
		RenterID:   ptr(f.renter.ID),
	})
	require.NoError(t, err)
	return c
}

// activate creates a contract and has both parties accept it.
func (f *fixture) activate(t *testing.T) *models.Contract {
	t.Helper()
	c := f.create(t)
	ctx := context.Background()
	_, err := f.svc.Accept(ctx, f.as(f.owner), c.ID, AcceptInput{SignatureName: "Olivia Tester"})
	require.NoError(t, err)
	c, err = f.svc.Accept(ctx, f.as(f.renter), c.ID, AcceptInput{SignatureName: "Rico Tester"})
	require.NoError(t, err)
	require.Equal(t, models.ContractActive, c.Status)
	return c
}

func (f *fixture) jobs(t *testing.T, contractID uuid.UUID) []models.PDFJob {
	t.Helper()
	var jobs []models.PDFJob
	require.NoError(t, f.db.Where("contract_id = ?", contractID).Order("target_status").Find(&jobs).Error)
	return jobs
}

func actions(c *models.Contract) []string {
	out := make([]string, 0, len(c.History))
	for _, h := range c.History {
		out = append(out, h.Action)
	}
	return out
}

/* ============================================================================
   Fakes
   ============================================================================ */

type failingRenderer struct{ err error }

func (r failingRenderer) Render(*models.Contract) ([]byte, error) { return nil, r.err }

var errRenderBoom = errors.New("font table missing")

// hookRenderer runs before, then renders normally.
type hookRenderer struct{ before func() }

func (r hookRenderer) Render(c *models.Contract) ([]byte, error) {
	r.before()
	return contractpdf.NewRenderer("Rentify").Render(c)
}

// flakyBlob fails uploads whose key contains failOn.
type flakyBlob struct {
	*storage.Memory
	failOn string
}

func (b flakyBlob) Upload(ctx context.Context, key string, r io.Reader, ct string, size int64) (storage.Object, error) {
	if b.failOn != "" && strings.Contains(key, b.failOn) {
		return storage.Object{}, errors.New("bucket unavailable")
	}
	return b.Memory.Upload(ctx, key, r, ct, size)
}

func textUpload(name, body string) Upload {
	return Upload{
		Filename: name,
		Size:     int64(len(body)),
		Open:     func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(body)), nil },
	}
}
