//go:build integration

package contracts_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/aldoetobex/rentify-backend/internal/contractpdf"
	"github.com/aldoetobex/rentify-backend/internal/contracts"
	"github.com/aldoetobex/rentify-backend/internal/properties"
	"github.com/aldoetobex/rentify-backend/internal/storage"
	"github.com/aldoetobex/rentify-backend/internal/testutil"
	"github.com/aldoetobex/rentify-backend/pkg/database"
	"github.com/aldoetobex/rentify-backend/pkg/models"
)

// startPostgres runs a throwaway Postgres and returns a migrated connection.
func startPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "rentify",
				"POSTGRES_PASSWORD": "rentify",
				"POSTGRES_DB":       "rentify",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	host, err := pg.Host(ctx)
	require.NoError(t, err)
	port, err := pg.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=rentify password=rentify dbname=rentify sslmode=disable", host, port.Port())
	db, err := database.Open(database.Options{Type: "postgres", DSN: dsn, MaxOpenConns: 10, LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func Test_Postgres_ConcurrentAcceptsActivateOnce(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	owner := testutil.SeedUser(t, db, models.RoleUser, "Olivia")
	renter := testutil.SeedUser(t, db, models.RoleRenter, "Rico")
	prop := testutil.SeedProperty(t, db, owner.ID)

	svc := contracts.NewService(db, properties.NewDirectory(db), storage.NewMemory(), contractpdf.NewRenderer("Rentify"), nil,
		contracts.Options{MaxRetries: 10, RetryInterval: 5 * time.Millisecond})

	ownerC := contracts.Caller{ID: owner.ID, Role: owner.Role}
	renterC := contracts.Caller{ID: renter.ID, Role: renter.Role}

	for i := 0; i < 5; i++ {
		c, err := svc.Create(ctx, renterC, contracts.CreateInput{PropertyID: prop.ID, RenterID: &renter.ID})
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for j, caller := range []contracts.Caller{ownerC, renterC} {
			wg.Add(1)
			go func(j int, caller contracts.Caller) {
				defer wg.Done()
				_, errs[j] = svc.Accept(ctx, caller, c.ID, contracts.AcceptInput{SignatureName: "Signed"})
			}(j, caller)
		}
		wg.Wait()
		require.NoError(t, errs[0])
		require.NoError(t, errs[1])

		got, err := svc.Get(ctx, ownerC, c.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ContractActive, got.Status)
		assert.True(t, got.OwnerAccepted.Accepted)
		assert.True(t, got.RenterAccepted.Accepted)

		activated := 0
		for _, h := range got.History {
			if h.Action == models.ActionActivated {
				activated++
			}
		}
		assert.Equal(t, 1, activated)

		var jobs int64
		require.NoError(t, db.Model(&models.PDFJob{}).Where("contract_id = ?", c.ID).Count(&jobs).Error)
		assert.EqualValues(t, 1, jobs)
	}
}

func Test_Postgres_ConcurrentProposalsKeepHistoryOrdered(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	owner := testutil.SeedUser(t, db, models.RoleUser, "Olivia")
	renter := testutil.SeedUser(t, db, models.RoleRenter, "Rico")
	prop := testutil.SeedProperty(t, db, owner.ID)

	svc := contracts.NewService(db, properties.NewDirectory(db), storage.NewMemory(), contractpdf.NewRenderer("Rentify"), nil,
		contracts.Options{MaxRetries: 20, RetryInterval: 5 * time.Millisecond})
	c, err := svc.Create(ctx, contracts.Caller{ID: renter.ID, Role: renter.Role}, contracts.CreateInput{PropertyID: prop.ID, RenterID: &renter.ID})
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			caller := contracts.Caller{ID: owner.ID, Role: owner.Role}
			if i%2 == 1 {
				caller = contracts.Caller{ID: renter.ID, Role: renter.Role}
			}
			_, err := svc.ProposeEdit(ctx, caller, c.ID, fmt.Sprintf("proposal %d", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := svc.Get(ctx, contracts.Caller{ID: owner.ID, Role: owner.Role}, c.ID)
	require.NoError(t, err)
	require.Len(t, got.History, n+1)
	for i, h := range got.History {
		assert.Equal(t, i+1, h.Seq)
	}
	assert.EqualValues(t, n, got.Version-c.Version)
}
