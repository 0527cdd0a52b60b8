// Package testutil provides shared helpers for database-backed tests.
package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/models"
	"github.com/kontax/green-ledger/internal/repository"
	"github.com/kontax/green-ledger/pkg/database"
)

// NewTestDB opens an in-memory database with all migrations applied.
// MaxOpenConns is pinned to 1 because each sqlite in-memory connection is a
// separate database.
func NewTestDB(t *testing.T) *database.DB {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Path:         ":memory:",
		MaxOpenConns: 1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrator := database.NewMigrator(db, logger)
	require.NoError(t, migrator.RunMigrations(MigrationsDir))

	return db
}

// MigrationsDir is the migrations directory relative to internal/<pkg> test
// packages, which is where every database-backed test lives.
const MigrationsDir = "../../migrations"

// CreateTestEntity inserts an entity and returns it.
func CreateTestEntity(t *testing.T, db *database.DB) *models.Entity {
	t.Helper()

	repo := repository.NewEntityRepository(db.DB, zap.NewNop())
	entity := &models.Entity{
		RUT:         uniqueRUT(),
		RazonSocial: "Comercial Verde SpA",
		Sector:      "comercio",
		Estado:      models.EntityEstadoActivo,
	}
	require.NoError(t, repo.Create(entity))
	return entity
}

// Date builds a UTC date without the time component.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func uniqueRUT() string {
	// Tests only need uniqueness, not a valid check digit.
	return "76." + uuid.NewString()[:8] + "-K"
}
