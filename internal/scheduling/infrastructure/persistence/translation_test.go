package persistence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/infrastructure/persistence"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database/sqlite"
)

// Driver errors surfacing from PostgreSQL are translated the same way.
func TestSlotRepository_TranslatesExclusionViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO slots").
		WillReturnError(&pgconn.PgError{Code: "23P01", ConstraintName: "slots_no_overlap", Message: "conflicting key value violates exclusion constraint"})

	repo := persistence.NewSlotRepository(sqlite.Wrap(db))
	err = repo.Create(context.Background(), newSlot(t, 3, monday, 30*time.Minute))

	var overlap *domain.OverlapError
	require.ErrorAs(t, err, &overlap)
	assert.Equal(t, int64(3), overlap.OwnerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_UpdateOverlapDoesNotRequery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE slots").
		WillReturnError(&pgconn.PgError{Code: "23P01", ConstraintName: "slots_no_overlap"})

	repo := persistence.NewSlotRepository(sqlite.Wrap(db))
	_, err = repo.TransitionStatus(context.Background(), 1, domain.StatusFree, domain.StatusPending, 9, now)

	assert.ErrorIs(t, err, domain.ErrOverlap)
	// No follow-up SELECT on the aborted transaction.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepository_TranslatesUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO slot_assignments").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "slot_assignments_one_active_per_candidate"})

	repo := persistence.NewAssignmentRepository(sqlite.Wrap(db))
	a, err := domain.NewAssignment(1, 1, 9, domain.AssignmentOffered, now)
	require.NoError(t, err)

	assert.ErrorIs(t, repo.Create(context.Background(), a), domain.ErrActiveAssignmentExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_WrapsInfrastructureErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE slots").WillReturnError(assert.AnError)

	repo := persistence.NewSlotRepository(sqlite.Wrap(db))
	_, err = repo.Reserve(context.Background(), 1, 9, now)
	require.ErrorIs(t, err, assert.AnError)

	var overlap *domain.OverlapError
	assert.False(t, errors.As(err, &overlap))
	assert.NoError(t, mock.ExpectationsWereMet())
}
