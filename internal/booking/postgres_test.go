package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPostgresRepositoryWithDB(mock)
}

func TestPostgresAppend(t *testing.T) {
	mock, repo := newMockRepo(t)

	b := Booking{
		ID:         uuid.New(),
		ClientID:   "tg:100200",
		ClientName: "Olena",
		Procedure:  "Стрижка",
		Date:       "2025-07-21",
		Slot:       "14:00",
		CreatedAt:  time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO bookings").
		WithArgs(b.ID, b.ClientID, b.ClientName, b.Procedure, b.Date, "14:00", b.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Append(context.Background(), b))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendConflict(t *testing.T) {
	mock, repo := newMockRepo(t)

	// ON CONFLICT DO NOTHING swallows the duplicate; zero rows means the
	// slot was already held.
	mock.ExpectExec("INSERT INTO bookings").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err := repo.Append(context.Background(), Booking{ID: uuid.New(), Date: "2025-07-21", Slot: "14:00"})
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListActiveByDate(t *testing.T) {
	mock, repo := newMockRepo(t)

	id := uuid.New()
	created := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "client_id", "client_name", "procedure", "date", "slot", "created_at"}).
		AddRow(id, "tg:100200", "Olena", "Стрижка", "2025-07-21", "14:00", created)

	mock.ExpectQuery("SELECT id, client_id, client_name, procedure, date, slot, created_at").
		WithArgs("2025-07-21").
		WillReturnRows(rows)

	bookings, err := repo.ListActive(context.Background(), "2025-07-21")
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, id, bookings[0].ID)
	assert.EqualValues(t, "14:00", bookings[0].Slot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListActiveStoreError(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("SELECT id, client_id, client_name, procedure, date, slot, created_at").
		WithArgs("2025-07-21").
		WillReturnError(errors.New("connection refused"))

	_, err := repo.ListActive(context.Background(), "2025-07-21")
	assert.Error(t, err)
}

func TestPostgresRemoveByClient(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectExec("UPDATE bookings SET cancelled_at").
		WithArgs("tg:100200").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	removed, err := repo.RemoveByClient(context.Background(), "tg:100200")
	require.NoError(t, err)
	assert.True(t, removed)

	mock.ExpectExec("UPDATE bookings SET cancelled_at").
		WithArgs("tg:missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	removed, err = repo.RemoveByClient(context.Background(), "tg:missing")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
