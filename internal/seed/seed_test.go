package seed

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turnos/internal/domain"
	"turnos/internal/service/turns"
	"turnos/internal/store/sqlstore"
)

var today = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

func TestRun_ScenariosAndIdempotency(t *testing.T) {
	ctx := context.Background()
	db, err := sqlstore.Open(sqlstore.DriverSQLite, ":memory:?_foreign_keys=on", sqlstore.PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlstore.Close(db) })
	require.NoError(t, sqlstore.Migrate(ctx, db, false))

	schedule, err := domain.NewSchedule(9, 17, 30, domain.DefaultStates)
	require.NoError(t, err)

	persons := sqlstore.NewPersonRepo(db)
	turnRepo := sqlstore.NewTurnRepo(db)
	clock := func() time.Time { return today.Add(8 * time.Hour) }
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(persons, turnRepo, schedule, log, WithClock(clock))

	res, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{PersonsCreated: 15, TurnsCreated: 73}, res)

	again, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{}, again)

	todays, err := turnRepo.ListByDate(ctx, today)
	require.NoError(t, err)
	assert.Len(t, todays, TurnsToday+2)

	lucas, err := persons.GetByIdentityNumber(ctx, "11111111")
	require.NoError(t, err)
	n, err := turnRepo.CountByPerson(ctx, lucas.ID)
	require.NoError(t, err)
	assert.Equal(t, HistoryTurns+3, n)

	miguel, err := persons.GetByIdentityNumber(ctx, "33333333")
	require.NoError(t, err)
	assert.False(t, miguel.Enabled)

	booking := turns.NewService(persons, turnRepo, schedule, turns.WithClock(clock))
	sofia, err := persons.GetByIdentityNumber(ctx, "22222222")
	require.NoError(t, err)
	ok, err := booking.CanBook(ctx, sofia.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	brian, err := persons.GetByIdentityNumber(ctx, "48351225")
	require.NoError(t, err)
	ok, err = booking.CanBook(ctx, brian.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	cancelled, err := turnRepo.ListCancelledInMonth(ctx, 2025, time.May)
	require.NoError(t, err)
	var sofiaInMay int
	for _, turn := range cancelled {
		if turn.PersonID == sofia.ID {
			sofiaInMay++
		}
	}
	assert.Equal(t, 3, sofiaInMay)
}

func TestRun_NeedsTwoSlots(t *testing.T) {
	schedule, err := domain.NewSchedule(9, 9, 30, nil)
	require.NoError(t, err)

	s := New(nil, nil, schedule, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err = s.Run(context.Background())
	assert.Error(t, err)
}
