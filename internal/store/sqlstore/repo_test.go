package sqlstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"turnos/internal/domain"
	"turnos/internal/store"
)

func openSQLite(t *testing.T) *bun.DB {
	t.Helper()

	db, err := Open(DriverSQLite, ":memory:?_foreign_keys=on", PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Migrate(context.Background(), db, false))
	return db
}

func TestSQLite_Repositories(t *testing.T) {
	exerciseRepositories(t, openSQLite(t))
}

func TestPostgresIntegration_Repositories(t *testing.T) {
	databaseURL := strings.TrimSpace(os.Getenv("TURNOS_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("TURNOS_TEST_DATABASE_URL not set")
	}

	db, err := Open(DriverPostgres, databaseURL, PoolConfig{MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	schema := "turnos_test_" + randomHex(t, 8)
	_, err = db.NewRaw("CREATE SCHEMA " + schema).Exec(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = db.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(ctx)
	})
	_, err = db.NewRaw("SET search_path TO " + schema).Exec(ctx)
	require.NoError(t, err)

	require.NoError(t, Migrate(ctx, db, false))
	exerciseRepositories(t, db)
}

func exerciseRepositories(t *testing.T, db *bun.DB) {
	ctx := context.Background()
	persons := NewPersonRepo(db)
	turns := NewTurnRepo(db)

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	brian, err := persons.Create(ctx, domain.Person{
		Name:           "Brian Rodriguez",
		Email:          "brian@example.com",
		IdentityNumber: "48351225",
		BirthDate:      time.Date(1996, 1, 1, 0, 0, 0, 0, time.UTC),
		Enabled:        true,
	})
	require.NoError(t, err)
	require.NotZero(t, brian.ID)

	martin, err := persons.Create(ctx, domain.Person{
		Name:           "Martin Scarfo",
		Email:          "martin@example.com",
		IdentityNumber: "39541236",
		BirthDate:      time.Date(1985, 12, 5, 0, 0, 0, 0, time.UTC),
		Enabled:        false,
	})
	require.NoError(t, err)

	t.Run("person lookups", func(t *testing.T) {
		got, err := persons.GetByIdentityNumber(ctx, "48351225")
		require.NoError(t, err)
		assert.Equal(t, brian.ID, got.ID)
		assert.Equal(t, "1996-01-01", got.BirthDate.Format(domain.DateLayout))

		got, err = persons.Get(ctx, martin.ID)
		require.NoError(t, err)
		assert.False(t, got.Enabled)

		_, err = persons.GetByIdentityNumber(ctx, "00000000")
		assert.ErrorIs(t, err, store.ErrNotFound)

		list, err := persons.List(ctx, 1, 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, martin.ID, list[0].ID)
	})

	t.Run("duplicate identity number conflicts", func(t *testing.T) {
		_, err := persons.Create(ctx, domain.Person{
			Name:           "Someone Else",
			Email:          "other@example.com",
			IdentityNumber: "48351225",
			BirthDate:      time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
			Enabled:        true,
		})
		assert.ErrorIs(t, err, store.ErrConflict)
	})

	t.Run("person update", func(t *testing.T) {
		phone := "1189521452"
		updated, cols := domain.PersonPatch{Phone: &phone}.Apply(brian)
		_, err := persons.Update(ctx, updated, cols...)
		require.NoError(t, err)

		got, err := persons.Get(ctx, brian.ID)
		require.NoError(t, err)
		require.NotNil(t, got.Phone)
		assert.Equal(t, phone, *got.Phone)
		assert.Equal(t, "Brian Rodriguez", got.Name)

		_, err = persons.Update(ctx, domain.Person{ID: 9999, Name: "x"}, "name")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	var booked domain.Turn
	t.Run("turn create loads owner", func(t *testing.T) {
		booked, err = turns.Create(ctx, domain.Turn{Date: day.Add(10 * time.Hour), Slot: "09:00", PersonID: brian.ID})
		require.NoError(t, err)
		assert.Equal(t, domain.StatePending, booked.State)
		assert.Equal(t, "2025-06-01", booked.Date.Format(domain.DateLayout))
		require.NotNil(t, booked.Person)
		assert.Equal(t, "48351225", booked.Person.IdentityNumber)
	})

	_, err = turns.Create(ctx, domain.Turn{Date: day, Slot: "09:30", State: domain.StateCancelled, PersonID: brian.ID})
	require.NoError(t, err)
	_, err = turns.Create(ctx, domain.Turn{Date: day, Slot: "10:00", State: domain.StateConfirmed, PersonID: martin.ID})
	require.NoError(t, err)
	_, err = turns.Create(ctx, domain.Turn{Date: day.AddDate(0, 0, -200), Slot: "10:00", State: domain.StateCancelled, PersonID: brian.ID})
	require.NoError(t, err)
	_, err = turns.Create(ctx, domain.Turn{Date: day.AddDate(0, 0, -10), Slot: "11:00", State: domain.StateCancelled, PersonID: brian.ID})
	require.NoError(t, err)

	t.Run("queries by date", func(t *testing.T) {
		rows, err := turns.ListByDate(ctx, day)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, []string{"09:00", "09:30", "10:00"}, []string{rows[0].Slot, rows[1].Slot, rows[2].Slot})
		require.NotNil(t, rows[2].Person)
		assert.Equal(t, "39541236", rows[2].Person.IdentityNumber)

		occupied, err := turns.OccupiedSlots(ctx, day)
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "10:00"}, occupied)
	})

	t.Run("cancellation queries", func(t *testing.T) {
		n, err := turns.CountCancelledSince(ctx, brian.ID, day.AddDate(0, 0, -182))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		rows, err := turns.ListCancelledInMonth(ctx, 2025, time.May)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "2025-05-22", rows[0].Date.Format(domain.DateLayout))

		rows, err = turns.ListByState(ctx, domain.StateCancelled)
		require.NoError(t, err)
		assert.Len(t, rows, 3)
	})

	t.Run("confirmed range is inclusive", func(t *testing.T) {
		rows, err := turns.ListByStateBetween(ctx, domain.StateConfirmed, day, day)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, martin.ID, rows[0].PersonID)
	})

	t.Run("person history", func(t *testing.T) {
		rows, err := turns.ListByPerson(ctx, brian.ID, 0, 2)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.True(t, !rows[0].Date.After(rows[1].Date))

		n, err := turns.CountByPerson(ctx, brian.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})

	t.Run("turn update", func(t *testing.T) {
		state := domain.StateConfirmed
		patched, cols := domain.TurnPatch{State: &state}.Apply(booked)
		got, err := turns.Update(ctx, patched, cols...)
		require.NoError(t, err)
		assert.Equal(t, domain.StateConfirmed, got.State)
		assert.Equal(t, "09:00", got.Slot)
		require.NotNil(t, got.Person)
	})

	t.Run("date transaction", func(t *testing.T) {
		err := turns.InDateTransaction(ctx, day, func(ctx context.Context, tx store.DayTx) error {
			occupied, err := tx.OccupiedSlots(ctx, day)
			if err != nil {
				return err
			}
			if len(occupied) != 2 {
				return errors.New("unexpected occupancy")
			}
			_, err = tx.CreateTurn(ctx, domain.Turn{Date: day, Slot: "12:00", PersonID: brian.ID})
			return err
		})
		require.NoError(t, err)

		occupied, err := turns.OccupiedSlots(ctx, day)
		require.NoError(t, err)
		assert.Contains(t, occupied, "12:00")
	})

	t.Run("delete person cascades", func(t *testing.T) {
		require.NoError(t, persons.Delete(ctx, brian.ID))

		_, err := turns.Get(ctx, booked.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)

		n, err := turns.CountByPerson(ctx, brian.ID)
		require.NoError(t, err)
		assert.Zero(t, n)

		assert.ErrorIs(t, persons.Delete(ctx, brian.ID), store.ErrNotFound)
		assert.ErrorIs(t, turns.Delete(ctx, booked.ID), store.ErrNotFound)
	})
}

func randomHex(t *testing.T, n int) string {
	t.Helper()
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return hex.EncodeToString(b)
}

func TestSQLite_CountCancelledSince_WindowBoundary(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	persons := NewPersonRepo(db)
	turns := NewTurnRepo(db)

	sofia, err := persons.Create(ctx, domain.Person{
		Name:           "Sofia Martinez",
		Email:          "sofia@example.com",
		IdentityNumber: "22222222",
		BirthDate:      time.Date(1992, 3, 8, 0, 0, 0, 0, time.UTC),
		Enabled:        true,
	})
	require.NoError(t, err)

	today := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	since := domain.DefaultCancellationPolicy().Since(today)
	require.Equal(t, today.AddDate(0, 0, -182), since)

	for _, days := range []int{182, 183} {
		_, err := turns.Create(ctx, domain.Turn{
			Date:     today.AddDate(0, 0, -days),
			Slot:     "09:00",
			State:    domain.StateCancelled,
			PersonID: sofia.ID,
		})
		require.NoError(t, err)
	}

	n, err := turns.CountCancelledSince(ctx, sofia.ID, since)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
