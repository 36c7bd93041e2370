package reports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turnos/internal/domain"
	"turnos/internal/report"
	"turnos/internal/service/turns"
	"turnos/internal/store/sqlstore"
)

var today = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *Service
	persons *sqlstore.PersonRepo
	turns   *sqlstore.TurnRepo
	ids     map[string]int64
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	db, err := sqlstore.Open(sqlstore.DriverSQLite, ":memory:?_foreign_keys=on", sqlstore.PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlstore.Close(db) })
	require.NoError(t, sqlstore.Migrate(ctx, db, false))

	schedule, err := domain.NewSchedule(9, 17, 30, domain.DefaultStates)
	require.NoError(t, err)

	f := fixture{
		persons: sqlstore.NewPersonRepo(db),
		turns:   sqlstore.NewTurnRepo(db),
		ids:     map[string]int64{},
	}
	clock := func() time.Time { return today }
	booking := turns.NewService(f.persons, f.turns, schedule, turns.WithClock(clock))
	f.svc = NewService(f.persons, f.turns, booking, schedule, WithClock(clock))

	for _, p := range []struct {
		dni     string
		name    string
		enabled bool
	}{
		{"11111111", "Sofía Martínez", true},
		{"22222222", "Juan Pérez", true},
		{"33333333", "Luis Gómez", false},
	} {
		created, err := f.persons.Create(ctx, domain.Person{
			Name:           p.name,
			Email:          p.dni + "@example.com",
			IdentityNumber: p.dni,
			BirthDate:      time.Date(1990, 3, 10, 0, 0, 0, 0, time.UTC),
			Enabled:        p.enabled,
		})
		require.NoError(t, err)
		f.ids[p.dni] = created.ID
	}
	return f
}

func (f fixture) add(t *testing.T, dni string, date time.Time, slot string, state domain.TurnState) {
	t.Helper()
	_, err := f.turns.Create(context.Background(), domain.Turn{Date: date, Slot: slot, State: state, PersonID: f.ids[dni]})
	require.NoError(t, err)
}

func TestTurnsByDate(t *testing.T) {
	f := newFixture(t)
	f.add(t, "22222222", today, "10:00", domain.StatePending)
	f.add(t, "11111111", today, "09:00", domain.StateConfirmed)
	f.add(t, "22222222", today, "09:30", domain.StateCancelled)
	f.add(t, "11111111", today.AddDate(0, 0, 1), "09:00", domain.StatePending)

	r, err := f.svc.TurnsByDate(context.Background(), today, 1, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, r.Turns.Total)
	assert.Equal(t, 2, r.Turns.TotalPages)
	require.Len(t, r.Turns.Items, 2)
	assert.Equal(t, "09:00", r.Turns.Items[0].Slot)
	assert.Equal(t, "11111111", r.Turns.Items[0].IdentityNumber)

	require.Len(t, r.Persons, 2)
	assert.Equal(t, "11111111", r.Persons[0].IdentityNumber)
	assert.Equal(t, 2, r.Persons[1].Count)

	assert.Equal(t, 16, r.Summary.Capacity)
	assert.Equal(t, 2, r.Summary.Occupied)
	assert.Equal(t, "0.13", r.Summary.Occupancy.StringFixed(2))

	table := r.Table()
	assert.Equal(t, "Turnos del 2025-06-15", table.Title)
	assert.Len(t, table.Rows, 3)

	_, err = f.svc.TurnsByDate(context.Background(), today, 0, 2)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestCancelledInMonth(t *testing.T) {
	f := newFixture(t)
	f.add(t, "11111111", time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), "09:00", domain.StateCancelled)
	f.add(t, "11111111", time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC), "09:00", domain.StateCancelled)
	f.add(t, "22222222", time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), "09:00", domain.StatePending)

	r, err := f.svc.CancelledInMonth(context.Background(), 2025, time.June)
	require.NoError(t, err)
	assert.Equal(t, "junio", r.MonthName)
	require.Len(t, r.Turns, 1)
	assert.Equal(t, "2025-06-02", r.Turns[0].Date)
	assert.Equal(t, "Sofía Martínez", r.Turns[0].PersonName)

	_, err = f.svc.CancelledInMonth(context.Background(), 2025, 13)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestCancellations_MinThreshold(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.add(t, "11111111", today.AddDate(0, 0, -i), "09:00", domain.StateCancelled)
	}
	for i := 0; i < 4; i++ {
		f.add(t, "22222222", today.AddDate(0, 0, -i), "10:00", domain.StateCancelled)
	}

	r, err := f.svc.Cancellations(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, report.DefaultMinCancellations, r.Min)
	require.Len(t, r.Persons, 1)
	assert.Equal(t, "11111111", r.Persons[0].IdentityNumber)
	assert.Len(t, r.Persons[0].Turns, 5)

	r, err = f.svc.Cancellations(context.Background(), 4)
	require.NoError(t, err)
	assert.Len(t, r.Persons, 2)
	assert.Len(t, r.Table().Rows, 2)

	_, err = f.svc.Cancellations(context.Background(), -1)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestConfirmedInPeriod_Pages(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		f.add(t, "22222222", start.AddDate(0, 0, 11-i), "09:00", domain.StateConfirmed)
	}
	f.add(t, "22222222", start.AddDate(0, 0, 3), "10:00", domain.StatePending)

	r, err := f.svc.ConfirmedInPeriod(context.Background(), start, start.AddDate(0, 0, 11), 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 12, r.Turns.Total)
	require.Len(t, r.Turns.Items, 5)
	for i, item := range r.Turns.Items {
		assert.Equal(t, start.AddDate(0, 0, 5+i).Format(domain.DateLayout), item.Date, fmt.Sprintf("item %d", i))
	}
	assert.Len(t, r.Table().Rows, 5)

	r, err = f.svc.ConfirmedInPeriod(context.Background(), start, start.AddDate(0, 0, 11), 4, 5)
	require.NoError(t, err)
	assert.Empty(t, r.Turns.Items)

	_, err = f.svc.ConfirmedInPeriod(context.Background(), start.AddDate(0, 0, 1), start, 1, 5)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestPersonHistory(t *testing.T) {
	f := newFixture(t)
	f.add(t, "11111111", today, "10:00", domain.StatePending)
	f.add(t, "11111111", today.AddDate(0, 0, -3), "09:00", domain.StateAttended)
	f.add(t, "11111111", today, "09:00", domain.StateConfirmed)

	r, err := f.svc.PersonHistory(context.Background(), f.ids["11111111"], 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Total)
	require.Len(t, r.Turns, 2)
	assert.Equal(t, domain.StateAttended, r.Turns[0].State)
	assert.Equal(t, "09:00", r.Turns[1].Slot)
	assert.Equal(t, "11111111", r.Turns[1].IdentityNumber)
	assert.Equal(t, 35, r.Person.Age)
	assert.Equal(t, "Turnos de Sofía Martínez (DNI 11111111)", r.Table().Title)

	_, err = f.svc.PersonHistory(context.Background(), 999, 0, 10)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestPersonStatuses(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.add(t, "22222222", today.AddDate(0, 0, -i*10), "09:00", domain.StateCancelled)
	}
	f.add(t, "11111111", today.AddDate(0, 0, -200), "09:00", domain.StateCancelled)

	r, err := f.svc.PersonStatuses(context.Background())
	require.NoError(t, err)
	require.Len(t, r.Persons, 3)

	byDNI := map[string]report.PersonStatus{}
	for _, s := range r.Persons {
		byDNI[s.IdentityNumber] = s
	}
	assert.Equal(t, report.StatusEnabled, byDNI["11111111"].Status)
	assert.Equal(t, report.StatusDisabled, byDNI["22222222"].Status)
	assert.False(t, byDNI["22222222"].CanBook)
	assert.Equal(t, report.StatusDisabled, byDNI["33333333"].Status)
	assert.True(t, byDNI["33333333"].CanBook)
}
