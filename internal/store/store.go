package store

import (
	"context"
	"time"

	"turnos/internal/domain"
)

type PersonRepository interface {
	Get(ctx context.Context, id int64) (domain.Person, error)
	GetByIdentityNumber(ctx context.Context, identityNumber string) (domain.Person, error)
	List(ctx context.Context, skip, limit int) ([]domain.Person, error)
	Create(ctx context.Context, p domain.Person) (domain.Person, error)
	Update(ctx context.Context, p domain.Person, columns ...string) (domain.Person, error)
	// Delete removes the person together with all of their turns.
	Delete(ctx context.Context, id int64) error
}

// TurnRepository returns turns with their owner loaded unless noted otherwise.
type TurnRepository interface {
	Get(ctx context.Context, id int64) (domain.Turn, error)
	List(ctx context.Context, skip, limit int) ([]domain.Turn, error)
	Create(ctx context.Context, t domain.Turn) (domain.Turn, error)
	Update(ctx context.Context, t domain.Turn, columns ...string) (domain.Turn, error)
	Delete(ctx context.Context, id int64) error

	ListByDate(ctx context.Context, date time.Time) ([]domain.Turn, error)
	ListCancelledInMonth(ctx context.Context, year int, month time.Month) ([]domain.Turn, error)
	ListByState(ctx context.Context, state domain.TurnState) ([]domain.Turn, error)
	// ListByStateBetween filters on from <= date <= to.
	ListByStateBetween(ctx context.Context, state domain.TurnState, from, to time.Time) ([]domain.Turn, error)
	// ListByPerson orders by (date, slot); the owner is not loaded.
	ListByPerson(ctx context.Context, personID int64, skip, limit int) ([]domain.Turn, error)
	CountByPerson(ctx context.Context, personID int64) (int, error)
	CountCancelledSince(ctx context.Context, personID int64, since time.Time) (int, error)

	// OccupiedSlots lists the slots of non-cancelled turns on date.
	OccupiedSlots(ctx context.Context, date time.Time) ([]string, error)
	// InDateTransaction runs fn in a transaction that excludes other
	// InDateTransaction calls for the same date.
	InDateTransaction(ctx context.Context, date time.Time, fn func(ctx context.Context, tx DayTx) error) error
}

type DayTx interface {
	OccupiedSlots(ctx context.Context, date time.Time) ([]string, error)
	CreateTurn(ctx context.Context, t domain.Turn) (domain.Turn, error)
}
