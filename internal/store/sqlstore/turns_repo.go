package sqlstore

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"turnos/internal/domain"
	"turnos/internal/store"
)

type TurnRepo struct {
	db *bun.DB
}

func NewTurnRepo(db *bun.DB) *TurnRepo {
	return &TurnRepo{db: db}
}

type dayTx struct {
	tx bun.Tx
}

func (r *TurnRepo) Get(ctx context.Context, id int64) (domain.Turn, error) {
	return getTurn(ctx, r.db, id)
}

func getTurn(ctx context.Context, db bun.IDB, id int64) (domain.Turn, error) {
	var t domain.Turn
	err := db.NewSelect().
		Model(&t).
		Relation("Person").
		Where("turn.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Turn{}, translateError(err)
	}
	return t, nil
}

func (r *TurnRepo) List(ctx context.Context, skip, limit int) ([]domain.Turn, error) {
	rows := make([]domain.Turn, 0)
	q := r.db.NewSelect().
		Model(&rows).
		Relation("Person").
		Order("turn.date", "turn.slot", "turn.id")
	if err := paginate(q, skip, limit).Scan(ctx); err != nil {
		return nil, translateError(err)
	}
	return rows, nil
}

func (r *TurnRepo) Create(ctx context.Context, t domain.Turn) (domain.Turn, error) {
	return createTurn(ctx, r.db, t)
}

func createTurn(ctx context.Context, db bun.IDB, t domain.Turn) (domain.Turn, error) {
	m := domain.Turn{
		Date:     domain.DateOf(t.Date),
		Slot:     t.Slot,
		State:    t.State,
		PersonID: t.PersonID,
	}
	if _, err := db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Turn{}, translateError(err)
	}
	return getTurn(ctx, db, m.ID)
}

func (r *TurnRepo) Update(ctx context.Context, t domain.Turn, columns ...string) (domain.Turn, error) {
	t.Date = domain.DateOf(t.Date)
	t.Person = nil

	q := r.db.NewUpdate().Model(&t).WherePK()
	if len(columns) > 0 {
		q = q.Column(withUpdatedAt(columns)...)
	} else {
		q = q.ExcludeColumn("id", "created_at")
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return domain.Turn{}, translateError(err)
	}
	if err := requireAffected(res); err != nil {
		return domain.Turn{}, err
	}
	return r.Get(ctx, t.ID)
}

func (r *TurnRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.NewDelete().
		Model((*domain.Turn)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return translateError(err)
	}
	return requireAffected(res)
}

func (r *TurnRepo) ListByDate(ctx context.Context, date time.Time) ([]domain.Turn, error) {
	rows := make([]domain.Turn, 0)
	err := r.db.NewSelect().
		Model(&rows).
		Relation("Person").
		Where("turn.date = ?", domain.DateOf(date)).
		Order("turn.slot", "turn.id").
		Scan(ctx)
	if err != nil {
		return nil, translateError(err)
	}
	return rows, nil
}

func (r *TurnRepo) ListCancelledInMonth(ctx context.Context, year int, month time.Month) ([]domain.Turn, error) {
	from, to := domain.MonthRange(year, month)

	rows := make([]domain.Turn, 0)
	err := r.db.NewSelect().
		Model(&rows).
		Relation("Person").
		Where("turn.state = ?", domain.StateCancelled).
		Where("turn.date >= ?", from).
		Where("turn.date < ?", to).
		Order("turn.date", "turn.slot", "turn.id").
		Scan(ctx)
	if err != nil {
		return nil, translateError(err)
	}
	return rows, nil
}

func (r *TurnRepo) ListByState(ctx context.Context, state domain.TurnState) ([]domain.Turn, error) {
	rows := make([]domain.Turn, 0)
	err := r.db.NewSelect().
		Model(&rows).
		Relation("Person").
		Where("turn.state = ?", state).
		Order("turn.person_id", "turn.date", "turn.slot").
		Scan(ctx)
	if err != nil {
		return nil, translateError(err)
	}
	return rows, nil
}

func (r *TurnRepo) ListByStateBetween(ctx context.Context, state domain.TurnState, from, to time.Time) ([]domain.Turn, error) {
	rows := make([]domain.Turn, 0)
	err := r.db.NewSelect().
		Model(&rows).
		Relation("Person").
		Where("turn.state = ?", state).
		Where("turn.date >= ?", domain.DateOf(from)).
		Where("turn.date <= ?", domain.DateOf(to)).
		Order("turn.date", "turn.slot", "turn.id").
		Scan(ctx)
	if err != nil {
		return nil, translateError(err)
	}
	return rows, nil
}

func (r *TurnRepo) ListByPerson(ctx context.Context, personID int64, skip, limit int) ([]domain.Turn, error) {
	rows := make([]domain.Turn, 0)
	q := r.db.NewSelect().
		Model(&rows).
		Where("person_id = ?", personID).
		Order("date", "slot", "id")
	if err := paginate(q, skip, limit).Scan(ctx); err != nil {
		return nil, translateError(err)
	}
	return rows, nil
}

func (r *TurnRepo) CountByPerson(ctx context.Context, personID int64) (int, error) {
	n, err := r.db.NewSelect().
		Model((*domain.Turn)(nil)).
		Where("person_id = ?", personID).
		Count(ctx)
	if err != nil {
		return 0, translateError(err)
	}
	return n, nil
}

func (r *TurnRepo) CountCancelledSince(ctx context.Context, personID int64, since time.Time) (int, error) {
	n, err := r.db.NewSelect().
		Model((*domain.Turn)(nil)).
		Where("person_id = ?", personID).
		Where("state = ?", domain.StateCancelled).
		Where("date >= ?", domain.DateOf(since)).
		Count(ctx)
	if err != nil {
		return 0, translateError(err)
	}
	return n, nil
}

func (r *TurnRepo) OccupiedSlots(ctx context.Context, date time.Time) ([]string, error) {
	return occupiedSlots(ctx, r.db, date)
}

func occupiedSlots(ctx context.Context, db bun.IDB, date time.Time) ([]string, error) {
	slots := make([]string, 0)
	err := db.NewSelect().
		Model((*domain.Turn)(nil)).
		Column("slot").
		Where("date = ?", domain.DateOf(date)).
		Where("state <> ?", domain.StateCancelled).
		Order("slot").
		Scan(ctx, &slots)
	if err != nil {
		return nil, translateError(err)
	}
	return slots, nil
}

func (r *TurnRepo) InDateTransaction(ctx context.Context, date time.Time, fn func(ctx context.Context, tx store.DayTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockDate(ctx, tx, date); err != nil {
			return err
		}
		return fn(ctx, dayTx{tx: tx})
	})
}

// lockDate serializes bookings per date on postgres. SQLite runs on a single
// connection, so its transactions are already serialized.
func lockDate(ctx context.Context, tx bun.Tx, date time.Time) error {
	if tx.Dialect().Name() != dialect.PG {
		return nil
	}
	key := "turns:" + domain.DateOf(date).Format(domain.DateLayout)
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", key).Exec(ctx)
	return err
}

func (d dayTx) OccupiedSlots(ctx context.Context, date time.Time) ([]string, error) {
	return occupiedSlots(ctx, d.tx, date)
}

func (d dayTx) CreateTurn(ctx context.Context, t domain.Turn) (domain.Turn, error) {
	return createTurn(ctx, d.tx, t)
}
