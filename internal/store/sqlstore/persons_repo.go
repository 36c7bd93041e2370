package sqlstore

import (
	"context"

	"github.com/uptrace/bun"

	"turnos/internal/domain"
)

type PersonRepo struct {
	db *bun.DB
}

func NewPersonRepo(db *bun.DB) *PersonRepo {
	return &PersonRepo{db: db}
}

func (r *PersonRepo) Get(ctx context.Context, id int64) (domain.Person, error) {
	var p domain.Person
	err := r.db.NewSelect().
		Model(&p).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Person{}, translateError(err)
	}
	return p, nil
}

func (r *PersonRepo) GetByIdentityNumber(ctx context.Context, identityNumber string) (domain.Person, error) {
	var p domain.Person
	err := r.db.NewSelect().
		Model(&p).
		Where("identity_number = ?", identityNumber).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Person{}, translateError(err)
	}
	return p, nil
}

func (r *PersonRepo) List(ctx context.Context, skip, limit int) ([]domain.Person, error) {
	rows := make([]domain.Person, 0)
	q := r.db.NewSelect().
		Model(&rows).
		Order("id")
	if err := paginate(q, skip, limit).Scan(ctx); err != nil {
		return nil, translateError(err)
	}
	return rows, nil
}

func (r *PersonRepo) Create(ctx context.Context, p domain.Person) (domain.Person, error) {
	p.ID = 0
	if _, err := r.db.NewInsert().Model(&p).Exec(ctx); err != nil {
		return domain.Person{}, translateError(err)
	}
	return p, nil
}

func (r *PersonRepo) Update(ctx context.Context, p domain.Person, columns ...string) (domain.Person, error) {
	q := r.db.NewUpdate().Model(&p).WherePK()
	if len(columns) > 0 {
		q = q.Column(withUpdatedAt(columns)...)
	} else {
		q = q.ExcludeColumn("id", "created_at")
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return domain.Person{}, translateError(err)
	}
	if err := requireAffected(res); err != nil {
		return domain.Person{}, err
	}
	return p, nil
}

func (r *PersonRepo) Delete(ctx context.Context, id int64) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*domain.Turn)(nil)).
			Where("person_id = ?", id).
			Exec(ctx); err != nil {
			return translateError(err)
		}

		res, err := tx.NewDelete().
			Model((*domain.Person)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return translateError(err)
		}
		return requireAffected(res)
	})
}
