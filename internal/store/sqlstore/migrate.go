package sqlstore

import (
	"context"

	"github.com/uptrace/bun"

	"turnos/internal/domain"
)

// Migrate creates the persons and turns tables and their indexes. With reset
// the tables are dropped first and all data is lost.
func Migrate(ctx context.Context, db *bun.DB, reset bool) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if reset {
			for _, model := range []any{(*domain.Turn)(nil), (*domain.Person)(nil)} {
				if _, err := tx.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
					return err
				}
			}
		}

		if _, err := tx.NewCreateTable().
			Model((*domain.Person)(nil)).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}

		if _, err := tx.NewCreateTable().
			Model((*domain.Turn)(nil)).
			IfNotExists().
			ForeignKey(`("person_id") REFERENCES "persons" ("id") ON DELETE CASCADE`).
			Exec(ctx); err != nil {
			return err
		}

		indexes := []struct {
			name    string
			columns []string
		}{
			{"turns_date_slot_idx", []string{"date", "slot"}},
			{"turns_person_state_date_idx", []string{"person_id", "state", "date"}},
		}
		for _, idx := range indexes {
			if _, err := tx.NewCreateIndex().
				Model((*domain.Turn)(nil)).
				Index(idx.name).
				Column(idx.columns...).
				IfNotExists().
				Exec(ctx); err != nil {
				return err
			}
		}

		return nil
	})
}
