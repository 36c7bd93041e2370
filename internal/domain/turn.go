package domain

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

type Turn struct {
	bun.BaseModel `bun:"table:turns"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Date      time.Time `bun:"date,type:date,notnull"`
	Slot      string    `bun:"slot,notnull"`
	State     TurnState `bun:"state,notnull"`
	PersonID  int64     `bun:"person_id,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`

	Person *Person `bun:"rel:belongs-to,join:person_id=id"`
}

func (t *Turn) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if t.State == "" {
			t.State = StatePending
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if t.UpdatedAt.IsZero() {
			t.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		t.UpdatedAt = now
	}
	return nil
}

// TurnView is a turn as shown to callers, with its owner's identity attached.
type TurnView struct {
	ID             int64     `json:"id"`
	Date           string    `json:"date"`
	Slot           string    `json:"slot"`
	State          TurnState `json:"state"`
	PersonID       int64     `json:"person_id"`
	PersonName     string    `json:"person_name,omitempty"`
	IdentityNumber string    `json:"identity_number,omitempty"`
}

func NewTurnView(t Turn) TurnView {
	v := TurnView{
		ID:       t.ID,
		Date:     t.Date.Format(DateLayout),
		Slot:     t.Slot,
		State:    t.State,
		PersonID: t.PersonID,
	}
	if t.Person != nil {
		v.PersonName = t.Person.Name
		v.IdentityNumber = t.Person.IdentityNumber
	}
	return v
}

// TurnPatch carries the fields of a generic turn edit; nil means unchanged.
type TurnPatch struct {
	Date     *time.Time
	Slot     *string
	State    *TurnState
	PersonID *int64
}

func (p TurnPatch) Empty() bool {
	return p.Date == nil && p.Slot == nil && p.State == nil && p.PersonID == nil
}

// Apply returns a copy of turn with the patch merged in and the names of the
// columns that changed. Moving the turn to another person drops the loaded
// owner relation.
func (p TurnPatch) Apply(turn Turn) (Turn, []string) {
	var cols []string
	if p.Date != nil {
		turn.Date = DateOf(*p.Date)
		cols = append(cols, "date")
	}
	if p.Slot != nil {
		turn.Slot = *p.Slot
		cols = append(cols, "slot")
	}
	if p.State != nil {
		turn.State = *p.State
		cols = append(cols, "state")
	}
	if p.PersonID != nil {
		if turn.PersonID != *p.PersonID {
			turn.Person = nil
		}
		turn.PersonID = *p.PersonID
		cols = append(cols, "person_id")
	}
	return turn, cols
}
