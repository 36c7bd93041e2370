package turns

import (
	"context"
	"errors"
	"strings"
	"time"

	"turnos/internal/domain"
	"turnos/internal/store"
)

const (
	ReasonPersonDisabled   = "person is disabled"
	ReasonPenalized        = "person has too many recent cancellations"
	ReasonSlotTaken        = "slot is already taken"
	ReasonNothingToUpdate  = "no fields to update"
	ReasonIdentityRequired = "identity_number is required"
	ReasonDateRequired     = "date is required"
)

type Service struct {
	persons   store.PersonRepository
	turns     store.TurnRepository
	schedule  domain.Schedule
	policy    domain.CancellationPolicy
	exclusive bool
	now       func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithCancellationPolicy(p domain.CancellationPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// WithSlotExclusivity makes Book re-check the slot inside a per-date
// transaction and reject it when a non-cancelled turn already holds it.
func WithSlotExclusivity(enabled bool) Option {
	return func(s *Service) { s.exclusive = enabled }
}

func NewService(persons store.PersonRepository, turns store.TurnRepository, schedule domain.Schedule, opts ...Option) *Service {
	s := &Service{
		persons:  persons,
		turns:    turns,
		schedule: schedule,
		policy:   domain.DefaultCancellationPolicy(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type BookInput struct {
	IdentityNumber string
	Date           time.Time
	Slot           string
	// State is optional; empty means pending.
	State string
}

func (s *Service) Book(ctx context.Context, in BookInput) (domain.TurnView, error) {
	identityNumber := strings.TrimSpace(in.IdentityNumber)
	if identityNumber == "" {
		return domain.TurnView{}, domain.InvalidInput(ReasonIdentityRequired)
	}
	if in.Date.IsZero() {
		return domain.TurnView{}, domain.InvalidInput(ReasonDateRequired)
	}

	person, err := s.persons.GetByIdentityNumber(ctx, identityNumber)
	if err != nil {
		return domain.TurnView{}, notFound(err, "person with identity number %s not found", identityNumber)
	}
	if !person.Enabled {
		return domain.TurnView{}, domain.Forbidden(ReasonPersonDisabled)
	}

	eligible, err := s.canBook(ctx, person.ID)
	if err != nil {
		return domain.TurnView{}, err
	}
	if !eligible {
		return domain.TurnView{}, domain.Forbidden(ReasonPenalized)
	}

	slot := strings.TrimSpace(in.Slot)
	if err := s.schedule.ValidateSlot(slot); err != nil {
		return domain.TurnView{}, err
	}

	state := domain.StatePending
	if strings.TrimSpace(in.State) != "" {
		state, err = s.schedule.ParseState(in.State)
		if err != nil {
			return domain.TurnView{}, err
		}
	}

	turn := domain.Turn{
		Date:     domain.DateOf(in.Date),
		Slot:     slot,
		State:    state,
		PersonID: person.ID,
	}

	var created domain.Turn
	if s.exclusive {
		err = s.turns.InDateTransaction(ctx, turn.Date, func(ctx context.Context, tx store.DayTx) error {
			occupied, err := tx.OccupiedSlots(ctx, turn.Date)
			if err != nil {
				return err
			}
			for _, label := range occupied {
				if label == slot {
					return domain.Conflict(ReasonSlotTaken)
				}
			}
			created, err = tx.CreateTurn(ctx, turn)
			return err
		})
	} else {
		created, err = s.turns.Create(ctx, turn)
	}
	if err != nil {
		return domain.TurnView{}, err
	}

	return domain.NewTurnView(created), nil
}

func (s *Service) Get(ctx context.Context, id int64) (domain.TurnView, error) {
	turn, err := s.getTurn(ctx, id)
	if err != nil {
		return domain.TurnView{}, err
	}
	return domain.NewTurnView(turn), nil
}

func (s *Service) List(ctx context.Context, skip, limit int) ([]domain.TurnView, error) {
	if skip < 0 || limit < 0 {
		return nil, domain.InvalidInput("skip and limit must not be negative")
	}
	rows, err := s.turns.List(ctx, skip, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TurnView, 0, len(rows))
	for _, t := range rows {
		out = append(out, domain.NewTurnView(t))
	}
	return out, nil
}

func (s *Service) Confirm(ctx context.Context, id int64) (domain.TurnView, error) {
	return s.transition(ctx, id, domain.CanConfirm, domain.StateConfirmed)
}

func (s *Service) Cancel(ctx context.Context, id int64) (domain.TurnView, error) {
	return s.transition(ctx, id, domain.CanCancel, domain.StateCancelled)
}

func (s *Service) transition(ctx context.Context, id int64, guard func(domain.TurnState) domain.Guard, target domain.TurnState) (domain.TurnView, error) {
	turn, err := s.getTurn(ctx, id)
	if err != nil {
		return domain.TurnView{}, err
	}
	if err := guard(turn.State).Err(); err != nil {
		return domain.TurnView{}, err
	}

	turn.State = target
	updated, err := s.turns.Update(ctx, turn, "state")
	if err != nil {
		return domain.TurnView{}, notFound(err, "turn %d not found", id)
	}
	return domain.NewTurnView(updated), nil
}

// Update applies a generic edit. Only pending and confirmed turns can change.
func (s *Service) Update(ctx context.Context, id int64, patch domain.TurnPatch) (domain.TurnView, error) {
	if patch.Empty() {
		return domain.TurnView{}, domain.InvalidInput(ReasonNothingToUpdate)
	}

	turn, err := s.getTurn(ctx, id)
	if err != nil {
		return domain.TurnView{}, err
	}
	if err := domain.CanModify(turn.State).Err(); err != nil {
		return domain.TurnView{}, err
	}

	if patch.Date != nil && patch.Date.IsZero() {
		return domain.TurnView{}, domain.InvalidInput(ReasonDateRequired)
	}
	if patch.Slot != nil {
		slot := strings.TrimSpace(*patch.Slot)
		if err := s.schedule.ValidateSlot(slot); err != nil {
			return domain.TurnView{}, err
		}
		patch.Slot = &slot
	}
	if patch.State != nil {
		state, err := s.schedule.ParseState(string(*patch.State))
		if err != nil {
			return domain.TurnView{}, err
		}
		patch.State = &state
	}
	if patch.PersonID != nil {
		if _, err := s.persons.Get(ctx, *patch.PersonID); err != nil {
			return domain.TurnView{}, notFound(err, "person %d not found", *patch.PersonID)
		}
	}

	merged, cols := patch.Apply(turn)
	updated, err := s.turns.Update(ctx, merged, cols...)
	if err != nil {
		return domain.TurnView{}, notFound(err, "turn %d not found", id)
	}
	return domain.NewTurnView(updated), nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.turns.Delete(ctx, id); err != nil {
		return notFound(err, "turn %d not found", id)
	}
	return nil
}

// AvailableSlots returns the grid slots on date not held by a non-cancelled turn.
func (s *Service) AvailableSlots(ctx context.Context, date time.Time) ([]string, error) {
	if date.IsZero() {
		return nil, domain.InvalidInput(ReasonDateRequired)
	}
	occupied, err := s.turns.OccupiedSlots(ctx, domain.DateOf(date))
	if err != nil {
		return nil, err
	}
	return domain.AvailableSlots(s.schedule.Slots(), occupied), nil
}

// CanBook reports whether the person is within the cancellation allowance.
// It does not look at the enabled flag.
func (s *Service) CanBook(ctx context.Context, personID int64) (bool, error) {
	if _, err := s.persons.Get(ctx, personID); err != nil {
		return false, notFound(err, "person %d not found", personID)
	}
	return s.canBook(ctx, personID)
}

func (s *Service) canBook(ctx context.Context, personID int64) (bool, error) {
	cancelled, err := s.turns.CountCancelledSince(ctx, personID, s.policy.Since(s.now()))
	if err != nil {
		return false, err
	}
	return s.policy.Eligible(cancelled), nil
}

func (s *Service) Schedule() domain.Schedule {
	return s.schedule
}

func (s *Service) getTurn(ctx context.Context, id int64) (domain.Turn, error) {
	turn, err := s.turns.Get(ctx, id)
	if err != nil {
		return domain.Turn{}, notFound(err, "turn %d not found", id)
	}
	return turn, nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain.NotFound(format, args...)
	}
	return err
}
