package persons

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"turnos/internal/domain"
	"turnos/internal/report"
	"turnos/internal/store"
)

const ReasonDuplicate = "a person with this email or identity number already exists"

// Eligibility answers whether a person is within the cancellation allowance.
type Eligibility interface {
	CanBook(ctx context.Context, personID int64) (bool, error)
}

type Service struct {
	repo        store.PersonRepository
	eligibility Eligibility
	now         func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo store.PersonRepository, eligibility Eligibility, opts ...Option) *Service {
	s := &Service{repo: repo, eligibility: eligibility, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	Name           string
	Email          string
	IdentityNumber string
	Phone          *string
	BirthDate      time.Time
	// Enabled defaults to true when nil.
	Enabled *bool
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.PersonView, error) {
	p := domain.Person{
		Name:           strings.TrimSpace(in.Name),
		Email:          strings.TrimSpace(in.Email),
		IdentityNumber: strings.TrimSpace(in.IdentityNumber),
		Phone:          optionalPtr(in.Phone),
		BirthDate:      in.BirthDate,
		Enabled:        true,
	}
	if in.Enabled != nil {
		p.Enabled = *in.Enabled
	}
	if !p.BirthDate.IsZero() {
		p.BirthDate = domain.DateOf(p.BirthDate)
	}
	if err := s.validate(p); err != nil {
		return domain.PersonView{}, err
	}

	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return domain.PersonView{}, translate(err, "person not found")
	}
	return domain.NewPersonView(created, s.now()), nil
}

func (s *Service) Get(ctx context.Context, id int64) (domain.PersonView, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.PersonView{}, translate(err, "person %d not found", id)
	}
	return domain.NewPersonView(p, s.now()), nil
}

func (s *Service) GetByIdentityNumber(ctx context.Context, identityNumber string) (domain.PersonView, error) {
	identityNumber = strings.TrimSpace(identityNumber)
	p, err := s.repo.GetByIdentityNumber(ctx, identityNumber)
	if err != nil {
		return domain.PersonView{}, translate(err, "person with identity number %s not found", identityNumber)
	}
	return domain.NewPersonView(p, s.now()), nil
}

func (s *Service) List(ctx context.Context, skip, limit int) ([]domain.PersonView, error) {
	if skip < 0 || limit < 0 {
		return nil, domain.InvalidInput("skip and limit must not be negative")
	}
	rows, err := s.repo.List(ctx, skip, limit)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]domain.PersonView, 0, len(rows))
	for _, p := range rows {
		out = append(out, domain.NewPersonView(p, now))
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, id int64, patch domain.PersonPatch) (domain.PersonView, error) {
	if patch.Empty() {
		return domain.PersonView{}, domain.InvalidInput("no fields to update")
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.PersonView{}, translate(err, "person %d not found", id)
	}

	patch.Name = trimmedPtr(patch.Name)
	patch.Email = trimmedPtr(patch.Email)
	patch.IdentityNumber = trimmedPtr(patch.IdentityNumber)
	patch.Phone = trimmedPtr(patch.Phone)

	merged, cols := patch.Apply(current)
	if err := s.validate(merged); err != nil {
		return domain.PersonView{}, err
	}

	updated, err := s.repo.Update(ctx, merged, cols...)
	if err != nil {
		return domain.PersonView{}, translate(err, "person %d not found", id)
	}
	return domain.NewPersonView(updated, s.now()), nil
}

// Delete removes the person and every turn they own.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return translate(err, "person %d not found", id)
	}
	return nil
}

// Status is "enabled" only when the person is enabled and may book.
func (s *Service) Status(ctx context.Context, id int64) (string, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", translate(err, "person %d not found", id)
	}
	canBook, err := s.eligibility.CanBook(ctx, p.ID)
	if err != nil {
		return "", err
	}
	return report.StatusOf(p.Enabled, canBook), nil
}

func (s *Service) validate(p domain.Person) error {
	if p.Name == "" {
		return domain.InvalidInput("name is required")
	}
	if p.IdentityNumber == "" {
		return domain.InvalidInput("identity_number is required")
	}
	if p.Email == "" {
		return domain.InvalidInput("email is required")
	}
	if addr, err := mail.ParseAddress(p.Email); err != nil || addr.Address != p.Email {
		return domain.InvalidInput("email %q is not a valid address", p.Email)
	}
	if p.BirthDate.IsZero() {
		return domain.InvalidInput("birth_date is required")
	}
	if p.BirthDate.After(domain.DateOf(s.now())) {
		return domain.InvalidInput("birth_date must not be in the future")
	}
	return nil
}

func translate(err error, format string, args ...any) error {
	switch {
	case errors.Is(err, store.ErrConflict):
		return domain.Conflict(ReasonDuplicate)
	case errors.Is(err, store.ErrNotFound):
		return domain.NotFound(format, args...)
	}
	return err
}

// optionalPtr trims v and maps an empty value to nil.
func optionalPtr(v *string) *string {
	v = trimmedPtr(v)
	if v == nil || *v == "" {
		return nil
	}
	return v
}

func trimmedPtr(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}
