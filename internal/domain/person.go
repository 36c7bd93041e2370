package domain

import (
	"context"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type Person struct {
	bun.BaseModel `bun:"table:persons"`

	ID             int64     `bun:"id,pk,autoincrement"`
	Name           string    `bun:"name,notnull"`
	Email          string    `bun:"email,notnull,unique"`
	IdentityNumber string    `bun:"identity_number,notnull,unique"`
	Phone          *string   `bun:"phone"`
	BirthDate      time.Time `bun:"birth_date,type:date,notnull"`
	Enabled        bool      `bun:"enabled,notnull"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
	UpdatedAt      time.Time `bun:"updated_at,notnull"`

	Turns []*Turn `bun:"rel:has-many,join:id=person_id"`
}

func (p *Person) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		p.UpdatedAt = now
	}
	return nil
}

// Age counts the full years elapsed between the birth date and now.
func (p Person) Age(now time.Time) int {
	return AgeAt(p.BirthDate, now)
}

func AgeAt(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}

// PersonView is a person as shown to callers, with the derived age.
type PersonView struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	IdentityNumber string  `json:"identity_number"`
	Phone          *string `json:"phone,omitempty"`
	BirthDate      string  `json:"birth_date"`
	Enabled        bool    `json:"enabled"`
	Age            int     `json:"age"`
}

func NewPersonView(p Person, now time.Time) PersonView {
	return PersonView{
		ID:             p.ID,
		Name:           p.Name,
		Email:          p.Email,
		IdentityNumber: p.IdentityNumber,
		Phone:          p.Phone,
		BirthDate:      p.BirthDate.Format(DateLayout),
		Enabled:        p.Enabled,
		Age:            p.Age(now),
	}
}

// PersonPatch carries the fields of a partial update; nil means unchanged.
type PersonPatch struct {
	Name           *string
	Email          *string
	IdentityNumber *string
	Phone          *string
	BirthDate      *time.Time
	Enabled        *bool
}

func (p PersonPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.IdentityNumber == nil &&
		p.Phone == nil && p.BirthDate == nil && p.Enabled == nil
}

// Apply returns a copy of person with the patch merged in and the names of
// the columns that changed.
func (p PersonPatch) Apply(person Person) (Person, []string) {
	var cols []string
	if p.Name != nil {
		person.Name = *p.Name
		cols = append(cols, "name")
	}
	if p.Email != nil {
		person.Email = *p.Email
		cols = append(cols, "email")
	}
	if p.IdentityNumber != nil {
		person.IdentityNumber = *p.IdentityNumber
		cols = append(cols, "identity_number")
	}
	if p.Phone != nil {
		// An empty phone clears it.
		person.Phone = nil
		if phone := strings.TrimSpace(*p.Phone); phone != "" {
			person.Phone = &phone
		}
		cols = append(cols, "phone")
	}
	if p.BirthDate != nil {
		person.BirthDate = DateOf(*p.BirthDate)
		cols = append(cols, "birth_date")
	}
	if p.Enabled != nil {
		person.Enabled = *p.Enabled
		cols = append(cols, "enabled")
	}
	return person, cols
}
