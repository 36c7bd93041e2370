package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Schedule is the daily slot grid and the turn state vocabulary. It is built
// once at startup and never mutated; Slots and States return copies.
type Schedule struct {
	startHour   int
	endHour     int
	interval    int
	slots       []string
	slotIndex   map[string]struct{}
	states      []TurnState
	strictSlots bool
}

type ScheduleOption func(*Schedule)

// WithLenientSlots accepts any syntactically valid HH:MM label when booking,
// not only labels on the grid.
func WithLenientSlots() ScheduleOption {
	return func(s *Schedule) { s.strictSlots = false }
}

func NewSchedule(startHour, endHour, intervalMinutes int, states []string, opts ...ScheduleOption) (Schedule, error) {
	if startHour < 0 || startHour > 24 || endHour < 0 || endHour > 24 {
		return Schedule{}, errors.New("schedule hours must be between 0 and 24")
	}
	if intervalMinutes <= 0 {
		return Schedule{}, errors.New("schedule interval must be positive")
	}
	if len(states) == 0 {
		states = DefaultStates
	}

	s := Schedule{
		startHour:   startHour,
		endHour:     endHour,
		interval:    intervalMinutes,
		strictSlots: true,
	}
	for _, opt := range opts {
		opt(&s)
	}

	s.slots = BuildSlots(startHour, endHour, intervalMinutes)
	s.slotIndex = make(map[string]struct{}, len(s.slots))
	for _, label := range s.slots {
		s.slotIndex[label] = struct{}{}
	}

	seen := make(map[TurnState]struct{}, len(states))
	for _, raw := range states {
		st := TurnState(strings.ToLower(strings.TrimSpace(raw)))
		if st == "" {
			continue
		}
		if _, ok := seen[st]; ok {
			continue
		}
		seen[st] = struct{}{}
		s.states = append(s.states, st)
	}
	for _, required := range []TurnState{StatePending, StateConfirmed, StateCancelled, StateAttended} {
		if _, ok := seen[required]; !ok {
			return Schedule{}, fmt.Errorf("state vocabulary is missing %q", required)
		}
	}

	return s, nil
}

// BuildSlots returns HH:MM labels from startHour stepping by intervalMinutes
// while before endHour. startHour >= endHour gives an empty grid.
func BuildSlots(startHour, endHour, intervalMinutes int) []string {
	if intervalMinutes <= 0 || startHour >= endHour {
		return []string{}
	}
	out := make([]string, 0, ((endHour-startHour)*60+intervalMinutes-1)/intervalMinutes)
	for m := startHour * 60; m < endHour*60; m += intervalMinutes {
		out = append(out, fmt.Sprintf("%02d:%02d", m/60, m%60))
	}
	return out
}

func (s Schedule) Slots() []string {
	out := make([]string, len(s.slots))
	copy(out, s.slots)
	return out
}

func (s Schedule) HasSlot(label string) bool {
	_, ok := s.slotIndex[label]
	return ok
}

func (s Schedule) StrictSlots() bool { return s.strictSlots }

func (s Schedule) States() []TurnState {
	out := make([]TurnState, len(s.states))
	copy(out, s.states)
	return out
}

// ParseState matches raw case-insensitively against the vocabulary.
func (s Schedule) ParseState(raw string) (TurnState, error) {
	st := TurnState(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range s.states {
		if known == st {
			return known, nil
		}
	}
	return "", InvalidInput("invalid state %q", raw)
}

// ValidateSlot checks the HH:MM syntax and, in strict mode, grid membership.
func (s Schedule) ValidateSlot(label string) error {
	if !validSlotSyntax(label) {
		return InvalidInput("slot %q must use the HH:MM format", label)
	}
	if s.strictSlots && !s.HasSlot(label) {
		return InvalidInput("slot %q is outside business hours", label)
	}
	return nil
}

func validSlotSyntax(label string) bool {
	if len(label) != 5 || label[2] != ':' {
		return false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if label[i] < '0' || label[i] > '9' {
			return false
		}
	}
	hour := int(label[0]-'0')*10 + int(label[1]-'0')
	minute := int(label[3]-'0')*10 + int(label[4]-'0')
	return hour < 24 && minute < 60
}
