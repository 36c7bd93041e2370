package domain

// AvailableSlots returns the grid labels not present in occupied, in grid order.
// Occupied must hold the slots of non-cancelled turns only.
func AvailableSlots(grid []string, occupied []string) []string {
	taken := make(map[string]struct{}, len(occupied))
	for _, label := range occupied {
		taken[label] = struct{}{}
	}

	out := make([]string, 0, len(grid))
	for _, label := range grid {
		if _, ok := taken[label]; ok {
			continue
		}
		out = append(out, label)
	}
	return out
}

// OccupiedSlots collects the slot labels of turns that hold their slot.
func OccupiedSlots(turns []Turn) []string {
	out := make([]string, 0, len(turns))
	for _, t := range turns {
		if t.State == StateCancelled {
			continue
		}
		out = append(out, t.Slot)
	}
	return out
}
