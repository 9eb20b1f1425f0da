package scheduling

import "time"

// GenerateSlots walks from start to end in steps of intervalMinutes on date
// and returns one candidate slot per step. A trailing step that would end
// after end is dropped, so every slot lasts exactly intervalMinutes. An empty
// result is returned when start is not before end or the interval is not
// positive or longer than the window. Candidates carry synthetic ids until
// the store persists them.
func GenerateSlots(date Date, start, end TimeOfDay, intervalMinutes int, loc *time.Location) []TimeSlot {
	if intervalMinutes <= 0 || start.Minutes() >= end.Minutes() || intervalMinutes > end.Minutes()-start.Minutes() {
		return []TimeSlot{}
	}

	midnight := date.In(loc)
	slots := make([]TimeSlot, 0, (end.Minutes()-start.Minutes())/intervalMinutes)
	for offset := start.Minutes(); offset+intervalMinutes <= end.Minutes(); offset += intervalMinutes {
		slots = append(slots, TimeSlot{
			ID:    GeneratedSlotID(offset),
			Start: midnight.Add(time.Duration(offset) * time.Minute),
			End:   midnight.Add(time.Duration(offset+intervalMinutes) * time.Minute),
		})
	}
	return slots
}
