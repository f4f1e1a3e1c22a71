package constraint

import (
	"time"

	"github.com/slotwise/scheduling-service/internal/models"
)

// TimeWindow is a candidate (start, end) pair.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// TeamMemberContext bundles one team member's availability slots and the
// partial SchedulingContext the engine needs to validate candidates against
// them (existing sessions are shared across the whole team lookup; the rest
// is per-RBT).
type TeamMemberContext struct {
	RbtID             string
	AvailabilitySlots []models.AvailabilitySlot
	ContinuityScore   int
}

// FindAvailableTimeSlots enumerates each team member's availability window
// on date in 30-minute increments and filters through rules 1-10,
// returning a mapping from RBT id to its list of valid candidate windows
// (spec.md §4.4). Grounded on the teacher's GetAvailableSlots slot-walk
// loop, generalized from a single service duration to the team-wide
// per-RBT enumeration.
func (e *Engine) FindAvailableTimeSlots(
	clientID string,
	date time.Time,
	members []TeamMemberContext,
	existingSessions []models.Session,
	cons SchedulingConstraints,
) map[string][]TimeWindow {
	const step = 30 * time.Minute

	result := make(map[string][]TimeWindow, len(members))
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, e.calendar.Location())

	for _, member := range members {
		var windows []TimeWindow
		for _, slot := range member.AvailabilitySlots {
			if !slot.Active || slot.DayOfWeek != int(dayStart.Weekday()) {
				continue
			}
			if !slot.IsActiveOn(dayStart) {
				continue
			}
			slotStartMin, err1 := parseHHMM(slot.StartTime)
			slotEndMin, err2 := parseHHMM(slot.EndTime)
			if err1 != nil || err2 != nil {
				continue
			}

			cursor := dayStart.Add(time.Duration(slotStartMin) * time.Minute)
			slotEnd := dayStart.Add(time.Duration(slotEndMin) * time.Minute)

			for {
				candidateEnd := cursor.Add(cons.SessionDuration)
				if candidateEnd.After(slotEnd) {
					break
				}

				candidate := Candidate{
					ClientID: clientID,
					RbtID:    member.RbtID,
					Start:    cursor,
					End:      candidateEnd,
				}
				sc := SchedulingContext{
					ExistingSessions:  existingSessions,
					IsTeamMember:      true,
					AvailabilitySlots: member.AvailabilitySlots,
					ContinuityScore:   member.ContinuityScore,
				}

				if e.Evaluate(candidate, sc, cons).Valid {
					windows = append(windows, TimeWindow{Start: cursor, End: candidateEnd})
				}

				cursor = cursor.Add(step)
			}
		}
		if len(windows) > 0 {
			result[member.RbtID] = windows
		}
	}

	return result
}
