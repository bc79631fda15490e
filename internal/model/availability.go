package model

import (
	"github.com/google/uuid"
)

// DateSlot is the set of open time labels a doctor has on one date.
type DateSlot struct {
	Date  Date     `json:"date"`
	Times []string `json:"times"`
}

type DoctorAvailability struct {
	DoctorID  uuid.UUID  `json:"doctor_id"`
	DateSlots []DateSlot `json:"date_slots"`
}

// SlotRow is one persisted (doctor, date, time) entry.
type SlotRow struct {
	DoctorID uuid.UUID `db:"doctor_id"`
	Date     Date      `db:"slot_date"`
	Time     string    `db:"slot_time"`
	Position int       `db:"position"`
}

// GroupSlots folds rows ordered by (date, position) into DateSlots.
func GroupSlots(rows []SlotRow) []DateSlot {
	var out []DateSlot
	for _, r := range rows {
		if n := len(out); n > 0 && out[n-1].Date.Equal(r.Date.Time) {
			out[n-1].Times = append(out[n-1].Times, r.Time)
			continue
		}
		out = append(out, DateSlot{Date: r.Date, Times: []string{r.Time}})
	}
	return out
}

type SetAvailabilityRequest struct {
	Date  string   `json:"date" binding:"required,isodate"`
	Times []string `json:"times" binding:"dive,timelabel"`
}
