package flow

import (
	"time"

	"github.com/mesieou/simple-booking-sub004/internal/models"
)

// Offered appointment hours per day. Sundays are closed.
var dailyHours = []string{"09:00", "11:00", "13:00", "15:00", "17:00"}

// NextAvailableSlots returns the first count bookable slots starting the day
// after from. Deterministic for a fixed from, which keeps tests stable.
func NextAvailableSlots(from time.Time, count int) []models.TimeSlot {
	var slots []models.TimeSlot
	day := from.AddDate(0, 0, 1)
	for len(slots) < count {
		if day.Weekday() != time.Sunday {
			for _, h := range dailyHours {
				slots = append(slots, models.TimeSlot{Date: day.Format("2006-01-02"), Time: h})
				if len(slots) == count {
					break
				}
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return slots
}

// BrowsableDays returns the next count bookable dates starting the day
// after from.
func BrowsableDays(from time.Time, count int) []string {
	var days []string
	day := from.AddDate(0, 0, 1)
	for len(days) < count {
		if day.Weekday() != time.Sunday {
			days = append(days, day.Format("2006-01-02"))
		}
		day = day.AddDate(0, 0, 1)
	}
	return days
}

// HoursForDay returns the offered hours for a bookable date, or nil for
// Sundays and unparseable dates.
func HoursForDay(date string) []string {
	d, err := time.Parse("2006-01-02", date)
	if err != nil || d.Weekday() == time.Sunday {
		return nil
	}
	out := make([]string, len(dailyHours))
	copy(out, dailyHours)
	return out
}
