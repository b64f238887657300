package notify

import (
	"fmt"
	"strings"

	"github.com/easyslot/easyslot/internal/config"
)

const defaultSubject = "Appointment Notification"

// MonitoringStarted describes a freshly started watch.
func MonitoringStarted(cities []string, dr config.DateRange, autoBook bool) (subject, body string) {
	mode := "notification only"
	if autoBook {
		mode = "automatic booking"
	}
	body = fmt.Sprintf("Started monitoring appointments\nCities: %s\nDate Range: %s to %s\nMode: %s",
		strings.Join(cities, ", "), dr.StartDate, dr.EndDate, mode)
	return defaultSubject, body
}

// SlotFound announces an open slot.
func SlotFound(city, date string) (subject, body string) {
	body = fmt.Sprintf("Found available appointment!\nLocation: %s\nDate: %s", city, date)
	return defaultSubject, body
}

// Booked announces a successful booking.
func Booked(city, date string) (subject, body string) {
	body = fmt.Sprintf("Successfully booked appointment!\nLocation: %s\nDate: %s", city, date)
	return defaultSubject, body
}

// Failure announces an error in the watch loop.
func Failure(err error) (subject, body string) {
	body = fmt.Sprintf("Error occurred: %v", err)
	return defaultSubject, body
}
