package domain

import "time"

// DateLayout is the wire format for travel dates.
const DateLayout = "2006-01-02"

type BookingStatus string

// Confirmed is the only status a booking ever has; there is no cancel/refund flow.
const BookingConfirmed BookingStatus = "confirmed"

// BookingRequest is the payload posted by the booking wizard. Card data never
// travels in it.
type BookingRequest struct {
	FullName        string  `json:"fullName"`
	Email           string  `json:"email"`
	Phone           string  `json:"phone"`
	Travelers       int     `json:"travelers"`
	TravelDate      string  `json:"travelDate"`
	SpecialRequests string  `json:"specialRequests,omitempty"`
	PackageTitle    string  `json:"packageTitle"`
	PackagePrice    float64 `json:"packagePrice"`
	PackageDays     int     `json:"packageDays"`
	PackageProvider string  `json:"packageProvider,omitempty"`
	Destination     string  `json:"destination"`
	TotalAmount     float64 `json:"totalAmount"` // client computed, advisory only
}

// BookingResponse is what the booking endpoint answers on the accepted path.
type BookingResponse struct {
	Success     bool    `json:"success"`
	BookingID   string  `json:"bookingId,omitempty"`
	Message     string  `json:"message,omitempty"`
	CheckIn     string  `json:"checkIn,omitempty"`
	CheckOut    string  `json:"checkOut,omitempty"`
	TotalAmount float64 `json:"totalAmount,omitempty"`
	Error       string  `json:"error,omitempty"`
}

type PackageInfo struct {
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Days     int     `json:"days"`
	Provider string  `json:"provider"`
}

// BookingRecord is the server-side, immutable view of an accepted booking.
type BookingRecord struct {
	ID              string        `json:"bookingId"`
	FullName        string        `json:"fullName"`
	Email           string        `json:"email"`
	Phone           string        `json:"phone"`
	Travelers       int           `json:"travelers"`
	TravelDate      time.Time     `json:"travelDate"`
	SpecialRequests string        `json:"specialRequests,omitempty"`
	Package         PackageInfo   `json:"package"`
	Destination     string        `json:"destination"`
	TotalAmount     float64       `json:"totalAmount"`
	CreatedAt       time.Time     `json:"createdAt"`
	Status          BookingStatus `json:"status"`
}

// StayDays is the package length, never less than one day.
func (b BookingRecord) StayDays() int {
	if b.Package.Days < 1 {
		return 1
	}
	return b.Package.Days
}

func (b BookingRecord) CheckIn() time.Time { return b.TravelDate }

// CheckOut is the last day of the trip: a 4-day package starting on the 1st
// checks out on the 4th.
func (b BookingRecord) CheckOut() time.Time {
	return b.TravelDate.AddDate(0, 0, b.StayDays()-1)
}

// SideEffects is the advisory outcome of the downstream work that follows an
// accepted booking. It feeds logs and metrics only.
type SideEffects struct {
	ContentSaved   bool
	Published      bool
	Notified       bool
	EventPublished bool
	Errors         []error
}

// Email is a dual-format outbound message.
type Email struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// PublishTarget selects where a CMS entry is published.
type PublishTarget struct {
	Environments []string `json:"environments"`
	Locales      []string `json:"locales"`
}
