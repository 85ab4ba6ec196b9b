package wizard

import (
	"strings"

	"wanderwise/internal/domain"
)

func validateDetails(d Draft) map[string]string {
	errs := map[string]string{}
	if strings.TrimSpace(d.FullName) == "" {
		errs[FieldFullName] = "Full name is required"
	}
	switch {
	case strings.TrimSpace(d.Email) == "":
		errs[FieldEmail] = "Email is required"
	case !domain.ValidEmail(d.Email):
		errs[FieldEmail] = "Invalid email format"
	}
	switch {
	case strings.TrimSpace(d.Phone) == "":
		errs[FieldPhone] = "Phone number is required"
	case !domain.ValidPhone(d.Phone):
		errs[FieldPhone] = "Invalid phone number"
	}
	if d.TravelDate == "" {
		errs[FieldTravelDate] = "Travel date is required"
	}
	if d.Travelers < 1 {
		errs[FieldTravelers] = "At least 1 traveler required"
	}
	return errs
}

// validatePayment checks shape only; nothing is charged. Expiry is only
// required to be present.
func validatePayment(d Draft) map[string]string {
	errs := map[string]string{}
	switch {
	case strings.TrimSpace(d.CardNumber) == "":
		errs[FieldCardNumber] = "Card number is required"
	case !domain.ValidCardNumber(d.CardNumber):
		errs[FieldCardNumber] = "Invalid card number"
	}
	if strings.TrimSpace(d.CardName) == "" {
		errs[FieldCardName] = "Name on card is required"
	}
	if strings.TrimSpace(d.ExpiryDate) == "" {
		errs[FieldExpiryDate] = "Expiry date is required"
	}
	switch {
	case strings.TrimSpace(d.CVV) == "":
		errs[FieldCVV] = "CVV is required"
	case !domain.ValidCVV(d.CVV):
		errs[FieldCVV] = "Invalid CVV"
	}
	return errs
}
