package model

import "strings"

// CustomerInfo is collected progressively during checkout.  All three
// contact fields are required before the session may advance to the
// payment step; AcceptedTerms must be true as well.
type CustomerInfo struct {
	FullName      string `json:"full_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	AcceptedTerms bool   `json:"accepted_terms"`
}

// Complete reports whether every required field is present.  Terms
// acceptance is validated separately so the caller can surface a
// distinct error message.
func (ci CustomerInfo) Complete() bool {
	return strings.TrimSpace(ci.FullName) != "" &&
		strings.TrimSpace(ci.Email) != "" &&
		strings.TrimSpace(ci.Phone) != ""
}
