// Package email provides common email address utility functions.
package email

import (
	"net/mail"
	"strings"
)

// Normalize lower-cases and trims an email address for storage and
// comparison. Contact emails are stored normalized so uniqueness holds
// regardless of input casing.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Valid reports whether the address parses as a bare RFC 5322 address.
func Valid(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	// Reject addresses with a display name ("Name <a@b>") for stored contacts
	return addr.Address == email
}

// FormatAddress renders a display-name address for message headers.
// An empty name yields the bare address.
func FormatAddress(name, address string) string {
	if name == "" {
		return address
	}
	a := mail.Address{Name: name, Address: address}
	return a.String()
}
