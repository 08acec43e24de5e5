package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	emailRegex  = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	entityRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_\-]{1,63}$`)
)

const (
	maxNameLen  = 100
	maxNotesLen = 2000
)

// ValidateEmail checks if an email address is valid.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	return nil
}

// ValidateName checks a display, team or game name.
func ValidateName(field, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s is required", field)
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return fmt.Errorf("%s must be at most %d characters", field, maxNameLen)
	}
	return nil
}

// ValidateNotes bounds free-text result notes.
func ValidateNotes(notes string) error {
	if utf8.RuneCountInString(notes) > maxNotesLen {
		return fmt.Errorf("notes must be at most %d characters", maxNotesLen)
	}
	return nil
}

// ValidateEntityID checks a client-supplied team/game/result id.
func ValidateEntityID(id string) error {
	if !entityRegex.MatchString(id) {
		return fmt.Errorf("invalid id: %q", id)
	}
	return nil
}
