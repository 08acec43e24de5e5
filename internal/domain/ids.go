package domain

import (
	"crypto/rand"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const qrAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var qrIDRegex = regexp.MustCompile(`^QR-[A-Z0-9]{8}$`)

// NewTeamID returns a "TEAM-" id with an 8-char uppercase hex suffix.
func NewTeamID() string { return "TEAM-" + shortHex() }

// NewGameID returns a "GAME-" id with an 8-char uppercase hex suffix.
func NewGameID() string { return "GAME-" + shortHex() }

// NewResultID returns a "RESULT-" id with an 8-char uppercase hex suffix.
func NewResultID() string { return "RESULT-" + shortHex() }

// NewQRID returns a "QR-" id with 8 uppercase alphanumerics.
func NewQRID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = qrAlphabet[int(b)%len(qrAlphabet)]
	}
	return "QR-" + string(buf)
}

// ValidQRID reports whether s has the QR id shape.
func ValidQRID(s string) bool { return qrIDRegex.MatchString(s) }

func shortHex() string {
	id := uuid.New()
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}
