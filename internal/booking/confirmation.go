package booking

import (
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var confirmationPattern = regexp.MustCompile(`^BK[A-Z0-9]+$`)

// NewConfirmationNumber builds a guest-facing booking reference: BK, the
// booking time in base 36 and six random hex digits
func NewConfirmationNumber(at time.Time) string {
	id := uuid.New()
	return "BK" +
		strings.ToUpper(strconv.FormatInt(at.UnixMilli(), 36)) +
		strings.ToUpper(hex.EncodeToString(id[:3]))
}

// IsConfirmationNumber reports whether s looks like a confirmation number
func IsConfirmationNumber(s string) bool {
	return confirmationPattern.MatchString(s)
}
