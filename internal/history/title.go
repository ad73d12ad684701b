package history

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	titleLength   = 40
	titleEllipsis = "..."
	// DefaultTitle names a session whose first message has no text.
	DefaultTitle = "New conversation"
)

// MakeTitle derives a session title from the first message: its first 40
// characters, with an ellipsis when the text is 40 characters or longer.
func MakeTitle(text string) string {
	runes := []rune(text)
	if len(runes) == 0 {
		return DefaultTitle
	}
	if len(runes) < titleLength {
		return text
	}
	return string(runes[:titleLength]) + titleEllipsis
}

// NewID returns a base-36 millisecond timestamp followed by a random suffix.
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return strconv.FormatInt(now.UnixMilli(), 36) + suffix
}
