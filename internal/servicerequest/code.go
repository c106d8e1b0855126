package servicerequest

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewCode returns a request code of the form SR-YYYYMMDD-XXXXXX, the date
// being the UTC submission day.
func NewCode(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "SR-" + at.UTC().Format("20060102") + "-" + suffix
}
