package fileid

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyOnce sync.Once
	entropy     *ulid.MonotonicEntropy
)

func newEntropy() *ulid.MonotonicEntropy {
	entropyOnce.Do(func() {
		source := rand.NewSource(time.Now().UnixNano())
		entropy = ulid.Monotonic(rand.New(source), 0)
	})
	return entropy
}

// New returns a file_* ULID string.
func New() string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), newEntropy())
	return "file_" + strings.ToLower(id.String())
}

// IsValid reports whether the string is a file_* ULID.
func IsValid(value string) bool {
	if !strings.HasPrefix(value, "file_") {
		return false
	}
	_, err := Parse(value)
	return err == nil
}

// Parse strips the file_ prefix and returns the ULID.
func Parse(value string) (ulid.ULID, error) {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "file_")
	value = strings.TrimPrefix(value, "FILE_")
	return ulid.Parse(value)
}
