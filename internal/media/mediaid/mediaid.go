package mediaid

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// TempPrefix marks ids of media that have no row yet. Stored media use UUIDs,
// so the two namespaces never collide.
const TempPrefix = "tmp_"

var (
	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
)

func init() {
	entropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
}

// NewTemp returns a tmp_* ULID string.
func NewTemp() string {
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	entropyMu.Unlock()
	return TempPrefix + strings.ToLower(id.String())
}

// IsTemp reports whether the string is a tmp_* ULID.
func IsTemp(value string) bool {
	if !strings.HasPrefix(value, TempPrefix) {
		return false
	}
	_, err := ulid.ParseStrict(strings.ToUpper(strings.TrimPrefix(value, TempPrefix)))
	return err == nil
}
