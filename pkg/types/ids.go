package types

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewTaskID generates a unique task id. Falls back to a timestamp-only id
// if the random source is unavailable.
func NewTaskID() TaskID {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return TaskID(fmt.Sprintf("t-%d", time.Now().UnixNano()))
	}
	return TaskID(fmt.Sprintf("t-%d-%s", time.Now().UnixNano(), hex.EncodeToString(b[:])))
}
