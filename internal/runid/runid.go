// Package runid generates a short identifier correlating the log lines and
// trace spans of one simulation run, the way the teacher's pkg/guuid
// correlated a connection's packets and spans. A simulation run has no
// network connection to identify, so this trims GUUID down to what a CLI
// invocation actually needs: a stable label to tag structured log output
// with, generated once at startup.
package runid

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

// ID is an 8-byte run identifier with an embedded generation timestamp.
type ID [8]byte

// New generates an ID whose first 4 bytes are the low bits of the current
// Unix timestamp (seconds) and whose last 4 bytes are random, so IDs from
// distinct runs sort roughly by start time without needing a central
// counter.
func New() (ID, error) {
	var id ID
	binary.BigEndian.PutUint32(id[:4], uint32(time.Now().Unix()))
	if _, err := rand.Read(id[4:]); err != nil {
		return ID{}, fmt.Errorf("runid: generating random suffix: %w", err)
	}
	return id, nil
}

// String returns the hex representation of the ID.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool {
	return id == ID{}
}
