package llm

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// EnsureBatchID returns s when it is a well-formed batch id and mints a
// fresh one otherwise. Batch ids group the exchanges of one process run in
// the tellm log.
func EnsureBatchID(s string) string {
	if isValidBatchID(s) {
		return s
	}
	return newBatchID()
}

// newBatchID produces a 24-hex-char id: a unix-timestamp prefix for rough
// chronological ordering, then 8 random bytes.
func newBatchID() string {
	id := make([]byte, 12)
	binary.BigEndian.PutUint32(id[:4], uint32(time.Now().Unix()))
	rand.Read(id[4:])
	return hex.EncodeToString(id)
}

func isValidBatchID(s string) bool {
	if len(s) != 24 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
