package hirez

import (
	"crypto/md5" // #nosec G501 -- the API's signing scheme mandates MD5
	"encoding/hex"
	"time"
)

// TimestampLayout is the UTC timestamp format embedded in signed URLs.
const TimestampLayout = "20060102150405"

// FormatTimestamp renders t in the signing layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Signer derives per-call signatures from the developer credentials.
type Signer struct {
	DevID   string
	AuthKey string
}

// Sign returns the lowercase hex MD5 of devId + method + authKey + timestamp.
func (s Signer) Sign(method, timestamp string) string {
	sum := md5.Sum([]byte(s.DevID + method + s.AuthKey + timestamp)) // #nosec G401
	return hex.EncodeToString(sum[:])
}
