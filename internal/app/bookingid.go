package app

import (
	"crypto/rand"
	"strconv"
	"strings"
	"time"
)

const (
	bookingIDPrefix = "WW"
	base36Alphabet  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	suffixLen       = 4
)

// NewBookingID builds a short reference like WWM3Q8ZK1TA7F2: prefix, upper
// base36 unix millis, four random base36 characters. Unique in practice, not
// guaranteed.
func NewBookingID(now time.Time) string {
	var sb strings.Builder
	sb.WriteString(bookingIDPrefix)
	sb.WriteString(strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)))
	sb.WriteString(randomBase36(suffixLen))
	return sb.String()
}

func randomBase36(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// fall back to clock nanos; the millis part already disambiguates most ids
		ns := strconv.FormatInt(time.Now().UnixNano(), 36)
		return strings.ToUpper(ns[len(ns)-n:])
	}
	for i, b := range buf {
		buf[i] = base36Alphabet[int(b)%len(base36Alphabet)]
	}
	return string(buf)
}
