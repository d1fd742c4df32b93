// Package ident issues order numbers and terminal auth tokens.
package ident

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	orderPrefix    = "ORD-"
	orderTimestamp = "20060102150405"
	suffixLen      = 6
	suffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	TerminalTokenPrefix = "POS-"
)

var orderNumberRe = regexp.MustCompile(`^ORD-(\d{14})-([A-Z0-9]{6})$`)

// NewOrderNumber returns ORD-{UTC timestamp}-{6 random [A-Z0-9]}. The unique
// index on orders.order_number is the backstop against collisions.
func NewOrderNumber(now time.Time) string {
	var b strings.Builder
	b.Grow(len(orderPrefix) + len(orderTimestamp) + 1 + suffixLen)
	b.WriteString(orderPrefix)
	b.WriteString(now.UTC().Format(orderTimestamp))
	b.WriteByte('-')
	max := big.NewInt(int64(len(suffixAlphabet)))
	for i := 0; i < suffixLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("ident: crypto/rand unavailable: " + err.Error())
		}
		b.WriteByte(suffixAlphabet[n.Int64()])
	}
	return b.String()
}

// ParseOrderNumber extracts the creation time encoded in an order number.
func ParseOrderNumber(s string) (time.Time, bool) {
	m := orderNumberRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation(orderTimestamp, m[1], time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func ValidOrderNumber(s string) bool {
	_, ok := ParseOrderNumber(s)
	return ok
}

// NewTerminalToken returns "POS-" followed by 32 hex characters.
func NewTerminalToken() string {
	return TerminalTokenPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func ValidTerminalToken(s string) bool {
	if !strings.HasPrefix(s, TerminalTokenPrefix) || len(s) != len(TerminalTokenPrefix)+32 {
		return false
	}
	_, err := uuid.Parse(s[len(TerminalTokenPrefix):])
	return err == nil
}
