package broker

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"marubot/internal/domain"
)

// Terminal field values arrive as display strings: thousands separators,
// explicit plus signs, percent suffixes, and placeholder dashes all occur.
// The parsers below normalise them; anything unparseable becomes zero so a
// single malformed field cannot take down the pipeline.

func cleanField(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "+")
	s = strings.TrimSuffix(s, "%")
	return s
}

// ParseInt parses an integer terminal field. Malformed or placeholder
// values parse as zero.
func ParseInt(s string) int64 {
	s = cleanField(s)
	if s == "" || s == "-" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseFloat parses a numeric terminal field. Malformed or placeholder
// values parse as zero.
func ParseFloat(s string) float64 {
	s = cleanField(s)
	if s == "" || s == "-" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// ParsePrice parses a price field. Terminals prefix prices with the change
// direction, so the sign is dropped.
func ParsePrice(s string) float64 {
	return math.Abs(ParseFloat(s))
}

// FillFromFields decodes an execution report from its raw field map.
func FillFromFields(fields map[string]string) domain.Fill {
	side := domain.OrderSideBuy
	if fields["side"] == string(domain.OrderSideSell) {
		side = domain.OrderSideSell
	}
	return domain.Fill{
		Code:      fields["code"],
		Side:      side,
		Qty:       ParseInt(fields["qty"]),
		Price:     ParsePrice(fields["price"]),
		OrderNo:   fields["order_no"],
		Timestamp: time.Now(),
	}
}

var (
	acceptedRe = regexp.MustCompile(`^accepted no=(\S+)$`)
	rejectedRe = regexp.MustCompile(`^rejected code=(-?\d+) msg=(.*)$`)
)

// ParseOrderMessage decodes an order message into an OrderAck. Messages
// that match neither the acceptance nor the rejection form are treated as
// rejections so an unreadable message never leaves an order hanging.
func ParseOrderMessage(key int, msg string) OrderAck {
	msg = strings.TrimSpace(msg)
	if m := acceptedRe.FindStringSubmatch(msg); m != nil {
		return OrderAck{Key: key, Accepted: true, OrderNo: m[1], Msg: msg}
	}
	if m := rejectedRe.FindStringSubmatch(msg); m != nil {
		code, _ := strconv.Atoi(m[1])
		return OrderAck{Key: key, Accepted: false, Code: code, Msg: m[2]}
	}
	return OrderAck{Key: key, Accepted: false, Msg: fmt.Sprintf("unrecognized order message: %q", msg)}
}
