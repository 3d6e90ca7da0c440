// Package intent turns one inbound text line into a typed user intent.
//
// Classification is purely lexical: a delimiter token for routes, fixed
// keyword sets for ride type, status and cancel, a time-shaped suffix for
// the requested time and a fixed prefix (or a known label) for payment.
package intent

import (
	"regexp"
	"strconv"
	"strings"

	"carpoolbot/pkg/models"
)

// RouteDelimiter separates origin from destination. Only its first
// occurrence splits, so a destination may contain it again.
const RouteDelimiter = "到"

type Intent interface {
	Name() string
}

type SetRoute struct {
	Origin      string
	Destination string
}

type SetRideType struct {
	RideType models.RideType
}

type SetTime struct {
	Time models.TimeOfDay
}

type SetPayment struct {
	Label string
}

type QueryStatus struct{}

type Cancel struct{}

type Unrecognized struct {
	Text string
}

func (SetRoute) Name() string     { return "set_route" }
func (SetRideType) Name() string  { return "set_ride_type" }
func (SetTime) Name() string      { return "set_time" }
func (SetPayment) Name() string   { return "set_payment" }
func (QueryStatus) Name() string  { return "query_status" }
func (Cancel) Name() string       { return "cancel" }
func (Unrecognized) Name() string { return "unrecognized" }

var (
	queryKeywords  = []string{"查詢預約", "查詢", "status", "query"}
	cancelKeywords = []string{"取消預約", "取消", "cancel"}
	sharedKeywords = []string{"我要共乘", "共乘", "是", "shared", "carpool_yes"}
	soloKeywords   = []string{"不用了", "不共乘", "否", "solo", "carpool_no"}
	paymentPrefix  = []string{"付款:", "付款：", "pay:"}

	// PaymentLabels are accepted verbatim without a prefix.
	PaymentLabels = []string{"Cash", "Card", "現金", "信用卡", "LINE Pay", "轉帳"}

	// SharedReply and SoloReply are offered as quick replies for the
	// ride-type question.
	SharedReply = sharedKeywords[0]
	SoloReply   = soloKeywords[0]

	timeSuffix = regexp.MustCompile(`(?:^|[^0-9])([0-9]{1,2})[:：]([0-9]{2})$`)
)

// Classify maps a raw text line to exactly one intent.
func Classify(text string) Intent {
	line := strings.TrimSpace(text)
	if line == "" {
		return Unrecognized{Text: text}
	}

	if oneOf(line, queryKeywords) {
		return QueryStatus{}
	}
	if oneOf(line, cancelKeywords) {
		return Cancel{}
	}
	if oneOf(line, sharedKeywords) {
		return SetRideType{RideType: models.RideTypeShared}
	}
	if oneOf(line, soloKeywords) {
		return SetRideType{RideType: models.RideTypeSolo}
	}
	if label, ok := paymentLabel(line); ok {
		return SetPayment{Label: label}
	}
	if origin, dest, ok := splitRoute(line); ok {
		return SetRoute{Origin: origin, Destination: dest}
	}
	if t, ok := ParseTime(line); ok {
		return SetTime{Time: t}
	}
	return Unrecognized{Text: text}
}

// ParseTime reads a trailing H:MM or HH:MM from line.
func ParseTime(line string) (models.TimeOfDay, bool) {
	m := timeSuffix.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return models.TimeOfDay{}, false
	}
	h, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	t := models.TimeOfDay{Hour: h, Minute: minute}
	if !t.Valid() {
		return models.TimeOfDay{}, false
	}
	return t, true
}

func splitRoute(line string) (string, string, bool) {
	origin, dest, found := strings.Cut(line, RouteDelimiter)
	if !found {
		return "", "", false
	}
	origin = strings.TrimSpace(origin)
	dest = strings.TrimSpace(dest)
	if origin == "" || dest == "" {
		return "", "", false
	}
	return origin, dest, true
}

func paymentLabel(line string) (string, bool) {
	for _, p := range paymentPrefix {
		if len(line) >= len(p) && strings.EqualFold(line[:len(p)], p) {
			label := strings.TrimSpace(line[len(p):])
			if label == "" {
				return "", false
			}
			return canonicalLabel(label), true
		}
	}
	for _, l := range PaymentLabels {
		if strings.EqualFold(line, l) {
			return l, true
		}
	}
	return "", false
}

func canonicalLabel(label string) string {
	for _, l := range PaymentLabels {
		if strings.EqualFold(label, l) {
			return l
		}
	}
	return label
}

func oneOf(line string, keywords []string) bool {
	for _, k := range keywords {
		if strings.EqualFold(line, k) {
			return true
		}
	}
	return false
}
