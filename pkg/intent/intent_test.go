package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"carpoolbot/pkg/models"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name string
		text string
		want Intent
	}{
		{name: "route without spaces", text: "Station到Library", want: SetRoute{Origin: "Station", Destination: "Library"}},
		{name: "route with spaces", text: " 台北車站 到 松山機場 ", want: SetRoute{Origin: "台北車站", Destination: "松山機場"}},
		{name: "route splits on first delimiter", text: "A到B到C", want: SetRoute{Origin: "A", Destination: "B到C"}},
		{name: "route missing destination", text: "Station到", want: Unrecognized{Text: "Station到"}},
		{name: "route missing origin", text: "到Library", want: Unrecognized{Text: "到Library"}},
		{name: "shared keyword", text: "SHARED", want: SetRideType{RideType: models.RideTypeShared}},
		{name: "shared chinese", text: "我要共乘", want: SetRideType{RideType: models.RideTypeShared}},
		{name: "solo keyword", text: "solo", want: SetRideType{RideType: models.RideTypeSolo}},
		{name: "solo chinese", text: "不用了", want: SetRideType{RideType: models.RideTypeSolo}},
		{name: "time", text: "09:00", want: SetTime{Time: models.TimeOfDay{Hour: 9, Minute: 0}}},
		{name: "time single digit hour", text: "9:05", want: SetTime{Time: models.TimeOfDay{Hour: 9, Minute: 5}}},
		{name: "time suffix", text: "預約 13:30", want: SetTime{Time: models.TimeOfDay{Hour: 13, Minute: 30}}},
		{name: "time full width colon", text: "13：30", want: SetTime{Time: models.TimeOfDay{Hour: 13, Minute: 30}}},
		{name: "time out of range", text: "24:00", want: Unrecognized{Text: "24:00"}},
		{name: "time bad minute", text: "10:75", want: Unrecognized{Text: "10:75"}},
		{name: "time with three digit hour", text: "109:00", want: Unrecognized{Text: "109:00"}},
		{name: "payment label", text: "Cash", want: SetPayment{Label: "Cash"}},
		{name: "payment label case", text: "card", want: SetPayment{Label: "Card"}},
		{name: "payment prefix", text: "付款：悠遊卡", want: SetPayment{Label: "悠遊卡"}},
		{name: "payment prefix ascii", text: "pay: line pay", want: SetPayment{Label: "LINE Pay"}},
		{name: "payment prefix empty", text: "pay:", want: Unrecognized{Text: "pay:"}},
		{name: "query", text: "查詢預約", want: QueryStatus{}},
		{name: "query english", text: "STATUS", want: QueryStatus{}},
		{name: "cancel", text: "取消預約", want: Cancel{}},
		{name: "cancel english", text: "Cancel", want: Cancel{}},
		{name: "empty", text: "   ", want: Unrecognized{Text: "   "}},
		{name: "noise", text: "hello", want: Unrecognized{Text: "hello"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.text))
		})
	}
}

func TestParseTime(t *testing.T) {
	got, ok := ParseTime("  07:45 ")
	assert.True(t, ok)
	assert.Equal(t, "07:45", got.String())

	_, ok = ParseTime("noon")
	assert.False(t, ok)
}
