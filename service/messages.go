package service

import (
	"fmt"

	"carpoolbot/pkg/models"
)

const lang = "zh"

var messages = map[string]map[string]string{
	"zh": {
		"ask_route":         "請輸入格式：起點 到 終點",
		"ask_ride_type":     "路線：%s → %s\n請問是否願意共乘？",
		"ask_time":          "請輸入出發時間（例如 13:30）",
		"ask_payment":       "預約內容：\n出發地：%s\n目的地：%s\n時間：%s\n共乘：%s\n\n請選擇付款方式（例如 付款:現金）",
		"finish_ride_type":  "請先完成上一步：請回覆是否共乘（我要共乘 / 不用了）",
		"finish_time":       "請先完成上一步：請輸入出發時間（例如 13:30）",
		"finish_payment":    "請先完成上一步：請選擇付款方式（例如 付款:現金）",
		"bad_ride_type":     "看不懂您的回覆，請回覆「我要共乘」或「不用了」",
		"bad_time":          "時間格式不正確，請輸入例如 13:30",
		"bad_payment":       "付款方式不正確，請輸入例如 付款:現金",
		"booked":            "預約成功！正在為您配對共乘...",
		"booked_solo":       "預約成功！",
		"matched":           "已為您配對到共乘對象！\n群組：%s\n人數：%d\n每人車資：%d 元",
		"waiting":           "目前尚無合適的共乘對象，配對成功時會通知您。",
		"status":            "您的預約：\n出發地：%s\n目的地：%s\n時間：%s\n共乘：%s\n付款：%s\n狀態：%s",
		"status_group":      "\n群組：%s\n每人車資：%d 元",
		"no_reservation":    "目前沒有預約紀錄。",
		"cancelled":         "您的預約已取消。",
		"nothing_to_cancel": "目前沒有可取消的預約。",
		"busy":              "系統忙碌中，請稍後再試。",
		"group_notice":      "您的共乘已配對成功！\n路線：%s → %s\n人數：%d\n每人車資：%d 元",
	},
}

var statusLabels = map[models.ReservationStatus]string{
	models.StatusDraft:     "填寫中",
	models.StatusWaiting:   "等待配對",
	models.StatusMatched:   "已配對",
	models.StatusCancelled: "已取消",
}

var rideTypeLabels = map[models.RideType]string{
	models.RideTypeShared: "是",
	models.RideTypeSolo:   "否",
}

func msg(key string) string {
	return messages[lang][key]
}

// FormatStatus renders the reply for a status query.
func FormatStatus(r *models.Reservation) string {
	if r == nil {
		return msg("no_reservation")
	}
	text := fmt.Sprintf(msg("status"),
		r.Origin,
		r.Destination,
		r.RequestedTime,
		rideTypeLabels[r.RideType],
		r.PaymentMethod,
		statusLabels[r.Status],
	)
	if r.GroupID != nil && r.Fare != nil {
		text += fmt.Sprintf(msg("status_group"), *r.GroupID, *r.Fare)
	}
	return text
}

// FormatGroupNotice is what every member of a freshly formed group is told.
func FormatGroupNotice(e models.GroupFormedEvent) string {
	return fmt.Sprintf(msg("group_notice"), e.Origin, e.Destination, len(e.Members), e.Fare)
}

func formatMatched(m *models.MatchResult) string {
	return fmt.Sprintf(msg("matched"), m.GroupID, len(m.Members), m.Fare)
}
