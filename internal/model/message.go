package model

import (
	"strconv"
	"strings"
)

type MessageType string

const (
	MessageTest   MessageType = "TEST"
	MessagePaired MessageType = "PAIRED"
	MessageLow    MessageType = "LOW"
	MessageFull   MessageType = "FULL"
)

type PairedService string

const (
	ServiceFCM      PairedService = "FCM"
	ServiceTelegram PairedService = "TELEGRAM"
)

// NotificationRequest carries everything the receiver API needs to deliver a
// push. Optional fields are pointers or empty strings and are omitted from the
// serialized form entirely rather than sent blank.
type NotificationRequest struct {
	PairedService PairedService `json:"pairedService,omitempty"`
	MessageType   MessageType   `json:"messageType"`
	ReceiverToken string        `json:"receiverToken,omitempty"`
	DeviceName    string        `json:"deviceName,omitempty"`
	TriggeredAt   string        `json:"triggeredAt,omitempty"`
	BatteryLevel  *int          `json:"batteryLevel,omitempty"`
	LastMessageID string        `json:"lastMessageId,omitempty"`
}

// QueryParams flattens the request into URL query parameters, skipping any
// field that is nil or blank.
func (r NotificationRequest) QueryParams() map[string]string {
	params := map[string]string{
		"messageType": string(r.MessageType),
	}

	set := func(key, value string) {
		if strings.TrimSpace(value) != "" {
			params[key] = value
		}
	}

	set("pairedService", string(r.PairedService))
	set("receiverToken", r.ReceiverToken)
	set("deviceName", r.DeviceName)
	set("triggeredAt", r.TriggeredAt)
	set("lastMessageId", r.LastMessageID)

	if r.BatteryLevel != nil {
		params["batteryLevel"] = strconv.Itoa(*r.BatteryLevel)
	}

	return params
}

// Update is a server response the receiver wants rendered as a local
// notification with an action button.
type Update struct {
	Action      string
	Title       string
	Description string
}

// ParseUpdate interprets a response body. A body delimited into exactly three
// segments by "||" (action, title, description) is an update; anything else is
// opaque status text and returns ok=false.
func ParseUpdate(body string) (Update, bool) {
	parts := strings.Split(body, "||")
	if len(parts) != 3 {
		return Update{}, false
	}

	return Update{
		Action:      strings.TrimSpace(parts[0]),
		Title:       strings.TrimSpace(parts[1]),
		Description: strings.TrimSpace(parts[2]),
	}, true
}
