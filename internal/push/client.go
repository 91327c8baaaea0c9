package push

import (
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/noahxzhu/charge-notify/internal/model"
	"github.com/noahxzhu/charge-notify/internal/platform"
	"github.com/noahxzhu/charge-notify/internal/settings"
)

// Wake lock bound per dispatch; long enough for one request, short enough to
// never pin the machine awake.
const wakeLockTimeout = 10 * time.Second

const triggeredAtLayout = "03:04 PM (Monday)"

// The receiver sends back the id of the message it posted so the next
// notification can replace it.
const messageIDHeader = "X-Message-Id"

// Client delivers notifications to the paired receiver. Fire and forget: one
// request per call, no retries. The device is kept awake for the duration of
// the request via the wake lock.
type Client struct {
	http  *resty.Client
	store *settings.Store
	lock  platform.WakeLocker
}

func NewClient(baseURL string, store *settings.Store, lock platform.WakeLocker) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(wakeLockTimeout)

	return &Client{
		http:  httpClient,
		store: store,
		lock:  lock,
	}
}

// Send dispatches a notification of the given type asynchronously. onResult
// (optional) is invoked once from the request goroutine with the outcome;
// callers own any synchronization beyond that. batteryLevel is included only
// when non-nil.
func (c *Client) Send(messageType model.MessageType, batteryLevel *int, onResult func(ok bool, body string)) {
	if onResult == nil {
		onResult = func(bool, string) {}
	}

	snap := c.store.Snapshot()
	if !snap.Paired() {
		// The router gates on pairing before subscribing, so getting here is
		// a bug in the caller, not a user-triggerable state.
		slog.Error("Dispatch attempted without a paired receiver", "messageType", messageType)
		go onResult(false, "")
		return
	}

	req := model.NotificationRequest{
		PairedService: model.PairedService(snap.PairedServiceTag),
		MessageType:   messageType,
		ReceiverToken: snap.ReceiverToken,
		DeviceName:    snap.DeviceName,
		TriggeredAt:   time.Now().Format(triggeredAtLayout),
		BatteryLevel:  batteryLevel,
		LastMessageID: snap.LastMessageID,
	}

	release, err := c.lock.Acquire("notify", wakeLockTimeout)
	if err != nil {
		slog.Warn("Could not acquire wake lock, sending anyway", "error", err)
		release = func() {}
	} else {
		slog.Info("Secured a wake lock for up to 10 seconds")
	}

	go func() {
		defer release()

		resp, err := c.http.R().
			SetQueryParams(req.QueryParams()).
			Get("/api/notify")
		if err != nil {
			slog.Error("Notification request failed", "messageType", messageType, "error", err)
			onResult(false, "")
			return
		}

		if id := resp.Header().Get(messageIDHeader); id != "" {
			if err := c.store.SetLastMessageID(id); err != nil {
				slog.Error("Failed to persist last message id", "error", err)
			}
		}

		body := string(resp.Body())
		if !resp.IsSuccess() {
			slog.Error("Receiver API returned an error", "status", resp.StatusCode(), "body", body)
			onResult(false, body)
			return
		}

		slog.Info("Notification delivered", "messageType", messageType, "status", resp.StatusCode())
		onResult(true, body)
	}()
}
