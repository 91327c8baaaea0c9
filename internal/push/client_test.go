package push

import (
	"math/rand"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noahxzhu/charge-notify/internal/model"
	"github.com/noahxzhu/charge-notify/internal/settings"
)

// countingLocker verifies the acquire/release pairing of the wake lock.
type countingLocker struct {
	mu       sync.Mutex
	acquired int
	released int
}

func (c *countingLocker) Acquire(reason string, timeout time.Duration) (func(), error) {
	c.mu.Lock()
	c.acquired++
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.released++
			c.mu.Unlock()
		})
	}, nil
}

func (c *countingLocker) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquired, c.released
}

func pairedStore(t *testing.T) *settings.Store {
	t.Helper()
	store := settings.NewStore(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, store.Load())
	require.NoError(t, store.SetReceiverToken("tok-123"))
	require.NoError(t, store.SetPairedServiceTag("FCM"))
	require.NoError(t, store.SetDeviceName("Test laptop"))
	return store
}

func sendAndWait(t *testing.T, c *Client, mt model.MessageType, level *int) (bool, string) {
	t.Helper()

	type result struct {
		ok   bool
		body string
	}
	done := make(chan result, 1)
	c.Send(mt, level, func(ok bool, body string) {
		done <- result{ok, body}
	})

	select {
	case res := <-done:
		return res.ok, res.body
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for dispatch result")
		return false, ""
	}
}

func TestSendBuildsQueryAndOmitsBlankFields(t *testing.T) {
	var query url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
	}))
	defer ts.Close()

	client := NewClient(ts.URL, pairedStore(t), &countingLocker{})

	ok, _ := sendAndWait(t, client, model.MessageTest, nil)
	require.True(t, ok)

	assert.Equal(t, "TEST", query.Get("messageType"))
	assert.Equal(t, "tok-123", query.Get("receiverToken"))
	assert.Equal(t, "FCM", query.Get("pairedService"))
	assert.Equal(t, "Test laptop", query.Get("deviceName"))
	assert.NotEmpty(t, query.Get("triggeredAt"))
	assert.False(t, query.Has("batteryLevel"))
	assert.False(t, query.Has("lastMessageId"))
}

func TestSendIncludesBatteryLevel(t *testing.T) {
	var query url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
	}))
	defer ts.Close()

	client := NewClient(ts.URL, pairedStore(t), &countingLocker{})

	level := 85
	ok, _ := sendAndWait(t, client, model.MessageFull, &level)
	require.True(t, ok)
	assert.Equal(t, "85", query.Get("batteryLevel"))
}

func TestSendPersistsMessageIDFromResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Message-Id", "msg-7")
	}))
	defer ts.Close()

	store := pairedStore(t)
	client := NewClient(ts.URL, store, &countingLocker{})

	ok, _ := sendAndWait(t, client, model.MessageLow, nil)
	require.True(t, ok)

	assert.Equal(t, "msg-7", store.Snapshot().LastMessageID)

	// The stored id rides along on the next request so the receiver can
	// replace the previous message.
	var query url.Values
	ts2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
	}))
	defer ts2.Close()

	client2 := NewClient(ts2.URL, store, &countingLocker{})
	ok, _ = sendAndWait(t, client2, model.MessageLow, nil)
	require.True(t, ok)
	assert.Equal(t, "msg-7", query.Get("lastMessageId"))
}

func TestSendReportsServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "receiver rejected the token", http.StatusBadRequest)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, pairedStore(t), &countingLocker{})

	ok, body := sendAndWait(t, client, model.MessageTest, nil)
	assert.False(t, ok)
	assert.Contains(t, body, "receiver rejected the token")
}

func TestSendReportsTransportFailure(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", pairedStore(t), &countingLocker{})

	ok, body := sendAndWait(t, client, model.MessageTest, nil)
	assert.False(t, ok)
	assert.Equal(t, "", body)
}

func TestSendRefusesWhenUnpaired(t *testing.T) {
	store := settings.NewStore(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, store.Load())

	hit := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	defer ts.Close()

	client := NewClient(ts.URL, store, &countingLocker{})

	ok, _ := sendAndWait(t, client, model.MessageTest, nil)
	assert.False(t, ok)
	assert.False(t, hit)
}

func TestWakeLockBalancedAcrossRandomizedOutcomes(t *testing.T) {
	var rngMu sync.Mutex
	rng := rand.New(rand.NewSource(1))

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rngMu.Lock()
		fail := rng.Intn(2) == 0
		rngMu.Unlock()
		if fail {
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer ts.Close()

	locker := &countingLocker{}
	client := NewClient(ts.URL, pairedStore(t), locker)

	const rounds = 100
	var wg sync.WaitGroup
	wg.Add(rounds)
	for i := 0; i < rounds; i++ {
		var level *int
		if i%3 == 0 {
			l := i % 101
			level = &l
		}
		client.Send(model.MessageFull, level, func(bool, string) { wg.Done() })
	}
	wg.Wait()

	// Release runs in a defer after the result callback, so allow it a moment.
	require.Eventually(t, func() bool {
		acquired, released := locker.counts()
		return acquired == rounds && released == rounds
	}, 2*time.Second, 10*time.Millisecond)
}
