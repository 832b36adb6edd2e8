package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	mu    sync.Mutex
	sent  []int64
	fails map[int64]bool
}

func (s *stubSender) SendMessage(_ context.Context, chatID int64, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails[chatID] {
		return errors.New("blocked")
	}
	s.sent = append(s.sent, chatID)
	return nil
}

func (s *stubSender) EditMessage(context.Context, int64, int64, string) error { return nil }
func (s *stubSender) SendPhoto(context.Context, int64, string, string) error  { return nil }

func TestNotifyCustomerSwallowsFailure(t *testing.T) {
	sender := &stubSender{fails: map[int64]bool{7: true}}
	n := NewNotifier(sender, nil)

	// must not panic or propagate
	n.NotifyCustomer(context.Background(), 7, "hello")
	assert.Empty(t, sender.sent)
}

func TestNotifyAdminsContinuesPastFailures(t *testing.T) {
	sender := &stubSender{fails: map[int64]bool{2: true}}
	n := NewNotifier(sender, []int64{1, 2, 3})

	n.NotifyAdmins(context.Background(), "new order")
	assert.Equal(t, []int64{1, 3}, sender.sent)
}

func TestHTTPSenderSendMessage(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL)
	err := s.SendMessage(context.Background(), 7, "hello")
	require.NoError(t, err)

	assert.Equal(t, "/sendMessage", gotPath)
	assert.Equal(t, float64(7), gotBody["chat_id"])
	assert.Equal(t, "hello", gotBody["text"])
}

func TestHTTPSenderNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL)
	err := s.SendMessage(context.Background(), 7, "hello")
	assert.Error(t, err)
}

func TestHTTPSenderSendPhoto(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL)
	err := s.SendPhoto(context.Background(), 7, "photo-1", "caption")
	require.NoError(t, err)
	assert.Equal(t, "photo-1", gotBody["photo"])
	assert.Equal(t, "caption", gotBody["caption"])
}
