package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlackNotifier(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var got SlackWebhookBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("application/json", r.Header.Get("Content-Type"))
		assert.NoError(json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, nil)
	n.Client = srv.Client()
	assert.NoError(n.Notify(ctx, "moderators", "post/p1 removed"))
	assert.Contains(got.Text, "`moderators`")
	assert.Contains(got.Text, "post/p1 removed")

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("invalid_token"))
	}))
	defer bad.Close()
	n = NewSlackNotifier(bad.URL, nil)
	n.Client = bad.Client()
	assert.Error(n.Notify(ctx, "moderators", "hello"))
}

func TestLogNotifier(t *testing.T) {
	n := &LogNotifier{}
	assert.NoError(t, n.Notify(context.Background(), "u1", "hello"))
}
