package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/quizhub/core/discussion"
	testutil "github.com/trezcool/quizhub/tests"
)

func dial(t *testing.T, srv *httptest.Server, subject string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?subject=" + subject
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_PublishToSubjectSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(new(testutil.Logger))
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subjectID := 1
		if r.URL.Query().Get("subject") == "2" {
			subjectID = 2
		}
		_ = hub.ServeWS(w, r, subjectID)
	}))
	defer srv.Close()

	follower := dial(t, srv, "1")
	other := dial(t, srv, "2")
	require.Eventually(t, func() bool {
		return hub.Subscribers(1) == 1 && hub.Subscribers(2) == 1
	}, time.Second, 10*time.Millisecond)

	msg := discussion.Message{ID: 3, SubjectID: 1, UserID: 4, UserName: "Jane", UserRole: "student", Message: "hello"}
	hub.Publish(1, discussion.Event{Type: discussion.EventCreated, Message: msg})

	_ = follower.SetReadDeadline(time.Now().Add(time.Second))
	var ev discussion.Event
	require.NoError(t, follower.ReadJSON(&ev))
	assert.Equal(t, discussion.EventCreated, ev.Type)
	assert.Equal(t, "hello", ev.Message.Message)
	assert.Equal(t, 3, ev.Message.ID)

	_ = other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "subscribers of other subjects get nothing")

	follower.Close()
	require.Eventually(t, func() bool { return hub.Subscribers(1) == 0 }, time.Second, 10*time.Millisecond)
}
