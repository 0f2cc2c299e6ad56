package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/MegaGrindStone/dashboard-chat/internal/handlers"
	"github.com/MegaGrindStone/dashboard-chat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmaxmax/go-sse"
)

func newServer(t *testing.T, m handlers.Main) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", m.HandleChats)
	mux.HandleFunc("/sse", m.HandleSSE)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// openStream connects to the SSE endpoint as userID and forwards every event it reads.
func openStream(t *testing.T, srv *httptest.Server, userID string) <-chan sse.Event {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sse?user_id="+userID, nil)
	require.NoError(t, err)
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	events := make(chan sse.Event, 32)
	go func() {
		defer close(events)
		defer res.Body.Close()
		for ev, err := range sse.Read(res.Body, nil) {
			if err != nil {
				return
			}
			events <- ev
		}
	}()
	return events
}

func nextEvent(t *testing.T, events <-chan sse.Event) sse.Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "event stream closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return sse.Event{}
	}
}

func waitForHistory(t *testing.T, m handlers.Main, query, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return strings.Contains(homeBody(m, query), want)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHandleSSEReplaysLoadedHistory(t *testing.T) {
	svc := &mockService{
		history: map[string][]models.Message{
			"1": {
				{Role: models.RoleUser, Content: "give_me_review"},
				{Role: models.RoleAssistant, Content: "Your **overall band** is 7."},
			},
		},
	}
	m := newMain(t, svc)
	srv := newServer(t, m)

	// The history is loaded before the browser opens its stream.
	waitForHistory(t, m, "", "<strong>overall band</strong>")

	events := openStream(t, srv, "1")

	ev := nextEvent(t, events)
	assert.Equal(t, "transcript", ev.Type)
	assert.Contains(t, ev.Data, "give_me_review")
	assert.Contains(t, ev.Data, "<strong>overall band</strong>")

	ev = nextEvent(t, events)
	assert.Equal(t, "scroll", ev.Type)
	assert.Equal(t, "1 smooth", ev.Data)
}

func TestHandleSSEStreamsChangesBeforeScroll(t *testing.T) {
	svc := &mockService{
		answer: "hi",
		history: map[string][]models.Message{
			"1": {{Role: models.RoleAssistant, Content: "welcome"}},
		},
	}
	m := newMain(t, svc)
	srv := newServer(t, m)

	waitForHistory(t, m, "", "welcome")
	events := openStream(t, srv, "1")
	// The replayed transcript shows the stream is subscribed.
	require.Equal(t, "transcript", nextEvent(t, events).Type)
	require.Equal(t, "scroll", nextEvent(t, events).Type)

	res, err := srv.Client().PostForm(srv.URL+"/chat", url.Values{
		"message": {"hello"},
		"user_id": {"1"},
	})
	require.NoError(t, err)
	require.NoError(t, res.Body.Close())
	require.Equal(t, http.StatusAccepted, res.StatusCode)

	ev := nextEvent(t, events)
	assert.Equal(t, "messages", ev.Type)
	assert.Contains(t, ev.Data, "hello")

	ev = nextEvent(t, events)
	assert.Equal(t, "scroll", ev.Type)
	assert.Equal(t, "1 smooth", ev.Data)

	ev = nextEvent(t, events)
	assert.Equal(t, "messages", ev.Type)
	assert.Contains(t, ev.Data, "<p>hi</p>")

	ev = nextEvent(t, events)
	assert.Equal(t, "scroll", ev.Type)
	assert.Equal(t, "2 smooth", ev.Data)

	// A browser connecting later receives every message so far in one transcript event.
	late := openStream(t, srv, "1")
	ev = nextEvent(t, late)
	assert.Equal(t, "transcript", ev.Type)
	for _, want := range []string{"welcome", "hello", "<p>hi</p>"} {
		assert.Contains(t, ev.Data, want)
	}
	ev = nextEvent(t, late)
	assert.Equal(t, "scroll", ev.Type)
	assert.Equal(t, "2 smooth", ev.Data)
}

func TestHandleSSECloseChatOnShutdown(t *testing.T) {
	svc := &mockService{
		history: map[string][]models.Message{
			"1": {{Role: models.RoleAssistant, Content: "welcome"}},
		},
	}
	m, err := handlers.NewMain(svc, handlers.Config{DefaultUserID: "1"}, discardLogger())
	require.NoError(t, err)
	srv := newServer(t, m)

	waitForHistory(t, m, "", "welcome")
	events := openStream(t, srv, "1")
	require.Equal(t, "transcript", nextEvent(t, events).Type)
	require.Equal(t, "scroll", nextEvent(t, events).Type)

	require.NoError(t, m.Shutdown(context.Background()))

	ev := nextEvent(t, events)
	assert.Equal(t, "closeChat", ev.Type)
	assert.Equal(t, "bye", ev.Data)
}
