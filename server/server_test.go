package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/jsphweid/levelup/broadcast"
	"github.com/jsphweid/levelup/constants"
	"github.com/jsphweid/levelup/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = log.New(io.Discard)

type countingTransport struct {
	mu        sync.Mutex
	published []broadcast.Envelope
	err       error
}

func (c *countingTransport) Publish(ctx context.Context, env broadcast.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, env)
	return c.err
}

func (c *countingTransport) Subscribe(func(broadcast.Envelope)) func() { return func() {} }

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestSessionKeepsIdentity(t *testing.T) {
	srv := httptest.NewServer(New(broadcast.NewHub(0, quiet), NewIdentity([]byte("secret")), quiet).Handler())
	defer srv.Close()
	client := newClient(t)

	var first, second model.SessionResponse
	resp, err := client.Get(srv.URL + "/session")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &first))
	resp, err = client.Get(srv.URL + "/session")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &second))

	assert.NotEmpty(t, first.UserID)
	assert.Equal(t, constants.Channel, first.Channel)
	assert.Equal(t, first.UserID, second.UserID)

	// a fresh browser is someone else
	resp, err = newClient(t).Get(srv.URL + "/session")
	require.NoError(t, err)
	var other model.SessionResponse
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &other))
	assert.NotEqual(t, first.UserID, other.UserID)
}

func TestIdentityRejectsForgedCookie(t *testing.T) {
	ids := NewIdentity([]byte("secret"))
	r := httptest.NewRequest(http.MethodGet, "/session", nil)
	r.AddCookie(&http.Cookie{Name: constants.CookieName, Value: "someone-else"})
	_, ok := ids.Lookup(r)
	assert.False(t, ok)

	w := httptest.NewRecorder()
	id, err := ids.UserID(w, r)
	require.NoError(t, err)
	assert.NotEqual(t, "someone-else", id)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	r2 := httptest.NewRequest(http.MethodGet, "/session", nil)
	r2.AddCookie(cookies[0])
	got, ok := ids.Lookup(r2)
	assert.True(t, ok)
	assert.Equal(t, id, got)

	// another server's cookie doesn't verify
	_, ok = NewIdentity([]byte("other")).Lookup(r2)
	assert.False(t, ok)
}

func postNote(t *testing.T, client *http.Client, base string, form url.Values) string {
	t.Helper()
	resp, err := client.PostForm(base+"/play", form)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	return readBody(t, resp)
}

func TestPlayWithoutNote(t *testing.T) {
	transport := &countingTransport{}
	srv := httptest.NewServer(New(transport, NewIdentity(nil), quiet).Handler())
	defer srv.Close()
	client := newClient(t)

	assert.JSONEq(t, `{"error": 1}`, postNote(t, client, srv.URL, url.Values{}))
	assert.JSONEq(t, `{"error": 1}`, postNote(t, client, srv.URL, url.Values{"other": {"x"}}))
	assert.JSONEq(t, `{"error": 1}`, postNote(t, client, srv.URL, url.Values{"note": {"{not json"}}))
	assert.Empty(t, transport.published)
}

func TestPlayPublishes(t *testing.T) {
	transport := &countingTransport{}
	srv := httptest.NewServer(New(transport, NewIdentity(nil), quiet).Handler())
	defer srv.Close()
	client := newClient(t)

	resp, err := client.Get(srv.URL + "/session")
	require.NoError(t, err)
	var session model.SessionResponse
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &session))

	note := `{"note": "F#4", "duration": 1.25, "delay": 0, "x": 0.5, "y": 0.25}`
	assert.JSONEq(t, `{"ok": true}`, postNote(t, client, srv.URL, url.Values{"note": {note}}))

	require.Len(t, transport.published, 1)
	env := transport.published[0]
	assert.Equal(t, constants.NotePlayedEvent, env.Event)
	assert.Equal(t, constants.Channel, env.Channel)
	assert.Equal(t, session.UserID, env.UserID)
	assert.JSONEq(t, note, string(env.Message))
}

func TestPlayRejectsUnplayableNote(t *testing.T) {
	transport := &countingTransport{}
	srv := httptest.NewServer(New(transport, NewIdentity(nil), quiet).Handler())
	defer srv.Close()
	client := newClient(t)

	for _, note := range []string{
		`{"note": null, "duration": 1}`,
		`{"note": "", "duration": 1}`,
		`{"note": "C4", "duration": 1e9}`,
		`{"note": "C4", "duration": 1, "delay": 1e300}`,
		`{"note": "C4", "duration": 1, "x": 5, "y": -3}`,
	} {
		assert.JSONEq(t, `{"error": 1}`, postNote(t, client, srv.URL, url.Values{"note": {note}}), note)
	}
	assert.Empty(t, transport.published)
}

func TestPlayPublishFailureStillOk(t *testing.T) {
	transport := &countingTransport{err: errors.New("down")}
	srv := httptest.NewServer(New(transport, NewIdentity(nil), quiet).Handler())
	defer srv.Close()

	body := postNote(t, newClient(t), srv.URL, url.Values{"note": {`{"note": "C4", "duration": 1}`}})
	assert.JSONEq(t, `{"ok": true}`, body)
	assert.Len(t, transport.published, 1)
}

func TestPlayOnlyAcceptsPost(t *testing.T) {
	srv := httptest.NewServer(New(&countingTransport{}, NewIdentity(nil), quiet).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/play")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestScales(t *testing.T) {
	srv := httptest.NewServer(New(&countingTransport{}, NewIdentity(nil), quiet).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/scales")
	require.NoError(t, err)
	var res model.ScalesResponse
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &res))
	assert.Contains(t, res.Scales, "major")
	assert.Contains(t, res.Scales, "enigmatic")
}

func TestCORS(t *testing.T) {
	srv := httptest.NewServer(New(&countingTransport{}, NewIdentity(nil), quiet).Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/scales", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func wsURL(base string) string {
	return "ws" + strings.TrimPrefix(base, "http") + "/events"
}

func TestEventsFeed(t *testing.T) {
	hub := broadcast.NewHub(0, quiet)
	srv := httptest.NewServer(New(hub, NewIdentity(nil), quiet).Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, time.Millisecond)

	body := postNote(t, newClient(t), srv.URL, url.Values{"note": {`{"note": "A3", "duration": 2}`}})
	assert.JSONEq(t, `{"ok": true}`, body)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env broadcast.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, constants.NotePlayedEvent, env.Event)
	assert.NotEmpty(t, env.UserID)

	var ev model.NoteEvent
	require.NoError(t, json.Unmarshal(env.Message, &ev))
	assert.Equal(t, model.Pitches{"A3"}, ev.Pitch)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, time.Millisecond)
}

type heard struct {
	mu  sync.Mutex
	evs []model.NoteEvent
}

func (h *heard) handle(_ string, ev model.NoteEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.evs = append(h.evs, ev)
}

func (h *heard) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.evs)
}

func TestRemoteBridgesBetweenPlayers(t *testing.T) {
	hub := broadcast.NewHub(0, quiet)
	srv := httptest.NewServer(New(hub, NewIdentity(nil), quiet).Handler())
	defer srv.Close()
	ctx := context.Background()

	join := func() (*broadcast.Bridge, *heard, func()) {
		remote, err := broadcast.NewRemote(srv.URL, quiet)
		require.NoError(t, err)
		session, err := remote.Session(ctx)
		require.NoError(t, err)
		b := broadcast.NewBridge(session.UserID, remote, quiet)
		h := &heard{}
		return b, h, b.Subscribe(h.handle)
	}

	alice, aliceHeard, cancelAlice := join()
	defer cancelAlice()
	_, bobHeard, cancelBob := join()
	defer cancelBob()
	require.Eventually(t, func() bool { return hub.Len() == 2 }, 2*time.Second, time.Millisecond)

	ev := model.NoteEvent{Note: model.Note{Pitch: model.Pitches{"D4"}, Duration: 0.5}, X: 0.1, Y: 0.9}
	require.NoError(t, alice.Publish(ctx, ev))

	assert.Eventually(t, func() bool { return bobHeard.count() == 1 }, 2*time.Second, time.Millisecond)
	assert.Never(t, func() bool { return aliceHeard.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, ev, bobHeard.evs[0])
}

func TestRemotePublishRejected(t *testing.T) {
	srv := httptest.NewServer(New(&countingTransport{}, NewIdentity(nil), quiet).Handler())
	defer srv.Close()

	remote, err := broadcast.NewRemote(srv.URL, quiet)
	require.NoError(t, err)
	err = remote.Publish(context.Background(), broadcast.Envelope{Message: json.RawMessage(`nope`)})
	assert.ErrorContains(t, err, "error 1")
}

func TestRun(t *testing.T) {
	s := New(&countingTransport{}, NewIdentity(nil), quiet)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx, "127.0.0.1:0") }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
