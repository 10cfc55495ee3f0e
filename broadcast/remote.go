package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/jsphweid/levelup/model"
)

const writeWait = 10 * time.Second

// Remote is the Transport that talks to a levelup server: notes go out
// through its play action and come back through its event feed. The
// server knows who we are from the identity cookie it hands out, which the
// client's cookie jar keeps.
type Remote struct {
	server *url.URL
	client *http.Client
	dialer *websocket.Dialer
	logger *log.Logger
}

func NewRemote(server string, logger *log.Logger) (*Remote, error) {
	u, err := url.Parse(strings.TrimSuffix(server, "/"))
	if err != nil {
		return nil, fmt.Errorf("bad server url %q: %w", server, err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Remote{
		server: u,
		client: &http.Client{Jar: jar},
		dialer: websocket.DefaultDialer,
		logger: logger,
	}, nil
}

func (r *Remote) endpoint(path string) string {
	return r.server.String() + path
}

// Session asks the server who we are. The identity cookie it sets is used
// by every later call.
func (r *Remote) Session(ctx context.Context) (model.SessionResponse, error) {
	var res model.SessionResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint("/session"), nil)
	if err != nil {
		return res, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return res, fmt.Errorf("could not start session: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return res, fmt.Errorf("session: unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return res, fmt.Errorf("could not decode session: %w", err)
	}
	return res, nil
}

// Publish posts the envelope's message as the note field of the play
// action. The sender is whoever the identity cookie says.
func (r *Remote) Publish(ctx context.Context, env Envelope) error {
	form := url.Values{"note": {string(env.Message)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint("/play"), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body struct {
		Ok    bool `json:"ok"`
		Error int  `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("could not decode play response: %w", err)
	}
	if !body.Ok {
		return fmt.Errorf("server rejected note with error %d", body.Error)
	}
	return nil
}

// Subscribe follows the event feed on its own goroutine until cancel is
// called or the feed goes away.
func (r *Remote) Subscribe(handler func(Envelope)) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := r.listen(ctx, handler); err != nil && ctx.Err() == nil {
			r.logger.Error("event feed stopped", "err", err)
		}
	}()
	return cancel
}

func (r *Remote) feedURL() string {
	u := *r.server
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/events"
	return u.String()
}

func (r *Remote) listen(ctx context.Context, handler func(Envelope)) error {
	header := http.Header{}
	var cookies []string
	for _, c := range r.client.Jar.Cookies(r.server) {
		cookies = append(cookies, c.String())
	}
	if len(cookies) > 0 {
		header.Set("Cookie", strings.Join(cookies, "; "))
	}
	conn, _, err := r.dialer.DialContext(ctx, r.feedURL(), header)
	if err != nil {
		return fmt.Errorf("could not dial event feed: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		conn.Close()
	}()

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
				return nil
			}
			return err
		}
		handler(env)
	}
}
