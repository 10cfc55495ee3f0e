package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jsphweid/levelup/broadcast"
	"github.com/jsphweid/levelup/constants"
	"github.com/jsphweid/levelup/model"
	"github.com/jsphweid/levelup/theory"
)

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.ids.UserID(w, r)
	if err != nil {
		s.logger.Error("could not issue identity", "err", err)
		http.Error(w, "could not issue identity", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, model.SessionResponse{UserID: id, Channel: constants.Channel})
}

// handlePlay relays a played note to everyone on the channel. Anything
// short of a readable, playable note is answered with {"error":1} and nothing is
// published. A failed publish is only logged: the player already heard
// their note.
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	id, err := s.ids.UserID(w, r)
	if err != nil {
		s.logger.Error("could not issue identity", "err", err)
		http.Error(w, "could not issue identity", http.StatusInternalServerError)
		return
	}

	if err := r.ParseForm(); err != nil {
		s.writeJSON(w, model.ErrorResponse{Error: 1})
		return
	}
	raw := r.PostForm.Get("note")
	if raw == "" {
		s.writeJSON(w, model.ErrorResponse{Error: 1})
		return
	}
	var ev model.NoteEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		s.logger.Debug("unreadable note", "user", id, "err", err)
		s.writeJSON(w, model.ErrorResponse{Error: 1})
		return
	}
	if err := ev.Validate(); err != nil {
		s.logger.Debug("unplayable note", "user", id, "err", err)
		s.writeJSON(w, model.ErrorResponse{Error: 1})
		return
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		s.writeJSON(w, model.ErrorResponse{Error: 1})
		return
	}

	env := broadcast.Envelope{
		Channel: constants.Channel,
		Event:   constants.NotePlayedEvent,
		UserID:  id,
		Message: msg,
	}
	if err := s.transport.Publish(r.Context(), env); err != nil {
		s.logger.Error("could not publish note", "user", id, "err", err)
	}
	s.writeJSON(w, model.PlayResponse{Ok: true})
}

func (s *Server) handleScales(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, model.ScalesResponse{Scales: theory.ScaleNames()})
}

// handleEvents streams every envelope on the channel to a websocket until
// either side goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("could not upgrade event feed", "err", err)
		return
	}
	defer conn.Close()

	id, _ := s.ids.Lookup(r)
	logger := s.logger.With("user", id)
	logger.Debug("feed connected")
	defer logger.Debug("feed closed")

	out := make(chan broadcast.Envelope, broadcast.DefaultBuffer)
	cancel := s.transport.Subscribe(func(env broadcast.Envelope) {
		if !broadcast.TrySend(out, env) {
			logger.Debug("feed is behind, dropping envelope")
		}
	})
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(readLimit)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Warn("feed read failed", "err", err)
				}
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case env := <-out:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				logger.Warn("feed write failed", "err", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
