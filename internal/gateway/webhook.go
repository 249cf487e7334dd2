package gateway

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/alekspetrov/dobby/internal/adapters/feishu"
	"github.com/alekspetrov/dobby/internal/logging"
)

const maxEventBody = 1 << 20

// handleEvent receives Feishu event callbacks. The platform retries any
// callback that is not acknowledged quickly, so messages are handed to the
// dispatcher and the response is written before processing starts.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	log := logging.WithComponent("gateway")

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	ev, err := feishu.DecodeEvent(body)
	if err != nil {
		if errors.Is(err, feishu.ErrEncrypted) {
			log.Warn("Encrypted callback rejected; disable encryption in the app console")
		} else {
			log.Warn("Invalid event callback", slog.Any("error", err))
		}
		http.Error(w, "Invalid event", http.StatusBadRequest)
		return
	}

	if !s.tokenValid(ev.Token) {
		log.Warn("Event callback with wrong verification token")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	switch ev.Kind {
	case feishu.EventChallenge:
		writeJSON(w, map[string]string{"challenge": ev.Challenge})
		return
	case feishu.EventMessage:
		if s.sink == nil {
			log.Error("No reply sink configured; message dropped", slog.String("message_id", ev.Message.ID))
			break
		}
		accepted := s.dispatcher.HandleEvent(r.Context(), ev.Message, s.sink)
		log.Debug("Event received",
			slog.String("message_id", ev.Message.ID),
			slog.Bool("accepted", accepted))
	}

	writeJSON(w, map[string]int{"code": 0})
}

func (s *Server) tokenValid(got string) bool {
	if s.token == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) == 1
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
