package devserver

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
)

// Test card numbers with a fixed outcome.
var declinedCards = map[string]cardDecline{
	"4000000000000002": {Code: "card_declined", Message: "Your card was declined."},
	"4000000000000069": {Code: "expired_card", Message: "Your card has expired."},
}

type cardDecline struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// methodRegistry tracks issued payment-method handles. Each handle can be
// charged once.
type methodRegistry struct {
	mu     sync.Mutex
	issued map[string]bool
}

func newMethodRegistry() *methodRegistry {
	return &methodRegistry{issued: make(map[string]bool)}
}

func (m *methodRegistry) issue() (string, error) {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	id := "pm_" + hex.EncodeToString(b[:])
	m.mu.Lock()
	m.issued[id] = true
	m.mu.Unlock()
	return id, nil
}

// consume reports whether id was issued and not yet used.
func (m *methodRegistry) consume(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.issued[id] {
		return false
	}
	delete(m.issued, id)
	return true
}

type replayKey struct {
	userID int64
	key    string
}

type replayEntry struct {
	status int
	body   any
}

// replayCache holds the first response per (user, Idempotency-Key).
type replayCache struct {
	mu      sync.Mutex
	entries map[replayKey]replayEntry
}

func newReplayCache() *replayCache {
	return &replayCache{entries: make(map[replayKey]replayEntry)}
}

func (c *replayCache) get(userID int64, key string) (replayEntry, bool) {
	if key == "" {
		return replayEntry{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[replayKey{userID, key}]
	return e, ok
}

func (c *replayCache) put(userID int64, key string, status int, body any) {
	if key == "" {
		return
	}
	c.mu.Lock()
	c.entries[replayKey{userID, key}] = replayEntry{status: status, body: body}
	c.mu.Unlock()
}

func (s *Server) handleCreatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDecline(w, http.StatusBadRequest, cardDecline{Code: "invalid_request", Message: "Malformed request."})
		return
	}
	number := strings.ReplaceAll(r.PostForm.Get("card[number]"), " ", "")
	if number == "" || r.PostForm.Get("card[exp_month]") == "" || r.PostForm.Get("card[exp_year]") == "" {
		writeDecline(w, http.StatusBadRequest, cardDecline{Code: "incomplete_number", Message: "Your card number is incomplete."})
		return
	}
	if d, ok := declinedCards[number]; ok {
		s.logger.Info("devserver.tokenize.declined", "code", d.Code)
		writeDecline(w, http.StatusPaymentRequired, d)
		return
	}
	id, err := s.methods.issue()
	if err != nil {
		s.writeFailure(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func writeDecline(w http.ResponseWriter, status int, d cardDecline) {
	writeJSON(w, status, map[string]cardDecline{"error": d})
}
