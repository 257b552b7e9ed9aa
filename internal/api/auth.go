package api

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ticketTTL is how long an unused WebSocket ticket stays valid.
const ticketTTL = 60 * time.Second

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ticketStore holds pending WebSocket tickets. Each ticket is consumed
// on first use; stale ones are swept periodically.
type ticketStore struct {
	tickets map[string]time.Time // ticket -> expiry
	mu      sync.Mutex
}

var wsTickets = &ticketStore{
	tickets: make(map[string]time.Time),
}

// issue mints a random single-use ticket.
func (ts *ticketStore) issue() string {
	ticket := generateTicket()
	ts.mu.Lock()
	ts.tickets[ticket] = time.Now().Add(ticketTTL)
	ts.mu.Unlock()
	return ticket
}

// consume validates and removes a ticket in one step, so a replayed
// ticket always fails.
func (ts *ticketStore) consume(ticket string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	expiry, ok := ts.tickets[ticket]
	if !ok {
		return false
	}
	delete(ts.tickets, ticket)
	return time.Now().Before(expiry)
}

// sweep drops tickets that expired without being used.
func (ts *ticketStore) sweep() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := time.Now()
	for ticket, expiry := range ts.tickets {
		if now.After(expiry) {
			delete(ts.tickets, ticket)
		}
	}
}

// validateTicket consumes a ticket from the shared store.
func validateTicket(ticket string) bool {
	return wsTickets.consume(ticket)
}

// handleLogin checks the submitted credentials against the
// security.operator config section and issues a signed JWT. Both
// comparisons are constant-time.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	op := s.secCfg.Operator
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(op.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(op.Password)) == 1
	if !userOK || !passOK {
		writeUnauthorized(w, "invalid credentials")
		return
	}

	ttl := s.secCfg.JWT.AccessTokenTTL
	if ttl == 0 {
		ttl = 15 // minutes
	}

	claims := jwt.MapClaims{
		"sub":  req.Username,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(time.Duration(ttl) * time.Minute).Unix(),
		"role": "operator",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(s.secCfg.JWT.Secret))
	if err != nil {
		writeInternalError(w, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   ttl * 60,
	})
}

// handleWSTicket issues a single-use ticket for the WebSocket handshake,
// keeping the JWT itself out of connection URLs.
func (s *Server) handleWSTicket(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     wsTickets.issue(),
		"expires_in": int(ticketTTL.Seconds()),
	})
}

const ticketBytes = 32

func generateTicket() string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}

// cleanTicketsLoop sweeps expired tickets until the context is cancelled.
func (s *Server) cleanTicketsLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wsTickets.sweep()
		}
	}
}
