package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"vodcutter/logger"
)

var (
	ErrMissingAuth      = errors.New("authorization required")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token has expired")
	ErrInvalidSignature = errors.New("invalid token signature")
)

// Intake accepts recorder notifications over HTTP and hands them to the
// pipeline through a queue channel. The handler never blocks on pipeline
// execution: if the queue is full the event is dropped with a warning.
type Intake struct {
	path   string
	secret string
	queue  chan<- Event
}

// NewIntake builds the handler. secret is the optional shared token; when
// empty no authentication is enforced.
func NewIntake(path, secret string, queue chan<- Event) *Intake {
	return &Intake{path: path, secret: secret, queue: queue}
}

func (in *Intake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != in.path {
		logger.Warnf("Received request on unexpected path: %s", r.URL.Path)
		respondJSON(w, http.StatusNotFound, "error", "Not found")
		return
	}
	if r.Method != http.MethodPost {
		respondJSON(w, http.StatusMethodNotAllowed, "error", "Method not allowed")
		return
	}
	if in.secret != "" {
		if err := in.authenticate(r); err != nil {
			logger.Warnf("Webhook authentication failed: %v", err)
			respondJSON(w, http.StatusUnauthorized, "error", "Unauthorized")
			return
		}
	}

	var ev Event
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&ev); err != nil {
		logger.Warnf("Webhook payload decode failed: %v", err)
		respondJSON(w, http.StatusBadRequest, "error", "Invalid JSON")
		return
	}
	if dec.More() {
		// The body must be exactly one JSON value.
		logger.Warn("Webhook payload has trailing data after JSON value")
		respondJSON(w, http.StatusBadRequest, "error", "Invalid JSON")
		return
	}

	select {
	case in.queue <- ev:
		logger.Infof("Webhook event accepted. action=%s", ev.Action)
	default:
		// The consumer is a single serial loop; a full queue means it is
		// far behind. Dropping keeps the handler non-blocking.
		logger.Warnf("Webhook queue full, dropping event. action=%s", ev.Action)
	}
	respondJSON(w, http.StatusOK, "ok", "")
}

// authenticate accepts either the raw shared secret in X-Webhook-Token or a
// Bearer JWT signed with it (HS256).
func (in *Intake) authenticate(r *http.Request) error {
	if token := r.Header.Get("X-Webhook-Token"); token != "" {
		if token == in.secret {
			return nil
		}
		return ErrInvalidToken
	}
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ErrMissingAuth
	}
	raw := strings.TrimPrefix(authHeader, "Bearer ")
	if raw == authHeader {
		return fmt.Errorf("%w: expected Bearer scheme", ErrInvalidToken)
	}
	return verifySignedToken(raw, []byte(in.secret))
}

// verifySignedToken checks an HS256 JWT against the shared secret and its
// expiry claim.
func verifySignedToken(raw string, secret []byte) error {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims := jwt.Claims{}
	if err := tok.Claims(secret, &claims); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if claims.Expiry != nil && claims.Expiry.Time().Before(time.Now()) {
		return ErrTokenExpired
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, state, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]string{"status": state}
	if message != "" {
		body["message"] = message
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Errorf("Failed to encode webhook response: %v", err)
	}
}
