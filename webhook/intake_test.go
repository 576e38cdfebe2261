package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

const testSecret = "shared-webhook-secret-for-tests-0123456789"

func postEvent(t *testing.T, in *Intake, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	in.ServeHTTP(w, req)
	return w
}

func TestIntakeWrongPath(t *testing.T) {
	in := NewIntake("/webhook/recorder", "", make(chan Event, 1))
	w := postEvent(t, in, "/other", "{}", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestIntakeWrongMethod(t *testing.T) {
	in := NewIntake("/webhook/recorder", "", make(chan Event, 1))
	req := httptest.NewRequest(http.MethodGet, "/webhook/recorder", nil)
	w := httptest.NewRecorder()
	in.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", w.Code)
	}
}

func TestIntakeTokenAuth(t *testing.T) {
	queue := make(chan Event, 1)
	in := NewIntake("/webhook/recorder", testSecret, queue)

	w := postEvent(t, in, "/webhook/recorder", "{}", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}

	w = postEvent(t, in, "/webhook/recorder", "{}", map[string]string{"X-Webhook-Token": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong token, got %d", w.Code)
	}

	w = postEvent(t, in, "/webhook/recorder", `{"action":"end_download"}`,
		map[string]string{"X-Webhook-Token": testSecret})
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 with valid token, got %d", w.Code)
	}

	select {
	case ev := <-queue:
		if ev.Action != "end_download" {
			t.Errorf("Expected enqueued action end_download, got %q", ev.Action)
		}
	default:
		t.Error("Expected event to be enqueued")
	}
}

func signTestJWT(t *testing.T, secret []byte, expiry time.Time) string {
	t.Helper()
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: secret}, nil)
	if err != nil {
		t.Fatalf("Failed to create signer: %v", err)
	}
	claims := jwt.Claims{
		Issuer:   "recorder",
		IssuedAt: jwt.NewNumericDate(time.Now()),
		Expiry:   jwt.NewNumericDate(expiry),
	}
	raw, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return raw
}

func TestIntakeJWTAuth(t *testing.T) {
	queue := make(chan Event, 1)
	in := NewIntake("/webhook/recorder", testSecret, queue)

	valid := signTestJWT(t, []byte(testSecret), time.Now().Add(time.Hour))
	w := postEvent(t, in, "/webhook/recorder", "{}", map[string]string{"Authorization": "Bearer " + valid})
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 with valid JWT, got %d", w.Code)
	}

	expired := signTestJWT(t, []byte(testSecret), time.Now().Add(-time.Hour))
	w = postEvent(t, in, "/webhook/recorder", "{}", map[string]string{"Authorization": "Bearer " + expired})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with expired JWT, got %d", w.Code)
	}

	badKey := signTestJWT(t, []byte("another-secret-that-is-long-enough-000000"), time.Now().Add(time.Hour))
	w = postEvent(t, in, "/webhook/recorder", "{}", map[string]string{"Authorization": "Bearer " + badKey})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong signing key, got %d", w.Code)
	}
}

func TestIntakeInvalidJSON(t *testing.T) {
	in := NewIntake("/webhook/recorder", "", make(chan Event, 1))
	w := postEvent(t, in, "/webhook/recorder", "{not json", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Error response is not JSON: %v", err)
	}
	if body["status"] != "error" {
		t.Errorf("Expected error status, got %q", body["status"])
	}
}

func TestIntakeRejectsTrailingData(t *testing.T) {
	queue := make(chan Event, 1)
	in := NewIntake("/webhook/recorder", "", queue)

	w := postEvent(t, in, "/webhook/recorder",
		`{"action":"end_download"} {"action":"end_download"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for trailing data, got %d", w.Code)
	}

	select {
	case ev := <-queue:
		t.Errorf("Expected nothing enqueued, got action %q", ev.Action)
	default:
	}
}

func TestIntakeFullQueueDoesNotBlock(t *testing.T) {
	queue := make(chan Event) // unbuffered and never drained
	in := NewIntake("/webhook/recorder", "", queue)

	done := make(chan int, 1)
	go func() {
		w := postEvent(t, in, "/webhook/recorder", `{"action":"end_download"}`, nil)
		done <- w.Code
	}()

	select {
	case code := <-done:
		if code != http.StatusOK {
			t.Errorf("Expected 200 even when queue is full, got %d", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Handler blocked on full queue")
	}
}

func TestIntakePayloadDecoding(t *testing.T) {
	queue := make(chan Event, 1)
	in := NewIntake("/webhook/recorder", "", queue)

	payload := `{
		"action": "end_download",
		"data": {
			"vod": {
				"path_downloaded_vod": "/recorder/vods/stream.ts",
				"path_playlist": "/recorder/vods/stream.m3u8",
				"basename": "stream",
				"extra_field": 42
			}
		}
	}`
	w := postEvent(t, in, "/webhook/recorder", payload, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	ev := <-queue
	if ev.Data.VOD.PathDownloaded != "/recorder/vods/stream.ts" {
		t.Errorf("Unexpected downloaded path: %q", ev.Data.VOD.PathDownloaded)
	}
	if ev.Data.VOD.Basename != "stream" {
		t.Errorf("Unexpected basename: %q", ev.Data.VOD.Basename)
	}
}
