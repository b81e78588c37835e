package server_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/standvox/standvox/internal/server"
)

const offerSDP = "v=0\r\no=- 46117317 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"

type capturedRequest struct {
	auth        string
	contentType string
	beta        string
	model       string
	speed       string
	body        string
}

func upstreamStub(t *testing.T, captured *capturedRequest, status int, answer string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*captured = capturedRequest{
			auth:        r.Header.Get("Authorization"),
			contentType: r.Header.Get("Content-Type"),
			beta:        r.Header.Get("OpenAI-Beta"),
			model:       r.URL.Query().Get("model"),
			speed:       r.URL.Query().Get("speed"),
			body:        string(body),
		}
		w.Header().Set("Content-Type", "application/sdp")
		w.WriteHeader(status)
		w.Write([]byte(answer))
	}))
}

func postSignal(t *testing.T, proxy *server.SignalProxy, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webrtc-signal", strings.NewReader(body))
	proxy.Handle(rec, req)
	return rec
}

func TestSignalForwardsOfferToUpstream(t *testing.T) {
	var captured capturedRequest
	upstream := upstreamStub(t, &captured, http.StatusOK, "v=0\r\nanswer\r\n")
	defer upstream.Close()

	proxy := server.NewSignalProxy("sk-test-key", server.WithSignalUpstream(upstream.URL))
	rec := postSignal(t, proxy, `{"sdp":`+quoteSDP(offerSDP)+`,"session_params":{"model":"gpt-4o-realtime-preview-2024-12-17","speed":1.2}}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/sdp" {
		t.Errorf("Content-Type = %q", got)
	}
	if !strings.Contains(rec.Body.String(), "answer") {
		t.Errorf("body = %q, want upstream answer", rec.Body.String())
	}
	if captured.auth != "Bearer sk-test-key" {
		t.Errorf("Authorization = %q", captured.auth)
	}
	if captured.contentType != "application/sdp" {
		t.Errorf("upstream Content-Type = %q", captured.contentType)
	}
	if captured.beta != "realtime=v1" {
		t.Errorf("OpenAI-Beta = %q", captured.beta)
	}
	if captured.model != "gpt-4o-realtime-preview-2024-12-17" {
		t.Errorf("model = %q", captured.model)
	}
	if captured.speed != "1.2" {
		t.Errorf("speed = %q", captured.speed)
	}
	if captured.body != offerSDP {
		t.Errorf("upstream body = %q, want the offer SDP", captured.body)
	}
}

func TestSignalAppliesDefaultSessionParams(t *testing.T) {
	var captured capturedRequest
	upstream := upstreamStub(t, &captured, http.StatusOK, "answer")
	defer upstream.Close()

	proxy := server.NewSignalProxy("sk-test-key",
		server.WithSignalUpstream(upstream.URL),
		server.WithSignalDefaults("gpt-4o-mini-realtime-preview", 0.9))
	rec := postSignal(t, proxy, `{"sdp":`+quoteSDP(offerSDP)+`}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if captured.model != "gpt-4o-mini-realtime-preview" {
		t.Errorf("model = %q", captured.model)
	}
	if captured.speed != "0.9" {
		t.Errorf("speed = %q", captured.speed)
	}
}

func TestSignalPassesThroughUpstreamError(t *testing.T) {
	var captured capturedRequest
	upstream := upstreamStub(t, &captured, http.StatusUnauthorized, `{"error":"invalid_api_key"}`)
	defer upstream.Close()

	proxy := server.NewSignalProxy("bad-key", server.WithSignalUpstream(upstream.URL))
	rec := postSignal(t, proxy, `{"sdp":`+quoteSDP(offerSDP)+`}`)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 passthrough", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid_api_key") {
		t.Errorf("body = %q, want upstream error body", rec.Body.String())
	}
}

func TestSignalRejectsMissingSDP(t *testing.T) {
	proxy := server.NewSignalProxy("sk-test-key")
	rec := postSignal(t, proxy, `{"session_params":{"speed":1.0}}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSignalRejectsMalformedJSON(t *testing.T) {
	proxy := server.NewSignalProxy("sk-test-key")
	rec := postSignal(t, proxy, `not json`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSignalUnreachableUpstreamIs502(t *testing.T) {
	proxy := server.NewSignalProxy("sk-test-key", server.WithSignalUpstream("http://127.0.0.1:1"))
	rec := postSignal(t, proxy, `{"sdp":`+quoteSDP(offerSDP)+`}`)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func quoteSDP(sdp string) string {
	return `"` + strings.ReplaceAll(sdp, "\r\n", `\r\n`) + `"`
}
