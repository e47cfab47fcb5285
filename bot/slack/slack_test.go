package slack

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func signedHeaders(t *testing.T, secret string, body []byte) http.Header {
	t.Helper()
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)

	headers := http.Header{}
	headers.Set("X-Slack-Request-Timestamp", timestamp)
	headers.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	return headers
}

func TestVerifyRequest_Valid(t *testing.T) {
	s := NewSlack(zaptest.NewLogger(t), Config{SigningSecret: "signing-secret"})
	body := []byte("command=%2Fasana&text=help")

	if err := s.VerifyRequest(signedHeaders(t, "signing-secret", body), body); err != nil {
		t.Errorf("VerifyRequest() rejected a valid signature: %v", err)
	}
}

func TestVerifyRequest_WrongSecret(t *testing.T) {
	s := NewSlack(zaptest.NewLogger(t), Config{SigningSecret: "signing-secret"})
	body := []byte("command=%2Fasana&text=help")

	if err := s.VerifyRequest(signedHeaders(t, "other-secret", body), body); err == nil {
		t.Error("VerifyRequest() accepted a signature from the wrong secret")
	}
}

func TestVerifyRequest_TamperedBody(t *testing.T) {
	s := NewSlack(zaptest.NewLogger(t), Config{SigningSecret: "signing-secret"})
	headers := signedHeaders(t, "signing-secret", []byte("command=%2Fasana&text=help"))

	if err := s.VerifyRequest(headers, []byte("command=%2Fasana&text=logout")); err == nil {
		t.Error("VerifyRequest() accepted a tampered body")
	}
}

func TestVerifyRequest_NoSecretConfigured(t *testing.T) {
	s := NewSlack(zaptest.NewLogger(t), Config{})
	body := []byte("command=%2Fasana")

	if err := s.VerifyRequest(signedHeaders(t, "anything", body), body); err == nil {
		t.Error("VerifyRequest() without a signing secret should fail")
	}
}

func TestStart_NoToken(t *testing.T) {
	s := NewSlack(zaptest.NewLogger(t), Config{})

	if err := s.Start(context.Background()); err == nil {
		t.Error("Start() without a token should fail")
	}
	if s.Client() != nil {
		t.Error("Client() should be nil before a successful Start()")
	}
}
