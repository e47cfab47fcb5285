package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"go.uber.org/zap"
)

// SecretSource provides the candidate handshake secrets for a delivery.
type SecretSource interface {
	SecretCandidates(ctx context.Context, webhookID string) ([]string, error)
}

// Verifier authenticates webhook deliveries against stored handshake secrets.
// Verification fails closed: a missing header, an empty secret set, or a
// non-matching digest all reject the request.
type Verifier struct {
	log     *zap.Logger
	secrets SecretSource
}

func NewVerifier(log *zap.Logger, secrets SecretSource) *Verifier {
	return &Verifier{log: log, secrets: secrets}
}

// Verify checks the signature header against an HMAC-SHA256 of the exact raw
// body bytes for each candidate secret. The body must be the wire payload as
// received; re-serializing parsed JSON does not byte-match.
func (v *Verifier) Verify(ctx context.Context, webhookID string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}

	provided, err := decodeSignature(signature)
	if err != nil {
		v.log.Warn("Webhook signature is not valid hex.", zap.Error(err))
		return false
	}

	candidates, err := v.secrets.SecretCandidates(ctx, webhookID)
	if err != nil {
		v.log.Error("Failed to load webhook secrets.", zap.Error(err))
		return false
	}
	if len(candidates) == 0 {
		v.log.Warn("No webhook secret stored, rejecting delivery.")
		return false
	}

	for _, secret := range candidates {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		if hmac.Equal(mac.Sum(nil), provided) {
			return true
		}
	}
	return false
}

// decodeSignature accepts a plain hex digest or the "sha256=<hex>" form.
func decodeSignature(signature string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
}

// SignPayload computes the hex signature a sender would attach for a secret
// and body. Used by tests and the debug command.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
