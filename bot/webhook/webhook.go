// Package webhook receives Asana webhook deliveries and routes them into
// Slack channels: handshake, signature verification, dedup, room resolution,
// detail enrichment, and message dispatch.
package webhook

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"asanabot.arpa/bot/asana"
	"asanabot.arpa/bot/store"
)

// Asana webhook protocol headers.
const (
	HeaderHookSecret       = "X-Hook-Secret"
	HeaderHookSignature    = "X-Hook-Signature"
	HeaderRequestSignature = "X-Asana-Request-Signature"
)

const maxDeliveryBytes = 1 << 20

type Config struct {
	// Path the inbound endpoint is mounted on, e.g. /webhooks/asana.
	Path string
}

// Webhook is the inbound delivery feature.
type Webhook struct {
	log      *zap.Logger
	config   Config
	store    *store.Store
	verifier *Verifier
	enricher *Enricher
	resolver *Resolver
	pipeline *Pipeline

	// Serializes secret writes when Asana retries a handshake concurrently.
	handshakeMu sync.Mutex
	isStarted   atomic.Bool
}

func NewWebhook(log *zap.Logger, config Config, st *store.Store, api TaskAPI, creds ServiceCredentials) *Webhook {
	wh := &Webhook{
		log:    log,
		config: config,
		store:  st,
	}
	wh.verifier = NewVerifier(log, st)
	wh.enricher = NewEnricher(log, api, st, creds)
	wh.resolver = NewResolver(log, st, wh.enricher)
	return wh
}

// Start wires the dispatcher once the Slack client is authenticated.
func (wh *Webhook) Start(poster MessagePoster) error {
	if poster == nil {
		return fmt.Errorf("slack client is not initialized")
	}
	dispatcher := NewDispatcher(wh.log, poster)
	wh.pipeline = NewPipeline(wh.log, wh.resolver, wh.enricher, dispatcher)
	wh.isStarted.Store(true)
	wh.log.Debug("Webhook feature started successfully.")
	return nil
}

// Path returns the endpoint path deliveries are served on.
func (wh *Webhook) Path() string {
	return wh.config.Path
}

// Enricher exposes detail lookups to sibling features (commands).
func (wh *Webhook) Enricher() *Enricher {
	return wh.enricher
}

// HandleDelivery is the inbound POST endpoint for Asana.
func (wh *Webhook) HandleDelivery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxDeliveryBytes))
	if err != nil {
		wh.log.Error("Failed to read delivery body.", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Registration handshake: store the offered secret and echo it back. No
	// signature is possible before a secret is held.
	if secret := r.Header.Get(HeaderHookSecret); secret != "" {
		wh.handleHandshake(w, r, secret)
		return
	}

	signature := r.Header.Get(HeaderHookSignature)
	if signature == "" {
		signature = r.Header.Get(HeaderRequestSignature)
	}

	webhookID := r.URL.Query().Get("webhook_id")
	if !wh.verifier.Verify(r.Context(), webhookID, body, signature) {
		wh.log.Warn("Rejected delivery with invalid signature.", zap.String("remoteAddr", r.RemoteAddr))
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid webhook signature"})
		return
	}

	var payload asana.EventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		wh.log.Error("Failed to parse delivery payload.", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if !wh.isStarted.Load() {
		wh.log.Warn("Delivery received before feature start, dropping events.")
		respondJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}

	summary := wh.pipeline.Process(r.Context(), payload.Events)
	wh.log.Info("Processed webhook delivery.",
		zap.Int("received", summary.Received),
		zap.Int("deduped", summary.Deduped),
		zap.Int("dispatched", summary.Dispatched),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (wh *Webhook) handleHandshake(w http.ResponseWriter, r *http.Request, secret string) {
	wh.handshakeMu.Lock()
	defer wh.handshakeMu.Unlock()

	webhookID := r.URL.Query().Get("webhook_id")
	if err := wh.store.PutSecret(r.Context(), webhookID, secret); err != nil {
		wh.log.Error("Failed to persist handshake secret.", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	wh.log.Info("Completed webhook handshake.", zap.String("webhookID", webhookID))
	w.Header().Set(HeaderHookSecret, secret)
	w.WriteHeader(http.StatusOK)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
