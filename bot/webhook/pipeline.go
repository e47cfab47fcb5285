package webhook

import (
	"context"

	"go.uber.org/zap"

	"asanabot.arpa/bot/asana"
)

// Stage outcomes. Each pipeline stage tags its result so the caller decides
// what the next stage sees, instead of threading control flow through error
// handlers.
type outcome int

const (
	outcomeDispatched outcome = iota
	outcomeSkipped
	outcomeFailed
)

type eventResult struct {
	outcome outcome
	reason  string
}

// Summary reports what happened to one delivery batch.
type Summary struct {
	Received   int
	Deduped    int
	Dispatched int
	Skipped    int
	Failed     int
}

// Pipeline runs the per-event stages of a verified delivery:
// Dedupe -> Resolve -> Enrich -> Dispatch. Verification happens before the
// pipeline since it applies to the raw request, not to events.
type Pipeline struct {
	log        *zap.Logger
	resolver   *Resolver
	enricher   *Enricher
	dispatcher *Dispatcher
}

func NewPipeline(log *zap.Logger, resolver *Resolver, enricher *Enricher, dispatcher *Dispatcher) *Pipeline {
	return &Pipeline{
		log:        log,
		resolver:   resolver,
		enricher:   enricher,
		dispatcher: dispatcher,
	}
}

// Process handles one event batch sequentially. Failures are contained per
// event; nothing here aborts the batch.
func (p *Pipeline) Process(ctx context.Context, events []asana.Event) Summary {
	summary := Summary{Received: len(events)}

	deduped := Dedupe(events)
	summary.Deduped = len(events) - len(deduped)

	// A room already served once in this batch is not served again, even when
	// several resource ids resolve to it.
	servedRooms := make(map[string]struct{})

	for _, ev := range deduped {
		result := p.processEvent(ctx, ev, servedRooms)
		switch result.outcome {
		case outcomeDispatched:
			summary.Dispatched++
		case outcomeSkipped:
			summary.Skipped++
			p.log.Debug("Event skipped.",
				zap.String("resource", ev.Resource.GID),
				zap.String("action", ev.Action),
				zap.String("reason", result.reason),
			)
		case outcomeFailed:
			summary.Failed++
			p.log.Warn("Event processing failed.",
				zap.String("resource", ev.Resource.GID),
				zap.String("action", ev.Action),
				zap.String("reason", result.reason),
			)
		}
	}
	return summary
}

func (p *Pipeline) processEvent(ctx context.Context, ev asana.Event, servedRooms map[string]struct{}) eventResult {
	mapping, err := p.resolver.Resolve(ctx, ev)
	if err != nil {
		return eventResult{outcomeFailed, "resolution lookup: " + err.Error()}
	}
	if mapping == nil {
		// Best-effort notifications, no retry and no dead-letter.
		return eventResult{outcomeSkipped, "no room registered for resource"}
	}
	if _, served := servedRooms[mapping.RoomID]; served {
		return eventResult{outcomeSkipped, "room already notified in this batch"}
	}

	token := p.enricher.Token(ctx, mapping.CreatedBy)
	detail := p.enricher.Enrich(ctx, token, ev)

	if err := p.dispatcher.Dispatch(ctx, ev, detail, mapping.RoomID); err != nil {
		return eventResult{outcomeFailed, "dispatch: " + err.Error()}
	}
	servedRooms[mapping.RoomID] = struct{}{}
	return eventResult{outcomeDispatched, ""}
}
