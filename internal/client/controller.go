package client

import (
	"context"
	"log"

	"discussion-service/internal/models"
)

// HistoryFetcher loads one history page for a target.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, target Target, page, limit int) ([]models.Message, models.Pagination, error)
}

// Streamer is the stream surface the controller drives.
type Streamer interface {
	StreamSender
	Join(ctx context.Context, target Target) error
	Leave(ctx context.Context, target Target) error
}

// Controller coordinates one conversation view: it switches targets, joins
// rooms, races history against the live stream through the Reconciler, and
// closes reconnect gaps.
type Controller struct {
	rec     *Reconciler
	stream  Streamer
	history HistoryFetcher
	outbox  *Outbox
	limit   int
}

// NewController builds a Controller. The outbox may be nil for read-only
// views.
func NewController(rec *Reconciler, stream Streamer, history HistoryFetcher, outbox *Outbox, pageLimit int) *Controller {
	if pageLimit <= 0 {
		pageLimit = 50
	}
	return &Controller{rec: rec, stream: stream, history: history, outbox: outbox, limit: pageLimit}
}

// Open switches the view to a conversation: resets state, leaves the old
// room, joins the new one, and fetches the newest history page. The join and
// the fetch race; the Reconciler absorbs both orders.
func (ctl *Controller) Open(ctx context.Context, target Target) error {
	prev := ctl.rec.Conversation()
	ctl.rec.SwitchConversation(target)

	if prev != (Target{}) && prev != target {
		if err := ctl.stream.Leave(ctx, prev); err != nil {
			log.Printf("controller: leave %s: %v", prev.Room(), err)
		}
	}
	if err := ctl.stream.Join(ctx, target); err != nil {
		return err
	}
	return ctl.loadPage(ctx, target, 1)
}

// LoadOlder fetches and merges one older page.
func (ctl *Controller) LoadOlder(ctx context.Context, page int) error {
	return ctl.loadPage(ctx, ctl.rec.Conversation(), page)
}

func (ctl *Controller) loadPage(ctx context.Context, target Target, page int) error {
	msgs, _, err := ctl.history.FetchHistory(ctx, target, page, ctl.limit)
	if err != nil {
		return err
	}
	ctl.rec.MergeHistoryPage(target, page, msgs)
	return nil
}

// HandleEvent folds a stream event into the view.
func (ctl *Controller) HandleEvent(ev models.ServerEvent) {
	switch ev.Event {
	case models.EventNewMessage:
		if ev.Message != nil {
			ctl.rec.OnLiveMessage(*ev.Message)
		}
	}
}

// OnReconnect rejoins the current room and refetches the newest page so
// messages broadcast during the outage appear. Dedup by id keeps the merge
// idempotent.
func (ctl *Controller) OnReconnect(ctx context.Context) {
	target := ctl.rec.Conversation()
	if target == (Target{}) {
		return
	}
	if err := ctl.stream.Join(ctx, target); err != nil {
		log.Printf("controller: rejoin %s: %v", target.Room(), err)
		return
	}
	if err := ctl.loadPage(ctx, target, 1); err != nil {
		log.Printf("controller: refetch after reconnect: %v", err)
	}
}

// Send runs one optimistic send through the outbox.
func (ctl *Controller) Send(ctx context.Context, content string) (*PendingSend, error) {
	return ctl.outbox.Send(ctx, ctl.rec.Conversation(), content)
}
