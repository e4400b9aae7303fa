package api

import (
	"context"

	"glyphstat/domain/core"
	"glyphstat/domain/verdict"
	"glyphstat/ports"
)

// PublishingLedger announces every stored record on a hub.
type PublishingLedger struct {
	ports.LedgerPort
	hub *Hub
}

var _ ports.LedgerPort = (*PublishingLedger)(nil)

// NewPublishingLedger wraps ledger so writes are published to hub.
func NewPublishingLedger(ledger ports.LedgerPort, hub *Hub) *PublishingLedger {
	return &PublishingLedger{LedgerPort: ledger, hub: hub}
}

// Append stores rec and publishes it.
func (l *PublishingLedger) Append(ctx context.Context, rec *verdict.Record) error {
	if err := l.LedgerPort.Append(ctx, rec); err != nil {
		return err
	}
	l.hub.Publish(NewVerdictEvent(EventAppended, rec))
	return nil
}

// Supersede stores rec as the next revision of prevID and publishes it.
func (l *PublishingLedger) Supersede(ctx context.Context, prevID core.VerdictID, rec *verdict.Record, note string) error {
	if err := l.LedgerPort.Supersede(ctx, prevID, rec, note); err != nil {
		return err
	}
	l.hub.Publish(NewVerdictEvent(EventSuperseded, rec))
	return nil
}
