package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Board mirrors what a dashboard shows: the filtered invoice list and the
// counters. It only ever holds server-confirmed state. Commands are sent first and
// the board is re-synced from the server afterwards; a failed command leaves the
// last confirmed state in place.
type Board struct {
	client  *Client
	session *Session

	mu       sync.Mutex
	filter   ListOptions
	invoices []Invoice
	total    int64
	stats    Stats
}

// NewBoard creates an empty board; call Refresh to load it.
func NewBoard(c *Client, s *Session) *Board {
	return &Board{client: c, session: s}
}

// Invoices returns a copy of the confirmed invoice list and its match count.
func (b *Board) Invoices() ([]Invoice, int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Invoice(nil), b.invoices...), b.total
}

// Stats returns the confirmed counters.
func (b *Board) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Filter returns the active list filter.
func (b *Board) Filter() ListOptions {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filter
}

// SetFilter changes the list filter and re-fetches. On error the previous filter stays active.
func (b *Board) SetFilter(ctx context.Context, opts ListOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	previous := b.filter
	b.filter = opts
	if err := b.refreshLocked(ctx); err != nil {
		b.filter = previous
		return err
	}
	return nil
}

// Refresh re-fetches the invoice list and the counters.
func (b *Board) Refresh(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshLocked(ctx)
}

func (b *Board) Create(ctx context.Context, draft InvoiceDraft) (*Invoice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	inv, err := b.client.CreateInvoice(ctx, b.session, draft)
	if err != nil {
		return nil, err
	}
	return inv, b.refreshLocked(ctx)
}

func (b *Board) Update(ctx context.Context, id string, draft InvoiceDraft) (*Invoice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	inv, err := b.client.UpdateInvoice(ctx, b.session, id, draft)
	if err != nil {
		return nil, err
	}
	return inv, b.refreshLocked(ctx)
}

func (b *Board) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.client.DeleteInvoice(ctx, b.session, id); err != nil {
		return err
	}
	return b.refreshLocked(ctx)
}

// Pay pays the invoice's full amount due.
func (b *Board) Pay(ctx context.Context, id string, amount decimal.Decimal) (*Invoice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	inv, err := b.client.PayInvoice(ctx, b.session, id, amount)
	if err != nil {
		return nil, err
	}
	return inv, b.refreshLocked(ctx)
}

// refreshLocked swaps in a new list and counters only when both fetches succeed.
func (b *Board) refreshLocked(ctx context.Context) error {
	page, err := b.client.ListInvoices(ctx, b.session, b.filter)
	if err != nil {
		return fmt.Errorf("board refresh: %w", err)
	}
	stats, err := b.client.Stats(ctx, b.session)
	if err != nil {
		return fmt.Errorf("board refresh: %w", err)
	}

	b.invoices = page.Invoices
	b.total = page.Total
	b.stats = *stats
	return nil
}
