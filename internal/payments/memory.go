package payments

import (
	"context"
	"fmt"
	"sync"

	"github.com/Domenick1991/bushcharter/internal/domain"
	"github.com/google/uuid"
)

// MemoryProcessor is an in-process ledger used when no Stripe key is
// configured. It enforces the same idempotency and balance rules.
type MemoryProcessor struct {
	mu    sync.Mutex
	holds map[string]*memoryHold
	byKey map[string]string
}

type memoryHold struct {
	amount    int64
	refunded  int64
	paidOut   int64
	transfers map[string]int64
}

func NewMemoryProcessor() *MemoryProcessor {
	return &MemoryProcessor{
		holds: make(map[string]*memoryHold),
		byKey: make(map[string]string),
	}
}

func (p *MemoryProcessor) Hold(_ context.Context, req HoldRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ref, ok := p.byKey[req.IdempotencyKey]; ok {
		return ref, nil
	}
	if req.AmountCents <= 0 {
		return "", fmt.Errorf("%w: amount must be positive", domain.ErrPaymentProcessor)
	}

	ref := "hold_" + uuid.NewString()
	p.holds[ref] = &memoryHold{amount: req.AmountCents, transfers: make(map[string]int64)}
	p.byKey[req.IdempotencyKey] = ref
	return ref, nil
}

func (p *MemoryProcessor) Transfer(_ context.Context, holdRef, destination string, amountCents int64, idempotencyKey string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ref, ok := p.byKey[idempotencyKey]; ok {
		return ref, nil
	}
	h, err := p.available(holdRef, amountCents)
	if err != nil {
		return "", err
	}
	if destination == "" {
		return "", fmt.Errorf("%w: destination is required", domain.ErrPaymentProcessor)
	}

	h.paidOut += amountCents
	h.transfers[destination] += amountCents
	ref := "tr_" + uuid.NewString()
	p.byKey[idempotencyKey] = ref
	return ref, nil
}

func (p *MemoryProcessor) Refund(_ context.Context, holdRef string, amountCents int64, _ string, idempotencyKey string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ref, ok := p.byKey[idempotencyKey]; ok {
		return ref, nil
	}
	h, err := p.available(holdRef, amountCents)
	if err != nil {
		return "", err
	}

	h.refunded += amountCents
	ref := "re_" + uuid.NewString()
	p.byKey[idempotencyKey] = ref
	return ref, nil
}

// Balance reports what is left of a hold after refunds and transfers.
func (p *MemoryProcessor) Balance(holdRef string) (held, refunded, paidOut int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h, ok := p.holds[holdRef]
	if !ok {
		return 0, 0, 0
	}
	return h.amount, h.refunded, h.paidOut
}

func (p *MemoryProcessor) available(holdRef string, amount int64) (*memoryHold, error) {
	h, ok := p.holds[holdRef]
	if !ok {
		return nil, fmt.Errorf("%w: unknown hold %s", domain.ErrPaymentProcessor, holdRef)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrPaymentProcessor)
	}
	if h.refunded+h.paidOut+amount > h.amount {
		return nil, fmt.Errorf("%w: hold %s has insufficient balance", domain.ErrPaymentProcessor, holdRef)
	}
	return h, nil
}

var _ Processor = (*MemoryProcessor)(nil)
