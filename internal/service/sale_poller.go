package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// saleRefresher is the part of SaleService the poller drives.
type saleRefresher interface {
	RefreshPhase(ctx context.Context) bool
	RefreshMinted(ctx context.Context)
}

// SalePoller keeps the sale status fresh with two independent ticker loops:
// the phase loop stops for good once the presale has ended, the minted loop
// runs until the context is cancelled. A hung read only stalls its own loop.
type SalePoller struct {
	svc      saleRefresher
	interval time.Duration
	logger   *slog.Logger
}

// NewSalePoller creates a SalePoller. interval defaults to 5s.
func NewSalePoller(svc saleRefresher, interval time.Duration, logger *slog.Logger) *SalePoller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &SalePoller{
		svc:      svc,
		interval: interval,
		logger:   logger.With(slog.String("component", "sale_poller")),
	}
}

// Run refreshes immediately and then on every tick. It blocks until ctx is
// cancelled and returns ctx.Err().
func (p *SalePoller) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.runPhase(gctx) })
	g.Go(func() error { return p.runMinted(gctx) })
	return g.Wait()
}

func (p *SalePoller) runPhase(ctx context.Context) error {
	if p.svc.RefreshPhase(ctx) {
		p.logger.InfoContext(ctx, "presale already ended, phase polling not started")
		return nil
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if p.svc.RefreshPhase(ctx) {
				p.logger.InfoContext(ctx, "presale ended, phase polling stopped")
				return nil
			}
		}
	}
}

func (p *SalePoller) runMinted(ctx context.Context) error {
	p.svc.RefreshMinted(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.svc.RefreshMinted(ctx)
		}
	}
}
