package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/presalebot/internal/domain"
	"github.com/alanyoungcy/presalebot/internal/notify"
	"github.com/alanyoungcy/presalebot/internal/platform/ethereum"
	"github.com/alanyoungcy/presalebot/internal/server"
	"github.com/alanyoungcy/presalebot/internal/server/handler"
	"github.com/alanyoungcy/presalebot/internal/server/ws"
	"github.com/alanyoungcy/presalebot/internal/service"
	"github.com/alanyoungcy/presalebot/internal/tui"
)

// newSaleService binds the configured contract and restores the last cached
// status.
func (a *App) newSaleService(ctx context.Context, deps *Dependencies, chain *chainDeps) (*service.SaleService, error) {
	contract, err := chain.contract(a.cfg.Contract.Address)
	if err != nil {
		return nil, err
	}
	price, err := a.cfg.MintPrice()
	if err != nil {
		return nil, err
	}

	svc := service.NewSaleService(contract, chain.session, service.SaleConfig{
		Contract:    contract.Address(),
		MintPrice:   price,
		NetworkName: a.cfg.Chain.NetworkName,
		ConfirmWait: a.cfg.Sale.ConfirmWait.Duration,
		CallTimeout: a.cfg.Poll.CallTimeout.Duration,
		LockTTL:     a.cfg.Sale.LockTTL.Duration,
	}, service.SaleDeps{
		Mints:    deps.MintStore,
		Audit:    deps.AuditStore,
		Cache:    deps.StatusCache,
		Bus:      deps.SignalBus,
		Locks:    deps.LockManager,
		Notifier: deps.Notifier,
	}, a.logger)

	if err := svc.Restore(ctx); err != nil {
		a.logger.WarnContext(ctx, "status restore failed", slog.String("error", err.Error()))
	}
	return svc, nil
}

func (a *App) newMetadataService(deps *Dependencies) *service.MetadataService {
	return service.NewMetadataService(service.MetadataConfig{
		NamePrefix:  a.cfg.Metadata.NamePrefix,
		Description: a.cfg.Metadata.Description,
		ImageBase:   a.cfg.Metadata.ImageBase,
		MaxTokens:   a.cfg.Metadata.MaxTokens,
		Prefix:      a.cfg.Metadata.S3Prefix,
	}, deps.BlobWriter, deps.BlobReader, a.logger)
}

// connect attempts the wallet connection. Long-running modes keep polling the
// chain-scoped fields when it fails.
func (a *App) connect(ctx context.Context, svc *service.SaleService) {
	info, err := svc.Connect(ctx)
	if err != nil {
		a.logger.ErrorContext(ctx, "wallet connect failed, continuing disconnected",
			slog.String("error", err.Error()),
		)
		return
	}
	a.logger.InfoContext(ctx, "wallet connected",
		slog.String("wallet", info.Address),
		slog.Int64("chain_id", info.ChainID),
	)
}

// subscribeUpdates opens the sale channel. Callers subscribe before they
// connect so the first updates are not missed.
func subscribeUpdates(ctx context.Context, bus domain.SignalBus) (<-chan []byte, error) {
	ch, err := bus.Subscribe(ctx, service.SaleChannel)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", service.SaleChannel, err)
	}
	return ch, nil
}

// logUpdates logs every intent change received on ch.
func (a *App) logUpdates(ctx context.Context, ch <-chan []byte) error {
	var last domain.Intent
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-ch:
			if !ok {
				return nil
			}
			var u service.SaleUpdate
			if err := json.Unmarshal(payload, &u); err != nil {
				a.logger.WarnContext(ctx, "undecodable sale update", slog.String("error", err.Error()))
				continue
			}
			if u.View.Intent == last && u.Event == "" {
				continue
			}
			last = u.View.Intent
			a.logger.InfoContext(ctx, "sale update",
				slog.String("event", u.Event),
				slog.String("phase", string(u.Phase)),
				slog.String("intent", string(u.View.Intent)),
				slog.Uint64("minted_count", u.Status.MintedCount),
			)
		}
	}
}

// WatchMode connects the wallet, polls the sale and logs every change.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies, chain *chainDeps) error {
	a.logger.InfoContext(ctx, "starting watch mode")

	svc, err := a.newSaleService(ctx, deps, chain)
	if err != nil {
		return fmt.Errorf("watch mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	updates, err := subscribeUpdates(ctx, svc.Bus())
	if err != nil {
		return fmt.Errorf("watch mode: %w", err)
	}
	g.Go(func() error { return a.logUpdates(ctx, updates) })
	a.connect(ctx, svc)

	poller := service.NewSalePoller(svc, a.cfg.Poll.Interval.Duration, a.logger)
	g.Go(func() error { return poller.Run(ctx) })

	return g.Wait()
}

// ServerMode polls the sale and serves the HTTP + WebSocket API.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies, chain *chainDeps) error {
	a.logger.InfoContext(ctx, "starting server mode")

	svc, err := a.newSaleService(ctx, deps, chain)
	if err != nil {
		return fmt.Errorf("server mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	a.connect(ctx, svc)

	poller := service.NewSalePoller(svc, a.cfg.Poll.Interval.Duration, a.logger)
	g.Go(func() error { return poller.Run(ctx) })

	a.startHTTPServer(ctx, g, deps, svc, a.newMetadataService(deps))

	return g.Wait()
}

// FullMode runs the server, logs sale updates and publishes metadata once
// when object storage is configured.
func (a *App) FullMode(ctx context.Context, deps *Dependencies, chain *chainDeps) error {
	a.logger.InfoContext(ctx, "starting full mode")

	svc, err := a.newSaleService(ctx, deps, chain)
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	metadata := a.newMetadataService(deps)

	g, ctx := errgroup.WithContext(ctx)
	updates, err := subscribeUpdates(ctx, svc.Bus())
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	g.Go(func() error { return a.logUpdates(ctx, updates) })
	a.connect(ctx, svc)

	poller := service.NewSalePoller(svc, a.cfg.Poll.Interval.Duration, a.logger)
	g.Go(func() error { return poller.Run(ctx) })

	if deps.BlobWriter != nil {
		g.Go(func() error {
			if _, err := metadata.Publish(ctx, a.opts.ForcePublish); err != nil {
				a.logger.ErrorContext(ctx, "metadata publish failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	a.startHTTPServer(ctx, g, deps, svc, metadata)

	return g.Wait()
}

// TUIMode renders the sale in the terminal. The wallet connects when the
// user asks for it.
func (a *App) TUIMode(ctx context.Context, deps *Dependencies, chain *chainDeps) error {
	a.logger.InfoContext(ctx, "starting tui mode")

	svc, err := a.newSaleService(ctx, deps, chain)
	if err != nil {
		return fmt.Errorf("tui mode: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	poller := service.NewSalePoller(svc, a.cfg.Poll.Interval.Duration, a.logger)
	g.Go(func() error { return poller.Run(gctx) })

	ui := tui.New(svc, svc.Bus(), tui.Options{
		Collection: a.cfg.Metadata.NamePrefix,
		MaxTokens:  a.cfg.Metadata.MaxTokens,
	})
	runErr := ui.Run(gctx)
	cancel()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return runErr
}

// ActionMode dispatches the configured action once and prints the receipt.
func (a *App) ActionMode(ctx context.Context, deps *Dependencies, chain *chainDeps) error {
	action, ok := domain.ParseAction(a.cfg.Action)
	if !ok {
		return fmt.Errorf("action mode: unknown action %q", a.cfg.Action)
	}
	a.logger.InfoContext(ctx, "starting action mode", slog.String("action", string(action)))

	svc, err := a.newSaleService(ctx, deps, chain)
	if err != nil {
		return fmt.Errorf("action mode: %w", err)
	}

	if action != domain.ActionConnect {
		if _, err := svc.Connect(ctx); err != nil {
			return fmt.Errorf("action mode: %w", err)
		}
	}

	receipt, err := svc.Dispatch(ctx, action)
	if err != nil {
		return fmt.Errorf("action mode: %w", err)
	}

	view := svc.Update("").View
	fmt.Fprintf(a.opts.Out, "Action: %s\n", action)
	if receipt.TxHash != "" {
		fmt.Fprintf(a.opts.Out, "Tx: %s (block %d)\n", receipt.TxHash, receipt.BlockNumber)
	}
	for _, id := range receipt.MintedTokenIDs {
		fmt.Fprintf(a.opts.Out, "Minted token: %d\n", id)
	}
	fmt.Fprintf(a.opts.Out, "Now: %s\n", view.Title)
	return nil
}

// DeployMode creates the sale contract from the compiled artifact and prints
// its address. There is no retry.
func (a *App) DeployMode(ctx context.Context, deps *Dependencies, chain *chainDeps) error {
	a.logger.InfoContext(ctx, "starting deploy mode")

	if _, err := chain.session.Connect(ctx); err != nil {
		if errors.Is(err, domain.ErrNetworkMismatch) {
			msg := fmt.Sprintf("Change the network to %s", a.cfg.Chain.NetworkName)
			_ = deps.Notifier.Notify(ctx, notify.EventNetworkMismatch, "Wrong network", msg)
		}
		return fmt.Errorf("deploy mode: %w", err)
	}

	art, err := ethereum.LoadArtifact(a.cfg.Deploy.ArtifactPath)
	if err != nil {
		return fmt.Errorf("deploy mode: %w", err)
	}

	metadata := a.newMetadataService(deps)
	if err := metadata.Preflight(ctx, a.cfg.Deploy.MetadataURL); err != nil {
		a.logger.WarnContext(ctx, "metadata url preflight failed, deploying anyway",
			slog.String("metadata_url", a.cfg.Deploy.MetadataURL),
			slog.String("error", err.Error()),
		)
	}

	deployer := ethereum.NewDeployer(chain.client, chain.signer, a.logger)
	d, err := deployer.Deploy(ctx, art, a.cfg.Deploy.MetadataURL, a.cfg.Deploy.WhitelistAddress)
	if err != nil {
		return fmt.Errorf("deploy mode: %w", err)
	}
	d.ID = uuid.NewString()
	d.CreatedAt = time.Now().UTC()

	if deps.DeploymentStore != nil {
		if err := deps.DeploymentStore.Insert(ctx, d); err != nil {
			a.logger.WarnContext(ctx, "record deployment failed", slog.String("error", err.Error()))
		}
	}
	if deps.AuditStore != nil {
		_ = deps.AuditStore.Log(ctx, "deployed", map[string]any{
			"address":  d.Address,
			"tx_hash":  d.TxHash,
			"chain_id": d.ChainID,
		})
	}
	if err := deps.Notifier.Notify(ctx, notify.EventDeployed, "Contract deployed",
		fmt.Sprintf("%s deployed at %s (tx %s)", art.ContractName, d.Address, d.TxHash)); err != nil {
		a.logger.WarnContext(ctx, "notify failed", slog.String("error", err.Error()))
	}

	fmt.Fprintf(a.opts.Out, "Address: %s\n", d.Address)
	return nil
}

// PublishMode writes the metadata documents to object storage.
func (a *App) PublishMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting publish mode", slog.Bool("force", a.opts.ForcePublish))

	if deps.BlobWriter == nil {
		return errors.New("publish mode: s3 is not configured")
	}
	rep, err := a.newMetadataService(deps).Publish(ctx, a.opts.ForcePublish)
	if err != nil {
		return fmt.Errorf("publish mode: %w", err)
	}
	fmt.Fprintf(a.opts.Out, "Published %d documents, %d already present\n", rep.Written, rep.Skipped)
	return nil
}

// startHTTPServer registers the API and the WebSocket hub on g. Both stop
// when ctx is cancelled.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	svc *service.SaleService,
	metadata *service.MetadataService,
) {
	hub := ws.NewHub(svc.Bus(), a.logger, ws.Config{
		Channels: []string{service.SaleChannel},
		Snapshot: func() []byte {
			b, err := json.Marshal(svc.Update(""))
			if err != nil {
				return []byte("{}")
			}
			return b
		},
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(a.cfg.Mode, time.Now().UTC()),
		Sale:     handler.NewSaleHandler(svc, a.cfg.Server.AllowActions, a.logger),
		Metadata: handler.NewMetadataHandler(metadata),
	}
	if deps.MintStore != nil {
		handlers.Mints = handler.NewMintHandler(deps.MintStore, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
