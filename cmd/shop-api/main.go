// Command shop-api runs the cosmetics shop REST server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MiriamHerrera/cosmetics-api/internal/auth"
	"github.com/MiriamHerrera/cosmetics-api/internal/cart"
	"github.com/MiriamHerrera/cosmetics-api/internal/catalog"
	"github.com/MiriamHerrera/cosmetics-api/internal/config"
	"github.com/MiriamHerrera/cosmetics-api/internal/httpapi"
	"github.com/MiriamHerrera/cosmetics-api/internal/obs"
	"github.com/MiriamHerrera/cosmetics-api/internal/order"
	"github.com/MiriamHerrera/cosmetics-api/internal/report"
	"github.com/MiriamHerrera/cosmetics-api/internal/store"
	"github.com/MiriamHerrera/cosmetics-api/internal/survey"
)

func main() {
	obs.InitLogger()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg)
	if err != nil {
		obs.Logger.Warn("database unavailable, falling back to in-memory store", "err", err)
		db = nil
	}
	if db != nil {
		if err := store.EnsureSchema(ctx, db); err != nil {
			obs.Logger.Error("schema setup failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	products := catalog.New(db, cfg.CatalogCacheTTL)
	carts := cart.New(db, products, cfg.ReservationTTL, cfg.CleanAfter)
	orders := order.New(db, carts, products, cfg.WhatsAppNumber, cfg.GuestHorizonDays, cfg.UserHorizonDays)

	app := &httpapi.App{
		Cfg:     cfg,
		DB:      db,
		Auth:    auth.New(db, cfg.JWTSecret, cfg.TokenTTL),
		Catalog: products,
		Carts:   carts,
		Orders:  orders,
		Surveys: survey.New(db),
		Reports: report.New(db, orders, products),
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		obs.Logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return carts.RunSweeper(gctx, cfg.SweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		obs.Logger.Error("server exited", "err", err)
		os.Exit(1)
	}
	obs.Logger.Info("shutdown complete")
}
