package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ehrlich-b/mudcore/internal/accountauth"
	"github.com/ehrlich-b/mudcore/internal/config"
	"github.com/ehrlich-b/mudcore/internal/game"
	"github.com/ehrlich-b/mudcore/internal/logx"
	"github.com/ehrlich-b/mudcore/internal/session"
	"github.com/ehrlich-b/mudcore/internal/store"
	"github.com/ehrlich-b/mudcore/internal/world"
	"github.com/ehrlich-b/mudcore/internal/world/load"
)

// Run boots the store, world, and HTTP surface from cfg and serves until
// ctx is canceled, per §4.H/§4.I/§6. It is the single composition root
// both cmd/mudserver and "mudctl serve" call into.
func Run(ctx context.Context, cfg config.Config) error {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	w, loader, err := LoadWorld(cfg)
	if err != nil {
		return err
	}

	if err := loader.FireWorldEvent("start_world"); err != nil {
		return fmt.Errorf("start_world: %w", err)
	}

	g := game.New(loader.VM)
	sessMgr := session.NewManager(loader.VM, cfg.TickInterval.Duration())
	go sessMgr.Run(ctx)

	signer, err := loadOrCreateSigner(cfg.SigningKeyPath)
	if err != nil {
		return fmt.Errorf("signing key: %w", err)
	}

	srv := New(Config{}, st, w, g, sessMgr, signer)
	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: srv}

	errCh := make(chan error, 1)
	go func() {
		logx.Info("mudserver listening", "addr", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logx.Info("mudserver shutting down")
		_ = loader.FireWorldEvent("stop_world")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// LoadWorld opens a fresh World and loads cfg's content manifest into it,
// without binding any socket — the shared first half of Run and
// "mudctl check".
func LoadWorld(cfg config.Config) (*world.World, *load.Loader, error) {
	w := world.New()
	loader := load.New(w)
	if err := loader.LoadManifest(cfg.ContentRoot, cfg.ManifestName); err != nil {
		return nil, nil, fmt.Errorf("load content: %w", err)
	}
	return w, loader, nil
}

// loadOrCreateSigner loads a persisted signing key (base64-encoded, the
// same form "mudctl keygen" prints) from path, or generates and writes a
// fresh one if path is set but the file doesn't exist. An empty path
// means a process-local ephemeral key, per §6: the server just restarted
// and every cookie was already going to be invalid.
func loadOrCreateSigner(path string) (*accountauth.Signer, error) {
	if path == "" {
		return accountauth.NewSigner()
	}
	data, err := os.ReadFile(path)
	if err == nil {
		key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("decode signing key: %w", err)
		}
		return accountauth.NewSignerFromKey(key), nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(base64.StdEncoding.EncodeToString(key)), 0o600); err != nil {
		return nil, err
	}
	return accountauth.NewSignerFromKey(key), nil
}

// RunUntilInterrupt wraps Run with the standard SIGINT/SIGTERM
// cancellation, for cmd/mudserver's main.
func RunUntilInterrupt(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Run(ctx, cfg)
}
