// Package server implements the HTTP/WebSocket surface of §6: account
// creation and login over HTTP Basic, a signed auth cookie, and a
// WebSocket upgrade that binds a connection to the caller's resident
// avatar.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/ehrlich-b/mudcore/internal/accountauth"
	"github.com/ehrlich-b/mudcore/internal/game"
	"github.com/ehrlich-b/mudcore/internal/logx"
	"github.com/ehrlich-b/mudcore/internal/session"
	"github.com/ehrlich-b/mudcore/internal/store"
	"github.com/ehrlich-b/mudcore/internal/world"
)

const (
	cookieName = "mud_session"

	// defaultAvatarProtoRef and defaultStartLocationRef name the content
	// entities a freshly created account's avatar is built from, per the
	// reference content pack (content/builtins.script, content/areas/town.script).
	defaultAvatarProtoRef   = "builtins.avatar"
	defaultStartLocationRef = "town.square"
)

// Config holds the settings New needs beyond its collaborators.
type Config struct {
	// AllowedOrigins restricts which Origin header a WebSocket upgrade
	// accepts from; empty means same-origin only (coder/websocket's
	// default).
	AllowedOrigins []string
	// Secure marks the auth cookie Secure, for TLS-terminated deployments.
	Secure bool
}

// Server wires the store, world, and session manager to the §6 HTTP
// contract. It implements http.Handler.
type Server struct {
	cfg    Config
	store  *store.Store
	world  *world.World
	game   *game.Game
	sess   *session.Manager
	signer *accountauth.Signer
	mux    *http.ServeMux
}

// New builds a Server and registers its routes.
func New(cfg Config, st *store.Store, w *world.World, g *game.Game, sessMgr *session.Manager, signer *accountauth.Signer) *Server {
	s := &Server{cfg: cfg, store: st, world: w, game: g, sess: sessMgr, signer: signer, mux: http.NewServeMux()}

	s.mux.HandleFunc("POST /game/create", s.handleCreate)
	s.mux.HandleFunc("POST /game/login", s.handleLogin)
	s.mux.HandleFunc("POST /game/logout", s.handleLogout)
	s.mux.HandleFunc("GET /game/auth", s.handleAuth)
	s.mux.HandleFunc("GET /game/session", s.handleSession)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) setAuthCookie(w http.ResponseWriter, accountID int64, username string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    s.signer.Issue(accountID, username),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// authenticatedAccount validates r's auth cookie, returning the account id
// and username on success.
func (s *Server) authenticatedAccount(r *http.Request) (id int64, username string, ok bool) {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return 0, "", false
	}
	return s.signer.Verify(c.Value)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Warn("server: encode response failed", "err", err)
	}
}
