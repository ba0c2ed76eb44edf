package server

import (
	"errors"
	"net/http"

	"github.com/ehrlich-b/mudcore/internal/accountauth"
	"github.com/ehrlich-b/mudcore/internal/lang/ast"
	"github.com/ehrlich-b/mudcore/internal/lang/compiler"
	"github.com/ehrlich-b/mudcore/internal/logx"
	"github.com/ehrlich-b/mudcore/internal/store"
	"github.com/ehrlich-b/mudcore/internal/world/avatarstate"
	"github.com/ehrlich-b/mudcore/internal/world/entity"
	"github.com/ehrlich-b/mudcore/internal/world/value"
)

// errNoAvatarPrototype means the loaded content pack never defined
// builtins.avatar; account creation can't build a starting avatar without it.
var errNoAvatarPrototype = errors.New("server: builtins.avatar is not defined in loaded content")

// handleCreate implements POST /game/create: HTTP Basic credentials name
// a new account, which gets one avatar cloned from the reference content
// pack's starting prototype and placed at its starting location.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok {
		http.Error(w, "basic auth required", http.StatusUnauthorized)
		return
	}
	if !accountauth.ValidUsername(username) || !accountauth.ValidPassword(password) {
		http.Error(w, "invalid username or password", http.StatusBadRequest)
		return
	}
	if _, err := s.store.GetAccountByUsername(username); err == nil {
		http.Error(w, "username taken", http.StatusConflict)
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		logx.Warn("server: lookup account failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	hash, salt, err := accountauth.HashPassword(password)
	if err != nil {
		logx.Warn("server: hash password failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	accountID, err := s.store.CreateAccount(username, hash, salt)
	if err != nil {
		logx.Warn("server: create account failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	state, err := s.initialAvatarState(username)
	if err != nil {
		logx.Warn("server: build initial avatar failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if _, err := s.store.CreateAvatar(accountID, username, state); err != nil {
		logx.Warn("server: create avatar failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.setAuthCookie(w, accountID, username)
	writeJSON(w, http.StatusOK, map[string]string{"username": username})
}

// initialAvatarState clones the content pack's avatar prototype, names it
// name, sets it in the starting location, and dumps it to the JSON form
// the store persists.
func (s *Server) initialAvatarState(name string) (string, error) {
	avatarRef := ast.ParseRef(defaultAvatarProtoRef)
	protoV, ok := s.world.Resolve(compiler.Ref{Module: avatarRef.Module, Name: avatarRef.Name}, "")
	if !ok || protoV.Kind != value.EntityKind {
		return "", errNoAvatarPrototype
	}
	cloned, err := s.world.Clone(protoV)
	if err != nil {
		return "", err
	}
	av := cloned.Entity.(*entity.Entity)
	av.Name = name

	startRef := ast.ParseRef(defaultStartLocationRef)
	if locV, ok := s.world.Resolve(compiler.Ref{Module: startRef.Module, Name: startRef.Name}, ""); ok && locV.Kind == value.EntityKind {
		if loc, ok := locV.Entity.(*entity.Entity); ok {
			av.Container = loc
		}
	}
	return avatarstate.Dump(av)
}

// handleLogin implements POST /game/login: HTTP Basic credentials are
// checked against the stored PBKDF2 hash.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok {
		http.Error(w, "basic auth required", http.StatusUnauthorized)
		return
	}
	acct, err := s.store.GetAccountByUsername(username)
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	valid, err := accountauth.VerifyPassword(password, acct.PasswordHash, acct.PasswordSalt)
	if err != nil || !valid {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	s.setAuthCookie(w, acct.ID, acct.Username)
	writeJSON(w, http.StatusOK, map[string]string{"username": acct.Username})
}

// handleLogout implements POST /game/logout.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

// handleAuth implements GET /game/auth.
func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	_, username, ok := s.authenticatedAccount(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"username": username})
}
