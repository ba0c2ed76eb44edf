package server

import (
	"context"
	"net/http"

	"github.com/ehrlich-b/mudcore/internal/lang/ast"
	"github.com/ehrlich-b/mudcore/internal/lang/compiler"
	"github.com/ehrlich-b/mudcore/internal/logx"
	"github.com/ehrlich-b/mudcore/internal/session"
	"github.com/ehrlich-b/mudcore/internal/world/avatarstate"
	"github.com/ehrlich-b/mudcore/internal/world/entity"
	"github.com/ehrlich-b/mudcore/internal/world/value"
	"github.com/ehrlich-b/mudcore/internal/wstransport"
)

// handleSession implements GET /game/session: upgrades to a WebSocket and
// binds it to the account's resident avatar for the life of the
// connection, per §6.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	accountID, username, ok := s.authenticatedAccount(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	row, err := s.store.LoadAvatar(accountID, username)
	if err != nil {
		logx.Warn("server: load avatar failed", "err", err, "account", accountID)
		http.Error(w, "no resident avatar", http.StatusInternalServerError)
		return
	}

	avatarRef := ast.ParseRef(defaultAvatarProtoRef)
	protoV, ok := s.world.Resolve(compiler.Ref{Module: avatarRef.Module, Name: avatarRef.Name}, "")
	if !ok || protoV.Kind != value.EntityKind {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	base := protoV.Entity.(*entity.Entity)

	av, loc, err := avatarstate.Load(s.world, base, row.State)
	if err != nil {
		logx.Warn("server: decode avatar state failed", "err", err, "avatar", row.ID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if loc == nil {
		startRef := ast.ParseRef(defaultStartLocationRef)
		if locV, ok := s.world.Resolve(compiler.Ref{Module: startRef.Module, Name: startRef.Name}, ""); ok && locV.Kind == value.EntityKind {
			loc, _ = locV.Entity.(*entity.Entity)
		}
	}

	conn, err := wstransport.Accept(w, r, s.cfg.AllowedOrigins)
	if err != nil {
		logx.Warn("server: websocket upgrade failed", "err", err)
		return
	}

	av.Container = loc
	if loc != nil {
		loc.Contents = append(loc.Contents, av)
	}

	sess := session.New(conn, av)
	s.sess.Add(sess)
	s.game.Dispatch(sess, "look")

	ctx := r.Context()
	wstransport.Serve(ctx, conn, func(line string) {
		s.game.Dispatch(sess, line)
	})

	s.sess.Remove(sess)
	sess.Disconnect()
	if loc != nil {
		removeFromContents(loc, av)
	}
	s.saveAvatar(ctx, row.ID, av)
	conn.Close("connection closed")
}

func removeFromContents(loc, ent *entity.Entity) {
	for i, e := range loc.Contents {
		if e == ent {
			loc.Contents = append(loc.Contents[:i], loc.Contents[i+1:]...)
			return
		}
	}
}

func (s *Server) saveAvatar(ctx context.Context, avatarID int64, av *entity.Entity) {
	state, err := avatarstate.Dump(av)
	if err != nil {
		logx.Warn("server: dump avatar state failed", "err", err, "avatar", avatarID)
		return
	}
	if err := s.store.SaveAvatar(avatarID, state); err != nil {
		logx.Warn("server: save avatar failed", "err", err, "avatar", avatarID)
	}
}
