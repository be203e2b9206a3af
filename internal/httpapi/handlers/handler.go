package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/starfall-labs/favpanel/internal/common"
	"github.com/starfall-labs/favpanel/internal/config"
	"github.com/starfall-labs/favpanel/internal/favorites"
	"github.com/starfall-labs/favpanel/internal/host"
	"github.com/starfall-labs/favpanel/internal/preview"
	"github.com/starfall-labs/favpanel/internal/settings"
)

type Handler struct {
	Cfg      config.Config
	Ctx      *host.ContextState
	Gateway  *favorites.Gateway
	Store    *favorites.Store
	Sessions *favorites.SessionManager
	Preview  *preview.Controller
	Settings *settings.Store
}

func NewHandler(cfg config.Config, ctxs *host.ContextState, gw *favorites.Gateway, store *favorites.Store, sessions *favorites.SessionManager, pv *preview.Controller, st *settings.Store) *Handler {
	return &Handler{
		Cfg:      cfg,
		Ctx:      ctxs,
		Gateway:  gw,
		Store:    store,
		Sessions: sessions,
		Preview:  pv,
		Settings: st,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"status": "ok"})
}
