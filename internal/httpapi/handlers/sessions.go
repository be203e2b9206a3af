package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/starfall-labs/favpanel/internal/common"
	"github.com/starfall-labs/favpanel/internal/favorites"
)

// OpenSession builds a fresh cache of every chat of the active owner
// and returns the session id the popup uses for the rest of its life.
func (h *Handler) OpenSession(c *gin.Context) {
	sess, err := h.Sessions.Open(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20010, "failed to open favorites session")
		return
	}
	common.OK(c, gin.H{
		"session_id":   sess.ID,
		"viewing_chat": sess.ViewingChat,
		"chat_count":   sess.Cache.Len(),
	})
}

func (h *Handler) CloseSession(c *gin.Context) {
	if !h.Sessions.Close(c.Param("id")) {
		common.Fail(c, http.StatusNotFound, 40410, "session not found")
		return
	}
	common.OK(c, nil)
}

// ListSessionChats returns the session's chat list with favorite counts.
func (h *Handler) ListSessionChats(c *gin.Context) {
	chats, err := h.Sessions.Chats(c.Param("id"))
	if err != nil {
		common.Fail(c, http.StatusNotFound, 40410, "session not found")
		return
	}
	common.OK(c, chats)
}

// ListSessionFavorites pages through one chat's favorites. Naming a
// chat via ?chat= switches the session's viewing chat to it.
func (h *Handler) ListSessionFavorites(c *gin.Context) {
	page := 1
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			common.Fail(c, http.StatusBadRequest, 10010, "invalid page number")
			return
		}
		page = n
	}

	pageData, err := h.Sessions.ListFavorites(c.Param("id"), c.Query("chat"), page)
	if err != nil {
		common.Fail(c, http.StatusNotFound, 40410, "session or chat not found")
		return
	}
	common.OK(c, pageData)
}

// sessionOptions resolves an optional session id into mutation options
// carrying the session's cache and viewing chat. An unknown or absent
// session id degrades to empty options; mutations then resolve against
// the active chat only.
func (h *Handler) sessionOptions(sessionID string) favorites.Options {
	if sessionID == "" {
		return favorites.Options{}
	}
	sess, ok := h.Sessions.Get(sessionID)
	if !ok {
		return favorites.Options{}
	}
	return favorites.Options{Cache: sess.Cache, ViewingChat: sess.ViewingChat}
}
