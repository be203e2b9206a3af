package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/starfall-labs/favpanel/internal/common"
	"github.com/starfall-labs/favpanel/internal/favorites"
	"github.com/starfall-labs/favpanel/internal/host"
)

type addFavoriteReq struct {
	MessageID string `json:"message_id" binding:"required"`
	Sender    string `json:"sender"`
	Role      string `json:"role"`
	ChatFile  string `json:"chat_file"`
	SessionID string `json:"session_id"`
}

func (h *Handler) AddFavorite(c *gin.Context) {
	var req addFavoriteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid request body")
		return
	}

	opts := h.sessionOptions(req.SessionID)
	if h.isPreviewTarget(c, req.ChatFile, opts) {
		common.Fail(c, http.StatusBadRequest, 10003, "preview chats cannot hold favorites")
		return
	}

	info := favorites.MessageInfo{
		MessageID: req.MessageID,
		Sender:    req.Sender,
		Role:      req.Role,
	}
	item, err := h.Store.Add(c.Request.Context(), info, req.ChatFile, opts)
	if err != nil {
		if errors.Is(err, favorites.ErrMissingContext) {
			common.Fail(c, http.StatusBadRequest, 10002, "no chat context available")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "failed to save favorite")
		return
	}
	common.OK(c, item)
}

// isPreviewTarget reports whether the mutation would land in a tracked
// preview chat. Preview chats are disposable render surfaces; favorites
// inside one would be lost on the next preview.
func (h *Handler) isPreviewTarget(c *gin.Context, chatFile string, opts favorites.Options) bool {
	target := host.TrimChatExt(chatFile)
	if target == "" {
		target = host.TrimChatExt(opts.ViewingChat)
	}
	if target == "" {
		if active := h.Ctx.Active(); active != nil {
			target = active.ChatID
		}
	}
	if target == "" {
		return false
	}
	isPreview, err := h.Settings.IsPreviewChat(c.Request.Context(), target)
	if err != nil {
		log.Printf("preview chat lookup failed: %v", err)
		return false
	}
	return isPreview
}

type favoriteTargetReq struct {
	ChatFile  string `json:"chat_file"`
	SessionID string `json:"session_id"`
}

func (h *Handler) RemoveFavorite(c *gin.Context) {
	// Target info rides in the body; DELETE with a body follows the
	// host's own API conventions.
	var req favoriteTargetReq
	_ = c.ShouldBindJSON(&req)

	removed, err := h.Store.Remove(c.Request.Context(), c.Param("id"), req.ChatFile, h.sessionOptions(req.SessionID))
	if err != nil {
		if errors.Is(err, favorites.ErrMissingContext) {
			common.Fail(c, http.StatusBadRequest, 10002, "no chat context available")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20002, "failed to remove favorite")
		return
	}
	if !removed {
		common.Fail(c, http.StatusNotFound, 40401, "favorite not found")
		return
	}
	common.OK(c, nil)
}

type updateNoteReq struct {
	Note      string `json:"note"`
	ChatFile  string `json:"chat_file"`
	SessionID string `json:"session_id"`
}

func (h *Handler) UpdateFavoriteNote(c *gin.Context) {
	var req updateNoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid request body")
		return
	}

	err := h.Store.UpdateNote(c.Request.Context(), c.Param("id"), req.Note, req.ChatFile, h.sessionOptions(req.SessionID))
	if err != nil {
		if errors.Is(err, favorites.ErrMissingContext) {
			common.Fail(c, http.StatusBadRequest, 10002, "no chat context available")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to update note")
		return
	}
	common.OK(c, nil)
}
