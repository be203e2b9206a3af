package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/starfall-labs/favpanel/internal/common"
	"github.com/starfall-labs/favpanel/internal/favorites"
	"github.com/starfall-labs/favpanel/internal/preview"
)

type startPreviewReq struct {
	ChatFile  string `json:"chat_file"`
	SessionID string `json:"session_id"`
}

// StartPreview switches the host to the owner's preview chat and fills
// it with the favorited messages of the requested chat.
func (h *Handler) StartPreview(c *gin.Context) {
	var req startPreviewReq
	_ = c.ShouldBindJSON(&req)

	opts := h.sessionOptions(req.SessionID)
	err := h.Preview.Start(c.Request.Context(), req.ChatFile, opts.Cache)
	switch {
	case err == nil:
		common.OK(c, h.Preview.Snapshot())
	case errors.Is(err, favorites.ErrMissingContext):
		common.Fail(c, http.StatusBadRequest, 10002, "no chat context available")
	case errors.Is(err, preview.ErrNoFavorites):
		common.Fail(c, http.StatusBadRequest, 10040, "chat has no favorites to preview")
	case errors.Is(err, preview.ErrSwitchTimeout):
		common.Fail(c, http.StatusGatewayTimeout, 20040, "timed out switching to preview chat")
	case errors.Is(err, preview.ErrEnvironmentChanged):
		common.Fail(c, http.StatusConflict, 20041, "active chat changed during preview setup")
	default:
		common.Fail(c, http.StatusInternalServerError, 20042, "failed to start preview")
	}
}

// ReturnFromPreview switches back to the chat that was active before
// the preview started.
func (h *Handler) ReturnFromPreview(c *gin.Context) {
	if err := h.Preview.Return(c.Request.Context()); err != nil {
		if errors.Is(err, favorites.ErrMissingContext) {
			common.Fail(c, http.StatusConflict, 10041, "no original chat to return to")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20043, "failed to return to original chat")
		return
	}
	common.OK(c, nil)
}

func (h *Handler) PreviewState(c *gin.Context) {
	common.OK(c, h.Preview.Snapshot())
}
