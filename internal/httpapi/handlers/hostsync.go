package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/starfall-labs/favpanel/internal/common"
	"github.com/starfall-labs/favpanel/internal/host"
)

type hostContextReq struct {
	CharacterID string         `json:"character_id"`
	GroupID     string         `json:"group_id"`
	Name        string         `json:"name"`
	Avatar      string         `json:"avatar"`
	ChatID      string         `json:"chat_id"`
	ChatName    string         `json:"chat_name"`
	UserName    string         `json:"user_name"`
	Metadata    *host.Metadata `json:"chat_metadata"`
	Messages    []host.Message `json:"messages"`
	Cleared     bool           `json:"cleared"`
}

// SyncHostContext replaces the mirrored active context. The host pushes
// a full snapshot on every relevant change; {"cleared":true} means no
// character or group is selected.
func (h *Handler) SyncHostContext(c *gin.Context) {
	var req hostContextReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid request body")
		return
	}

	if req.Cleared {
		h.Ctx.Set(nil)
		common.OK(c, nil)
		return
	}
	if req.CharacterID == "" && req.GroupID == "" {
		common.Fail(c, http.StatusBadRequest, 10050, "context needs a character_id or group_id")
		return
	}

	h.Ctx.Set(&host.ActiveContext{
		Owner: host.Owner{
			CharacterID: req.CharacterID,
			GroupID:     req.GroupID,
			Name:        req.Name,
			Avatar:      req.Avatar,
		},
		ChatID:   req.ChatID,
		ChatName: req.ChatName,
		UserName: req.UserName,
		Metadata: req.Metadata,
		Messages: req.Messages,
	})
	common.OK(c, nil)
}

type chatChangedReq struct {
	ChatID string `json:"chat_id"`
}

// HostChatChanged fans the host's chat-changed notification out to
// subscribers (preview safety net included).
func (h *Handler) HostChatChanged(c *gin.Context) {
	var req chatChangedReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid request body")
		return
	}
	h.Ctx.NotifyChatChanged(req.ChatID)
	common.OK(c, nil)
}
