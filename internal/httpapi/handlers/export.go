package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/starfall-labs/favpanel/internal/common"
	"github.com/starfall-labs/favpanel/internal/export"
	"github.com/starfall-labs/favpanel/internal/host"
)

// ExportFavorites renders one chat's favorites as a downloadable file.
// Formats: txt, jsonl, worldbook.
func (h *Handler) ExportFavorites(c *gin.Context) {
	in, ok := h.resolveExportInput(c)
	if !ok {
		return
	}

	var (
		file *export.File
		err  error
	)
	switch format := c.Param("format"); format {
	case "txt":
		file, err = export.Text(in)
	case "jsonl":
		file, err = export.JSONL(in)
	case "worldbook":
		file, err = export.Worldbook(in)
	default:
		common.Fail(c, http.StatusBadRequest, 10030, fmt.Sprintf("unknown export format %q", format))
		return
	}
	if err != nil {
		if errors.Is(err, export.ErrNoFavorites) {
			common.Fail(c, http.StatusBadRequest, 10031, "chat has no favorites to export")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20030, "export failed")
		return
	}

	// RFC 5987 encoding carries the non-ASCII filename.
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(file.Name))
	c.Header("X-Favorites-Count", fmt.Sprintf("%d", file.Count))
	c.Data(http.StatusOK, file.MIME, file.Content)
}

// resolveExportInput gathers metadata, messages, and naming context for
// the requested chat: session cache first, live active chat next, host
// fetch last. On failure it writes the error response and returns false.
func (h *Handler) resolveExportInput(c *gin.Context) (export.Input, bool) {
	chatFile := host.TrimChatExt(c.Query("chat"))
	// Snapshot keeps the render stable against concurrent favorite
	// mutations on the live document.
	active := h.Ctx.SnapshotActive()

	in := export.Input{}
	if active != nil {
		in.EntityName = active.Owner.Name
		in.UserName = active.UserName
		if chatFile == "" {
			chatFile = active.ChatID
		}
	}
	if chatFile == "" {
		common.Fail(c, http.StatusBadRequest, 10032, "no chat selected for export")
		return in, false
	}
	in.ChatFile = chatFile
	in.DisplayName = chatFile

	if sessionID := c.Query("session_id"); sessionID != "" {
		if sess, ok := h.Sessions.Get(sessionID); ok {
			if rec := sess.Cache.Find(chatFile); rec != nil && rec.Metadata != nil {
				in.Metadata = rec.Metadata
				in.Messages = rec.Messages
				if rec.DisplayName != "" {
					in.DisplayName = rec.DisplayName
				}
				return in, true
			}
		}
	}

	if active != nil && active.ChatID == chatFile {
		in.Metadata = active.Metadata
		in.Messages = active.Messages
		if active.ChatName != "" {
			in.DisplayName = active.ChatName
		}
		return in, true
	}

	if active == nil || !active.Owner.Valid() {
		common.Fail(c, http.StatusBadRequest, 10002, "no chat context available")
		return in, false
	}
	doc, err := h.Gateway.FetchFullChat(c.Request.Context(), active.Owner, chatFile, nil)
	if err != nil {
		common.Fail(c, http.StatusBadGateway, 20031, "failed to load chat from host")
		return in, false
	}
	in.Metadata = doc.Metadata
	in.Messages = doc.Messages
	return in, true
}
