package handlers

import (
	"net/http"
	"time"

	"github.com/AtRiskMedia/kendr-go/internal/application/services/editor"
	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/blocks"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
)

// MountRequest opens an editor session on one surface of a site.
type MountRequest struct {
	SiteID  string         `json:"siteId" binding:"required"`
	Surface editor.Surface `json:"surface"`
}

type MoveRequest struct {
	Src blocks.Path `json:"src" binding:"required"`
	Dst blocks.Path `json:"dst" binding:"required"`
}

// AddBlockRequest appends when Index is omitted.
type AddBlockRequest struct {
	Parent blocks.Path    `json:"parent"`
	Type   string         `json:"type" binding:"required"`
	Preset map[string]any `json:"preset"`
	Index  *int           `json:"index"`
}

type DeleteBlockRequest struct {
	Path      blocks.Path `json:"path" binding:"required"`
	Confirmed bool        `json:"confirmed"`
}

type UpdateDataRequest struct {
	Path blocks.Path    `json:"path" binding:"required"`
	Data map[string]any `json:"data" binding:"required"`
}

// SelectRequest selects a block; an empty path clears the selection.
type SelectRequest struct {
	Path blocks.Path `json:"path"`
}

type CollapseRequest struct {
	BlockID string `json:"blockId" binding:"required"`
}

type FieldRequest struct {
	Key   string `json:"key" binding:"required"`
	Value any    `json:"value"`
}

type LibrarySaveRequest struct {
	Path blocks.Path `json:"path" binding:"required"`
	Name string      `json:"name"`
}

type LibraryInsertRequest struct {
	SavedID string      `json:"savedId" binding:"required"`
	Parent  blocks.Path `json:"parent"`
	Index   *int        `json:"index"`
}

type DropRequest struct {
	Target *editor.DropTarget `json:"target"`
}

// EditorHandlers exposes editor sessions over HTTP.
type EditorHandlers struct {
	manager *editor.Manager
	logger  *logging.ChanneledLogger
}

// NewEditorHandlers creates editor handlers with injected dependencies
func NewEditorHandlers(manager *editor.Manager, logger *logging.ChanneledLogger) *EditorHandlers {
	return &EditorHandlers{manager: manager, logger: logger}
}

func (h *EditorHandlers) session(c *gin.Context) (*editor.Session, bool) {
	sess, err := h.manager.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return sess, true
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return false
	}
	return true
}

// applied answers a session operation; no-ops are 200 with applied=false.
func applied(c *gin.Context, sess *editor.Session, ok bool) {
	c.JSON(http.StatusOK, gin.H{"applied": ok, "session": sess.View()})
}

func indexOrAppend(i *int) int {
	if i == nil {
		return -1
	}
	return *i
}

// Mount handles POST /api/v1/editor/sessions
func (h *EditorHandlers) Mount(c *gin.Context) {
	start := time.Now()
	var req MountRequest
	if !bind(c, &req) {
		return
	}
	sess, err := h.manager.Mount(c.Request.Context(), req.SiteID, req.Surface)
	if err != nil {
		h.logger.Editor().Warn("Mount failed", "siteId", req.SiteID, "surface", req.Surface.Key(), "error", err.Error())
		respondError(c, err)
		return
	}
	h.logger.Editor().Info("Mount request completed", "siteId", req.SiteID, "sessionId", sess.ID, "duration", time.Since(start))
	c.JSON(http.StatusCreated, sess.View())
}

func (h *EditorHandlers) GetSession(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.View())
}

// Unmount flushes pending edits and closes the session.
func (h *EditorHandlers) Unmount(c *gin.Context) {
	if err := h.manager.Unmount(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session closed"})
}

func (h *EditorHandlers) MoveBlock(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req MoveRequest
	if !bind(c, &req) {
		return
	}
	moved, err := sess.MoveBlock(req.Src, req.Dst)
	if err != nil {
		respondError(c, err)
		return
	}
	applied(c, sess, moved)
}

func (h *EditorHandlers) AddBlock(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req AddBlockRequest
	if !bind(c, &req) {
		return
	}
	b, err := sess.AddBlock(req.Parent, req.Type, req.Preset, indexOrAppend(req.Index))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": b != nil, "block": b, "session": sess.View()})
}

func (h *EditorHandlers) DeleteBlock(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req DeleteBlockRequest
	if !bind(c, &req) {
		return
	}
	confirmed := editor.ConfirmFunc(func(string) bool { return req.Confirmed })
	deleted, err := sess.DeleteBlock(req.Path, confirmed)
	if err != nil {
		respondError(c, err)
		return
	}
	applied(c, sess, deleted)
}

func (h *EditorHandlers) UpdateBlockData(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req UpdateDataRequest
	if !bind(c, &req) {
		return
	}
	applied(c, sess, sess.UpdateBlockData(req.Path, req.Data))
}

func (h *EditorHandlers) SelectBlock(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req SelectRequest
	if !bind(c, &req) {
		return
	}
	applied(c, sess, sess.SelectBlock(req.Path))
}

// ToggleCollapse flips a block's collapsed state and persists the surface
// preferences. A failed preferences write does not fail the request.
func (h *EditorHandlers) ToggleCollapse(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req CollapseRequest
	if !bind(c, &req) {
		return
	}
	collapsed, toggled := sess.ToggleCollapse(req.BlockID)
	if toggled {
		_ = h.manager.SavePreferences(c.Request.Context(), sess)
	}
	c.JSON(http.StatusOK, gin.H{"applied": toggled, "collapsed": collapsed, "session": sess.View()})
}

func (h *EditorHandlers) BeginDrag(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req editor.DragSource
	if !bind(c, &req) {
		return
	}
	started, err := sess.BeginDrag(req)
	if err != nil {
		respondError(c, err)
		return
	}
	applied(c, sess, started)
}

func (h *EditorHandlers) Hover(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req editor.HoverTarget
	if !bind(c, &req) {
		return
	}
	moved, err := sess.Hover(req)
	if err != nil {
		respondError(c, err)
		return
	}
	applied(c, sess, moved)
}

func (h *EditorHandlers) Drop(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req DropRequest
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}
	dropped, err := sess.Drop(req.Target)
	if err != nil {
		respondError(c, err)
		return
	}
	applied(c, sess, dropped)
}

func (h *EditorHandlers) CancelDrag(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	applied(c, sess, sess.CancelDrag())
}

func (h *EditorHandlers) SetField(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req FieldRequest
	if !bind(c, &req) {
		return
	}
	if err := sess.SetField(req.Key, req.Value); err != nil {
		respondError(c, err)
		return
	}
	applied(c, sess, true)
}

func (h *EditorHandlers) Reload(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := sess.Reload(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	applied(c, sess, true)
}

func (h *EditorHandlers) Undo(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	applied(c, sess, sess.Undo())
}

func (h *EditorHandlers) Redo(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	applied(c, sess, sess.Redo())
}

func (h *EditorHandlers) SaveToLibrary(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req LibrarySaveRequest
	if !bind(c, &req) {
		return
	}
	saved, err := sess.SaveToLibrary(c.Request.Context(), req.Path, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	if saved == nil {
		c.JSON(http.StatusOK, gin.H{"applied": false})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"applied": true, "saved": saved})
}

func (h *EditorHandlers) InsertFromLibrary(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req LibraryInsertRequest
	if !bind(c, &req) {
		return
	}
	b, err := sess.InsertFromLibrary(c.Request.Context(), req.SavedID, req.Parent, indexOrAppend(req.Index))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": b != nil, "block": b, "session": sess.View()})
}
