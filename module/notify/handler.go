package notify

import (
	"encoding/json"
	"net/http"

	stderrors "errors"

	"TaskFlow/logger"
	"TaskFlow/middleware/security"
	"TaskFlow/module/mention"
	"TaskFlow/service/realtime"
	"TaskFlow/tools/errs"

	"github.com/gin-gonic/gin"
)

// Handler exposes the notification query surface and the internal
// endpoints the domain API calls after committing a write. The CRUD
// API itself lives in another service; these routes are its doorway
// into the realtime core.
type Handler struct {
	store  Store
	disp   *Dispatcher
	bc     Broadcaster
	secret []byte
}

func NewHandler(store Store, disp *Dispatcher, bc Broadcaster, secret []byte) *Handler {
	return &Handler{store: store, disp: disp, bc: bc, secret: secret}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/notifications", h.list)
	r.POST("/notifications/:id/read", h.markRead)

	internal := r.Group("/internal")
	internal.POST("/notifications/dispatch", h.dispatch)
	internal.POST("/notifications/mentions", h.dispatchMentions)
	internal.POST("/projects/:id/events", h.pushEvent)
}

func (h *Handler) auth(c *gin.Context) (security.AuthClaims, bool) {
	claims, err := security.ClaimsFromRequest(c.Request, h.secret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errs.ErrAuthRequired.Msg})
		return security.AuthClaims{}, false
	}
	return claims, true
}

func (h *Handler) list(c *gin.Context) {
	claims, ok := h.auth(c)
	if !ok {
		return
	}
	onlyUnread := c.Query("unread") == "1"
	items, err := h.store.ListByRecipient(c.Request.Context(), claims.UserID, onlyUnread, 50)
	if err != nil {
		logger.Errorf("[notify] list recipient=%s err=%v", claims.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errs.ErrPersistenceFailed.Msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

func (h *Handler) markRead(c *gin.Context) {
	claims, ok := h.auth(c)
	if !ok {
		return
	}
	if err := h.store.MarkRead(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		logger.Errorf("[notify] mark read id=%s err=%v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errs.ErrPersistenceFailed.Msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type eventBody struct {
	Type realtime.Kind   `json:"type"`
	Data json.RawMessage `json:"data"`
}

type dispatchRequest struct {
	RecipientID string `json:"recipientId"`
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Link        string `json:"link"`
	ProjectID   string `json:"projectId"`
	OrgID       string `json:"orgId"`
	TaskID      string `json:"taskId"`
	ActorID     string `json:"actorId"`

	Email *struct {
		To      string         `json:"to"`
		Kind    string         `json:"kind"`
		Context map[string]any `json:"context"`
	} `json:"email"`
	Event *eventBody `json:"event"`
}

func (r *dispatchRequest) toSpec() (Spec, error) {
	spec := Spec{
		RecipientID: r.RecipientID,
		Kind:        r.Kind,
		Title:       r.Title,
		Body:        r.Body,
		Link:        r.Link,
		ProjectID:   r.ProjectID,
		OrgID:       r.OrgID,
		TaskID:      r.TaskID,
		ActorID:     r.ActorID,
	}
	if r.Email != nil {
		spec.Email = &EmailParams{To: r.Email.To, Kind: r.Email.Kind, Context: r.Email.Context}
	}
	if r.Event != nil {
		ev, err := realtime.DecodeEvent(r.Event.Type, r.Event.Data)
		if err != nil {
			return Spec{}, err
		}
		spec.Event = ev
	}
	return spec, nil
}

func (h *Handler) dispatch(c *gin.Context) {
	if _, ok := h.auth(c); !ok {
		return
	}
	var req dispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.RecipientID == "" || req.Kind == "" || req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipientId, kind and title are required"})
		return
	}
	spec, err := req.toSpec()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := h.disp.Dispatch(c.Request.Context(), spec)
	if err != nil {
		if stderrors.Is(err, errs.ErrPersistenceFailed) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": errs.ErrPersistenceFailed.Msg})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notification": n})
}

type mentionsRequest struct {
	Text      string `json:"text" binding:"required"`
	Directory []struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"directory" binding:"required"`
	Base dispatchRequest `json:"base"`
}

// dispatchMentions resolves @-mentions in free text against the
// caller-scoped directory and fans out one mention notification per
// resolved user.
func (h *Handler) dispatchMentions(c *gin.Context) {
	if _, ok := h.auth(c); !ok {
		return
	}
	var req mentionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dir := make([]mention.User, 0, len(req.Directory))
	for _, u := range req.Directory {
		dir = append(dir, mention.User{ID: u.ID, Email: u.Email, Name: u.Name})
	}
	// base recipient/kind are filled per resolved mention
	req.Base.RecipientID = ""
	base, err := req.Base.toSpec()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := h.disp.DispatchMentions(c.Request.Context(), req.Text, dir, base)
	if err != nil {
		if stderrors.Is(err, errs.ErrPersistenceFailed) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": errs.ErrPersistenceFailed.Msg, "created": created})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": created})
}

type pushEventRequest struct {
	eventBody
	ExcludeUserID string `json:"excludeUserId"`
}

// pushEvent is the low-stakes path: a domain handler broadcasts a sync
// event without a durable notification.
func (h *Handler) pushEvent(c *gin.Context) {
	if _, ok := h.auth(c); !ok {
		return
	}
	var req pushEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ev, err := realtime.DecodeEvent(req.Type, req.Data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.bc.Broadcast(c.Param("id"), ev, req.ExcludeUserID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
