package roomhandler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chatrelay/internal/auth"
	"chatrelay/internal/store"
)

const identityKey = "identity"

type Handler struct {
	rooms    *store.RoomStore
	messages *store.MessageStore
}

func New(rooms *store.RoomStore, messages *store.MessageStore) *Handler {
	return &Handler{rooms: rooms, messages: messages}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/rooms", h.create)
	r.GET("/rooms", h.list)
	r.GET("/rooms/:id", h.info)
	r.PUT("/rooms/:id", h.update)
	r.DELETE("/rooms/:id", h.deleteRoom)
	r.GET("/rooms/:id/messages", h.history)
	r.DELETE("/messages/:id", h.deleteMessage)
}

// AuthRequired gates REST routes behind the same verifier the WS
// endpoint uses.
func AuthRequired(v *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		identity, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication error"})
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

func identityFrom(c *gin.Context) *auth.Identity {
	return c.MustGet(identityKey).(*auth.Identity)
}

// @Summary		Create a room
// @Description	Creates a group or private room. Private rooms hold exactly two members and are deduplicated per pair.
// @Tags			Rooms
// @Param			body	body		CreateRoomBody	true	"Room payload"
// @Success		201		{object}	store.Room
// @Failure		400		{object}	ErrorResponse
// @Router			/rooms [post]
func (h *Handler) create(c *gin.Context) {
	var body CreateRoomBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	roomType := body.Type
	if roomType == "" {
		roomType = store.RoomTypeGroup
	}

	room, err := h.rooms.Create(c.Request.Context(), store.NewRoom{
		Name:        body.Name,
		Description: body.Description,
		Type:        roomType,
		CreatorID:   identityFrom(c).UserID,
		Members:     body.Members,
	})
	if errors.Is(err, store.ErrPrivateMembers) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, room)
}

// @Summary		List my rooms
// @Description	Rooms the caller is a member of, most recently active first.
// @Tags			Rooms
// @Success		200	{array}	store.RoomSummary
// @Router			/rooms [get]
func (h *Handler) list(c *gin.Context) {
	out, err := h.rooms.ListFor(c.Request.Context(), identityFrom(c).UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Get room details
// @Tags			Rooms
// @Param			id	path		string	true	"Room ID"
// @Success		200	{object}	store.Room
// @Failure		403	{object}	ErrorResponse
// @Failure		404	{object}	ErrorResponse
// @Router			/rooms/{id} [get]
func (h *Handler) info(c *gin.Context) {
	room, err := h.rooms.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if !containsID(room.Members, identityFrom(c).UserID) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "access denied"})
		return
	}
	c.JSON(http.StatusOK, room)
}

// @Summary		Update a room
// @Description	Creator-only. Empty fields keep their current value; private-room membership cannot be edited.
// @Tags			Rooms
// @Param			id		path		string			true	"Room ID"
// @Param			body	body		UpdateRoomBody	true	"Fields to change"
// @Success		200		{object}	store.Room
// @Failure		403		{object}	ErrorResponse
// @Failure		404		{object}	ErrorResponse
// @Router			/rooms/{id} [put]
func (h *Handler) update(c *gin.Context) {
	var body UpdateRoomBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	room, err := h.rooms.Update(c.Request.Context(), c.Param("id"), identityFrom(c).UserID, store.RoomUpdate{
		Name:        body.Name,
		Description: body.Description,
		Members:     body.Members,
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
	case errors.Is(err, store.ErrNotCreator):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrPrivateMembers):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusOK, room)
	}
}

// @Summary		Delete a room
// @Description	Creator-only. Removes the room with its messages and memberships.
// @Tags			Rooms
// @Param			id	path	string	true	"Room ID"
// @Success		200	{object}	map[string]string
// @Failure		403	{object}	ErrorResponse
// @Failure		404	{object}	ErrorResponse
// @Router			/rooms/{id} [delete]
func (h *Handler) deleteRoom(c *gin.Context) {
	err := h.rooms.Delete(c.Request.Context(), c.Param("id"), identityFrom(c).UserID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
	case errors.Is(err, store.ErrNotCreator):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "room deleted"})
	}
}

// @Summary		Room message history
// @Description	Paginated history; deleted messages are filtered out.
// @Tags			Messages
// @Param			id		path	string	true	"Room ID"
// @Param			limit	query	int		false	"Page size (0-100)"	default(50)
// @Param			page	query	int		false	"Page number"		default(1)
// @Success		200	{object}	HistoryResponse
// @Failure		403	{object}	ErrorResponse
// @Router			/rooms/{id}/messages [get]
func (h *Handler) history(c *gin.Context) {
	var q HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	roomID := c.Param("id")

	ok, err := h.rooms.IsMember(c.Request.Context(), identityFrom(c).UserID, roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "access denied"})
		return
	}

	msgs, err := h.messages.ListByRoom(c.Request.Context(), roomID, q.Limit, q.Page)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	total, err := h.messages.CountByRoom(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, HistoryResponse{
		Messages:      msgs,
		CurrentPage:   q.Page,
		TotalPages:    (total + q.Limit - 1) / q.Limit,
		TotalMessages: total,
	})
}

// @Summary		Delete a message
// @Description	Sender-only soft delete; content is redacted, metadata kept. Idempotent.
// @Tags			Messages
// @Param			id	path	string	true	"Message ID"
// @Success		200	{object}	map[string]string
// @Failure		403	{object}	ErrorResponse
// @Failure		404	{object}	ErrorResponse
// @Router			/messages/{id} [delete]
func (h *Handler) deleteMessage(c *gin.Context) {
	err := h.messages.MarkDeleted(c.Request.Context(), c.Param("id"), identityFrom(c).UserID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "message not found"})
	case errors.Is(err, store.ErrNotSender):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "message deleted"})
	}
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
