package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Rakamoosaka/kormek/internal/app"
	"github.com/Rakamoosaka/kormek/internal/domain"
)

type roomHandlers struct {
	store *app.RoomStore
}

type createRoomReq struct {
	Name   string  `json:"name" binding:"required"`
	HostID *string `json:"host_id"`
}

func (h *roomHandlers) create(c *gin.Context) {
	var req createRoomReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
		return
	}
	room := h.store.Create(req.Name, req.HostID)
	c.JSON(http.StatusCreated, room)
}

func (h *roomHandlers) get(c *gin.Context) {
	room, ok := h.store.Get(domain.RoomID(c.Param("room_id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, room)
}

type updateMediaReq struct {
	MediaURL *string `json:"media_url"`
}

func (h *roomHandlers) updateMedia(c *gin.Context) {
	var req updateMediaReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
		return
	}
	room, ok := h.store.UpdateMedia(domain.RoomID(c.Param("room_id")), req.MediaURL)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, room)
}
