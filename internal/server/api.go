package server

import (
	"errors"
	"net/http"
	"time"

	"forum/internal/models"
	"forum/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// apiRoutes 是 GET /api 返回的路由索引。
var apiRoutes = []string{
	"GET /api",
	"GET /api/rooms",
	"GET /api/rooms/:id",
}

// RoomJSON 是只读 API 输出的房间，关联字段只输出 id。
type RoomJSON struct {
	ID           uint      `json:"id"`
	Host         *uint     `json:"host"`
	Topic        *uint     `json:"topic"`
	Participants []uint    `json:"participants"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Updated      time.Time `json:"updated"`
	Created      time.Time `json:"created"`
}

func serializeRoom(r models.Room) RoomJSON {
	ids := make([]uint, 0, len(r.Participants))
	for _, p := range r.Participants {
		ids = append(ids, p.ID)
	}
	return RoomJSON{
		ID:           r.ID,
		Host:         r.HostID,
		Topic:        r.TopicID,
		Participants: ids,
		Name:         r.Name,
		Description:  r.Description,
		Updated:      r.UpdatedAt,
		Created:      r.CreatedAt,
	}
}

// API 是对外只读接口，不提供任何写操作。
type API struct {
	query *service.QueryService
}

func NewAPI(query *service.QueryService) *API {
	return &API{query: query}
}

func (a *API) Register(g *gin.RouterGroup) {
	g.GET("", a.Routes)
	g.GET("/rooms", a.Rooms)
	g.GET("/rooms/:id", a.Room)
}

func (a *API) Routes(c *gin.Context) {
	c.JSON(http.StatusOK, apiRoutes)
}

func (a *API) Rooms(c *gin.Context) {
	rooms, err := a.query.ListRooms(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("api list rooms")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to list rooms"})
		return
	}
	out := make([]RoomJSON, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, serializeRoom(r))
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) Room(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}
	room, err := a.query.GetRoom(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
			return
		}
		log.Error().Err(err).Uint("room_id", id).Msg("api get room")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to get room"})
		return
	}
	c.JSON(http.StatusOK, serializeRoom(*room))
}
