package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Rakamoosaka/kormek/internal/adapters/signal"
	"github.com/Rakamoosaka/kormek/internal/app"
	"github.com/Rakamoosaka/kormek/internal/config"
)

func SetupRouter(cfg *config.Config, store *app.RoomStore, ctl *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	rooms := &roomHandlers{store: store}
	api := r.Group("/api")
	api.POST("/rooms", rooms.create)
	api.GET("/rooms/:room_id", rooms.get)
	api.PATCH("/rooms/:room_id/media", rooms.updateMedia)

	r.GET("/ws/:room_id/:username", ctl.Handle)

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
