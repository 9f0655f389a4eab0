package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rakamoosaka/kormek/internal/app"
	"github.com/Rakamoosaka/kormek/internal/domain"
)

func testRouter(store *app.RoomStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	rooms := &roomHandlers{store: store}
	api := r.Group("/api")
	api.POST("/rooms", rooms.create)
	api.GET("/rooms/:room_id", rooms.get)
	api.PATCH("/rooms/:room_id/media", rooms.updateMedia)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRooms_Create(t *testing.T) {
	r := testRouter(app.NewRoomStore(time.Hour))

	w := doJSON(t, r, http.MethodPost, "/api/rooms", `{"name":"movie night","host_id":"alice"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var room domain.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))
	assert.NotEmpty(t, room.ID)
	assert.Equal(t, "movie night", room.Name)
	require.NotNil(t, room.HostID)
	assert.Equal(t, "alice", *room.HostID)
}

func TestRooms_CreateRequiresName(t *testing.T) {
	r := testRouter(app.NewRoomStore(time.Hour))

	w := doJSON(t, r, http.MethodPost, "/api/rooms", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/rooms", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRooms_Get(t *testing.T) {
	store := app.NewRoomStore(time.Hour)
	room := store.Create("r", nil)
	r := testRouter(store)

	w := doJSON(t, r, http.MethodGet, "/api/rooms/"+string(room.ID), "")
	require.Equal(t, http.StatusOK, w.Code)

	var got domain.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, room.ID, got.ID)

	w = doJSON(t, r, http.MethodGet, "/api/rooms/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"room not found"}`, w.Body.String())
}

func TestRooms_UpdateMedia(t *testing.T) {
	store := app.NewRoomStore(time.Hour)
	room := store.Create("r", nil)
	r := testRouter(store)

	w := doJSON(t, r, http.MethodPatch, "/api/rooms/"+string(room.ID)+"/media",
		`{"media_url":"https://example.com/v.mp4"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var got domain.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.NotNil(t, got.MediaURL)
	assert.Equal(t, "https://example.com/v.mp4", *got.MediaURL)
	assert.False(t, got.IsPlaying)
	assert.Zero(t, got.CurrentTime)

	w = doJSON(t, r, http.MethodPatch, "/api/rooms/missing/media", `{"media_url":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
