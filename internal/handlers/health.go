package handlers

import (
	"net/http"
	"os"

	"robo-backend/internal/models"
)

// HealthInfo is the static diagnostic snapshot taken at startup.
type HealthInfo struct {
	Model        string
	SDK          string
	TTS          string
	STTAvailable bool
	APIReady     bool
}

type HealthHandler struct {
	info HealthInfo
}

func NewHealthHandler(info HealthInfo) *HealthHandler {
	return &HealthHandler{info: info}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	stt := "browser-only"
	if h.info.STTAvailable {
		stt = "ffmpeg"
	}
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:   "ok",
		Model:    h.info.Model,
		SDK:      h.info.SDK,
		TTS:      h.info.TTS,
		STT:      stt,
		APIReady: h.info.APIReady,
	})
}

// IndexHandler serves the browser landing page.
type IndexHandler struct {
	path string
}

func NewIndexHandler(path string) *IndexHandler {
	return &IndexHandler{path: path}
}

func (h *IndexHandler) Index(w http.ResponseWriter, r *http.Request) {
	if h.path == "" {
		writeJSON(w, http.StatusNotFound, errorResp("Landing page not configured", r))
		return
	}
	if _, err := os.Stat(h.path); err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("Landing page not found", r))
		return
	}
	http.ServeFile(w, r, h.path)
}
