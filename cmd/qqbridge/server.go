package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"qqbridge/internal/constants"
	"qqbridge/internal/models"
	"qqbridge/internal/service"
	"qqbridge/internal/status"
	"qqbridge/internal/tracing"
	"qqbridge/pkg/media"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	router   *mux.Router
	logger   *logrus.Logger
	cfg      *models.Config
	bridge   *service.Bridge
	tracker  *status.Tracker
	resolver media.Resolver
	server   *http.Server
}

func NewServer(cfg *models.Config, bridge *service.Bridge, tracker *status.Tracker, resolver media.Resolver, logger *logrus.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		cfg:      cfg,
		bridge:   bridge,
		tracker:  tracker,
		resolver: resolver,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(tracing.Middleware)

	s.router.HandleFunc("/ping", s.handlePing()).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus()).Methods(http.MethodGet)
	s.router.HandleFunc("/webhook", s.handleWebhook()).Methods(http.MethodPost)
	s.router.HandleFunc("/test", s.handleTest()).Methods(http.MethodPost)
	s.router.HandleFunc("/test-media", s.handleTestMedia()).Methods(http.MethodPost)
	s.router.HandleFunc("/media/{filename}", s.handleMedia()).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Server.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handlePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "qqbridge",
		})
	}
}

// statusResponse is the tracker snapshot plus a sanitized view of the
// active configuration. Secrets are reported as presence booleans only.
type statusResponse struct {
	status.Snapshot

	Config statusConfig `json:"config"`
}

type statusConfig struct {
	WSEnabled      bool   `json:"ws_enabled"`
	WSURL          string `json:"ws_url,omitempty"`
	TargetType     string `json:"target_type"`
	BindRouter     string `json:"bind_router,omitempty"`
	BindChannel    string `json:"bind_channel,omitempty"`
	AllowedGroups  int    `json:"allowed_groups"`
	AllowedUsers   int    `json:"allowed_users"`
	HasSecret      bool   `json:"has_verify_secret"`
	HasAccessToken bool   `json:"has_access_token"`
}

func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{
			Snapshot: s.tracker.Snapshot(),
			Config: statusConfig{
				WSEnabled:      s.cfg.OneBot.WSEnabled,
				WSURL:          s.cfg.OneBot.WSURL,
				TargetType:     s.cfg.Notify.TargetType,
				BindRouter:     s.cfg.Notify.BindRouter,
				BindChannel:    s.cfg.Notify.BindChannel,
				AllowedGroups:  len(s.cfg.Filter.AllowedGroups),
				AllowedUsers:   len(s.cfg.Filter.AllowedUsers),
				HasSecret:      s.cfg.Server.VerifySecret != "",
				HasAccessToken: s.cfg.OneBot.AccessToken != "",
			},
		}
		s.writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := verifySignature(r, s.cfg.Server.VerifySecret, constants.SignatureHeader)
		if err != nil {
			s.logger.WithError(err).Warn("Webhook signature verification failed")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if err := s.bridge.HandleRaw(r.Context(), body); err != nil {
			s.logger.WithError(err).Error("Failed to process webhook event")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

type testRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (s *Server) handleTest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req testRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		draft := &models.NotificationDraft{
			Title: req.Title,
			Body:  req.Body,
		}
		if draft.Title == "" {
			draft.Title = s.cfg.TitlePrefix + " test"
		}
		if draft.Body == "" {
			draft.Body = "test notification from qqbridge"
		}

		if err := s.bridge.Dispatch(r.Context(), draft); err != nil {
			s.writeJSON(w, http.StatusBadGateway, map[string]string{
				"status": "error",
				"error":  err.Error(),
			})
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
	}
}

type testMediaRequest struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

func (s *Server) handleTestMedia() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req testMediaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.URL == "" {
			http.Error(w, "url is required", http.StatusBadRequest)
			return
		}

		segType := models.SegmentImage
		switch req.Type {
		case "voice":
			segType = models.SegmentVoice
		case "video":
			segType = models.SegmentVideo
		case "file":
			segType = models.SegmentFile
		}

		asset, err := s.resolver.Resolve(r.Context(), models.MessageSegment{
			Type:      segType,
			RemoteRef: req.URL,
		})
		if err != nil {
			s.writeJSON(w, http.StatusBadGateway, map[string]string{
				"status": "error",
				"error":  err.Error(),
			})
			return
		}

		draft := &models.NotificationDraft{
			Title:       s.cfg.TitlePrefix + " media test",
			Body:        "media test from qqbridge",
			PrimaryLink: asset.PublicLink,
		}
		if err := s.bridge.Dispatch(r.Context(), draft); err != nil {
			s.writeJSON(w, http.StatusBadGateway, map[string]string{
				"status": "error",
				"error":  err.Error(),
			})
			return
		}

		s.writeJSON(w, http.StatusOK, map[string]string{
			"status": "sent",
			"link":   asset.PublicLink,
			"path":   asset.LocalPath,
		})
	}
}

func (s *Server) handleMedia() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["filename"]
		if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		http.ServeFile(w, r, filepath.Join(s.cfg.Media.Dir, name))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}
