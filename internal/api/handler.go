// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

// Package api serves the session over HTTP: cached state, entities,
// service calls, the climate view, history, metrics and a WebSocket
// state stream.
package api

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/benlbrm/ha-hottoh-component/internal/history"
	"github.com/benlbrm/ha-hottoh-component/pkg/entity"
	"github.com/benlbrm/ha-hottoh-component/pkg/hottoh"
)

// Session is the part of *hottoh.Session the API uses.
type Session interface {
	entity.StateReader
	entity.Commander
	Snapshot() hottoh.Snapshot
	State() hottoh.ConnState
	LastError() error
	Capabilities() (hottoh.Capabilities, bool)
}

// Options configures a Handler. Registry, History and Recorder are
// optional; their routes are left out when nil.
type Options struct {
	Session  Session
	Registry *prometheus.Registry
	History  *history.Store
	Recorder *history.Recorder
	Presets  entity.Presets
	Logger   *zap.Logger
}

// Handler wires HTTP routes to the session.
type Handler struct {
	session  Session
	registry *prometheus.Registry
	history  *history.Store
	recorder *history.Recorder
	presets  entity.Presets
	log      *zap.Logger

	mu      sync.Mutex
	climate *entity.Climate
}

func NewHandler(opts Options) *Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		session:  opts.Session,
		registry: opts.Registry,
		history:  opts.History,
		recorder: opts.Recorder,
		presets:  opts.Presets,
		log:      log,
	}
}

// InitRoutes builds the router with every route registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", h.health)
	if h.registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})))
	}
	router.GET("/ws", h.wsConnect)

	api := router.Group("/api/v1")
	{
		h.registerStoveRoutes(api)
		h.registerClimateRoutes(api)
		if h.history != nil {
			h.registerHistoryRoutes(api)
		}
	}
	return router
}

func (h *Handler) registerStoveRoutes(api *gin.RouterGroup) {
	api.GET("/state", h.getState)
	api.GET("/capabilities", h.getCapabilities)
	api.GET("/entities", h.getEntities)
	api.GET("/services", h.getServices)
	// Body example: {"value":21.5}
	api.POST("/services/:name", h.callService)
}

func (h *Handler) registerClimateRoutes(api *gin.RouterGroup) {
	climate := api.Group("/climate")
	{
		climate.GET("", h.getClimate)
		climate.POST("/temperature", h.setClimateTemperature)
		climate.POST("/hvac_mode", h.setHVACMode)
		climate.POST("/preset_mode", h.setPresetMode)
		climate.POST("/fan_mode", h.setFanMode)
	}
}

func (h *Handler) registerHistoryRoutes(api *gin.RouterGroup) {
	api.GET("/events", h.getEvents)
	api.GET("/snapshots", h.getSnapshots)
}

// climateFor returns the climate entity, creating it on first use. The
// entity keeps the selected preset, so it lives as long as the handler
// while the stove name stays the same.
func (h *Handler) climateFor(caps hottoh.Capabilities) *entity.Climate {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.climate == nil || h.climate.Name != caps.Name {
		h.climate = entity.NewClimate(caps, h.presets)
	}
	return h.climate
}
