// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/benlbrm/ha-hottoh-component/pkg/entity"
	"github.com/benlbrm/ha-hottoh-component/pkg/hottoh"
)

const (
	statusOK = "ok"

	errNotReady        = "stove capabilities not known yet"
	errInvalidBodyPref = "invalid body: "
)

// serviceRequest is the body of a service call. Value is ignored by
// services that take none.
type serviceRequest struct {
	Value float64 `json:"value"`
}

type entityView struct {
	entity.Entity
	State      any            `json:"state"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Available  bool           `json:"available"`
	Icon       string         `json:"icon,omitempty"`
}

// statusFor maps a command failure to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrUnknownService):
		return http.StatusNotFound
	case errors.Is(err, hottoh.ErrInvalidCommand), errors.Is(err, hottoh.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, hottoh.ErrRejected):
		return http.StatusConflict
	case errors.Is(err, hottoh.ErrNotConnected):
		return http.StatusServiceUnavailable
	case errors.Is(err, hottoh.ErrCommandTimeout):
		return http.StatusGatewayTimeout
	}
	var ce *hottoh.CommandError
	if errors.As(err, &ce) {
		return http.StatusInternalServerError
	}
	// Errors raised before a command was built, such as an unknown mode
	return http.StatusBadRequest
}

func (h *Handler) commandFailed(c *gin.Context, command string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.log.Error("command failed", zap.String("command", command), zap.Error(err))
	} else {
		h.log.Info("command refused", zap.String("command", command), zap.Error(err))
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

// record logs a command outcome to history when a recorder is configured.
// It runs detached from the request so a canceled client still gets an
// entry.
func (h *Handler) record(command string, value float64, err error) {
	if h.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	h.recorder.Command(ctx, command, value, err)
}

func (h *Handler) capabilities(c *gin.Context) (hottoh.Capabilities, bool) {
	caps, ok := h.session.Capabilities()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errNotReady})
	}
	return caps, ok
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     statusOK,
		"connection": h.session.State().String(),
	})
}

func (h *Handler) getState(c *gin.Context) {
	snap := h.session.Snapshot()
	state := make(map[string]any, len(snap))
	for a, r := range snap {
		state[string(a)] = r.Value
	}
	resp := gin.H{
		"connection": h.session.State().String(),
		"state":      state,
	}
	if err := h.session.LastError(); err != nil {
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getCapabilities(c *gin.Context) {
	caps, ok := h.capabilities(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":         caps.Name,
		"manufacturer": caps.Manufacturer,
		"model":        caps.Model,
		"firmware":     caps.Firmware,
		"fan_count":    caps.FanCount,
		"room_sensors": caps.RoomSensors,
		"water_sensor": caps.WaterSensor,
		"pump":         caps.Pump,
	})
}

func (h *Handler) getEntities(c *gin.Context) {
	caps, ok := h.capabilities(c)
	if !ok {
		return
	}
	platforms := make(map[entity.Platform][]entityView)
	for platform, entities := range entity.All(caps) {
		views := make([]entityView, 0, len(entities))
		for _, e := range entities {
			state, _ := e.State(h.session)
			views = append(views, entityView{
				Entity:     e,
				State:      state,
				Attributes: e.Attributes(h.session),
				Available:  e.Available(h.session),
				Icon:       e.IconFor(h.session),
			})
		}
		platforms[platform] = views
	}
	c.JSON(http.StatusOK, gin.H{
		"device":    entity.Device(caps),
		"platforms": platforms,
	})
}

func (h *Handler) getServices(c *gin.Context) {
	caps, ok := h.capabilities(c)
	if !ok {
		return
	}
	services := entity.Services(caps)
	c.JSON(http.StatusOK, gin.H{
		"count":    len(services),
		"services": services,
	})
}

func (h *Handler) callService(c *gin.Context) {
	name := c.Param("name")
	var req serviceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
			return
		}
	}
	caps, ok := h.capabilities(c)
	if !ok {
		return
	}

	err := entity.CallService(c.Request.Context(), h.session, caps, name, req.Value)
	if !errors.Is(err, entity.ErrUnknownService) {
		h.record(name, req.Value, err)
	}
	if err != nil {
		h.commandFailed(c, name, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK, "service": name})
}
