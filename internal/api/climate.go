// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type temperatureRequest struct {
	Temperature float64 `json:"temperature" binding:"required"`
}

type modeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

func (h *Handler) getClimate(c *gin.Context) {
	caps, ok := h.capabilities(c)
	if !ok {
		return
	}
	cl := h.climateFor(caps)
	resp := gin.H{
		"name":         cl.Name,
		"unique_id":    cl.UniqueID,
		"hvac_mode":    cl.HVACMode(h.session),
		"hvac_modes":   cl.HVACModes(),
		"hvac_action":  cl.HVACAction(h.session),
		"icon":         cl.Icon(h.session),
		"preset_mode":  cl.PresetMode(),
		"preset_modes": cl.PresetModes(),
		"fan_mode":     cl.FanMode(h.session),
		"fan_modes":    cl.FanModes(),
		"available":    h.session.IsConnected(),
	}
	if t, ok := cl.CurrentTemperature(h.session); ok {
		resp["current_temperature"] = t
	}
	if t, ok := cl.TargetTemperature(h.session); ok {
		resp["target_temperature"] = t
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) setClimateTemperature(c *gin.Context) {
	var req temperatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	caps, ok := h.capabilities(c)
	if !ok {
		return
	}
	err := h.climateFor(caps).SetTemperature(c.Request.Context(), h.session, req.Temperature)
	h.record("set_temperature", req.Temperature, err)
	if err != nil {
		h.commandFailed(c, "set_temperature", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK, "temperature": req.Temperature})
}

func (h *Handler) setHVACMode(c *gin.Context) {
	h.setMode(c, "set_hvac_mode", func(c *gin.Context, mode string) error {
		caps, _ := h.session.Capabilities()
		return h.climateFor(caps).SetHVACMode(c.Request.Context(), h.session, mode)
	})
}

func (h *Handler) setPresetMode(c *gin.Context) {
	h.setMode(c, "set_preset_mode", func(c *gin.Context, mode string) error {
		caps, _ := h.session.Capabilities()
		return h.climateFor(caps).SetPresetMode(c.Request.Context(), h.session, mode)
	})
}

func (h *Handler) setFanMode(c *gin.Context) {
	h.setMode(c, "set_fan_mode", func(c *gin.Context, mode string) error {
		caps, _ := h.session.Capabilities()
		return h.climateFor(caps).SetFanMode(c.Request.Context(), h.session, mode)
	})
}

func (h *Handler) setMode(c *gin.Context, command string, apply func(*gin.Context, string) error) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if _, ok := h.capabilities(c); !ok {
		return
	}
	err := apply(c, req.Mode)
	h.record(command+":"+req.Mode, 0, err)
	if err != nil {
		h.commandFailed(c, command, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK, "mode": req.Mode})
}
