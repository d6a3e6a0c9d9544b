package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-putt/pkg/calibration"
	"github.com/teslashibe/go-putt/pkg/camera"
	"github.com/teslashibe/go-putt/pkg/geom"
	"github.com/teslashibe/go-putt/pkg/hub"
	"github.com/teslashibe/go-putt/pkg/pipeline"
	"github.com/teslashibe/go-putt/pkg/planar"
	"github.com/teslashibe/go-putt/pkg/scorebook"
)

const defaultScoreLimit = 10

// CalibrationInfo describes the active calibration.
type CalibrationInfo struct {
	Calibrated       bool                    `json:"calibrated"`
	Homography       *geom.Homography        `json:"homography,omitempty"`
	Pose             *calibration.CameraPose `json:"pose,omitempty"`
	HeightCorrection *planar.Config          `json:"height_correction,omitempty"`
}

func errorJSON(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// Status reports the server's health.
type Status struct {
	HubRunning bool  `json:"hub_running"`
	Clients    int   `json:"clients"`
	Replaced   int64 `json:"replaced"`
	Calibrated bool  `json:"calibrated"`
	Frame      int64 `json:"frame"`
	HasState   bool  `json:"has_state"`
}

// handleStatus returns hub and pipeline health
func (s *Server) handleStatus(c *fiber.Ctx) error {
	st := Status{
		HubRunning: s.hub.IsRunning(),
		Clients:    s.hub.ClientCount(),
		Replaced:   s.hub.Replaced(),
		Calibrated: s.ctrl.Transform() != nil,
	}
	s.mu.RLock()
	if s.latest != nil {
		st.HasState = true
		st.Frame = s.latest.Frame
	}
	s.mu.RUnlock()
	return c.JSON(st)
}

// handleState returns the latest pipeline update
func (s *Server) handleState(c *fiber.Ctx) error {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, errors.New("no frames processed yet"))
	}
	return c.JSON(latest)
}

// handleLevels returns the level layout
func (s *Server) handleLevels(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return c.JSON(s.levels)
}

// handleCalibration describes the transform currently in use
func (s *Server) handleCalibration(c *fiber.Ctx) error {
	t := s.ctrl.Transform()
	if t == nil {
		return c.JSON(CalibrationInfo{})
	}
	h := t.Homography()
	cfg := t.Config()
	info := CalibrationInfo{Calibrated: true, Homography: &h, HeightCorrection: &cfg}
	if pose, ok := t.Pose(); ok {
		info.Pose = &pose
	}
	return c.JSON(info)
}

// handleCameraPresets lists the capture presets
func (s *Server) handleCameraPresets(c *fiber.Ctx) error {
	return c.JSON(camera.Presets())
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	return s.command(c, s.ctrl.ResetLevel, "reset")
}

func (s *Server) handleNewGame(c *fiber.Ctx) error {
	return s.command(c, s.ctrl.NewGame, "new game")
}

func (s *Server) command(c *fiber.Ctx, fn func() error, name string) error {
	if err := fn(); err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, pipeline.ErrBusy) {
			status = fiber.StatusServiceUnavailable
		}
		return errorJSON(c, status, err)
	}
	s.logger.Info("command queued", "command", name)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"queued": name})
}

func (s *Server) handleRecentScores(c *fiber.Ctx) error {
	if s.scores == nil {
		return errorJSON(c, fiber.StatusNotFound, errors.New("scorebook disabled"))
	}
	games, err := s.scores.Recent(c.UserContext(), c.QueryInt("limit", defaultScoreLimit))
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(games)
}

func (s *Server) handleBestScores(c *fiber.Ctx) error {
	if s.scores == nil {
		return errorJSON(c, fiber.StatusNotFound, errors.New("scorebook disabled"))
	}
	games, err := s.scores.Best(c.UserContext(), c.QueryInt("limit", defaultScoreLimit))
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(games)
}

func (s *Server) handleGameScore(c *fiber.Ctx) error {
	if s.scores == nil {
		return errorJSON(c, fiber.StatusNotFound, errors.New("scorebook disabled"))
	}
	g, err := s.scores.Game(c.UserContext(), c.Params("session"))
	if errors.Is(err, scorebook.ErrNotFound) {
		return errorJSON(c, fiber.StatusNotFound, err)
	}
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(g)
}

// handleStateWS streams updates to a renderer
func (s *Server) handleStateWS(c *websocket.Conn) {
	hub.NewClient(s.hub, c).Run()
}
