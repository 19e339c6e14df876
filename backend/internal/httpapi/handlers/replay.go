package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"replayServer/backend/internal/replay"
	"replayServer/backend/internal/stream"
	"replayServer/backend/internal/ws"
)

const openingPrint = "Error we're trying to fix:"

type ReplayHandler struct {
	session  *replay.Session
	producer ws.Producer
	runner   Runner
}

// producer / runner 可为 nil，对应接口返回 503
func NewReplayHandler(s *replay.Session, producer ws.Producer, runner Runner) *ReplayHandler {
	return &ReplayHandler{session: s, producer: producer, runner: runner}
}

func abortJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": code, "message": message})
}

func (h *ReplayHandler) Healthz() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok", "sessionId": h.session.ID})
	}
}

func (h *ReplayHandler) State() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, h.session.State())
	}
}

func (h *ReplayHandler) Pause() gin.HandlerFunc {
	return func(c *gin.Context) {
		changed := h.session.Pause()
		c.JSON(http.StatusOK, gin.H{"changed": changed, "state": h.session.State()})
	}
}

func (h *ReplayHandler) Resume() gin.HandlerFunc {
	return func(c *gin.Context) {
		changed := h.session.Resume()
		c.JSON(http.StatusOK, gin.H{"changed": changed, "state": h.session.State()})
	}
}

type runReq struct {
	Traceback string `json:"traceback" binding:"required"`
}

// Run 记录开场的两条 print，再把 traceback 转发给 producer
func (h *ReplayHandler) Run() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req runReq
		if err := c.ShouldBindJSON(&req); err != nil {
			abortJSON(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
			return
		}
		if h.runner == nil {
			abortJSON(c, http.StatusServiceUnavailable, "PRODUCER_NOT_CONFIGURED", "no producer run url configured")
			return
		}

		h.session.Print(replay.Print{Text: openingPrint, Step: 0})
		h.session.Print(replay.Print{Text: req.Traceback, Format: replay.FormatError, Step: 0})

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()
		if err := h.runner.Run(ctx, req.Traceback); err != nil {
			log.Printf("forward run failed (session=%s): %v", h.session.ID, err)
			abortJSON(c, http.StatusBadGateway, "PRODUCER_UPSTREAM_ERROR", err.Error())
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"sessionId": h.session.ID})
	}
}

// Ops 接收 producer 格式的记录（HTTP 推送，和 websocket 推流等价）
func (h *ReplayHandler) Ops() gin.HandlerFunc {
	return func(c *gin.Context) {
		var msgs []ws.StreamMessage
		if err := c.ShouldBindJSON(&msgs); err != nil {
			abortJSON(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
			return
		}

		// 先整体校验，避免半批入队
		ops := make([]replay.Operation, 0, len(msgs))
		var prints []replay.Print
		for i, m := range msgs {
			if m.Type == ws.StreamPrint {
				prints = append(prints, m.ToPrint())
				continue
			}
			op, err := m.ToOperation()
			if err != nil {
				abortJSON(c, http.StatusBadRequest, "BAD_RECORD", "record "+strconv.Itoa(i)+": "+err.Error())
				return
			}
			ops = append(ops, op)
		}

		for _, p := range prints {
			h.session.Print(p)
		}
		h.session.Enqueue(ops...)
		c.JSON(http.StatusAccepted, gin.H{"queued": len(ops), "prints": len(prints)})
	}
}

type contextReq struct {
	Step              int    `json:"step"`
	AdditionalContext string `json:"additionalContext"`
}

func (h *ReplayHandler) Context() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req contextReq
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			abortJSON(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
			return
		}
		if req.AdditionalContext == "" {
			abortJSON(c, http.StatusBadRequest, "BAD_REQUEST", "missing additionalContext")
			return
		}
		if h.producer == nil {
			abortJSON(c, http.StatusServiceUnavailable, "PRODUCER_NOT_CONFIGURED", "no producer stream configured")
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.producer.SendContext(ctx, req.Step, req.AdditionalContext); err != nil {
			if errors.Is(err, stream.ErrNotConnected) {
				abortJSON(c, http.StatusServiceUnavailable, err.Error(), "producer is not connected")
				return
			}
			abortJSON(c, http.StatusBadGateway, "PRODUCER_UPSTREAM_ERROR", err.Error())
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"step": req.Step})
	}
}

func (h *ReplayHandler) Buffer() gin.HandlerFunc {
	return func(c *gin.Context) {
		ed := h.session.Buffer.Editor()
		c.JSON(http.StatusOK, gin.H{
			"text":      h.session.Buffer.FullText(),
			"lineCount": h.session.Buffer.LineCount(),
			"cursor":    ed.Cursor(),
		})
	}
}

func (h *ReplayHandler) Steps() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"steps": h.session.History.All()})
	}
}

func (h *ReplayHandler) StepDiff() gin.HandlerFunc {
	return func(c *gin.Context) {
		step, err := strconv.Atoi(c.Param("step"))
		if err != nil {
			abortJSON(c, http.StatusBadRequest, "BAD_REQUEST", "step must be an integer")
			return
		}
		d, err := h.session.History.DiffFor(step)
		if err != nil {
			if errors.Is(err, replay.ErrStepNotRecorded) {
				abortJSON(c, http.StatusNotFound, replay.ErrStepNotRecorded.Error(), err.Error())
				return
			}
			abortJSON(c, http.StatusInternalServerError, "INTERNAL", err.Error())
			return
		}
		unified, err := h.session.History.UnifiedDiff(step)
		if err != nil {
			abortJSON(c, http.StatusInternalServerError, "INTERNAL", err.Error())
			return
		}
		c.JSON(http.StatusOK, ws.DiffPayload{Diff: d, Unified: unified})
	}
}

// Prints 按 step 分组，只返回不超过当前 step+1 的部分
func (h *ReplayHandler) Prints() gin.HandlerFunc {
	return func(c *gin.Context) {
		current := h.session.Controller.CurrentStep()
		c.JSON(http.StatusOK, gin.H{
			"currentStep": current,
			"steps":       h.session.Prints.Steps(current),
		})
	}
}

// Register 挂载 /replay 下的全部 HTTP 路由；websocket 路由由调用方挂
func (h *ReplayHandler) Register(r *gin.RouterGroup) {
	r.GET("/state", h.State())
	r.POST("/pause", h.Pause())
	r.POST("/resume", h.Resume())
	r.POST("/run", h.Run())
	r.POST("/ops", h.Ops())
	r.POST("/context", h.Context())
	r.GET("/buffer", h.Buffer())
	r.GET("/steps", h.Steps())
	r.GET("/steps/:step/diff", h.StepDiff())
	r.GET("/prints", h.Prints())
}
