package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/evrstamp/internal/pipeline"
	"github.com/danmuck/evrstamp/internal/protocol/trace"
	"github.com/danmuck/evrstamp/internal/regfile"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterWrite is the POST /registers/:slot body. ByteEnable defaults to
// all lanes.
type RegisterWrite struct {
	Data       uint64 `json:"data"`
	ByteEnable *uint8 `json:"byte_enable,omitempty"`
}

type TriggerRequest struct {
	Level bool `json:"level"`
}

type registerValue struct {
	Slot int    `json:"slot"`
	Data uint64 `json:"data"`
	Hex  string `json:"hex"`
}

func newRegisterValue(slot int, data uint64) registerValue {
	return registerValue{Slot: slot, Data: data, Hex: fmt.Sprintf("0x%016x", data)}
}

func (s *Server) RegisterRoutes() {
	r := s.router
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"uptime":   time.Since(s.Appeared).String(),
			"service":  s.ID,
			"version":  "0.1.0",
			"pipeline": s.pipe.Status(),
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/registers", func(c *gin.Context) {
		ctx, cancel := s.busContext(c)
		defer cancel()
		slots, err := s.pipe.Bus().ReadSlots(ctx)
		if err != nil {
			abortBus(c, err)
			return
		}
		raw := make([]registerValue, 0, len(slots))
		for i, v := range slots {
			raw = append(raw, newRegisterValue(i, v))
		}
		c.JSON(http.StatusOK, gin.H{
			"slots":   raw,
			"decoded": regfile.Decode(slots),
		})
	})

	r.GET("/registers/:slot", func(c *gin.Context) {
		slot, ok := slotParam(c)
		if !ok {
			return
		}
		ctx, cancel := s.busContext(c)
		defer cancel()
		v, err := s.pipe.Bus().Read(ctx, slot)
		if err != nil {
			abortBus(c, err)
			return
		}
		c.JSON(http.StatusOK, newRegisterValue(slot, v))
	})

	r.POST("/registers/:slot", func(c *gin.Context) {
		slot, ok := slotParam(c)
		if !ok {
			return
		}
		var body RegisterWrite
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		be := regfile.LaneAll
		if body.ByteEnable != nil {
			be = *body.ByteEnable
		}
		ctx, cancel := s.busContext(c)
		defer cancel()
		prev, err := s.pipe.Bus().Write(ctx, slot, body.Data, be)
		if err != nil {
			abortBus(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "previous": newRegisterValue(slot, prev)})
	})

	r.POST("/freeze/lock", func(c *gin.Context) {
		ctx, cancel := s.busContext(c)
		defer cancel()
		if err := s.pipe.Bus().Lock(ctx); err != nil {
			abortBus(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/freeze/unlock", func(c *gin.Context) {
		ctx, cancel := s.busContext(c)
		defer cancel()
		if err := s.pipe.Bus().Unlock(ctx); err != nil {
			abortBus(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/trigger", func(c *gin.Context) {
		var body TriggerRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.pipe.SetTrigger(body.Level)
		c.JSON(http.StatusOK, gin.H{"status": "ok", "trigger": body.Level})
	})

	r.GET("/snapshot", func(c *gin.Context) {
		ctx, cancel := s.busContext(c)
		defer cancel()
		slots, err := s.pipe.Bus().ReadSlots(ctx)
		if err != nil {
			abortBus(c, err)
			return
		}
		st := s.pipe.Status()
		var buf bytes.Buffer
		err = trace.WriteSnapshot(&buf, trace.SnapshotRecord{
			RunID:        s.pipe.RunID(),
			Name:         s.pipe.Name(),
			ConsumerTick: st.ConsumerTicks,
			Slots:        slots,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/octet-stream", buf.Bytes())
	})
}

func (s *Server) busContext(c *gin.Context) (context.Context, context.CancelFunc) {
	timeout := s.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}

func slotParam(c *gin.Context) (int, bool) {
	slot, err := strconv.Atoi(c.Param("slot"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slot must be an integer"})
		return 0, false
	}
	return slot, true
}

func abortBus(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, regfile.ErrUnknownSlot):
		status = http.StatusNotFound
	case errors.Is(err, regfile.ErrReadOnly):
		status = http.StatusMethodNotAllowed
	case errors.Is(err, pipeline.ErrBusClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}
