package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

const maxLogEntries = 100

// overlay messages end up in the shell log and may be rendered elsewhere
var logPolicy = bluemonday.StrictPolicy()

// LogEntry is one log line from a UI overlay
type LogEntry struct {
	Level   string         `json:"level"`
	Message string         `json:"message" binding:"required"`
	Context map[string]any `json:"context"`
}

// LogBatch is a batch of overlay log lines
type LogBatch struct {
	Source  string     `json:"source" binding:"required"`
	Entries []LogEntry `json:"entries" binding:"required,min=1"`
}

// StreamLogs writes overlay log lines into the shell log under the
// overlay's name
func (h *Handlers) StreamLogs(c *gin.Context) {
	var req LogBatch
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid log batch"})
		return
	}
	if len(req.Entries) > maxLogEntries {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": "too many entries"})
		return
	}

	logger := h.logger.Named("overlay").With(zap.String("source", logPolicy.Sanitize(req.Source)))
	for _, entry := range req.Entries {
		logEntry(logger, entry)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "entries": len(req.Entries)})
}

func logEntry(logger *zap.Logger, entry LogEntry) {
	fields := make([]zap.Field, 0, len(entry.Context))
	for key, value := range entry.Context {
		switch v := value.(type) {
		case string:
			fields = append(fields, zap.String(key, logPolicy.Sanitize(v)))
		case float64:
			fields = append(fields, zap.Float64(key, v))
		case bool:
			fields = append(fields, zap.Bool(key, v))
		default:
			fields = append(fields, zap.Any(key, v))
		}
	}

	msg := logPolicy.Sanitize(entry.Message)
	switch entry.Level {
	case "error":
		logger.Error(msg, fields...)
	case "warn":
		logger.Warn(msg, fields...)
	case "debug", "verbose":
		logger.Debug(msg, fields...)
	default:
		logger.Info(msg, fields...)
	}
}
