package planapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/metalagman/aletheia/internal/model"
)

// SynthesizeLogs builds the client-side log lines that summarize a plan call.
// They describe the call outcome only and carry no backend telemetry.
func SynthesizeLogs(plan model.Plan, method, path string, status int, at time.Time) []model.LogEntry {
	stamp := model.DisplayTime(at)
	relevance := "N/A"
	if plan.Metrics.Relevance != 0 {
		relevance = strconv.FormatFloat(plan.Metrics.Relevance, 'f', -1, 64)
	}
	return []model.LogEntry{
		{
			ID:        logID(),
			Timestamp: stamp,
			Level:     model.LevelInfo,
			Source:    "SYSTEM",
			Message:   fmt.Sprintf("%s %s %d %s", method, path, status, http.StatusText(status)),
		},
		{
			ID:        logID(),
			Timestamp: stamp,
			Level:     model.LevelTrace,
			Source:    "OPIK",
			Message:   fmt.Sprintf("Trace ID [%s] synchronized.", plan.TraceID),
		},
		{
			ID:        logID(),
			Timestamp: stamp,
			Level:     model.LevelDebug,
			Source:    "EVALUATOR",
			Message:   fmt.Sprintf("Scoring complete: Rel %s", relevance),
		},
	}
}

func logID() string {
	return uuid.NewString()[:8]
}
