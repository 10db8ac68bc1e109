package runtime

import (
	"net/http"
	"strings"
	"time"

	"github.com/drblury/actionflow/internal/runtime/config"
	"github.com/drblury/actionflow/internal/runtime/jsoncodec"
)

type runningExecution struct {
	ClassName string    `json:"class_name"`
	Action    string    `json:"action"`
	Did       string    `json:"did"`
	StartTime time.Time `json:"start_time"`
	ElapsedMs int64     `json:"elapsed_ms"`
}

type actionsResponse struct {
	Actions []*ActionInfo      `json:"actions"`
	Running []runningExecution `json:"running"`
}

func (s *Service) StartWebUIServer() {
	if s.Conf == nil || !s.Conf.WebUIEnabled {
		return
	}

	port := s.Conf.WebUIPort
	if port == 0 {
		port = config.DefaultWebUIPort
	}

	s.RegisterHTTPHandler(port, "/api/actions", http.HandlerFunc(s.handleGetActions))
}

func (s *Service) handleGetActions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.Conf != nil && len(s.Conf.WebUICORSAllowedOrigins) > 0 {
		if allowed := s.getAllowedCORSOrigin(r.Header.Get("Origin")); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
	}

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	now := time.Now()
	resp := actionsResponse{Running: []runningExecution{}}
	s.infosMu.RLock()
	resp.Actions = append([]*ActionInfo{}, s.infos...)
	s.infosMu.RUnlock()
	for _, exec := range s.active.Snapshot() {
		resp.Running = append(resp.Running, runningExecution{
			ClassName: exec.ClassName,
			Action:    exec.Action,
			Did:       exec.Did,
			StartTime: exec.StartTime,
			ElapsedMs: exec.Elapsed(now).Milliseconds(),
		})
	}

	if err := jsoncodec.Encode(w, resp); err != nil {
		s.Logger.Error("Failed to encode actions", err, nil)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// getAllowedCORSOrigin returns the Access-Control-Allow-Origin value for the
// request origin, or "" when the origin is not allowed.
func (s *Service) getAllowedCORSOrigin(requestOrigin string) string {
	if s.Conf == nil {
		return ""
	}
	for _, allowed := range s.Conf.WebUICORSAllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
