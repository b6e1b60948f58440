package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/quantfell/rotator/internal/contracts"
	"github.com/quantfell/rotator/internal/killswitch"
	"github.com/quantfell/rotator/internal/scheduler"
	"github.com/quantfell/rotator/pkg/logger"
)

// NewRouter configures the HTTP routes.
func NewRouter(sched *scheduler.Scheduler, ks *killswitch.Switch, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health stays a bare liveness probe: plain text, no JSON.
	r.HandleFunc("/health", healthHandler).Methods("GET")
	r.HandleFunc("/status", statusHandler(sched)).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/jobs/{name}/run", triggerJobHandler(sched, log)).Methods("POST")
	api.HandleFunc("/killswitch", killSwitchStatusHandler(ks)).Methods("GET")
	api.HandleFunc("/killswitch/activate", killSwitchActivateHandler(ks, log)).Methods("POST")
	api.HandleFunc("/killswitch/deactivate", killSwitchDeactivateHandler(ks, log)).Methods("POST")

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("OK"))
}

func statusHandler(sched *scheduler.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, sched.Status())
	}
}

func triggerJobHandler(sched *scheduler.Scheduler, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]

		run, err := sched.TriggerNow(r.Context(), name)
		switch {
		case errors.Is(err, contracts.ErrJobNotFound):
			writeError(w, http.StatusNotFound, err.Error())
			return
		case errors.Is(err, contracts.ErrJobRunning):
			writeError(w, http.StatusConflict, err.Error())
			return
		case err != nil:
			log.WithError(err).Error("manual trigger failed")
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, run)
	}
}

func killSwitchStatusHandler(ks *killswitch.Switch) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := ks.State()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func killSwitchActivateHandler(ks *killswitch.Switch, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reason == "" {
			writeError(w, http.StatusBadRequest, "reason is required")
			return
		}

		state, err := ks.Activate(req.Reason)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		log.WithField("reason", req.Reason).Warn("kill switch activated via API")
		writeJSON(w, http.StatusOK, state)
	}
}

func killSwitchDeactivateHandler(ks *killswitch.Switch, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Deactivation re-arms live trading, so it demands an explicit
		// confirmation in the request body.
		var req struct {
			Confirm bool `json:"confirm"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Confirm {
			writeError(w, http.StatusBadRequest, "confirm must be true to deactivate")
			return
		}

		changed, err := ks.Deactivate()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		log.Warn("kill switch deactivated via API")
		writeJSON(w, http.StatusOK, map[string]bool{"deactivated": changed})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics.
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("panic recovered")

					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
