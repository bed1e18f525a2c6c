package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"

	"github.com/mezonai/lpfarm/clock"
	"github.com/mezonai/lpfarm/config"
	"github.com/mezonai/lpfarm/exception"
	"github.com/mezonai/lpfarm/logx"
	"github.com/mezonai/lpfarm/monitoring"
	"github.com/mezonai/lpfarm/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CallerHeader carries the base58 address a request acts as
const CallerHeader = "X-Caller"

// FarmAPI provides HTTP API endpoints for farm operations
type FarmAPI struct {
	svc     *service.FarmService
	router  *mux.Router
	limiter *rateLimiter
	cfg     config.APIConfig
	server  *http.Server
}

// NewFarmAPI creates a new farm API
func NewFarmAPI(svc *service.FarmService, cfg config.APIConfig) *FarmAPI {
	api := &FarmAPI{
		svc:    svc,
		router: mux.NewRouter(),
		cfg:    cfg,
	}
	if cfg.RateLimitPerMinute > 0 {
		api.limiter = newRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	}
	api.setupRoutes()
	return api
}

// setupRoutes configures API routes
func (api *FarmAPI) setupRoutes() {
	// Pool administration (owner only)
	api.router.HandleFunc("/pools", api.limited(api.addPool)).Methods("POST")
	api.router.HandleFunc("/pools/{id:[0-9]+}", api.limited(api.setPool)).Methods("PUT")
	api.router.HandleFunc("/vault/rate", api.limited(api.setRewardRate)).Methods("PUT")

	// Vault
	api.router.HandleFunc("/vault/fund", api.limited(api.fund)).Methods("POST")
	api.router.HandleFunc("/vault", api.getVault).Methods("GET")

	// Pool info endpoints
	api.router.HandleFunc("/pools", api.getPools).Methods("GET")
	api.router.HandleFunc("/pools/{id:[0-9]+}", api.getPool).Methods("GET")
	api.router.HandleFunc("/pools/{id:[0-9]+}/positions/{user}", api.getPosition).Methods("GET")
	api.router.HandleFunc("/pools/{id:[0-9]+}/pending/{user}", api.getPending).Methods("GET")

	// Staking endpoints
	api.router.HandleFunc("/pools/{id:[0-9]+}/deposit", api.limited(api.deposit)).Methods("POST")
	api.router.HandleFunc("/pools/{id:[0-9]+}/withdraw", api.limited(api.withdraw)).Methods("POST")
	api.router.HandleFunc("/pools/{id:[0-9]+}/harvest", api.limited(api.harvest)).Methods("POST")
	api.router.HandleFunc("/pools/{id:[0-9]+}/emergency-withdraw", api.limited(api.emergencyWithdraw)).Methods("POST")

	// Ledger, status and streaming
	api.router.HandleFunc("/assets/{asset}/balances/{addr}", api.getBalance).Methods("GET")
	api.router.HandleFunc("/status", api.getStatus).Methods("GET")
	api.router.HandleFunc("/events", api.streamEvents).Methods("GET")
	monitoring.RegisterMetrics(api.router)
}

// EnableClockControl exposes POST /clock/advance for a farm driven by a
// manual step counter. Only the farm owner may advance it.
func (api *FarmAPI) EnableClockControl(counter *clock.ManualCounter) {
	api.router.HandleFunc("/clock/advance", api.limited(func(w http.ResponseWriter, r *http.Request) {
		api.advanceClock(w, r, counter)
	})).Methods("POST")
}

// GetRouter returns the configured router
func (api *FarmAPI) GetRouter() *mux.Router {
	return api.router
}

// Start serves the API in the background
func (api *FarmAPI) Start() {
	api.server = &http.Server{
		Addr:         api.cfg.ListenAddr,
		Handler:      api.router,
		ReadTimeout:  time.Duration(api.cfg.ReadTimeoutMs) * time.Millisecond,
		WriteTimeout: time.Duration(api.cfg.WriteTimeoutMs) * time.Millisecond,
	}
	logx.Info("FARM_API", fmt.Sprintf("API listen on %s", api.cfg.ListenAddr))
	exception.SafeGo("farm-api", func() {
		if err := api.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Error("FARM_API", "API server stopped:", err)
		}
	})
}

// Shutdown stops accepting requests and waits for in-flight ones
func (api *FarmAPI) Shutdown(ctx context.Context) error {
	if api.server == nil {
		return nil
	}
	return api.server.Shutdown(ctx)
}

// limited rejects mutating requests from callers over their rate limit
func (api *FarmAPI) limited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if api.limiter != nil && !api.limiter.Allow(r.Header.Get(CallerHeader)) {
			logx.Warn("FARM_API", fmt.Sprintf("Rate limited caller=%s path=%s", r.Header.Get(CallerHeader), r.URL.Path))
			writeErrorStatus(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next(w, r)
	}
}

func (api *FarmAPI) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logx.Error("FARM_API", "Failed to encode JSON response:", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
