package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/chinedu-ifeanyi/stable-btc/internal/cdp"
	"github.com/chinedu-ifeanyi/stable-btc/internal/ingestion"
	"github.com/chinedu-ifeanyi/stable-btc/internal/observability"
	"github.com/chinedu-ifeanyi/stable-btc/internal/persistence"
	"github.com/chinedu-ifeanyi/stable-btc/internal/projection"
	"github.com/chinedu-ifeanyi/stable-btc/internal/query"
)

// Server hosts the API surface: a gRPC listener for health checks and
// reflection, and an HTTP/JSON listener on a gateway mux carrying the query
// and admin routes.
type Server struct {
	grpcServer    *grpc.Server
	httpServer    *http.Server
	grpcAddr      string
	httpAddr      string
	deps          *Deps
	healthChecker *observability.HealthChecker
}

// Deps holds everything the API handlers need.
type Deps struct {
	DB            *sql.DB
	Query         *query.Service
	Ingest        *ingestion.GRPCIngestService
	SnapshotMgr   *persistence.SnapshotManager
	HealthChecker *observability.HealthChecker
	Metrics       *observability.Metrics
	StartTime     time.Time
}

func New(grpcAddr, httpAddr string, deps *Deps) *Server {
	grpcServer := grpc.NewServer()

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// Reflection for grpcurl / grpcui
	reflection.Register(grpcServer)

	return &Server{
		grpcServer:    grpcServer,
		grpcAddr:      grpcAddr,
		httpAddr:      httpAddr,
		deps:          deps,
		healthChecker: deps.HealthChecker,
	}
}

// StartGRPC serves the gRPC listener. Blocks until ctx is cancelled.
func (s *Server) StartGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		log.Println("INFO: gRPC server shutting down...")
		s.grpcServer.GracefulStop()
	}()

	log.Printf("INFO: gRPC server listening on %s", s.grpcAddr)
	return s.grpcServer.Serve(lis)
}

// StartHTTP serves the HTTP/JSON API. Blocks until ctx is cancelled.
func (s *Server) StartHTTP(ctx context.Context) error {
	mux := runtime.NewServeMux()
	if err := s.registerRoutes(mux); err != nil {
		return fmt.Errorf("register routes: %w", err)
	}

	httpMux := http.NewServeMux()
	if s.healthChecker != nil {
		httpMux.HandleFunc("/healthz", s.healthChecker.LivenessHandler)
		httpMux.HandleFunc("/readyz", s.healthChecker.ReadinessHandler)
	}
	httpMux.Handle("/", mux)

	s.httpServer = &http.Server{
		Addr:    s.httpAddr,
		Handler: httpMux,
	}

	go func() {
		<-ctx.Done()
		log.Println("INFO: HTTP server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("INFO: HTTP server listening on %s", s.httpAddr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) registerRoutes(mux *runtime.ServeMux) error {
	routes := []struct {
		method  string
		path    string
		name    string
		handler runtime.HandlerFunc
	}{
		{"GET", "/v1/positions/{account}", "get_position", s.handleGetPosition},
		{"GET", "/v1/positions/{account}/journal", "journal_history", s.handleJournalHistory},
		{"GET", "/v1/wallets/{account}", "get_wallet", s.handleGetWallet},
		{"GET", "/v1/protocol/stats", "protocol_stats", s.handleProtocolStats},
		{"GET", "/v1/liquidations", "liquidation_history", s.handleLiquidationHistory},
		{"POST", "/v1/liquidations", "liquidate", s.handleLiquidate},
		{"POST", "/v1/admin/price", "admin_price", s.handleSubmitPrice},
		{"POST", "/v1/admin/pause", "admin_pause", s.handleSetPause},
		{"POST", "/v1/admin/owner", "admin_owner", s.handleTransferOwner},
		{"POST", "/v1/admin/rebuild-projections", "admin_rebuild", s.handleRebuildProjections},
		{"GET", "/v1/admin/integrity", "admin_integrity", s.handleVerifyIntegrity},
		{"GET", "/v1/admin/eventlog", "admin_eventlog", s.handleEventLogInfo},
	}

	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.path, s.instrument(r.name, r.handler)); err != nil {
			return fmt.Errorf("route %s %s: %w", r.method, r.path, err)
		}
	}
	return nil
}

// instrument wraps a handler with request metrics.
func (s *Server) instrument(endpoint string, h runtime.HandlerFunc) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		h(sw, r, pathParams)

		if s.deps.Metrics != nil {
			s.deps.Metrics.QueryRequests.WithLabelValues(endpoint, strconv.Itoa(sw.status)).Inc()
			s.deps.Metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
			if sw.status >= http.StatusBadRequest {
				s.deps.Metrics.QueryErrors.WithLabelValues(endpoint, strconv.Itoa(sw.status)).Inc()
			}
		}
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

// --- Query handlers ---

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	account, ok := parseAccountParam(w, pathParams)
	if !ok {
		return
	}

	resp, err := s.deps.Query.GetPosition(r.Context(), account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJournalHistory(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	account, ok := parseAccountParam(w, pathParams)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 100, 500)
	var after *int64
	if v := r.URL.Query().Get("after"); v != "" {
		seq, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeErrorStatus(w, http.StatusBadRequest, "invalid after cursor")
			return
		}
		after = &seq
	}

	entries, err := s.deps.Query.GetJournalHistory(r.Context(), account, limit, after)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"journals": entries})
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	account, ok := parseAccountParam(w, pathParams)
	if !ok {
		return
	}

	resp, err := s.deps.Query.GetWallet(r.Context(), account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProtocolStats(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	resp, err := s.deps.Query.GetProtocolStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLiquidationHistory(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	target := uuid.Nil
	if v := r.URL.Query().Get("target"); v != "" {
		parsed, err := uuid.Parse(v)
		if err != nil {
			writeErrorStatus(w, http.StatusBadRequest, "invalid target")
			return
		}
		target = parsed
	}
	limit := queryInt(r, "limit", 50, 200)

	entries, err := s.deps.Query.GetLiquidationHistory(r.Context(), target, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"liquidations": entries})
}

// --- Command injection handlers ---
// These feed the same command channel as NATS ingestion; acceptance here
// means queued, not applied. Rejections surface via metrics and logs.

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req struct {
		CallerID string `json:"caller_id"`
		TargetID string `json:"target_id"`
		Sequence int64  `json:"sequence"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	callerID, err := uuid.Parse(req.CallerID)
	if err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid caller_id")
		return
	}
	targetID, err := uuid.Parse(req.TargetID)
	if err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid target_id")
		return
	}

	if err := s.deps.Ingest.InjectLiquidate(r.Context(), callerID, targetID, req.Sequence); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (s *Server) handleSubmitPrice(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req struct {
		CallerID      string `json:"caller_id"`
		Price         int64  `json:"price"`
		PriceSequence int64  `json:"price_sequence"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	callerID, err := uuid.Parse(req.CallerID)
	if err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid caller_id")
		return
	}

	if err := s.deps.Ingest.InjectPrice(r.Context(), callerID, req.Price, req.PriceSequence); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (s *Server) handleSetPause(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req struct {
		CallerID string `json:"caller_id"`
		Paused   bool   `json:"paused"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	callerID, err := uuid.Parse(req.CallerID)
	if err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid caller_id")
		return
	}

	if err := s.deps.Ingest.InjectPause(r.Context(), callerID, req.Paused); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (s *Server) handleTransferOwner(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req struct {
		CallerID   string `json:"caller_id"`
		NewOwnerID string `json:"new_owner_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	callerID, err := uuid.Parse(req.CallerID)
	if err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid caller_id")
		return
	}
	newOwnerID, err := uuid.Parse(req.NewOwnerID)
	if err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid new_owner_id")
		return
	}

	if err := s.deps.Ingest.InjectOwnershipTransfer(r.Context(), callerID, newOwnerID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

// --- Admin handlers ---

func (s *Server) handleRebuildProjections(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if err := projection.RebuildProjections(r.Context(), s.deps.DB); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"rebuilt": true})
}

func (s *Server) handleVerifyIntegrity(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	report, err := s.deps.Query.VerifyIntegrity(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleEventLogInfo(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	latestSeq, err := s.deps.SnapshotMgr.GetLatestSequence(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	watermark, err := s.deps.Query.GetWatermark(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"last_sequence":        latestSeq,
		"projection_watermark": watermark,
		"uptime_seconds":       int64(time.Since(s.deps.StartTime).Seconds()),
	})
}

// --- helpers ---

func parseAccountParam(w http.ResponseWriter, pathParams map[string]string) (uuid.UUID, bool) {
	raw, ok := pathParams["account"]
	if !ok || raw == "" {
		writeErrorStatus(w, http.StatusBadRequest, "account is required")
		return uuid.Nil, false
	}
	account, err := uuid.Parse(raw)
	if err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid account")
		return uuid.Nil, false
	}
	return account, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func queryInt(r *http.Request, name string, def, max int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > max {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := cdp.CodeOf(err)

	switch code {
	case cdp.CodePositionNotFound, cdp.CodeNoPriceData:
		status = http.StatusNotFound
	case cdp.CodeInvalidAmount, cdp.CodeMinimumLoanRequired:
		status = http.StatusBadRequest
	case cdp.CodeUnauthorized:
		status = http.StatusForbidden
	case cdp.CodeProtocolPaused, cdp.CodePriceStale, cdp.CodePositionSafe,
		cdp.CodeInsufficientCollateral, cdp.CodeUndercollateralized, cdp.CodeInsufficientDebt:
		status = http.StatusConflict
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]interface{}{
		"error": err.Error(),
		"code":  code.String(),
	})
}

func writeErrorStatus(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"error": msg})
}
