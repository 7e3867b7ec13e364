package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/netutil"
	"golang.org/x/time/rate"

	"patreonix/core"
	"patreonix/crypto"
	"patreonix/observability"
	"patreonix/observability/logging"
	"patreonix/services/indexer"
)

const (
	jsonRPCVersion      = "2.0"
	maxRequestBytes     = 1 << 20 // 1 MiB
	defaultReplayWindow = 15 * time.Minute
	requestIDHeader     = "X-Request-ID"
)

const (
	codeParseError       = -32700
	codeInvalidRequest   = -32600
	codeMethodNotFound   = -32601
	codeInvalidParams    = -32602
	codeUnauthorized     = -32001
	codeServerError      = -32000
	codeReplayed         = -32010
	codeSignatureExpired = -32011
	codeRateLimited      = -32020
	codeQuotaExceeded    = -32021
	codeIndexerDisabled  = -32030
)

// ContentSearcher answers title searches. The SQL indexer implements it.
type ContentSearcher interface {
	SearchContent(ctx context.Context, query string, limit int) ([]indexer.ContentHit, error)
}

// OperatorConfig verifies bearer tokens for operator-only methods.
type OperatorConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
}

// ServerConfig tunes the HTTP listener and request admission.
type ServerConfig struct {
	TrustedProxies    []string
	TrustProxyHeaders bool
	MaxConnections    int
	RequestsPerMinute int
	Burst             int
	ReplayWindow      time.Duration
	Operator          OperatorConfig
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	Logger            *slog.Logger
}

type Server struct {
	node   *core.Node
	search ContentSearcher
	cfg    ServerConfig
	logger *slog.Logger

	trustedProxies map[string]struct{}
	methods        map[string]method

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	replay   *replayCache
	operator *operatorAuth
	nowFn    func() time.Time
	spent    atomic.Uint64

	serverMu   sync.Mutex
	httpServer *http.Server
}

// NewServer builds the JSON-RPC front end for node. search may be nil when
// the indexer is disabled.
func NewServer(node *core.Node, search ContentSearcher, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	window := cfg.ReplayWindow
	if window <= 0 {
		window = defaultReplayWindow
	}
	trusted := make(map[string]struct{}, len(cfg.TrustedProxies))
	for _, proxy := range cfg.TrustedProxies {
		if trimmed := strings.TrimSpace(proxy); trimmed != "" {
			trusted[trimmed] = struct{}{}
		}
	}
	s := &Server{
		node:           node,
		search:         search,
		cfg:            cfg,
		logger:         logger.With(slog.String("component", "rpc")),
		trustedProxies: trusted,
		limiters:       make(map[string]*rate.Limiter),
		replay:         newReplayCache(window),
		operator:       newOperatorAuth(cfg.Operator),
		nowFn:          time.Now,
	}
	s.methods = s.registryMethods()
	return s
}

// Handler returns the HTTP routes served by the node.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withRequestID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/events", s.handleEventsWS)
	r.Post("/", s.handle)
	return otelhttp.NewHandler(r, "patreonix-rpc")
}

// Serve accepts connections on listener until Shutdown is called.
func (s *Server) Serve(listener net.Listener) error {
	if listener == nil {
		return fmt.Errorf("rpc: nil listener")
	}
	if s.cfg.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, s.cfg.MaxConnections)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	s.serverMu.Lock()
	s.httpServer = srv
	s.serverMu.Unlock()
	s.logger.Info("json-rpc server listening", slog.String("address", listener.Addr().String()))
	err := srv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Start listens on addr and serves until Shutdown.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.serverMu.Lock()
	srv := s.httpServer
	s.serverMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`

	status int
}

func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d %s: %v", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d %s", e.Code, e.Message)
}

func newRPCError(status, code int, message string, data interface{}) *RPCError {
	return &RPCError{Code: code, Message: message, Data: data, status: status}
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

type requestIDKey struct{}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	module := moduleOf(req.Method)
	source := s.clientSource(r)
	if !s.allowSource(source) {
		observability.ModuleMetrics().RecordThrottle(module, "rate_limit")
		observability.ModuleMetrics().Observe(module, req.Method, http.StatusTooManyRequests, time.Since(start))
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", source)
		return
	}

	result, rpcErr := s.dispatch(r, req)
	if rpcErr != nil {
		status := rpcErr.status
		if status == 0 {
			status = http.StatusBadRequest
		}
		observability.ModuleMetrics().Observe(module, req.Method, status, time.Since(start))
		s.logger.Debug("rpc request failed",
			slog.String("requestId", requestID(r.Context())),
			slog.String("method", req.Method),
			slog.Int("code", rpcErr.Code),
			slog.String("reason", rpcErr.Message))
		writeError(w, status, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	observability.ModuleMetrics().Observe(module, req.Method, http.StatusOK, time.Since(start))
	writeResult(w, req.ID, result)
}

func (s *Server) dispatch(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	m, ok := s.methods[req.Method]
	if !ok {
		return nil, newRPCError(http.StatusNotFound, codeMethodNotFound, "method not found", req.Method)
	}
	if s.node == nil {
		return nil, newRPCError(http.StatusServiceUnavailable, codeServerError, "node unavailable", nil)
	}
	if m.operator {
		if authErr := s.operator.authorize(r, s.nowFn()); authErr != nil {
			s.logger.Warn("operator authorization failed",
				slog.String("method", req.Method),
				slog.String("token", logging.MaskToken(bearerToken(r))),
				slog.String("reason", authErr.Message))
			return nil, authErr
		}
	}
	var signer crypto.Address
	if m.signed {
		addr, authErr := s.verifySigned(r.Context(), req, !m.readOnly)
		if authErr != nil {
			return nil, authErr
		}
		signer = addr
	}
	return m.fn(r.Context(), req, signer)
}

func moduleOf(method string) string {
	if prefix, _, ok := strings.Cut(method, "_"); ok {
		return prefix
	}
	return "unknown"
}

func (s *Server) allowSource(source string) bool {
	if s.cfg.RequestsPerMinute <= 0 {
		return true
	}
	if source == "" {
		source = "unknown"
	}
	s.mu.Lock()
	limiter, ok := s.limiters[source]
	if !ok {
		burst := s.cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(s.cfg.RequestsPerMinute)/60.0), burst)
		s.limiters[source] = limiter
	}
	s.mu.Unlock()
	return limiter.AllowN(s.nowFn(), 1)
}

func (s *Server) clientSource(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	_, trusted := s.trustedProxies[host]
	if !trusted && !s.cfg.TrustProxyHeaders {
		return host
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		candidate := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if candidate != "" {
			return candidate
		}
	}
	return host
}
