package rpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"patreonix/core/state"
	"patreonix/crypto"
)

const noncePruneInterval = 256

// signedFields is embedded in every signed payload.
type signedFields struct {
	Signer string `json:"signer"`
	// Nonce is spent durably on first use; a signer never reuses one.
	Nonce string `json:"nonce"`
	// IssuedAt is the unix second the payload was signed. Payloads outside
	// the replay window around the server clock are refused.
	IssuedAt int64 `json:"issuedAt"`
}

// SigningMessage is the byte string an identity signs for a method call:
// the method name, a newline, then the exact JSON of the first parameter.
func SigningMessage(method string, payload []byte) []byte {
	msg := make([]byte, 0, len(method)+1+len(payload))
	msg = append(msg, method...)
	msg = append(msg, '\n')
	return append(msg, payload...)
}

// verifySigned checks that params are [payload, signature], that the
// signature was produced by payload.signer, that the payload was issued
// inside the replay window and that it has not been seen before. When spend
// is set the payload nonce is consumed in node state so the request cannot be
// replayed after a restart.
func (s *Server) verifySigned(ctx context.Context, req *RPCRequest, spend bool) (crypto.Address, *RPCError) {
	if len(req.Params) != 2 {
		return crypto.Address{}, newRPCError(http.StatusBadRequest, codeInvalidParams, "signed methods take [payload, signature]", nil)
	}
	var fields signedFields
	if err := json.Unmarshal(req.Params[0], &fields); err != nil {
		return crypto.Address{}, newRPCError(http.StatusBadRequest, codeInvalidParams, "invalid payload", err.Error())
	}
	signer, err := crypto.DecodeAddress(strings.TrimSpace(fields.Signer))
	if err != nil {
		return crypto.Address{}, newRPCError(http.StatusBadRequest, codeInvalidParams, "invalid signer", err.Error())
	}
	var sigHex string
	if err := json.Unmarshal(req.Params[1], &sigHex); err != nil {
		return crypto.Address{}, newRPCError(http.StatusBadRequest, codeInvalidParams, "signature must be a hex string", nil)
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(sigHex), "0x"))
	if err != nil {
		return crypto.Address{}, newRPCError(http.StatusBadRequest, codeInvalidParams, "signature must be a hex string", err.Error())
	}
	if err := crypto.Verify(signer, SigningMessage(req.Method, req.Params[0]), sig); err != nil {
		return crypto.Address{}, newRPCError(http.StatusUnauthorized, codeUnauthorized, "signature verification failed", nil)
	}
	if fields.Nonce == "" || len(fields.Nonce) > state.MaxNonceLength {
		return crypto.Address{}, newRPCError(http.StatusBadRequest, codeInvalidParams, "payload nonce must be 1-128 bytes", nil)
	}
	now := s.nowFn()
	if fields.IssuedAt <= 0 {
		return crypto.Address{}, newRPCError(http.StatusBadRequest, codeInvalidParams, "payload issuedAt required", nil)
	}
	issued := time.Unix(fields.IssuedAt, 0)
	if skew := now.Sub(issued); skew > s.replay.window || skew < -s.replay.window {
		return crypto.Address{}, newRPCError(http.StatusUnauthorized, codeSignatureExpired, "signed payload outside the accepted window", map[string]int64{
			"issuedAt": fields.IssuedAt,
			"now":      now.Unix(),
		})
	}
	if !s.replay.remember(hex.EncodeToString(sig), now) {
		return crypto.Address{}, newRPCError(http.StatusConflict, codeReplayed, "request has already been submitted", nil)
	}
	if spend {
		if err := s.node.ConsumeNonce(ctx, signer, fields.Nonce, fields.IssuedAt); err != nil {
			return crypto.Address{}, registryError(err)
		}
		s.maybePruneNonces(now)
	}
	return signer, nil
}

// maybePruneNonces drops spent nonces that can no longer pass the issuedAt
// check. It runs on every noncePruneInterval-th consumed nonce.
func (s *Server) maybePruneNonces(now time.Time) {
	if s.spent.Add(1)%noncePruneInterval != 0 {
		return
	}
	cutoff := now.Add(-s.replay.window).Unix()
	if _, err := s.node.PruneNonces(cutoff); err != nil {
		s.logger.Warn("nonce pruning failed", slog.Any("error", err))
	}
}

type replayCache struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
}

func newReplayCache(window time.Duration) *replayCache {
	return &replayCache{window: window, seen: make(map[string]time.Time)}
}

// remember records key and reports whether it was new.
func (c *replayCache) remember(key string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, seenAt := range c.seen {
		if now.Sub(seenAt) > c.window {
			delete(c.seen, k)
		}
	}
	if _, exists := c.seen[key]; exists {
		return false
	}
	c.seen[key] = now
	return true
}

type operatorAuth struct {
	secret   []byte
	issuer   string
	audience string
}

func newOperatorAuth(cfg OperatorConfig) *operatorAuth {
	return &operatorAuth{
		secret:   append([]byte(nil), cfg.Secret...),
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: strings.TrimSpace(cfg.Audience),
	}
}

func (a *operatorAuth) authorize(r *http.Request, now time.Time) *RPCError {
	if len(a.secret) == 0 {
		return newRPCError(http.StatusUnauthorized, codeUnauthorized, "operator authentication not configured", nil)
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return newRPCError(http.StatusUnauthorized, codeUnauthorized, "missing Authorization header", nil)
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return newRPCError(http.StatusUnauthorized, codeUnauthorized, "Authorization header must use Bearer scheme", nil)
	}
	raw := bearerToken(r)
	if raw == "" {
		return newRPCError(http.StatusUnauthorized, codeUnauthorized, "missing bearer token", nil)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(time.Minute),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		data := "token invalid"
		if err != nil && errors.Is(err, jwt.ErrTokenExpired) {
			data = "token expired"
		}
		return newRPCError(http.StatusUnauthorized, codeUnauthorized, "invalid operator credentials", data)
	}
	return nil
}

// NewOperatorToken issues an HS256 operator token valid for ttl.
func NewOperatorToken(secret []byte, issuer, audience string, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "operator",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func bearerToken(r *http.Request) string {
	return strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
}
