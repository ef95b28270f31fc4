package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/services/audit"
	"github.com/fastprodman/matrixledger/internal/services/matrix"
)

// Engine is the part of matrix.Service the HTTP surface calls.
type Engine interface {
	EnsureUser(ctx context.Context, userID uint64, referrerID *uint64) (domain.User, error)
	PlaceAndCharge(ctx context.Context, userID uint64, tier domain.Tier, referrerID *uint64) (matrix.Placement, error)
	GetBalances(ctx context.Context, userID uint64) (domain.Balances, error)
	History(ctx context.Context, userID uint64, limit int) ([]domain.Transaction, error)
	GetTree(ctx context.Context, userID uint64, depth int) ([]*matrix.TreeNode, error)
	Withdraw(ctx context.Context, userID uint64, amount int64) (matrix.Withdrawal, error)
	Adjust(ctx context.Context, userID uint64, c domain.Currency, amount int64, reason string) error
	DeactivateUser(ctx context.Context, userID uint64) error
	DeactivateNode(ctx context.Context, nodeID int64) error
	NodeHistory(ctx context.Context, nodeID int64) (domain.Node, []domain.LevelTransition, error)
}

type Auditor interface {
	AuditUser(ctx context.Context, userID uint64, correct bool) (audit.Report, error)
	AuditAll(ctx context.Context, correct bool) ([]audit.Report, error)
}

// HandlerProvider exposes the engine and the auditor as HTTP handlers.
type HandlerProvider struct {
	engine  Engine
	auditor Auditor
}

func NewHandler(engine Engine, auditor Auditor) *HandlerProvider {
	return &HandlerProvider{engine: engine, auditor: auditor}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		log.WithError(err).Error("failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps service errors onto status codes. Anything unknown
// is logged and hidden behind a 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, domain.ErrNodeNotFound):
		writeError(w, http.StatusNotFound, "node not found")
	case errors.Is(err, domain.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, "insufficient funds")
	case errors.Is(err, domain.ErrPlacementConflict):
		writeError(w, http.StatusConflict, "placement conflict, retry later")
	case errors.Is(err, domain.ErrUserInactive):
		writeError(w, http.StatusConflict, "user is inactive")
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidTier),
		errors.Is(err, domain.ErrInvalidCurrency):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.WithError(err).WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")

		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody reads a JSON body into dst, capped at 1MB, rejecting unknown
// fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}

		return errors.New("invalid JSON")
	}

	return nil
}

// parseUserIDFromPath reads `{userId}` from routes like
//
//	GET /users/{userId}/balances
func parseUserIDFromPath(r *http.Request) (uint64, error) {
	return parsePositiveID(chi.URLParam(r, "userId"))
}

func parseNodeIDFromPath(r *http.Request) (int64, error) {
	id, err := parsePositiveID(chi.URLParam(r, "nodeId"))
	if err != nil {
		return 0, err
	}
	if id > math.MaxInt64 {
		return 0, errors.New("invalid id: out of range")
	}

	return int64(id), nil
}

func parsePositiveID(raw string) (uint64, error) {
	if raw == "" {
		return 0, errors.New("missing id")
	}

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id: %w", err)
	}
	if id == 0 {
		return 0, errors.New("invalid id: must be positive")
	}

	return id, nil
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}

	return v, nil
}

func queryBool(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}

	return v, nil
}
