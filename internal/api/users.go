package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/services/matrix"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type balancesResponse struct {
	UserID  uint64 `json:"userId"`
	Primary string `json:"primary"`
	Bonus   string `json:"bonus"`
	Pool    string `json:"pool"`
}

func newBalancesResponse(userID uint64, b domain.Balances) balancesResponse {
	return balancesResponse{
		UserID:  userID,
		Primary: domain.FormatMinor(b.Primary),
		Bonus:   domain.FormatMinor(b.Bonus),
		Pool:    domain.FormatMinor(b.Pool),
	}
}

type ensureUserRequest struct {
	UserID     uint64  `json:"userId"`
	ReferrerID *uint64 `json:"referrerId"`
}

type userResponse struct {
	UserID     uint64  `json:"userId"`
	ReferrerID *uint64 `json:"referrerId,omitempty"`
	Active     bool    `json:"active"`
}

// EnsureUserHandler handles POST /users
func (h *HandlerProvider) EnsureUserHandler(w http.ResponseWriter, r *http.Request) {
	var req ensureUserRequest

	err := decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}

	u, err := h.engine.EnsureUser(r.Context(), req.UserID, req.ReferrerID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{UserID: u.ID, ReferrerID: u.ReferrerID, Active: u.Active})
}

type placeRequest struct {
	Tier       string  `json:"tier"`
	ReferrerID *uint64 `json:"referrerId"`
}

type placeResponse struct {
	NodeID    int64  `json:"nodeId"`
	ParentID  *int64 `json:"parentId"`
	Reference string `json:"reference"`
}

// PlaceHandler handles POST /users/{userId}/nodes
func (h *HandlerProvider) PlaceHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	var req placeRequest

	err = decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tier, err := domain.ParseTier(req.Tier)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tier")
		return
	}

	p, err := h.engine.PlaceAndCharge(r.Context(), userID, tier, req.ReferrerID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, placeResponse{
		NodeID:    p.NodeID,
		ParentID:  p.ParentID,
		Reference: p.Reference.String(),
	})
}

// GetBalancesHandler handles GET /users/{userId}/balances
func (h *HandlerProvider) GetBalancesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	b, err := h.engine.GetBalances(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newBalancesResponse(userID, b))
}

type transactionResponse struct {
	ID          int64     `json:"id"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	Kind        string    `json:"kind"`
	Description string    `json:"description,omitempty"`
	Reference   string    `json:"reference,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HistoryHandler handles GET /users/{userId}/transactions?limit=N
func (h *HandlerProvider) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	limit, err := queryInt(r, "limit", defaultHistoryLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit = min(max(limit, 1), maxHistoryLimit)

	txs, err := h.engine.History(r.Context(), userID, limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		tr := transactionResponse{
			ID:          t.ID,
			Amount:      domain.FormatMinor(t.AmountMinor),
			Currency:    string(t.Currency),
			Kind:        string(t.Kind),
			Description: t.Description,
			CreatedAt:   t.CreatedAt,
		}
		if t.Reference != uuid.Nil {
			tr.Reference = t.Reference.String()
		}

		out = append(out, tr)
	}

	writeJSON(w, http.StatusOK, map[string]any{"userId": userID, "transactions": out})
}

type treeNodeResponse struct {
	NodeID   int64              `json:"nodeId"`
	OwnerID  uint64             `json:"ownerId"`
	Tier     string             `json:"tier"`
	Position *int               `json:"position,omitempty"`
	Level    int                `json:"level"`
	Pool     string             `json:"pool"`
	Closed   bool               `json:"closed"`
	Active   bool               `json:"active"`
	Children []treeNodeResponse `json:"children"`
}

func newTreeNodeResponse(t *matrix.TreeNode) treeNodeResponse {
	out := treeNodeResponse{
		NodeID:   t.ID,
		OwnerID:  t.OwnerID,
		Tier:     string(t.Tier),
		Level:    t.Level,
		Pool:     domain.FormatMinor(t.PoolMinor),
		Closed:   t.Closed,
		Active:   t.Active,
		Children: make([]treeNodeResponse, 0, len(t.Children)),
	}

	if !t.IsRoot() {
		pos := t.Position
		out.Position = &pos
	}

	for _, c := range t.Children {
		out.Children = append(out.Children, newTreeNodeResponse(c))
	}

	return out
}

// TreeHandler handles GET /users/{userId}/tree?depth=N
func (h *HandlerProvider) TreeHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	depth, err := queryInt(r, "depth", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	trees, err := h.engine.GetTree(r.Context(), userID, depth)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]treeNodeResponse, 0, len(trees))
	for _, t := range trees {
		out = append(out, newTreeNodeResponse(t))
	}

	writeJSON(w, http.StatusOK, map[string]any{"userId": userID, "nodes": out})
}

type withdrawRequest struct {
	Amount string `json:"amount"`
}

type withdrawResponse struct {
	Amount             string `json:"amount"`
	Payout             string `json:"payout"`
	CommissionRetained string `json:"commissionRetained"`
	Reference          string `json:"reference"`
}

// WithdrawHandler handles POST /users/{userId}/withdrawals
func (h *HandlerProvider) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	var req withdrawRequest

	err = decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := parseAmount(req.Amount, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	wd, err := h.engine.Withdraw(r.Context(), userID, amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, withdrawResponse{
		Amount:             domain.FormatMinor(wd.Amount),
		Payout:             domain.FormatMinor(wd.Payout),
		CommissionRetained: domain.FormatMinor(wd.CommissionRetained),
		Reference:          wd.Reference.String(),
	})
}
