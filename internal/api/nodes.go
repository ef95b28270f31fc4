package api

import (
	"net/http"
	"time"

	"github.com/fastprodman/matrixledger/internal/domain"
)

type transitionResponse struct {
	FromLevel    int     `json:"fromLevel"`
	ToLevel      int     `json:"toLevel"`
	PoolConsumed string  `json:"poolConsumed"`
	BonusPaid    string  `json:"bonusPaid"`
	BonusUserID  *uint64 `json:"bonusUserId,omitempty"`
	Payout       string  `json:"payout"`
	CreatedAt    time.Time `json:"createdAt"`
}

type nodeHistoryResponse struct {
	NodeID      int64                `json:"nodeId"`
	OwnerID     uint64               `json:"ownerId"`
	Tier        string               `json:"tier"`
	Level       int                  `json:"level"`
	Pool        string               `json:"pool"`
	Closed      bool                 `json:"closed"`
	Active      bool                 `json:"active"`
	Transitions []transitionResponse `json:"transitions"`
}

// NodeHistoryHandler handles GET /nodes/{nodeId}/transitions
func (h *HandlerProvider) NodeHistoryHandler(w http.ResponseWriter, r *http.Request) {
	nodeID, err := parseNodeIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid nodeId in path")
		return
	}

	n, steps, err := h.engine.NodeHistory(r.Context(), nodeID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := nodeHistoryResponse{
		NodeID:      n.ID,
		OwnerID:     n.OwnerID,
		Tier:        string(n.Tier),
		Level:       n.Level,
		Pool:        domain.FormatMinor(n.PoolMinor),
		Closed:      n.Closed,
		Active:      n.Active,
		Transitions: make([]transitionResponse, 0, len(steps)),
	}

	for _, lt := range steps {
		out.Transitions = append(out.Transitions, transitionResponse{
			FromLevel:    lt.FromLevel,
			ToLevel:      lt.ToLevel,
			PoolConsumed: domain.FormatMinor(lt.PoolConsumed),
			BonusPaid:    domain.FormatMinor(lt.BonusPaid),
			BonusUserID:  lt.BonusUserID,
			Payout:       domain.FormatMinor(lt.Payout),
			CreatedAt:    lt.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, out)
}

// DeactivateNodeHandler handles DELETE /admin/nodes/{nodeId}
func (h *HandlerProvider) DeactivateNodeHandler(w http.ResponseWriter, r *http.Request) {
	nodeID, err := parseNodeIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid nodeId in path")
		return
	}

	err = h.engine.DeactivateNode(r.Context(), nodeID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
