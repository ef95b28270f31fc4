package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/services/audit"
)

type adjustRequest struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
	Reason   string `json:"reason"`
}

// AdjustHandler handles POST /admin/users/{userId}/adjustments. A negative
// amount debits the currency.
func (h *HandlerProvider) AdjustHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	var req adjustRequest

	err = decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid currency")
		return
	}

	amount, err := parseAmount(req.Amount, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		writeError(w, http.StatusBadRequest, "reason required")
		return
	}

	err = h.engine.Adjust(r.Context(), userID, c, amount, reason)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	b, err := h.engine.GetBalances(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newBalancesResponse(userID, b))
}

// DeactivateHandler handles DELETE /admin/users/{userId}
func (h *HandlerProvider) DeactivateHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	err = h.engine.DeactivateUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type findingResponse struct {
	Kind     string `json:"kind"`
	Currency string `json:"currency,omitempty"`
	NodeID   int64  `json:"nodeId,omitempty"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Diff     string `json:"diff"`
}

type reportResponse struct {
	UserID           uint64            `json:"userId"`
	TheoreticalBonus string            `json:"theoreticalBonus"`
	ActualBonus      string            `json:"actualBonus"`
	Clean            bool              `json:"clean"`
	Corrected        bool              `json:"corrected"`
	Findings         []findingResponse `json:"findings"`
}

func newReportResponse(r audit.Report) reportResponse {
	out := reportResponse{
		UserID:           r.UserID,
		TheoreticalBonus: domain.FormatMinor(r.TheoreticalBonus),
		ActualBonus:      domain.FormatMinor(r.ActualBonus),
		Clean:            r.Clean(),
		Corrected:        r.Corrected,
		Findings:         make([]findingResponse, 0, len(r.Findings)),
	}

	for _, f := range r.Findings {
		fr := findingResponse{
			Kind:     string(f.Kind),
			Currency: string(f.Currency),
			NodeID:   f.NodeID,
			Expected: domain.FormatMinor(f.Expected),
			Actual:   domain.FormatMinor(f.Actual),
			Diff:     domain.FormatMinor(f.Diff()),
		}

		// levels are counts, not money
		if f.Kind == audit.LevelDrift {
			fr.Expected = formatCount(f.Expected)
			fr.Actual = formatCount(f.Actual)
			fr.Diff = formatCount(f.Diff())
		}

		out.Findings = append(out.Findings, fr)
	}

	return out
}

// AuditUserHandler handles GET /admin/audit/{userId}?correct=bool
func (h *HandlerProvider) AuditUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	correct, err := queryBool(r, "correct")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := h.auditor.AuditUser(r.Context(), userID, correct)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newReportResponse(rep))
}

// AuditAllHandler handles GET /admin/audit?correct=bool. Only reports with
// findings are returned.
func (h *HandlerProvider) AuditAllHandler(w http.ResponseWriter, r *http.Request) {
	correct, err := queryBool(r, "correct")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reps, err := h.auditor.AuditAll(r.Context(), correct)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	dirty := make([]reportResponse, 0)
	for _, rep := range reps {
		if !rep.Clean() {
			dirty = append(dirty, newReportResponse(rep))
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"audited": len(reps), "reports": dirty})
}

func formatCount(v int64) string {
	return strconv.FormatInt(v, 10)
}
