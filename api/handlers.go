/*
handlers.go - HTTP API handlers for the leave ledger engine

PURPOSE:
  Exposes the leave engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Members:
    GET    /api/members                    List members
    POST   /api/members                    Register member
    GET    /api/members/{id}               Get member details
    GET    /api/members/{id}/balance       Balance summary + grant breakdown
    GET    /api/members/{id}/transactions  Transaction history

  Usage:
    POST   /api/usages                     Record approved usage (FIFO debit)
    POST   /api/usages/{requestID}/cancel  Reverse a recorded usage

  Policies:
    GET    /api/policies/active            Get the active policy
    POST   /api/policies                   Create/activate a policy version

  Admin:
    POST   /api/admin/daily-update         Run the grant/expiry job now
    POST   /api/admin/grants               Manual grant
    POST   /api/admin/grants/{id}/cancel   Void a grant's remainder
    POST   /api/admin/adjustments          Manual balance adjustment

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Member or policy not found
  - 409: Insufficient balance, ambiguous reversal, duplicate writes
  - 500: Internal errors

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.
  Deploy behind the org gateway which handles authn/authz.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sable/leave-engine/leave"
	"github.com/sable/leave-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Service *leave.Service
}

// NewHandler creates a handler over the SQLite store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:   store,
		Service: leave.NewService(store, store),
	}
}

// =============================================================================
// MEMBER ENDPOINTS
// =============================================================================

// ListMembers returns all active members.
// GET /api/members
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.Store.ActiveMembers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list members", err)
		return
	}

	dtos := make([]MemberDTO, 0, len(members))
	for _, m := range members {
		dtos = append(dtos, toMemberDTO(m))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateMember registers a new member.
// POST /api/members
func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}
	joinDate, err := time.Parse(dateLayout, req.JoinDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "join_date must be YYYY-MM-DD", err)
		return
	}

	m := leave.Member{
		ID:       req.ID,
		Name:     req.Name,
		Email:    req.Email,
		JoinDate: joinDate,
		Active:   true,
	}
	if err := h.Store.SaveMember(r.Context(), m); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save member", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMemberDTO(m))
}

// GetMember returns one member.
// GET /api/members/{id}
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	m, err := h.Store.Member(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTO(*m))
}

// GetBalance returns the replayed balance summary with its per-grant
// breakdown.
// GET /api/members/{id}/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	asOf := leave.Today()

	summary, err := h.Service.GetBalance(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	grants, err := h.Service.GrantBreakdown(r.Context(), id, asOf)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	granted, _ := summary.TotalGranted.Float64()
	used, _ := summary.TotalUsed.Float64()
	expired, _ := summary.TotalExpired.Float64()
	adjusted, _ := summary.TotalAdjusted.Float64()
	current, _ := summary.CurrentBalance.Float64()

	dto := BalanceDTO{
		MemberID:       id,
		TotalGranted:   granted,
		TotalUsed:      used,
		TotalExpired:   expired,
		TotalAdjusted:  adjusted,
		CurrentBalance: current,
		Grants:         make([]GrantBalanceDTO, 0, len(grants)),
		AsOf:           asOf.Format(dateLayout),
	}
	for _, gb := range grants {
		dto.Grants = append(dto.Grants, toGrantBalanceDTO(gb))
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetTransactions returns the member's full ledger, chronologically.
// GET /api/members/{id}/transactions
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	txs, err := h.Service.History(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load transactions", err)
		return
	}

	dtos := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		dtos = append(dtos, toTransactionDTO(tx))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// USAGE ENDPOINTS
// =============================================================================

// RecordUsage debits approved leave days across available grants.
// POST /api/usages
func (h *Handler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	var req RecordUsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD", err)
		return
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD", err)
		return
	}
	if req.TotalDays <= 0 {
		writeError(w, http.StatusBadRequest, "total_days must be positive", nil)
		return
	}
	var asOf time.Time
	if req.AsOf != "" {
		if asOf, err = time.Parse(dateLayout, req.AsOf); err != nil {
			writeError(w, http.StatusBadRequest, "as_of must be YYYY-MM-DD", err)
			return
		}
	}

	err = h.Service.RecordUsage(r.Context(), leave.UsageRequest{
		RequestID:  req.RequestID,
		MemberID:   req.MemberID,
		MemberName: req.MemberName,
		LeaveType:  req.LeaveType,
		StartDate:  start,
		EndDate:    end,
		TotalDays:  leave.Days(req.TotalDays),
		CreatedBy:  req.CreatedBy,
		AsOf:       asOf,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

// ReverseUsage cancels a previously recorded usage with compensating
// transactions.
// POST /api/usages/{requestID}/cancel
func (h *Handler) ReverseUsage(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	var req ReverseUsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	err := h.Service.ReverseUsage(r.Context(), leave.ReversalRequest{
		RequestID:   requestID,
		MemberID:    req.MemberID,
		Period:      req.Period,
		CancelledBy: req.CancelledBy,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reversed"})
}

// =============================================================================
// POLICY ENDPOINTS
// =============================================================================

// GetActivePolicy returns the single active policy.
// GET /api/policies/active
func (h *Handler) GetActivePolicy(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.ActivePolicy(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(*p))
}

// CreatePolicy saves a policy version, optionally activating it.
// POST /api/policies
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	}
	if req.ExpireAfterMonths <= 0 {
		writeError(w, http.StatusBadRequest, "expire_after_months must be positive", nil)
		return
	}

	p := leave.Policy{
		ID:                    req.ID,
		Name:                  req.Name,
		FirstYearMonthlyGrant: req.FirstYearMonthlyGrant,
		FirstYearMaxDays:      req.FirstYearMaxDays,
		BaseAnnualDays:        req.BaseAnnualDays,
		IncrementYears:        req.IncrementYears,
		IncrementDays:         req.IncrementDays,
		MaxAnnualDays:         req.MaxAnnualDays,
		ExpireAfterMonths:     req.ExpireAfterMonths,
		Version:               1,
	}
	if err := h.Store.SavePolicy(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save policy", err)
		return
	}
	if req.Activate {
		if err := h.Store.ActivatePolicy(r.Context(), p.ID); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to activate policy", err)
			return
		}
		p.IsActive = true
	}
	writeJSON(w, http.StatusCreated, toPolicyDTO(p))
}

// ActivatePolicy switches the active policy version.
// POST /api/policies/{id}/activate
func (h *Handler) ActivatePolicy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.ActivatePolicy(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "activated"})
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

// RunDailyUpdate triggers the grant/expiry job, optionally for a given
// date. Safe to call repeatedly; duplicate dates are no-ops.
// POST /api/admin/daily-update
func (h *Handler) RunDailyUpdate(w http.ResponseWriter, r *http.Request) {
	var req DailyUpdateRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	asOf := leave.Today()
	if req.AsOf != "" {
		parsed, err := time.Parse(dateLayout, req.AsOf)
		if err != nil {
			writeError(w, http.StatusBadRequest, "as_of must be YYYY-MM-DD", err)
			return
		}
		asOf = parsed
	}

	result, err := h.Service.RunDailyUpdate(r.Context(), asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Daily update failed", err)
		return
	}

	granted, _ := result.Granted.Float64()
	expired, _ := result.Expired.Float64()
	resp := DailyUpdateResponse{
		Processed: result.Processed,
		Granted:   granted,
		Expired:   expired,
	}
	for _, me := range result.Errors {
		resp.Errors = append(resp.Errors, MemberErrorDTO{MemberID: me.MemberID, Error: me.Err})
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateManualGrant issues an admin grant.
// POST /api/admin/grants
func (h *Handler) CreateManualGrant(w http.ResponseWriter, r *http.Request) {
	var req ManualGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	grantDate, err := time.Parse(dateLayout, req.GrantDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "grant_date must be YYYY-MM-DD", err)
		return
	}
	expireDate, err := time.Parse(dateLayout, req.ExpireDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "expire_date must be YYYY-MM-DD", err)
		return
	}
	if req.Days <= 0 {
		writeError(w, http.StatusBadRequest, "days must be positive", nil)
		return
	}

	err = h.Service.ManualGrant(r.Context(), req.MemberID, leave.Days(req.Days),
		grantDate, expireDate, req.Reason, req.CreatedBy)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "granted"})
}

// CancelGrant voids a grant's unused remainder.
// POST /api/admin/grants/{id}/cancel
func (h *Handler) CancelGrant(w http.ResponseWriter, r *http.Request) {
	grantID := chi.URLParam(r, "id")

	var req CancelGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.MemberID == "" {
		writeError(w, http.StatusBadRequest, "member_id is required", nil)
		return
	}

	err := h.Service.CancelGrant(r.Context(), req.MemberID, grantID, req.Reason, req.CreatedBy)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// CreateAdjustment appends a signed manual correction.
// POST /api/admin/adjustments
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Days == 0 {
		writeError(w, http.StatusBadRequest, "days must be non-zero", nil)
		return
	}

	err := h.Service.Adjust(r.Context(), req.MemberID, leave.Days(req.Days), req.Reason, req.CreatedBy)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "adjusted"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var insufficient *leave.InsufficientBalanceError
	var ambiguous *leave.AmbiguousReversalError

	switch {
	case errors.As(err, &insufficient):
		writeError(w, http.StatusConflict, "Insufficient leave balance", err)
	case errors.As(err, &ambiguous):
		writeError(w, http.StatusConflict, "Cannot identify reversal target", err)
	case leave.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case leave.IsClientError(err):
		writeError(w, http.StatusConflict, "Request conflicts with ledger state", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
