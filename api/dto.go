/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Day amounts travel as JSON numbers. Internally they are decimals; the
  float conversion happens only at the API boundary.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/sable/leave-engine/leave"
)

const dateLayout = "2006-01-02"

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// MemberDTO represents a member in API responses.
type MemberDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	JoinDate  string `json:"join_date"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateMemberRequest is the request to register a member.
type CreateMemberRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	JoinDate string `json:"join_date"`
}

// PolicyDTO represents a leave policy in API responses.
type PolicyDTO struct {
	ID                    string  `json:"id"`
	Name                  string  `json:"name"`
	FirstYearMonthlyGrant float64 `json:"first_year_monthly_grant"`
	FirstYearMaxDays      float64 `json:"first_year_max_days"`
	BaseAnnualDays        float64 `json:"base_annual_days"`
	IncrementYears        int     `json:"increment_years"`
	IncrementDays         float64 `json:"increment_days"`
	MaxAnnualDays         float64 `json:"max_annual_days"`
	ExpireAfterMonths     int     `json:"expire_after_months"`
	IsActive              bool    `json:"is_active"`
	Version               int     `json:"version"`
}

// CreatePolicyRequest is the request to create a policy version.
type CreatePolicyRequest struct {
	ID                    string  `json:"id"`
	Name                  string  `json:"name"`
	FirstYearMonthlyGrant float64 `json:"first_year_monthly_grant"`
	FirstYearMaxDays      float64 `json:"first_year_max_days"`
	BaseAnnualDays        float64 `json:"base_annual_days"`
	IncrementYears        int     `json:"increment_years"`
	IncrementDays         float64 `json:"increment_days"`
	MaxAnnualDays         float64 `json:"max_annual_days"`
	ExpireAfterMonths     int     `json:"expire_after_months"`
	Activate              bool    `json:"activate"`
}

// BalanceDTO represents a member's balance summary plus the per-grant
// breakdown backing it.
type BalanceDTO struct {
	MemberID       string          `json:"member_id"`
	TotalGranted   float64         `json:"total_granted"`
	TotalUsed      float64         `json:"total_used"`
	TotalExpired   float64         `json:"total_expired"`
	TotalAdjusted  float64         `json:"total_adjusted"`
	CurrentBalance float64         `json:"current_balance"`
	Grants         []GrantBalanceDTO `json:"grants"`
	AsOf           string          `json:"as_of"`
}

// GrantBalanceDTO represents the remaining state of one grant.
type GrantBalanceDTO struct {
	GrantID    string  `json:"grant_id"`
	Type       string  `json:"type"`
	GrantDate  string  `json:"grant_date"`
	ExpireDate string  `json:"expire_date"`
	Original   float64 `json:"original"`
	Used       float64 `json:"used"`
	Available  float64 `json:"available"`
	Expired    bool    `json:"expired"`
	Cancelled  bool    `json:"cancelled"`
}

// TransactionDTO represents a ledger transaction.
type TransactionDTO struct {
	ID          string  `json:"id"`
	MemberID    string  `json:"member_id"`
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	EffectiveAt string  `json:"effective_at"`
	GrantDate   string  `json:"grant_date,omitempty"`
	ExpireDate  string  `json:"expire_date,omitempty"`
	ReferenceID string  `json:"reference_id,omitempty"`
	RequestID   string  `json:"request_id,omitempty"`
	Status      string  `json:"status"`
	Reason      string  `json:"reason,omitempty"`
	CreatedBy   string  `json:"created_by,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// RecordUsageRequest is the request to debit approved leave days.
type RecordUsageRequest struct {
	RequestID  string  `json:"request_id"`
	MemberID   string  `json:"member_id"`
	MemberName string  `json:"member_name"`
	LeaveType  string  `json:"leave_type"`
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
	TotalDays  float64 `json:"total_days"`
	CreatedBy  string  `json:"created_by"`

	// AsOf overrides the availability date for backfills. Defaults to today.
	AsOf string `json:"as_of,omitempty"`
}

// ReverseUsageRequest is the request to cancel a previously recorded usage.
type ReverseUsageRequest struct {
	MemberID    string `json:"member_id,omitempty"`
	Period      string `json:"period,omitempty"`
	CancelledBy string `json:"cancelled_by"`
}

// ManualGrantRequest is an admin-issued grant.
type ManualGrantRequest struct {
	MemberID   string  `json:"member_id"`
	Days       float64 `json:"days"`
	GrantDate  string  `json:"grant_date"`
	ExpireDate string  `json:"expire_date"`
	Reason     string  `json:"reason"`
	CreatedBy  string  `json:"created_by"`
}

// AdjustmentRequest is a signed manual correction.
type AdjustmentRequest struct {
	MemberID  string  `json:"member_id"`
	Days      float64 `json:"days"`
	Reason    string  `json:"reason"`
	CreatedBy string  `json:"created_by"`
}

// CancelGrantRequest voids a grant's unused remainder.
type CancelGrantRequest struct {
	MemberID  string `json:"member_id"`
	Reason    string `json:"reason"`
	CreatedBy string `json:"created_by"`
}

// DailyUpdateRequest triggers the grant/expiry job, optionally for a
// specific date (defaults to today).
type DailyUpdateRequest struct {
	AsOf string `json:"as_of,omitempty"`
}

// DailyUpdateResponse summarizes a daily-update run.
type DailyUpdateResponse struct {
	Processed int              `json:"processed"`
	Granted   float64          `json:"granted"`
	Expired   float64          `json:"expired"`
	Errors    []MemberErrorDTO `json:"errors,omitempty"`
}

// MemberErrorDTO reports one member's failure within a batch run.
type MemberErrorDTO struct {
	MemberID string `json:"member_id"`
	Error    string `json:"error"`
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toMemberDTO(m leave.Member) MemberDTO {
	return MemberDTO{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		JoinDate:  m.JoinDate.Format(dateLayout),
		Active:    m.Active,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
}

func toPolicyDTO(p leave.Policy) PolicyDTO {
	return PolicyDTO{
		ID:                    p.ID,
		Name:                  p.Name,
		FirstYearMonthlyGrant: p.FirstYearMonthlyGrant,
		FirstYearMaxDays:      p.FirstYearMaxDays,
		BaseAnnualDays:        p.BaseAnnualDays,
		IncrementYears:        p.IncrementYears,
		IncrementDays:         p.IncrementDays,
		MaxAnnualDays:         p.MaxAnnualDays,
		ExpireAfterMonths:     p.ExpireAfterMonths,
		IsActive:              p.IsActive,
		Version:               p.Version,
	}
}

func toGrantBalanceDTO(gb leave.GrantBalance) GrantBalanceDTO {
	original, _ := gb.Original.Float64()
	used, _ := gb.Used.Float64()
	available, _ := gb.Available.Float64()
	return GrantBalanceDTO{
		GrantID:    gb.GrantID,
		Type:       string(gb.Type),
		GrantDate:  gb.GrantDate.Format(dateLayout),
		ExpireDate: gb.ExpireDate.Format(dateLayout),
		Original:   original,
		Used:       used,
		Available:  available,
		Expired:    gb.Expired,
		Cancelled:  gb.Cancelled,
	}
}

func toTransactionDTO(tx leave.Transaction) TransactionDTO {
	amount, _ := tx.Amount.Float64()
	dto := TransactionDTO{
		ID:          tx.ID,
		MemberID:    tx.MemberID,
		Type:        string(tx.Type),
		Amount:      amount,
		EffectiveAt: tx.EffectiveAt.Format(dateLayout),
		ReferenceID: tx.ReferenceID,
		RequestID:   tx.RequestID,
		Status:      string(tx.Status),
		Reason:      tx.Reason,
		CreatedBy:   tx.CreatedBy,
		CreatedAt:   tx.CreatedAt.Format(time.RFC3339),
	}
	if tx.GrantDate != nil {
		dto.GrantDate = tx.GrantDate.Format(dateLayout)
	}
	if tx.ExpireDate != nil {
		dto.ExpireDate = tx.ExpireDate.Format(dateLayout)
	}
	return dto
}
