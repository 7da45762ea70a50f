/*
service.go - Operation layer over the ledger

PURPOSE:
  Implements the operation contracts the approval workflow, settings UI,
  and daily scheduler call into: record usage, reverse usage, read
  balances, run the daily policy update. Every mutating operation ends
  by recomputing the member's cached balance row from a fresh replay.

CONCURRENCY:
  Each "read grants -> allocate -> write use transactions" sequence for
  one member runs under a per-member mutex, so two concurrent approvals
  cannot double-allocate the same grant capacity. Multi-row writes go
  through the store's WithTx, so a mid-allocation failure leaves no
  partial debit. Engine-generated transactions additionally carry
  idempotency keys, which makes concurrent daily re-runs collapse into
  no-ops at the store level.

SEE ALSO:
  - policy.go: ComputeDue, the per-member daily computation
  - allocator.go: FIFO allocation
  - reversal.go: Legacy reversal lookup
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service wires the ledger, the directory, and the engine algorithms
// into the operations callers consume.
type Service struct {
	store  TxStore
	dir    Directory
	locks  memberLocks
	legacy reversalLocator
}

func NewService(store TxStore, dir Directory) *Service {
	return &Service{
		store:  store,
		dir:    dir,
		legacy: legacyReasonLocator{},
	}
}

// memberLocks hands out one mutex per member id.
type memberLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (ml *memberLocks) acquire(memberID string) func() {
	ml.mu.Lock()
	if ml.locks == nil {
		ml.locks = make(map[string]*sync.Mutex)
	}
	l, ok := ml.locks[memberID]
	if !ok {
		l = &sync.Mutex{}
		ml.locks[memberID] = l
	}
	ml.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// =============================================================================
// USAGE - FIFO consumption of leave days
// =============================================================================

// UsageRequest describes an approved leave request to be debited from
// the ledger.
type UsageRequest struct {
	RequestID  string
	MemberID   string
	MemberName string
	LeaveType  string
	StartDate  time.Time
	EndDate    time.Time
	TotalDays  decimal.Decimal
	CreatedBy  string

	// AsOf overrides "today" for availability filtering. Zero means now.
	AsOf time.Time
}

// Period returns the human-readable range embedded in usage reasons.
func (r UsageRequest) Period() string {
	return fmt.Sprintf("%s ~ %s", r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"))
}

// RecordUsage allocates the requested days across available grants
// (oldest-expiring-first) and appends one use transaction per debited
// grant, atomically. Fails with *InsufficientBalanceError and performs
// zero writes if the grants cannot satisfy the request.
func (s *Service) RecordUsage(ctx context.Context, req UsageRequest) error {
	if req.MemberID == "" || req.RequestID == "" {
		return fmt.Errorf("%w: usage needs member and request ids", ErrLedgerWrite)
	}
	if !req.TotalDays.IsPositive() {
		return fmt.Errorf("%w: usage must consume a positive amount", ErrLedgerWrite)
	}
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = Today()
	}

	unlock := s.locks.acquire(req.MemberID)
	defer unlock()

	history, err := s.store.Load(ctx, req.MemberID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}

	grants := AvailableGrants(history, asOf)
	allocations, err := Allocate(req.MemberID, grants, req.TotalDays)
	if err != nil {
		return err
	}

	reason := fmt.Sprintf("%s %s %s", req.MemberName, req.LeaveType, req.Period())
	txs := make([]Transaction, len(allocations))
	for i, a := range allocations {
		grantDate, expireDate := a.GrantDate, a.ExpireDate
		txs[i] = Transaction{
			MemberID:    req.MemberID,
			Type:        TxUse,
			Amount:      a.Amount.Neg(),
			EffectiveAt: asOf,
			GrantDate:   &grantDate,
			ExpireDate:  &expireDate,
			ReferenceID: a.GrantID,
			RequestID:   req.RequestID,
			Reason:      reason,
			CreatedBy:   req.CreatedBy,
		}
	}

	if err := s.appendAll(ctx, txs); err != nil {
		return err
	}
	return s.refreshBalance(ctx, req.MemberID)
}

// =============================================================================
// REVERSAL - Compensating use_cancel transactions
// =============================================================================

// ReverseUsage appends a use_cancel mirror for every usage belonging to
// the request. Lookup order: RequestID linkage, the legacy reason-text
// shim, then direct reference to the request id. When no target can be
// uniquely identified the ledger is left unchanged and
// *AmbiguousReversalError is returned; re-reversing an already reversed
// request is a silent no-op.
func (s *Service) ReverseUsage(ctx context.Context, rev ReversalRequest) error {
	if rev.RequestID == "" {
		return fmt.Errorf("%w: reversal needs a request id", ErrLedgerWrite)
	}

	usages, memberID, err := s.locateUsages(ctx, rev)
	if err != nil {
		return err
	}

	unlock := s.locks.acquire(memberID)
	defer unlock()

	// Re-check under the lock: a concurrent reversal may have won.
	history, err := s.store.Load(ctx, memberID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}

	var txs []Transaction
	for _, u := range usages {
		if alreadyReversed(history, u, rev.RequestID) {
			continue
		}
		tx := Transaction{
			MemberID:    u.MemberID,
			Type:        TxUseCancel,
			Amount:      u.Amount.Neg(),
			EffectiveAt: Today(),
			GrantDate:   u.GrantDate,
			ExpireDate:  u.ExpireDate,
			ReferenceID: u.ReferenceID,
			RequestID:   rev.RequestID,
			Reason:      fmt.Sprintf("cancelled: %s", u.Reason),
			CreatedBy:   rev.CancelledBy,
		}
		txs = append(txs, tx)
	}
	if len(txs) == 0 {
		// Every usage already mirrored; idempotent re-cancel.
		return nil
	}

	if err := s.appendAll(ctx, txs); err != nil {
		return err
	}
	return s.refreshBalance(ctx, memberID)
}

func (s *Service) locateUsages(ctx context.Context, rev ReversalRequest) ([]Transaction, string, error) {
	// Primary: proper RequestID linkage on new rows.
	linked, err := s.store.UsageByRequest(ctx, rev.RequestID)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}
	usages := filterType(linked, TxUse)

	// Legacy shim: reason-text matching within the member's history.
	if len(usages) == 0 && rev.MemberID != "" {
		history, err := s.store.Load(ctx, rev.MemberID)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrLedgerWrite, err)
		}
		knownGrants := make(map[string]bool)
		for _, gb := range GrantHistory(history) {
			knownGrants[gb.GrantID] = true
		}
		usages = s.legacy.Locate(history, rev, knownGrants)
	}

	// Fallback: oldest rows reference the leave request directly.
	if len(usages) == 0 {
		direct, err := s.store.UsageByReference(ctx, rev.RequestID)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrLedgerWrite, err)
		}
		usages = filterType(direct, TxUse)
	}

	if len(usages) == 0 {
		return nil, "", &AmbiguousReversalError{
			RequestID: rev.RequestID,
			Detail:    "no usage transactions match this request",
		}
	}

	memberID := usages[0].MemberID
	for _, u := range usages {
		if u.MemberID != memberID {
			return nil, "", &AmbiguousReversalError{
				RequestID: rev.RequestID,
				Matches:   len(usages),
				Detail:    "matched usages span multiple members",
			}
		}
	}
	return usages, memberID, nil
}

func filterType(txs []Transaction, t TransactionType) []Transaction {
	var out []Transaction
	for _, tx := range txs {
		if tx.Type == t {
			out = append(out, tx)
		}
	}
	return out
}

// =============================================================================
// READS
// =============================================================================

// GetBalance replays the member's ledger, refreshes the cache row, and
// returns the summary.
func (s *Service) GetBalance(ctx context.Context, memberID string) (BalanceSummary, error) {
	if _, err := s.dir.Member(ctx, memberID); err != nil {
		return BalanceSummary{}, err
	}
	history, err := s.store.Load(ctx, memberID)
	if err != nil {
		return BalanceSummary{}, fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}
	summary := Summarize(memberID, history)
	if err := s.dir.UpsertBalance(ctx, summary); err != nil {
		return BalanceSummary{}, fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}
	return summary, nil
}

// GrantBreakdown returns the per-grant audit view, expired grants
// included and flagged.
func (s *Service) GrantBreakdown(ctx context.Context, memberID string, asOf time.Time) ([]GrantBalance, error) {
	history, err := s.store.Load(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}
	grants := GrantHistory(history)
	MarkExpired(grants, asOf)
	return grants, nil
}

// History returns the member's raw transaction log, chronologically.
func (s *Service) History(ctx context.Context, memberID string) ([]Transaction, error) {
	return s.store.Load(ctx, memberID)
}

// =============================================================================
// ADMIN OPERATIONS
// =============================================================================

// ManualGrant appends an admin-issued grant with an explicit expiry.
func (s *Service) ManualGrant(ctx context.Context, memberID string, days decimal.Decimal, grantDate, expireDate time.Time, reason, actor string) error {
	if !days.IsPositive() {
		return fmt.Errorf("%w: manual grant must be positive", ErrLedgerWrite)
	}
	unlock := s.locks.acquire(memberID)
	defer unlock()

	gd, ed := DayOf(grantDate), DayOf(expireDate)
	tx := Transaction{
		MemberID:    memberID,
		Type:        TxManualGrant,
		Amount:      days,
		EffectiveAt: gd,
		GrantDate:   &gd,
		ExpireDate:  &ed,
		Reason:      reason,
		CreatedBy:   actor,
	}
	if err := s.appendAll(ctx, []Transaction{tx}); err != nil {
		return err
	}
	return s.refreshBalance(ctx, memberID)
}

// Adjust appends a signed manual correction.
func (s *Service) Adjust(ctx context.Context, memberID string, days decimal.Decimal, reason, actor string) error {
	if days.IsZero() {
		return fmt.Errorf("%w: adjustment of zero days", ErrLedgerWrite)
	}
	unlock := s.locks.acquire(memberID)
	defer unlock()

	tx := Transaction{
		MemberID:    memberID,
		Type:        TxAdjust,
		Amount:      days,
		EffectiveAt: Today(),
		Reason:      reason,
		CreatedBy:   actor,
	}
	if err := s.appendAll(ctx, []Transaction{tx}); err != nil {
		return err
	}
	return s.refreshBalance(ctx, memberID)
}

// CancelGrant voids a grant's unused remainder with a grant_cancel
// mirror. Already-consumed days stay consumed.
func (s *Service) CancelGrant(ctx context.Context, memberID, grantID, reason, actor string) error {
	unlock := s.locks.acquire(memberID)
	defer unlock()

	history, err := s.store.Load(ctx, memberID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}

	for _, gb := range GrantHistory(history) {
		if gb.GrantID != grantID {
			continue
		}
		if gb.Cancelled {
			return nil
		}
		if !gb.Available.IsPositive() {
			return fmt.Errorf("%w: grant %s has no remainder to cancel", ErrLedgerWrite, grantID)
		}
		gd, ed := gb.GrantDate, gb.ExpireDate
		tx := Transaction{
			MemberID:    memberID,
			Type:        TxGrantCancel,
			Amount:      gb.Available.Neg(),
			EffectiveAt: Today(),
			GrantDate:   &gd,
			ExpireDate:  &ed,
			ReferenceID: grantID,
			Reason:      reason,
			CreatedBy:   actor,
		}
		if err := s.appendAll(ctx, []Transaction{tx}); err != nil {
			return err
		}
		return s.refreshBalance(ctx, memberID)
	}
	return fmt.Errorf("%w: grant %s not found for member %s", ErrLedgerWrite, grantID, memberID)
}

// =============================================================================
// DAILY UPDATE - Policy engine across all active members
// =============================================================================

// UpdateResult aggregates one daily-update run.
type UpdateResult struct {
	Processed int
	Granted   decimal.Decimal
	Expired   decimal.Decimal
	Errors    []MemberError
}

// MemberError captures one member's failure without aborting the batch.
type MemberError struct {
	MemberID string
	Err      string
}

// RunDailyUpdate runs the policy engine for every active member as of
// the given date, appending due grant/expire transactions and refreshing
// each member's cached balance. Idempotent: re-running for the same date
// writes nothing new, and "transaction already exists" from a concurrent
// re-run is treated as a no-op, not an error.
func (s *Service) RunDailyUpdate(ctx context.Context, asOf time.Time) (UpdateResult, error) {
	result := UpdateResult{Granted: decimal.Zero, Expired: decimal.Zero}

	members, err := s.dir.ActiveMembers(ctx)
	if err != nil {
		return result, fmt.Errorf("%w: listing members: %v", ErrLedgerWrite, err)
	}

	policy, policyErr := s.dir.ActivePolicy(ctx)

	for _, m := range members {
		if policyErr != nil {
			result.Errors = append(result.Errors, MemberError{MemberID: m.ID, Err: policyErr.Error()})
			continue
		}
		granted, expired, err := s.updateMember(ctx, m, *policy, asOf)
		if err != nil {
			result.Errors = append(result.Errors, MemberError{MemberID: m.ID, Err: err.Error()})
			continue
		}
		result.Processed++
		result.Granted = result.Granted.Add(granted)
		result.Expired = result.Expired.Add(expired)
	}
	return result, nil
}

func (s *Service) updateMember(ctx context.Context, m Member, p Policy, asOf time.Time) (granted, expired decimal.Decimal, err error) {
	granted, expired = decimal.Zero, decimal.Zero

	unlock := s.locks.acquire(m.ID)
	defer unlock()

	history, err := s.store.Load(ctx, m.ID)
	if err != nil {
		return granted, expired, fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}

	due := ComputeDue(m.ID, m.JoinDate, p, history, asOf)
	if !due.IsEmpty() {
		switch err := s.appendAll(ctx, due.All()); {
		case errors.Is(err, ErrDuplicateIdempotencyKey):
			// A concurrent run already applied this date.
		case err != nil:
			return granted, expired, err
		default:
			granted = due.GrantedDays()
			expired = due.ExpiredDays()
		}
	}

	return granted, expired, s.refreshBalance(ctx, m.ID)
}

// =============================================================================
// INTERNAL WRITE HELPERS
// =============================================================================

// appendAll writes a batch through the ledger inside one store-level
// transaction.
func (s *Service) appendAll(ctx context.Context, txs []Transaction) error {
	err := s.store.WithTx(ctx, func(st Store) error {
		return NewLedger(st).AppendBatch(ctx, txs)
	})
	if err != nil && !errors.Is(err, ErrDuplicateIdempotencyKey) && !IsClientError(err) && !errors.Is(err, ErrLedgerWrite) {
		return fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}
	return err
}

// refreshBalance rewrites the member's cached summary from a fresh
// replay. The cache is never the source of truth; this keeps it honest.
func (s *Service) refreshBalance(ctx context.Context, memberID string) error {
	history, err := s.store.Load(ctx, memberID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}
	if err := s.dir.UpsertBalance(ctx, Summarize(memberID, history)); err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}
	return nil
}
