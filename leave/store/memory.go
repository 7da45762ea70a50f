// Package store provides in-memory Store and Directory implementations
// used by tests and local development.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/sable/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE - In-memory ledger (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	transactions map[string][]leave.Transaction
	idempotency  map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		transactions: make(map[string][]leave.Transaction),
		idempotency:  make(map[string]bool),
	}
}

// Append adds a single transaction. Append-only.
func (m *Memory) Append(_ context.Context, tx leave.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(tx)
}

// AppendBatch adds multiple transactions atomically.
func (m *Memory) AppendBatch(_ context.Context, txs []leave.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check all idempotency keys first (atomic check)
	for _, tx := range txs {
		if tx.IdempotencyKey != "" && m.idempotency[tx.IdempotencyKey] {
			return leave.ErrDuplicateIdempotencyKey
		}
	}

	// Append all (atomic write)
	for _, tx := range txs {
		if err := m.appendLocked(tx); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) appendLocked(tx leave.Transaction) error {
	if tx.IdempotencyKey != "" && m.idempotency[tx.IdempotencyKey] {
		return leave.ErrDuplicateIdempotencyKey
	}
	txs := m.transactions[tx.MemberID]

	// Binary search for the insertion point; ties keep append order,
	// which preserves CreatedAt ordering for same-day writes.
	i := sort.Search(len(txs), func(i int) bool {
		return txs[i].EffectiveAt.After(tx.EffectiveAt)
	})

	txs = append(txs, leave.Transaction{})
	copy(txs[i+1:], txs[i:])
	txs[i] = tx
	m.transactions[tx.MemberID] = txs

	if tx.IdempotencyKey != "" {
		m.idempotency[tx.IdempotencyKey] = true
	}
	return nil
}

func (m *Memory) Load(_ context.Context, memberID string) ([]leave.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]leave.Transaction, len(m.transactions[memberID]))
	copy(result, m.transactions[memberID])
	return result, nil
}

func (m *Memory) UsageByRequest(_ context.Context, requestID string) ([]leave.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []leave.Transaction
	for _, txs := range m.transactions {
		for _, tx := range txs {
			if tx.RequestID == requestID {
				result = append(result, tx)
			}
		}
	}
	return result, nil
}

func (m *Memory) UsageByReference(_ context.Context, referenceID string) ([]leave.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []leave.Transaction
	for _, txs := range m.transactions {
		for _, tx := range txs {
			if tx.ReferenceID == referenceID {
				result = append(result, tx)
			}
		}
	}
	return result, nil
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For the memory store this is simulated with snapshot + rollback on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(leave.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	txStore := &txMemoryView{parent: tm}
	if err := fn(txStore); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	txsCopy := make(map[string][]leave.Transaction)
	for k, v := range tm.transactions {
		txsCopy[k] = append([]leave.Transaction{}, v...)
	}
	idempCopy := make(map[string]bool)
	for k, v := range tm.idempotency {
		idempCopy[k] = v
	}
	return memorySnapshot{transactions: txsCopy, idempotency: idempCopy}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.transactions = s.transactions
	tm.idempotency = s.idempotency
}

type memorySnapshot struct {
	transactions map[string][]leave.Transaction
	idempotency  map[string]bool
}

// txMemoryView writes against the parent's maps while the parent mutex
// is held by WithTx. Never use it outside WithTx.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) Append(_ context.Context, tx leave.Transaction) error {
	return tv.parent.appendLocked(tx)
}

func (tv *txMemoryView) AppendBatch(_ context.Context, txs []leave.Transaction) error {
	for _, tx := range txs {
		if err := tv.parent.appendLocked(tx); err != nil {
			return err
		}
	}
	return nil
}

func (tv *txMemoryView) Load(_ context.Context, memberID string) ([]leave.Transaction, error) {
	return tv.parent.transactions[memberID], nil
}

func (tv *txMemoryView) UsageByRequest(_ context.Context, requestID string) ([]leave.Transaction, error) {
	var result []leave.Transaction
	for _, txs := range tv.parent.transactions {
		for _, tx := range txs {
			if tx.RequestID == requestID {
				result = append(result, tx)
			}
		}
	}
	return result, nil
}

func (tv *txMemoryView) UsageByReference(_ context.Context, referenceID string) ([]leave.Transaction, error) {
	var result []leave.Transaction
	for _, txs := range tv.parent.transactions {
		for _, tx := range txs {
			if tx.ReferenceID == referenceID {
				result = append(result, tx)
			}
		}
	}
	return result, nil
}

func (tv *txMemoryView) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	return tv.parent.idempotency[idempotencyKey], nil
}

// =============================================================================
// MEMORY DIRECTORY - Members, policies, balance cache
// =============================================================================

type MemoryDirectory struct {
	mu       sync.RWMutex
	members  map[string]leave.Member
	policy   *leave.Policy
	balances map[string]leave.BalanceSummary
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		members:  make(map[string]leave.Member),
		balances: make(map[string]leave.BalanceSummary),
	}
}

func (d *MemoryDirectory) PutMember(m leave.Member) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[m.ID] = m
}

func (d *MemoryDirectory) SetPolicy(p leave.Policy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p.IsActive = true
	d.policy = &p
}

func (d *MemoryDirectory) Member(_ context.Context, id string) (*leave.Member, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.members[id]
	if !ok {
		return nil, leave.ErrMemberNotFound
	}
	return &m, nil
}

func (d *MemoryDirectory) ActiveMembers(_ context.Context) ([]leave.Member, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []leave.Member
	for _, m := range d.members {
		if m.Active {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (d *MemoryDirectory) ActivePolicy(_ context.Context) (*leave.Policy, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.policy == nil {
		return nil, leave.ErrPolicyNotFound
	}
	p := *d.policy
	return &p, nil
}

func (d *MemoryDirectory) UpsertBalance(_ context.Context, b leave.BalanceSummary) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.balances[b.MemberID] = b
	return nil
}

// Balance returns the cached row as last written, for cache assertions.
func (d *MemoryDirectory) Balance(memberID string) (leave.BalanceSummary, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.balances[memberID]
	return b, ok
}
