package storage

import (
	"sort"
	"strings"
	"time"

	"github.com/progbudget/import-recon-backend/internal/domain/recon"
)

// MockRepository is an in-memory implementation of Repository for
// testing. It stores all data in maps, making tests fast and isolated.
type MockRepository struct {
	programs     map[string]*Program
	sessions     map[string]*ImportSession
	transactions map[string]*ImportTransaction
	ledger       map[string]*LedgerEntry
	potentials   map[string]*PotentialMatch // keyed by txID+"|"+entryID
	rejected     map[string]bool            // keyed by txID+"|"+entryID
	nextMatchID  int64

	// Hooks for test assertions
	SaveTransactionCalled bool
	LastSavedTransaction  *ImportTransaction
	UpdateSessionCalled   bool

	// Error injection for testing error paths
	SaveTransactionErr error
	UpdateSessionErr   error
	SetActualsErr      error
	UpsertPotentialErr error
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		programs:     make(map[string]*Program),
		sessions:     make(map[string]*ImportSession),
		transactions: make(map[string]*ImportTransaction),
		ledger:       make(map[string]*LedgerEntry),
		potentials:   make(map[string]*PotentialMatch),
		rejected:     make(map[string]bool),
		nextMatchID:  1,
	}
}

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// Transact runs fn against the mock itself. The mock cannot roll back;
// tests that need rollback semantics use the SQLite store.
func (m *MockRepository) Transact(fn func(Repository) error) error {
	return fn(m)
}

func pairKey(txID, entryID string) string {
	return txID + "|" + entryID
}

// --- programs ---

func (m *MockRepository) CreateProgram(p *Program) error {
	copied := *p
	m.programs[p.ID] = &copied
	return nil
}

func (m *MockRepository) GetProgram(id string) (*Program, error) {
	p, ok := m.programs[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *MockRepository) ListPrograms() ([]*Program, error) {
	out := make([]*Program, 0, len(m.programs))
	for _, p := range m.programs {
		copied := *p
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// --- sessions ---

func (m *MockRepository) CreateSession(s *ImportSession) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	copied := *s
	m.sessions[s.ID] = &copied
	return nil
}

func (m *MockRepository) GetSession(id string) (*ImportSession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *MockRepository) ListSessions(programID string, limit int) ([]*ImportSession, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*ImportSession
	for _, s := range m.sessions {
		if programID != "" && s.ProgramID != programID {
			continue
		}
		copied := *s
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockRepository) UpdateSession(s *ImportSession) error {
	m.UpdateSessionCalled = true
	if m.UpdateSessionErr != nil {
		return m.UpdateSessionErr
	}
	if _, ok := m.sessions[s.ID]; !ok {
		return ErrNotFound
	}
	copied := *s
	m.sessions[s.ID] = &copied
	return nil
}

func (m *MockRepository) DeleteSession(id string) error {
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	for txID, t := range m.transactions {
		if t.SessionID == id {
			delete(m.transactions, txID)
		}
	}
	return nil
}

// --- transactions ---

func (m *MockRepository) SaveTransaction(t *ImportTransaction) error {
	m.SaveTransactionCalled = true
	m.LastSavedTransaction = t
	if m.SaveTransactionErr != nil {
		return m.SaveTransactionErr
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	copied := *t
	m.transactions[t.ID] = &copied
	return nil
}

func (m *MockRepository) GetTransaction(id string) (*ImportTransaction, error) {
	t, ok := m.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (m *MockRepository) ListSessionTransactions(sessionID string) ([]*ImportTransaction, error) {
	return m.listTransactions(func(t *ImportTransaction) bool { return t.SessionID == sessionID }), nil
}

func (m *MockRepository) ListProgramTransactions(programID string) ([]*ImportTransaction, error) {
	return m.listTransactions(func(t *ImportTransaction) bool { return t.ProgramID == programID }), nil
}

func (m *MockRepository) listTransactions(keep func(*ImportTransaction) bool) []*ImportTransaction {
	var out []*ImportTransaction
	for _, t := range m.transactions {
		if keep(t) {
			copied := *t
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *MockRepository) BoundLedgerEntryIDs(programID string) (map[string]string, error) {
	bound := make(map[string]string)
	for _, t := range m.transactions {
		if t.ProgramID != programID || t.MatchedEntryID == "" {
			continue
		}
		if t.Status.IsCompleted() {
			bound[t.MatchedEntryID] = t.ID
		}
	}
	return bound, nil
}

// --- ledger ---

func (m *MockRepository) CreateLedgerEntry(e *LedgerEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	copied := *e
	m.ledger[e.ID] = &copied
	return nil
}

func (m *MockRepository) GetLedgerEntry(id string) (*LedgerEntry, error) {
	e, ok := m.ledger[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (m *MockRepository) ListLedgerEntries(programID string) ([]*LedgerEntry, error) {
	var out []*LedgerEntry
	for _, e := range m.ledger {
		if e.ProgramID == programID {
			copied := *e
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PlannedDate.Equal(out[j].PlannedDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].PlannedDate.Before(out[j].PlannedDate)
	})
	return out, nil
}

func (m *MockRepository) SetLedgerActuals(id string, amount float64, date time.Time, linkURL, linkText string) error {
	if m.SetActualsErr != nil {
		return m.SetActualsErr
	}
	e, ok := m.ledger[id]
	if !ok {
		return ErrNotFound
	}
	e.ActualAmount = &amount
	d := date
	e.ActualDate = &d
	e.InvoiceLinkURL = linkURL
	e.InvoiceLinkText = linkText
	return nil
}

func (m *MockRepository) ClearLedgerActuals(id string) error {
	e, ok := m.ledger[id]
	if !ok {
		return ErrNotFound
	}
	e.ActualAmount = nil
	e.ActualDate = nil
	e.InvoiceLinkURL = ""
	e.InvoiceLinkText = ""
	return nil
}

func (m *MockRepository) AppendLedgerNote(id string, note string) error {
	e, ok := m.ledger[id]
	if !ok {
		return ErrNotFound
	}
	if e.Notes == "" {
		e.Notes = note
	} else {
		e.Notes = e.Notes + "\n" + note
	}
	return nil
}

// --- matches ---

func (m *MockRepository) UpsertPotentialMatch(pm *PotentialMatch) error {
	if m.UpsertPotentialErr != nil {
		return m.UpsertPotentialErr
	}
	key := pairKey(pm.TransactionID, pm.LedgerEntryID)
	if existing, ok := m.potentials[key]; ok {
		existing.Confidence = pm.Confidence
		existing.MatchType = pm.MatchType
		existing.Reasons = append([]string(nil), pm.Reasons...)
		return nil
	}
	copied := *pm
	copied.ID = m.nextMatchID
	m.nextMatchID++
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now().UTC()
	}
	m.potentials[key] = &copied
	return nil
}

func (m *MockRepository) ListPotentialMatches(transactionID string) ([]*PotentialMatch, error) {
	var out []*PotentialMatch
	for key, pm := range m.potentials {
		if strings.HasPrefix(key, transactionID+"|") {
			copied := *pm
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence == out[j].Confidence {
			return out[i].ID < out[j].ID
		}
		return out[i].Confidence > out[j].Confidence
	})
	return out, nil
}

func (m *MockRepository) DeletePotentialMatch(transactionID, ledgerEntryID string) error {
	delete(m.potentials, pairKey(transactionID, ledgerEntryID))
	return nil
}

func (m *MockRepository) DeletePotentialMatchesByTransaction(transactionID string) error {
	for key := range m.potentials {
		if strings.HasPrefix(key, transactionID+"|") {
			delete(m.potentials, key)
		}
	}
	return nil
}

func (m *MockRepository) DeletePotentialMatchesByEntry(ledgerEntryID string) error {
	for key := range m.potentials {
		if strings.HasSuffix(key, "|"+ledgerEntryID) {
			delete(m.potentials, key)
		}
	}
	return nil
}

func (m *MockRepository) CreateRejectedMatch(transactionID, ledgerEntryID string) error {
	m.rejected[pairKey(transactionID, ledgerEntryID)] = true
	return nil
}

func (m *MockRepository) DeleteRejectedMatch(transactionID, ledgerEntryID string) error {
	delete(m.rejected, pairKey(transactionID, ledgerEntryID))
	return nil
}

func (m *MockRepository) ListRejectedEntryIDs(transactionID string) ([]string, error) {
	var ids []string
	for key := range m.rejected {
		if strings.HasPrefix(key, transactionID+"|") {
			ids = append(ids, strings.TrimPrefix(key, transactionID+"|"))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// --- stats ---

func (m *MockRepository) GetStats() (*Stats, error) {
	stats := &Stats{StatusCounts: make(map[string]int)}
	stats.TotalSessions = len(m.sessions)
	for _, t := range m.transactions {
		stats.TotalTransactions++
		stats.StatusCounts[string(t.Status)]++
		if t.Status == recon.TxConfirmed || t.Status == recon.TxAddedToLedger {
			stats.ConfirmedAmount += t.Amount
		}
	}
	return stats, nil
}
