package engine

import (
	"context"
	"sync"

	"github.com/quiltmoney/quilt/internal/model"
)

// MockOracle is a test implementation of the Oracle interface. It returns
// scripted verdicts per candidate id, with an optional blanket verdict
// applied to every candidate, and records calls for verification.
type MockOracle struct {
	scripted map[string]model.Verdict
	blanket  *model.Verdict
	calls    []JudgeCall
	mu       sync.Mutex
}

// JudgeCall records details of one judgment request.
type JudgeCall struct {
	Incoming   model.Transaction
	Candidates []model.Transaction
}

// NewMockOracle creates a new mock oracle.
func NewMockOracle() *MockOracle {
	return &MockOracle{
		scripted: make(map[string]model.Verdict),
	}
}

// Script sets the verdict returned for a specific candidate id. The
// candidate id on the verdict is filled in automatically.
func (m *MockOracle) Script(candidateID string, verdict model.Verdict) {
	m.mu.Lock()
	defer m.mu.Unlock()
	verdict.CandidateID = candidateID
	m.scripted[candidateID] = verdict
}

// ScriptAll sets a blanket verdict applied to every candidate without a
// specific script.
func (m *MockOracle) ScriptAll(verdict model.Verdict) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blanket = &verdict
}

// Judge returns one verdict per candidate, in candidate order. Candidates
// without a script get the no-correlation default.
func (m *MockOracle) Judge(_ context.Context, incoming model.Transaction, candidates []model.Transaction) []model.Verdict {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, JudgeCall{
		Incoming:   incoming,
		Candidates: append([]model.Transaction(nil), candidates...),
	})

	verdicts := make([]model.Verdict, len(candidates))
	for i, candidate := range candidates {
		if verdict, ok := m.scripted[candidate.ID]; ok {
			verdicts[i] = verdict
			continue
		}
		if m.blanket != nil {
			verdict := *m.blanket
			verdict.CandidateID = candidate.ID
			verdicts[i] = verdict
			continue
		}
		verdicts[i] = model.DefaultVerdict(candidate.ID)
	}

	return verdicts
}

// Calls returns all recorded calls for verification in tests.
func (m *MockOracle) Calls() []JudgeCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]JudgeCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns the number of times Judge was called.
func (m *MockOracle) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
