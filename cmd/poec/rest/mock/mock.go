package mock

import (
	"context"
	"sync"
	"testing"

	"github.com/poec-forensics/console/cmd/poec/rest"
	apianalysis "github.com/poec-forensics/console/pkg/api/types/analysis"
	apicontexts "github.com/poec-forensics/console/pkg/api/types/contexts"
	apiledger "github.com/poec-forensics/console/pkg/api/types/ledger"
	apiproof "github.com/poec-forensics/console/pkg/api/types/proof"
	"github.com/poec-forensics/console/pkg/schema"
)

func New(t *testing.T) *MockClient {
	return &MockClient{t: t}
}

type MockClient struct {
	t    *testing.T
	mu   sync.Mutex
	Impl struct {
		Ping          func(ctx context.Context) error
		GetContexts   func(ctx context.Context) (apicontexts.Profiles, error)
		SwitchContext func(ctx context.Context, contextId string) (apicontexts.Switched, error)
		Ingest        func(ctx context.Context, src schema.Source) (apianalysis.Ingested, error)
		Analyze       func(ctx context.Context) (apianalysis.Result, error)
		Transactions  func(ctx context.Context, limit int) ([]apiledger.Transaction, error)
		Anchor        func(ctx context.Context, req apiproof.AnchorRequest) (apiproof.AnchorResponse, error)
		Verify        func(ctx context.Context, resultHash string) (apiproof.Verification, error)
		Archive       func(ctx context.Context, cid string) (apiproof.Archive, error)
		LedgerStatus  func(ctx context.Context) (apiproof.LedgerStatus, error)
	}
	Calls struct {
		Ping          int
		GetContexts   int
		SwitchContext []string
		Ingest        []string
		Analyze       int
		Transactions  []int
		Anchor        []apiproof.AnchorRequest
		Verify        []string
		Archive       []string
		LedgerStatus  int
	}
}

var _ rest.PoecClient = &MockClient{}

func (m *MockClient) Ping(ctx context.Context) error {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.Ping += 1
	m.mu.Unlock()
	if m.Impl.Ping == nil {
		m.t.Fatal("Ping is not ready to be called")
	}
	return m.Impl.Ping(ctx)
}

func (m *MockClient) GetContexts(ctx context.Context) (apicontexts.Profiles, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.GetContexts += 1
	m.mu.Unlock()
	if m.Impl.GetContexts == nil {
		m.t.Fatal("GetContexts is not ready to be called")
	}
	return m.Impl.GetContexts(ctx)
}

func (m *MockClient) SwitchContext(ctx context.Context, contextId string) (apicontexts.Switched, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.SwitchContext = append(m.Calls.SwitchContext, contextId)
	m.mu.Unlock()
	if m.Impl.SwitchContext == nil {
		m.t.Fatal("SwitchContext is not ready to be called")
	}
	return m.Impl.SwitchContext(ctx, contextId)
}

func (m *MockClient) Ingest(ctx context.Context, src schema.Source) (apianalysis.Ingested, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.Ingest = append(m.Calls.Ingest, src.Name())
	m.mu.Unlock()
	if m.Impl.Ingest == nil {
		m.t.Fatal("Ingest is not ready to be called")
	}
	return m.Impl.Ingest(ctx, src)
}

func (m *MockClient) Analyze(ctx context.Context) (apianalysis.Result, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.Analyze += 1
	m.mu.Unlock()
	if m.Impl.Analyze == nil {
		m.t.Fatal("Analyze is not ready to be called")
	}
	return m.Impl.Analyze(ctx)
}

func (m *MockClient) Transactions(ctx context.Context, limit int) ([]apiledger.Transaction, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.Transactions = append(m.Calls.Transactions, limit)
	m.mu.Unlock()
	if m.Impl.Transactions == nil {
		m.t.Fatal("Transactions is not ready to be called")
	}
	return m.Impl.Transactions(ctx, limit)
}

func (m *MockClient) Anchor(ctx context.Context, req apiproof.AnchorRequest) (apiproof.AnchorResponse, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.Anchor = append(m.Calls.Anchor, req)
	m.mu.Unlock()
	if m.Impl.Anchor == nil {
		m.t.Fatal("Anchor is not ready to be called")
	}
	return m.Impl.Anchor(ctx, req)
}

func (m *MockClient) Verify(ctx context.Context, resultHash string) (apiproof.Verification, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.Verify = append(m.Calls.Verify, resultHash)
	m.mu.Unlock()
	if m.Impl.Verify == nil {
		m.t.Fatal("Verify is not ready to be called")
	}
	return m.Impl.Verify(ctx, resultHash)
}

func (m *MockClient) Archive(ctx context.Context, cid string) (apiproof.Archive, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.Archive = append(m.Calls.Archive, cid)
	m.mu.Unlock()
	if m.Impl.Archive == nil {
		m.t.Fatal("Archive is not ready to be called")
	}
	return m.Impl.Archive(ctx, cid)
}

func (m *MockClient) LedgerStatus(ctx context.Context) (apiproof.LedgerStatus, error) {
	m.t.Helper()

	m.mu.Lock()
	m.Calls.LedgerStatus += 1
	m.mu.Unlock()
	if m.Impl.LedgerStatus == nil {
		m.t.Fatal("LedgerStatus is not ready to be called")
	}
	return m.Impl.LedgerStatus(ctx)
}
