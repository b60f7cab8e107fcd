package app

import (
	"context"
	"strings"
	"time"

	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/domain/product"
	"github.com/openctemio/observe/pkg/domain/rule"
	"github.com/openctemio/observe/pkg/domain/shared"
	"github.com/openctemio/observe/pkg/domain/vex"
)

type mockObservationRepo struct {
	byID  map[shared.ID]*observation.Observation
	saves int
}

func newMockObservationRepo() *mockObservationRepo {
	return &mockObservationRepo{byID: make(map[shared.ID]*observation.Observation)}
}

func (m *mockObservationRepo) FindByScanContext(_ context.Context, sc observation.ScanContext) ([]*observation.Observation, error) {
	var out []*observation.Observation
	for _, o := range m.byID {
		if o.ProductID().Equals(sc.ProductID) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockObservationRepo) FindByProduct(_ context.Context, productID shared.ID) ([]*observation.Observation, error) {
	var out []*observation.Observation
	for _, o := range m.byID {
		if o.ProductID().Equals(productID) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockObservationRepo) FindByID(_ context.Context, id shared.ID) (*observation.Observation, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return o, nil
}

func (m *mockObservationRepo) FindExpiredRiskAcceptances(_ context.Context, asOf time.Time) ([]*observation.Observation, error) {
	var out []*observation.Observation
	for _, o := range m.byID {
		if o.CurrentStatus() == observation.StatusRiskAccepted &&
			o.RiskAcceptanceExpiry() != nil && !o.RiskAcceptanceExpiry().After(asOf) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockObservationRepo) Save(_ context.Context, o *observation.Observation) error {
	m.byID[o.ID()] = o
	m.saves++
	return nil
}

type mockLogRepo struct {
	entries []*observation.LogEntry
}

func (m *mockLogRepo) Append(_ context.Context, entry *observation.LogEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

type mockProductRepo struct {
	byID map[shared.ID]*product.Product
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{byID: make(map[shared.ID]*product.Product)}
}

func (m *mockProductRepo) FindByID(_ context.Context, id shared.ID) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return p, nil
}

func (m *mockProductRepo) FindByName(_ context.Context, name string) (*product.Product, error) {
	for _, p := range m.byID {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockProductRepo) FindByGroup(_ context.Context, groupID shared.ID) ([]*product.Product, error) {
	var out []*product.Product
	for _, p := range m.byID {
		if p.ProductGroupID() != nil && p.ProductGroupID().Equals(groupID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) FindWithPURL(_ context.Context) ([]*product.Product, error) {
	var out []*product.Product
	for _, p := range m.byID {
		if p.PURL() != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) Save(_ context.Context, p *product.Product) error {
	m.byID[p.ID()] = p
	return nil
}

type mockBranchRepo struct {
	byID map[shared.ID]*product.Branch
}

func newMockBranchRepo() *mockBranchRepo {
	return &mockBranchRepo{byID: make(map[shared.ID]*product.Branch)}
}

func (m *mockBranchRepo) FindByID(_ context.Context, id shared.ID) (*product.Branch, error) {
	b, ok := m.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return b, nil
}

func (m *mockBranchRepo) FindByName(_ context.Context, productID shared.ID, name string) (*product.Branch, error) {
	for _, b := range m.byID {
		if b.ProductID().Equals(productID) && b.Name() == name {
			return b, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockBranchRepo) FindByProduct(_ context.Context, productID shared.ID) ([]*product.Branch, error) {
	var out []*product.Branch
	for _, b := range m.byID {
		if b.ProductID().Equals(productID) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockBranchRepo) FindWithPURL(_ context.Context) ([]*product.Branch, error) {
	var out []*product.Branch
	for _, b := range m.byID {
		if b.PURL() != "" {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockBranchRepo) Save(_ context.Context, b *product.Branch) error {
	m.byID[b.ID()] = b
	return nil
}

type mockRuleRepo struct {
	byID map[shared.ID]*rule.Rule
}

func newMockRuleRepo() *mockRuleRepo {
	return &mockRuleRepo{byID: make(map[shared.ID]*rule.Rule)}
}

func (m *mockRuleRepo) FindByID(_ context.Context, id shared.ID) (*rule.Rule, error) {
	r, ok := m.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return r, nil
}

func (m *mockRuleRepo) FindByProduct(_ context.Context, productID shared.ID) ([]*rule.Rule, error) {
	var out []*rule.Rule
	for _, r := range m.byID {
		if r.ProductID() != nil && r.ProductID().Equals(productID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRuleRepo) FindByProductGroup(_ context.Context, groupID shared.ID) ([]*rule.Rule, error) {
	var out []*rule.Rule
	for _, r := range m.byID {
		if r.ProductGroupID() != nil && r.ProductGroupID().Equals(groupID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRuleRepo) FindGeneral(_ context.Context) ([]*rule.Rule, error) {
	var out []*rule.Rule
	for _, r := range m.byID {
		if r.ProductID() == nil && r.ProductGroupID() == nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRuleRepo) Save(_ context.Context, r *rule.Rule) error {
	m.byID[r.ID()] = r
	return nil
}

type mockDocumentRepo struct {
	byID map[shared.ID]*vex.Document
}

func newMockDocumentRepo() *mockDocumentRepo {
	return &mockDocumentRepo{byID: make(map[shared.ID]*vex.Document)}
}

func (m *mockDocumentRepo) FindByID(_ context.Context, id shared.ID) (*vex.Document, error) {
	d, ok := m.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return d, nil
}

func (m *mockDocumentRepo) FindByDocumentID(_ context.Context, documentID string) (*vex.Document, error) {
	for _, d := range m.byID {
		if d.DocumentID() == documentID {
			return d, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockDocumentRepo) Save(_ context.Context, d *vex.Document) error {
	m.byID[d.ID()] = d
	return nil
}

type mockStatementRepo struct {
	byDocument map[shared.ID][]*vex.Statement
}

func newMockStatementRepo() *mockStatementRepo {
	return &mockStatementRepo{byDocument: make(map[shared.ID][]*vex.Statement)}
}

func (m *mockStatementRepo) FindByPURLPrefix(_ context.Context, prefix string) ([]*vex.Statement, error) {
	var out []*vex.Statement
	for _, statements := range m.byDocument {
		for _, s := range statements {
			if strings.HasPrefix(s.ProductPURL(), prefix) {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

func (m *mockStatementRepo) FindByDocument(_ context.Context, documentID shared.ID) ([]*vex.Statement, error) {
	return m.byDocument[documentID], nil
}

func (m *mockStatementRepo) ReplaceForDocument(_ context.Context, documentID shared.ID, statements []*vex.Statement) error {
	m.byDocument[documentID] = statements
	return nil
}
