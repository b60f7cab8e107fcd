package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/domain/product"
	"github.com/openctemio/observe/pkg/domain/vex"
	"github.com/openctemio/observe/pkg/logger"
)

type vexApplyFixture struct {
	svc      *VEXApplyService
	products *mockProductRepo
	branches *mockBranchRepo
	obsRepo  *mockObservationRepo
	stmtRepo *mockStatementRepo
	logRepo  *mockLogRepo
}

func newVEXApplyFixture(t *testing.T) *vexApplyFixture {
	t.Helper()
	stmtRepo := newMockStatementRepo()
	productRepo := newMockProductRepo()
	branchRepo := newMockBranchRepo()
	obsRepo := newMockObservationRepo()
	logRepo := &mockLogRepo{}
	svc := NewVEXApplyService(stmtRepo, productRepo, branchRepo, obsRepo, logRepo, logger.NewNop())
	return &vexApplyFixture{
		svc:      svc,
		products: productRepo,
		branches: branchRepo,
		obsRepo:  obsRepo,
		stmtRepo: stmtRepo,
		logRepo:  logRepo,
	}
}

func storedStatement(t *testing.T, f *vexApplyFixture, vulnerabilityID, productPURL string, status vex.StatementStatus) *vex.Statement {
	t.Helper()
	doc, err := vex.NewDocument("CSAF-2024-001")
	require.NoError(t, err)
	stmt, err := vex.NewStatement(doc, vulnerabilityID, productPURL, status)
	require.NoError(t, err)
	require.NoError(t, f.stmtRepo.ReplaceForDocument(context.Background(), doc.ID(), []*vex.Statement{stmt}))
	return stmt
}

func TestApplyToProductMatchesBranchPURL(t *testing.T) {
	f := newVEXApplyFixture(t)

	// The product has no purl of its own; only the branch carries one.
	p, err := product.NewProduct("shop-backend")
	require.NoError(t, err)
	require.NoError(t, f.products.Save(context.Background(), p))

	b, err := product.NewBranch(p.ID(), "release-2.x")
	require.NoError(t, err)
	b.SetPURL("pkg:npm/acme@2.0.0")
	require.NoError(t, f.branches.Save(context.Background(), b))

	o := newOpenObservation(t, p.ID(), "Prototype pollution in acme")
	o.SetVulnerability("CVE-2024-0001", nil, "", "")
	branchID := b.ID()
	o.SetBranchID(&branchID)
	o.Resolve()
	require.NoError(t, f.obsRepo.Save(context.Background(), o))

	storedStatement(t, f, "CVE-2024-0001", "pkg:npm/acme", vex.StatementStatusNotAffected)

	changed, err := f.svc.ApplyToProduct(context.Background(), p.ID())

	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, observation.StatusNotAffected, o.CurrentStatus())
	require.Len(t, f.logRepo.entries, 1)
	assert.Equal(t, "vex_engine", f.logRepo.entries[0].Actor())
}

func TestApplyStatementsAfterImportCoversBranchOnlyPURLs(t *testing.T) {
	f := newVEXApplyFixture(t)

	p, err := product.NewProduct("shop-backend")
	require.NoError(t, err)
	require.NoError(t, f.products.Save(context.Background(), p))

	b, err := product.NewBranch(p.ID(), "release-2.x")
	require.NoError(t, err)
	b.SetPURL("pkg:npm/acme@2.0.0")
	require.NoError(t, f.branches.Save(context.Background(), b))

	o := newOpenObservation(t, p.ID(), "Prototype pollution in acme")
	o.SetVulnerability("CVE-2024-0001", nil, "", "")
	branchID := b.ID()
	o.SetBranchID(&branchID)
	o.Resolve()
	require.NoError(t, f.obsRepo.Save(context.Background(), o))

	stmt := storedStatement(t, f, "CVE-2024-0001", "pkg:npm/acme", vex.StatementStatusNotAffected)

	applied, err := f.svc.ApplyStatementsAfterImport(context.Background(), []*vex.Statement{stmt})

	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, observation.StatusNotAffected, o.CurrentStatus())
}

func TestApplyPersistsStatementReferenceWithoutLogging(t *testing.T) {
	f := newVEXApplyFixture(t)

	p, err := product.NewProduct("shop-backend")
	require.NoError(t, err)
	p.SetPURL("pkg:npm/acme@1.0.0")
	require.NoError(t, f.products.Save(context.Background(), p))

	o := newOpenObservation(t, p.ID(), "Prototype pollution in acme")
	o.SetVulnerability("CVE-2024-0001", nil, "", "")
	o.Resolve()
	require.NoError(t, f.obsRepo.Save(context.Background(), o))

	storedStatement(t, f, "CVE-2024-0001", "pkg:npm/acme", vex.StatementStatusAffected)

	saves := f.obsRepo.saves
	changed, err := f.svc.ApplyToProduct(context.Background(), p.ID())

	require.NoError(t, err)
	// An affected statement keeps the observation open: nothing to log, but
	// the matched statement reference must still be written.
	assert.Equal(t, 0, changed)
	assert.Empty(t, f.logRepo.entries)
	assert.Equal(t, saves+1, f.obsRepo.saves)
	require.NotNil(t, o.VEXStatementID())
	assert.Equal(t, "CSAF-2024-001", o.VEXDocumentID())
}
