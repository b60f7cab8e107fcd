package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/domain/product"
	"github.com/openctemio/observe/pkg/domain/shared"
	"github.com/openctemio/observe/pkg/logger"
)

type vexImportFixture struct {
	svc         *VEXImportService
	documents   *mockDocumentRepo
	statements  *mockStatementRepo
	logRepo     *mockLogRepo
	observation *observation.Observation
}

func newVEXImportFixture(t *testing.T) *vexImportFixture {
	t.Helper()
	docRepo := newMockDocumentRepo()
	stmtRepo := newMockStatementRepo()
	productRepo := newMockProductRepo()
	branchRepo := newMockBranchRepo()
	obsRepo := newMockObservationRepo()
	logRepo := &mockLogRepo{}

	p, err := product.NewProduct("shop-backend")
	require.NoError(t, err)
	p.SetPURL("pkg:golang/example.com/shop@1.2.3")
	require.NoError(t, productRepo.Save(context.Background(), p))

	o := newOpenObservation(t, p.ID(), "Outdated libxml2")
	o.SetVulnerability("CVE-2024-0001", nil, "", "")
	o.Resolve()
	require.NoError(t, obsRepo.Save(context.Background(), o))

	vexApply := NewVEXApplyService(stmtRepo, productRepo, branchRepo, obsRepo, logRepo, logger.NewNop())
	svc := NewVEXImportService(docRepo, stmtRepo, vexApply, logger.NewNop())

	return &vexImportFixture{
		svc:         svc,
		documents:   docRepo,
		statements:  stmtRepo,
		logRepo:     logRepo,
		observation: o,
	}
}

func TestImportDocumentAppliesStatements(t *testing.T) {
	f := newVEXImportFixture(t)

	result, err := f.svc.ImportDocument(context.Background(), VEXDocumentInput{
		DocumentID: "openvex-2024-001",
		Version:    "1",
		Author:     "vendor-psirt",
		Role:       "vendor",
		Statements: []VEXStatementInput{{
			VulnerabilityID: "CVE-2024-0001",
			ProductPURL:     "pkg:golang/example.com/shop@1.2.3",
			Status:          "not_affected",
			Justification:   "component_not_present",
		}},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Statements)
	assert.Equal(t, 1, result.Applied)
	assert.Len(t, f.documents.byID, 1)

	assert.Equal(t, observation.StatusNotAffected, f.observation.CurrentStatus())
	assert.Equal(t, observation.JustificationComponentNotPresent, f.observation.CurrentJustification())
	require.Len(t, f.logRepo.entries, 1)
	assert.Equal(t, "vex_engine", f.logRepo.entries[0].Actor())
}

func TestImportDocumentReplacesStatementsOnReimport(t *testing.T) {
	f := newVEXImportFixture(t)

	first, err := f.svc.ImportDocument(context.Background(), VEXDocumentInput{
		DocumentID: "openvex-2024-001",
		Version:    "1",
		Statements: []VEXStatementInput{{
			VulnerabilityID: "CVE-2024-0001",
			ProductPURL:     "pkg:golang/example.com/shop@1.2.3",
			Status:          "under_investigation",
		}},
	})
	require.NoError(t, err)

	second, err := f.svc.ImportDocument(context.Background(), VEXDocumentInput{
		DocumentID: "openvex-2024-001",
		Version:    "2",
		Statements: []VEXStatementInput{
			{
				VulnerabilityID: "CVE-2024-0001",
				ProductPURL:     "pkg:golang/example.com/shop@1.2.3",
				Status:          "fixed",
			},
			{
				VulnerabilityID: "CVE-2024-0002",
				ProductPURL:     "pkg:golang/example.com/shop@1.2.3",
				Status:          "affected",
			},
		},
	})
	require.NoError(t, err)

	// Same external id resolves to the same stored document.
	require.Len(t, f.documents.byID, 1)
	assert.True(t, first.Document.ID().Equals(second.Document.ID()))
	assert.Equal(t, "2", second.Document.Version())
	assert.Len(t, f.statements.byDocument[second.Document.ID()], 2)

	assert.Equal(t, observation.StatusResolved, f.observation.CurrentStatus())
}

func TestImportDocumentRejectsInvalidStatus(t *testing.T) {
	f := newVEXImportFixture(t)

	_, err := f.svc.ImportDocument(context.Background(), VEXDocumentInput{
		DocumentID: "openvex-2024-002",
		Statements: []VEXStatementInput{{
			VulnerabilityID: "CVE-2024-0001",
			ProductPURL:     "pkg:golang/example.com/shop@1.2.3",
			Status:          "maybe_affected",
		}},
	})

	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Empty(t, f.statements.byDocument)
}

func TestImportDocumentSkipsUnrelatedProducts(t *testing.T) {
	f := newVEXImportFixture(t)

	result, err := f.svc.ImportDocument(context.Background(), VEXDocumentInput{
		DocumentID: "openvex-2024-003",
		Statements: []VEXStatementInput{{
			VulnerabilityID: "CVE-2024-0001",
			ProductPURL:     "pkg:npm/left-pad@1.0.0",
			Status:          "not_affected",
		}},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Statements)
	assert.Equal(t, 0, result.Applied)
	assert.Equal(t, observation.StatusOpen, f.observation.CurrentStatus())
	assert.Empty(t, f.logRepo.entries)
}
