package vex

import (
	"context"

	"github.com/openctemio/observe/pkg/domain/shared"
)

// DocumentRepository defines the persistence interface for VEX documents.
type DocumentRepository interface {
	// FindByID returns one document, or shared.ErrNotFound.
	FindByID(ctx context.Context, id shared.ID) (*Document, error)

	// FindByDocumentID returns the document with the given external id, or
	// shared.ErrNotFound.
	FindByDocumentID(ctx context.Context, documentID string) (*Document, error)

	// Save upserts a document.
	Save(ctx context.Context, d *Document) error
}

// StatementRepository defines the persistence interface for VEX statements.
type StatementRepository interface {
	// FindByPURLPrefix returns all statements whose product purl starts
	// with the given prefix, in load order.
	FindByPURLPrefix(ctx context.Context, prefix string) ([]*Statement, error)

	// FindByDocument returns all statements of a document, in load order.
	FindByDocument(ctx context.Context, documentID shared.ID) ([]*Statement, error)

	// ReplaceForDocument replaces all statements of a document.
	ReplaceForDocument(ctx context.Context, documentID shared.ID, statements []*Statement) error
}
