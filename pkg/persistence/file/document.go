package file

import (
	"context"

	"github.com/calvere/docflow/pkg/models"
	"github.com/calvere/docflow/pkg/persistence"
)

// DocumentRepository handles document file operations.
type DocumentRepository struct {
	store *store
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	var document models.Document

	found, err := r.store.read(id, &document)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewStoreError("GetByID", "document", id, persistence.ErrDocumentNotFound)
	}

	return &document, nil
}

func (r *DocumentRepository) Save(ctx context.Context, document *models.Document) error {
	return r.store.write(document.ID, document)
}
