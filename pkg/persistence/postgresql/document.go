package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/calvere/docflow/pkg/models"
	"github.com/calvere/docflow/pkg/persistence"
)

// DocumentRepository handles document database operations.
type DocumentRepository struct {
	db *sql.DB
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := `
		SELECT id, type, name, uploaded_by, extracted_data, created_at
		FROM documents
		WHERE id = $1
	`

	var (
		document      models.Document
		extractedData []byte
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&document.ID,
		&document.Type,
		&document.Name,
		&document.UploadedBy,
		&extractedData,
		&document.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "document", id, persistence.ErrDocumentNotFound)
		}

		return nil, fmt.Errorf("failed to scan document: %w", err)
	}

	if err := unmarshalJSONB(extractedData, &document.ExtractedData); err != nil {
		return nil, err
	}

	return &document, nil
}

func (r *DocumentRepository) Save(ctx context.Context, document *models.Document) error {
	extractedData, err := marshalJSONB(document.ExtractedData, "{}")
	if err != nil {
		return err
	}

	if document.CreatedAt.IsZero() {
		document.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO documents (id, type, name, uploaded_by, extracted_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			name = EXCLUDED.name,
			extracted_data = EXCLUDED.extracted_data
	`

	_, err = r.db.ExecContext(ctx, query,
		document.ID,
		document.Type,
		document.Name,
		document.UploadedBy,
		extractedData,
		document.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", document.ID, err)
	}

	return nil
}
