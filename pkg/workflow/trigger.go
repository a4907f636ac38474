package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calvere/docflow/pkg/models"
	"github.com/calvere/docflow/pkg/persistence"
	"github.com/go-playground/validator/v10"
)

// TriggerService starts workflow runs from document-ingested events.
type TriggerService struct {
	persistence  persistence.Persistence
	instantiator *Instantiator
	advancer     *Advancer
	validator    *validator.Validate
	logger       *slog.Logger
}

func NewTriggerService(
	store persistence.Persistence,
	instantiator *Instantiator,
	advancer *Advancer,
	logger *slog.Logger,
) *TriggerService {
	return &TriggerService{
		persistence:  store,
		instantiator: instantiator,
		advancer:     advancer,
		validator:    validator.New(),
		logger:       logger.With("module", "workflow_trigger"),
	}
}

// HandleDocumentUploaded matches the document against active
// document-triggered definitions and starts one run per match. A failed
// instantiation of one definition does not stop the others. Returns the IDs
// of the started instances.
func (s *TriggerService) HandleDocumentUploaded(ctx context.Context, event models.DocumentEvent) ([]string, error) {
	err := s.validator.Struct(event)
	if err != nil {
		return nil, fmt.Errorf("invalid document event: %w", err)
	}

	document := &models.Document{
		ID:            event.DocumentID,
		Type:          event.DocumentType,
		Name:          event.DocumentName,
		UploadedBy:    event.UserID,
		ExtractedData: event.ExtractedData,
		CreatedAt:     time.Now().UTC(),
	}

	err = s.persistence.Documents().Save(ctx, document)
	if err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	definitions, err := s.persistence.Definitions().ListActiveByTrigger(ctx, models.TriggerTypeDocumentUpload)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}

	var started []string

	for _, definition := range definitions {
		if !matchesDocumentType(definition.TriggerConfig.DocumentTypes, event.DocumentType) {
			continue
		}

		instance, err := s.instantiator.Instantiate(ctx, definition, StartOptions{
			TriggerSource: "document_upload",
			DocumentID:    document.ID,
			DocumentName:  event.DocumentName,
			StartedBy:     event.UserID,
			ExtractedData: event.ExtractedData,
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to instantiate workflow",
				"workflow_id", definition.ID, "document_id", document.ID, "error", err)

			continue
		}

		err = s.advancer.Advance(ctx, instance)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to advance new instance",
				"instance_id", instance.ID, "error", err)
		}

		started = append(started, instance.ID)
	}

	s.logger.InfoContext(ctx, "Document processed",
		"document_id", document.ID,
		"document_type", event.DocumentType,
		"instances_started", len(started),
	)

	return started, nil
}

// matchesDocumentType reports whether a definition accepts the document type.
// An empty list or "all" accepts everything; otherwise any accepted type that
// is a case-insensitive substring of the document type, or vice versa, counts.
func matchesDocumentType(accepted []string, documentType string) bool {
	if len(accepted) == 0 {
		return true
	}

	docType := strings.ToLower(documentType)

	for _, entry := range accepted {
		entryType := strings.ToLower(strings.TrimSpace(entry))
		if entryType == "" || entryType == "all" {
			return true
		}

		if strings.Contains(docType, entryType) || strings.Contains(entryType, docType) {
			return true
		}
	}

	return false
}
