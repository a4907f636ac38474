package models

import "time"

// Document is the engine's view of an ingested document. The intake
// subsystem owns documents; the engine only reads them for trigger matching
// and condition evaluation.
type Document struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Name          string         `json:"name"`
	UploadedBy    string         `json:"uploaded_by,omitempty"`
	ExtractedData map[string]any `json:"extracted_data,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// DocumentEvent is the document-ingested event delivered by the intake
// subsystem.
type DocumentEvent struct {
	DocumentID    string         `json:"document_id"   validate:"required"`
	DocumentType  string         `json:"document_type" validate:"required"`
	DocumentName  string         `json:"document_name" validate:"required"`
	UserID        string         `json:"user_id"`
	ExtractedData map[string]any `json:"extracted_data,omitempty"`
}
