package web

// DocumentUploadedRequest is the intake payload that starts matching runs.
type DocumentUploadedRequest struct {
	DocumentID    string         `json:"document_id"    validate:"required"`
	DocumentType  string         `json:"document_type"  validate:"required"`
	DocumentName  string         `json:"document_name"  validate:"required"`
	UserID        string         `json:"user_id"`
	ExtractedData map[string]any `json:"extracted_data,omitempty"`
}

// CompleteStepRequest records a manual decision on a step instance.
type CompleteStepRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
	Comments string `json:"comments"`
	Actor    string `json:"actor"    validate:"required"`
}
