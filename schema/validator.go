package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

//go:embed batch_submit.schema.json
var batchSubmitSchemaJSON string

//go:embed feedback.schema.json
var feedbackSchemaJSON string

// BatchSubmitPage is one page's worth of raw grievance text, pre-split.
type BatchSubmitPage struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// BatchSubmitPDF is one PDF's pages within a BatchSubmit payload (§6).
type BatchSubmitPDF struct {
	PDFID      int64             `json:"pdf_id"`
	Filename   string            `json:"filename"`
	Area       string            `json:"area,omitempty"`
	Grievances []BatchSubmitPage `json:"grievances"`
}

// BatchSubmit is the decoded, schema-validated POST /api/v1/batches body.
type BatchSubmit struct {
	UserID *int64           `json:"user_id,omitempty"`
	PDFs   []BatchSubmitPDF `json:"pdfs"`
}

// Feedback is the decoded, schema-validated POST /api/v1/feedback body.
type Feedback struct {
	GrievanceID        int64    `json:"grievance_id"`
	MatchedGrievanceID *int64   `json:"matched_grievance_id,omitempty"`
	OriginalStatus     string   `json:"original_status"`
	CorrectedStatus    string   `json:"corrected_status"`
	OriginalScore      *float64 `json:"original_score,omitempty"`
	Notes              *string  `json:"notes,omitempty"`
}

var (
	batchSubmitOnce sync.Once
	batchSubmitSch  *compiledSchema
	batchSubmitErr  error

	feedbackOnce sync.Once
	feedbackSch  *compiledSchema
	feedbackErr  error
)

// ValidateBatchSubmit decodes and schema-validates a raw JSON payload
// against batch_submit.schema.json, then checks the semantic invariants
// the schema can't express (distinct page numbers per PDF).
func ValidateBatchSubmit(raw json.RawMessage) (*BatchSubmit, error) {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadBatchSubmitSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var batch BatchSubmit
	if err := json.Unmarshal(normalized, &batch); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateBatchSubmitSemantics(&batch); err != nil {
		return nil, err
	}

	return &batch, nil
}

// ValidateFeedback decodes and schema-validates a feedback.schema.json payload.
func ValidateFeedback(raw json.RawMessage) (*Feedback, error) {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadFeedbackSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var fb Feedback
	if err := json.Unmarshal(normalized, &fb); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if fb.OriginalStatus == fb.CorrectedStatus {
		return nil, fmt.Errorf("corrected_status must differ from original_status")
	}

	return &fb, nil
}

func validateBatchSubmitSemantics(batch *BatchSubmit) error {
	if batch == nil || len(batch.PDFs) == 0 {
		return fmt.Errorf("pdfs must not be empty")
	}
	for i, pdf := range batch.PDFs {
		if strings.TrimSpace(pdf.Filename) == "" {
			return fmt.Errorf("pdfs[%d].filename must not be empty", i)
		}
		seen := make(map[int]struct{}, len(pdf.Grievances))
		for j, page := range pdf.Grievances {
			if _, dup := seen[page.PageNumber]; dup {
				return fmt.Errorf("pdfs[%d].grievances[%d] duplicates page_number %d", i, j, page.PageNumber)
			}
			seen[page.PageNumber] = struct{}{}
			if strings.TrimSpace(page.Text) == "" {
				return fmt.Errorf("pdfs[%d].grievances[%d].text must not be empty", i, j)
			}
		}
	}
	return nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func loadBatchSubmitSchema() (*compiledSchema, error) {
	batchSubmitOnce.Do(func() {
		batchSubmitSch, batchSubmitErr = compile("batch_submit.schema.json", batchSubmitSchemaJSON)
	})
	return batchSubmitSch, batchSubmitErr
}

func loadFeedbackSchema() (*compiledSchema, error) {
	feedbackOnce.Do(func() {
		feedbackSch, feedbackErr = compile("feedback.schema.json", feedbackSchemaJSON)
	})
	return feedbackSch, feedbackErr
}
