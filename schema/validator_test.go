package payloadschema

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestValidateBatchSubmit_Valid(t *testing.T) {
	payload := json.RawMessage(`{
		"user_id": 7,
		"pdfs": [
			{"pdf_id": 1, "filename": "ward3.pdf", "area": "Ward 3", "grievances": [
				{"page_number": 1, "text": "Grievance: the streetlight is broken"},
				{"page_number": 2, "text": "Grievance: garbage not collected for a week"}
			]}
		]
	}`)

	batch, err := ValidateBatchSubmit(payload)
	if err != nil {
		t.Fatalf("expected payload to be valid, got error: %v", err)
	}
	if len(batch.PDFs) != 1 || len(batch.PDFs[0].Grievances) != 2 {
		t.Fatalf("unexpected decoded shape: %+v", batch)
	}
}

func TestValidateBatchSubmit_MissingPDFs(t *testing.T) {
	payload := json.RawMessage(`{"user_id": 1}`)

	_, err := ValidateBatchSubmit(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for missing pdfs")
	}
}

func TestValidateBatchSubmit_EmptyGrievances(t *testing.T) {
	payload := json.RawMessage(`{
		"pdfs": [{"pdf_id": 1, "filename": "a.pdf", "grievances": []}]
	}`)

	_, err := ValidateBatchSubmit(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for an empty grievances array")
	}
}

func TestValidateBatchSubmit_DuplicatePageNumber(t *testing.T) {
	payload := json.RawMessage(`{
		"pdfs": [{"pdf_id": 1, "filename": "a.pdf", "grievances": [
			{"page_number": 1, "text": "a"},
			{"page_number": 1, "text": "b"}
		]}]
	}`)

	_, err := ValidateBatchSubmit(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for a duplicate page_number")
	}
	if !strings.Contains(err.Error(), "duplicates page_number") {
		t.Fatalf("expected duplicate page_number error, got: %v", err)
	}
}

func TestValidateBatchSubmit_TrailingContent(t *testing.T) {
	payload := json.RawMessage(`{"pdfs": []}garbage`)

	_, err := ValidateBatchSubmit(payload)
	if err == nil {
		t.Fatalf("expected validation to fail on trailing content")
	}
}

func TestValidateFeedback_Valid(t *testing.T) {
	payload := json.RawMessage(`{
		"grievance_id": 42,
		"matched_grievance_id": 10,
		"original_status": "DUPLICATE",
		"corrected_status": "UNIQUE",
		"original_score": 0.82
	}`)

	fb, err := ValidateFeedback(payload)
	if err != nil {
		t.Fatalf("expected payload to be valid, got error: %v", err)
	}
	if fb.GrievanceID != 42 || fb.CorrectedStatus != "UNIQUE" {
		t.Fatalf("unexpected decoded shape: %+v", fb)
	}
}

func TestValidateFeedback_SameStatusRejected(t *testing.T) {
	payload := json.RawMessage(`{
		"grievance_id": 42,
		"original_status": "UNIQUE",
		"corrected_status": "UNIQUE"
	}`)

	_, err := ValidateFeedback(payload)
	if err == nil {
		t.Fatalf("expected validation to fail when corrected_status equals original_status")
	}
}

func TestValidateFeedback_InvalidStatusEnum(t *testing.T) {
	payload := json.RawMessage(`{
		"grievance_id": 42,
		"original_status": "MAYBE",
		"corrected_status": "UNIQUE"
	}`)

	_, err := ValidateFeedback(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for an out-of-enum status")
	}
}
