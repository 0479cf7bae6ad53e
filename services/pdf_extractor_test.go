package services

import "testing"

func TestExtractPDFTextRejectsNonPDF(t *testing.T) {
	if _, _, err := ExtractPDFText([]byte("this is not a pdf")); err == nil {
		t.Fatalf("expected error for non-PDF bytes")
	}
}

func TestExtractPDFTextRejectsEmptyInput(t *testing.T) {
	if _, _, err := ExtractPDFText(nil); err == nil {
		t.Fatalf("expected error for empty input")
	}
}
