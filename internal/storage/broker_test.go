package storage

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestDeriveKeyKeepsBaseAndExtension(t *testing.T) {
	key := DeriveKey("report.pdf")

	if !strings.HasPrefix(key, "report-") {
		t.Fatalf("expected key to start with the base name, got %q", key)
	}
	if !strings.HasSuffix(key, ".pdf") {
		t.Fatalf("expected key to keep the extension, got %q", key)
	}

	random := strings.TrimSuffix(strings.TrimPrefix(key, "report-"), ".pdf")
	if _, err := uuid.Parse(random); err != nil {
		t.Fatalf("expected a uuid suffix, got %q: %v", random, err)
	}
}

func TestDeriveKeyUniquePerCall(t *testing.T) {
	if DeriveKey("report.pdf") == DeriveKey("report.pdf") {
		t.Fatalf("same filename produced the same key twice")
	}
}

func TestDeriveKeyWithoutExtension(t *testing.T) {
	key := DeriveKey("README")
	if !strings.HasPrefix(key, "README-") {
		t.Fatalf("expected base name prefix, got %q", key)
	}
	if strings.Contains(key, ".") {
		t.Fatalf("expected no extension in key, got %q", key)
	}
}

func TestDeriveKeyDotfile(t *testing.T) {
	// A leading dot is part of the name, not an extension separator.
	key := DeriveKey(".env")
	if !strings.HasPrefix(key, ".env-") {
		t.Fatalf("expected dotfile name kept whole, got %q", key)
	}
}
