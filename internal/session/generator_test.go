package session

import (
	"strings"
	"testing"
	"time"
)

func TestNewID(t *testing.T) {
	id, err := NewID()
	if err != nil {
		t.Fatalf("Failed to generate session ID: %v", err)
	}

	parts := strings.Split(id, ".")
	if len(parts) != 3 {
		t.Fatalf("Expected 3 parts in session ID, got %d: %s", len(parts), id)
	}
	if parts[0] != IDPrefix {
		t.Errorf("Expected prefix %s, got %s", IDPrefix, parts[0])
	}
	if err := ValidateID(id); err != nil {
		t.Errorf("Generated ID failed validation: %v", err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewID()
		if err != nil {
			t.Fatalf("Failed to generate session ID %d: %v", i, err)
		}
		if seen[id] {
			t.Fatalf("Duplicate session ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestValidateID(t *testing.T) {
	valid, err := NewID()
	if err != nil {
		t.Fatalf("Failed to generate session ID: %v", err)
	}
	random := strings.Split(valid, ".")[2]

	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{name: "valid", id: valid},
		{name: "empty", id: "", wantErr: true},
		{name: "two parts", id: "sess.123", wantErr: true},
		{name: "wrong prefix", id: "sid.123." + random, wantErr: true},
		{name: "non-numeric timestamp", id: "sess.abc." + random, wantErr: true},
		{name: "bad characters", id: "sess.123." + strings.Repeat("!", 43), wantErr: true},
		{name: "too short", id: "sess.123.abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %q", tt.id)
				}
				if CodeOf(err) != CodeInvalid {
					t.Errorf("Expected code %s, got %s", CodeInvalid, CodeOf(err))
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestIssuedAt(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id, err := NewID()
	if err != nil {
		t.Fatalf("Failed to generate session ID: %v", err)
	}

	issued, err := IssuedAt(id)
	if err != nil {
		t.Fatalf("Failed to read timestamp: %v", err)
	}
	if issued.Before(before.Truncate(time.Second)) || issued.After(time.Now()) {
		t.Errorf("Timestamp %v out of range", issued)
	}

	if _, err := IssuedAt("garbage"); err == nil {
		t.Error("Expected error for malformed ID")
	}
}
