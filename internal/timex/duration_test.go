package timex

import (
	"encoding/json"
	"testing"
	"time"
)

func TestUnmarshalJSON_StringForm(t *testing.T) {
	var d Duration
	if err := json.Unmarshal([]byte(`"5m"`), &d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Duration != 5*time.Minute {
		t.Fatalf("got %v, want 5m", d.Duration)
	}
}

func TestUnmarshalJSON_NumberForm(t *testing.T) {
	var d Duration
	if err := json.Unmarshal([]byte(`60000000000`), &d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Duration != time.Minute {
		t.Fatalf("got %v, want 1m", d.Duration)
	}
}

func TestUnmarshalJSON_InvalidString(t *testing.T) {
	var d Duration
	if err := json.Unmarshal([]byte(`"not-a-duration"`), &d); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestMarshalJSON_RoundTrip(t *testing.T) {
	d := Duration{Duration: 90 * time.Second}
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got Duration
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Duration != d.Duration {
		t.Fatalf("got %v, want %v", got.Duration, d.Duration)
	}
}
