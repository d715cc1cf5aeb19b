package handlers

import (
	"net/http"
	"testing"
)

func TestUsageStatusFresh(t *testing.T) {
	f := newFixture(t, 10)

	rec := f.request(t, http.MethodGet, "/v1/usage", "user-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["used"] != float64(0) || body["limit"] != float64(10) || body["remaining"] != float64(10) {
		t.Fatalf("body = %v", body)
	}
}

func TestUsageStatusAfterGeneration(t *testing.T) {
	f := newFixture(t, 10)

	rec := f.request(t, http.MethodPost, "/v1/stories/story-1/generate", "user-1", `{}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("generate status = %d", rec.Code)
	}

	rec = f.request(t, http.MethodGet, "/v1/usage", "user-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["used"] != float64(1) || body["remaining"] != float64(9) {
		t.Fatalf("body = %v", body)
	}
	if body["day"] == "" {
		t.Fatal("expected the UTC day in the response")
	}
}

func TestUsageStatusRequiresUser(t *testing.T) {
	f := newFixture(t, 10)

	rec := f.request(t, http.MethodGet, "/v1/usage", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
