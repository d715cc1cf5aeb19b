package handlers

import (
	"errors"
	"net/http"
	"testing"
)

func TestNextLinesReturnsAgentPayload(t *testing.T) {
	f := newFixture(t, 10)
	f.invoker.payload = []byte(`{"suggestion":"and then the rain came."}`)

	rec := f.request(t, http.MethodPost, "/v1/stories/story-1/nextlines", "user-1", `{"content":"It was dusk","cursorPosition":11,"chapterId":"ch-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if f.invoker.action != "generateNextLines" {
		t.Fatalf("action = %q", f.invoker.action)
	}
	if f.invoker.params["content"] != "It was dusk" || f.invoker.params["cursorPosition"] != 11 {
		t.Fatalf("params = %v", f.invoker.params)
	}
	if f.invoker.params["chapterId"] != "ch-1" {
		t.Fatalf("chapterId = %v", f.invoker.params["chapterId"])
	}
	body := decodeBody(t, rec)
	if body["suggestion"] != "and then the rain came." {
		t.Fatalf("body = %v; the agent payload should pass through unchanged", body)
	}
}

func TestNextLinesOmitsEmptyChapterID(t *testing.T) {
	f := newFixture(t, 10)

	rec := f.request(t, http.MethodPost, "/v1/stories/story-1/nextlines", "user-1", `{"content":"It was dusk","cursorPosition":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, ok := f.invoker.params["chapterId"]; ok {
		t.Fatal("chapterId should be omitted when not provided")
	}
}

func TestNextLinesValidation(t *testing.T) {
	f := newFixture(t, 10)

	cases := []struct {
		name string
		body string
	}{
		{"missing content", `{"cursorPosition":3}`},
		{"blank content", `{"content":"  ","cursorPosition":3}`},
		{"missing cursor", `{"content":"It was dusk"}`},
		{"negative cursor", `{"content":"It was dusk","cursorPosition":-1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.request(t, http.MethodPost, "/v1/stories/story-1/nextlines", "user-1", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestNextLinesRequiresUser(t *testing.T) {
	f := newFixture(t, 10)

	rec := f.request(t, http.MethodPost, "/v1/stories/story-1/nextlines", "", `{"content":"x","cursorPosition":0}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestNextLinesQuotaExceeded(t *testing.T) {
	f := newFixture(t, 1)

	rec := f.request(t, http.MethodPost, "/v1/stories/story-1/nextlines", "user-1", `{"content":"x","cursorPosition":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec = f.request(t, http.MethodPost, "/v1/stories/story-1/nextlines", "user-1", `{"content":"x","cursorPosition":0}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}

func TestNextLinesAgentFailure(t *testing.T) {
	f := newFixture(t, 10)
	f.invoker.err = errors.New("agent unreachable")

	rec := f.request(t, http.MethodPost, "/v1/stories/story-1/nextlines", "user-1", `{"content":"x","cursorPosition":0}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}
