package llm

import (
	"context"
	"errors"
	"testing"
)

func TestParseJSONObject_BareObject(t *testing.T) {
	obj, err := ParseJSONObject(`{"tenant": "Acme Corp", "rent": 5000}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj["tenant"] != "Acme Corp" {
		t.Errorf("unexpected tenant: %v", obj["tenant"])
	}
	if obj["rent"] != float64(5000) {
		t.Errorf("unexpected rent: %v", obj["rent"])
	}
}

func TestParseJSONObject_CodeFence(t *testing.T) {
	raw := "```json\n{\"pack_id\": \"lease\"}\n```"
	obj, err := ParseJSONObject(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj["pack_id"] != "lease" {
		t.Errorf("unexpected pack_id: %v", obj["pack_id"])
	}
}

func TestParseJSONObject_ProseAroundObject(t *testing.T) {
	raw := `Here are the extracted fields:
{"tenant": "Acme"}
Let me know if you need anything else.`
	obj, err := ParseJSONObject(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj["tenant"] != "Acme" {
		t.Errorf("unexpected tenant: %v", obj["tenant"])
	}
}

func TestParseJSONObject_NoObject(t *testing.T) {
	if _, err := ParseJSONObject("sorry, I cannot help with that"); err == nil {
		t.Fatal("expected error for response without JSON")
	}
}

type scriptedClient struct {
	responses []string
	errs      []error
	calls     int
}

func (c *scriptedClient) Complete(ctx context.Context, prompt string) (string, error) {
	i := c.calls
	c.calls++
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	return c.responses[i], c.errs[i]
}

func TestCompleteWithRetry_RetriesTransientErrors(t *testing.T) {
	c := &scriptedClient{
		responses: []string{"", "ok"},
		errs:      []error{&RetryableError{StatusCode: 529, Message: "overloaded"}, nil},
	}
	out, err := CompleteWithRetry(context.Background(), c, "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" {
		t.Errorf("unexpected output: %q", out)
	}
	if c.calls != 2 {
		t.Errorf("expected 2 calls, got %d", c.calls)
	}
}

func TestCompleteWithRetry_StopsOnPermanentError(t *testing.T) {
	permanent := errors.New("invalid api key")
	c := &scriptedClient{
		responses: []string{""},
		errs:      []error{permanent},
	}
	_, err := CompleteWithRetry(context.Background(), c, "prompt")
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if c.calls != 1 {
		t.Errorf("expected 1 call, got %d", c.calls)
	}
}
