package logger

import "testing"

func TestMaskAuthorization(t *testing.T) {
	got := MaskAuthorization("Bearer abcdef1234")
	want := "Bearer ****1234"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestMaskJSON(t *testing.T) {
	input := map[string]any{
		"webhook_secret": "whsec_abc123",
		"token":          "abc12345",
		"nested": map[string]any{
			"api_key": "key_12345678",
		},
	}
	masked := MaskJSON(input)
	if masked["webhook_secret"] != "****c123" {
		t.Fatalf("expected masked webhook_secret, got %v", masked["webhook_secret"])
	}
	if masked["token"] != "****2345" {
		t.Fatalf("expected masked token, got %v", masked["token"])
	}
	nested, ok := masked["nested"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested map")
	}
	if nested["api_key"] != "****5678" {
		t.Fatalf("expected masked api_key, got %v", nested["api_key"])
	}
}

func TestMaskHeadersMasksSignature(t *testing.T) {
	headers := map[string][]string{
		"Webhook-Signature": {"v1,Zm9vYmFyYmF6cXV4"},
		"Content-Type":      {"application/json"},
	}
	masked := MaskHeaders(headers)
	if masked["Webhook-Signature"] != "****cXV4" {
		t.Fatalf("expected signature to be masked, got %q", masked["Webhook-Signature"])
	}
	if masked["Content-Type"] != "application/json" {
		t.Fatalf("expected content type untouched, got %q", masked["Content-Type"])
	}
}
