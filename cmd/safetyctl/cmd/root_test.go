package cmd_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/notifyhub/safety-dispatch/cmd/safetyctl/cmd"
	"github.com/notifyhub/safety-dispatch/internal/domain"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := cmd.NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestAnalyzeEmail(t *testing.T) {
	out, err := run(t, "analyze-email", "Jane@GMIAL.COM", "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0]["corrected"] != "jane@gmail.com" {
		t.Errorf("expected correction, got %v", got[0])
	}
	if got[1]["is_valid"] != false {
		t.Errorf("expected invalid address, got %v", got[1])
	}
}

func TestAnalyzeEmail_Override(t *testing.T) {
	out, err := run(t, "analyze-email", "--override", "old@x.io=new@x.io", "old@x.io")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"new@x.io"`) {
		t.Errorf("expected override to apply, got %s", out)
	}
}

func TestMapURL(t *testing.T) {
	out, err := run(t, "map-url", "--lat", "51.5", "--lng=-0.12", "--here-key", "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if got["google_maps"] != "https://maps.google.com/?q=51.5,-0.12" {
		t.Errorf("google link: %q", got["google_maps"])
	}
	if !strings.Contains(got["static_map"], "apiKey=k") {
		t.Errorf("static map: %q", got["static_map"])
	}

	if _, err := run(t, "map-url", "--lat", "51.5"); err == nil {
		t.Error("expected error without --lng")
	}
}

func TestEmailTest_Unconfigured(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("EMAILJS_SERVICE_ID", "")
	_, err := run(t, "email-test", "a@example.com")
	if !errors.Is(err, domain.ErrRelayUnconfigured) {
		t.Errorf("expected ErrRelayUnconfigured, got %v", err)
	}
}
