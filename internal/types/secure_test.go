package types

import (
	"encoding/json"
	"fmt"
	"testing"
)

func TestSecretStringRedactsInFmt(t *testing.T) {
	secret := SecretString("postgres://user:hunter2@db:5432/app")

	if got := fmt.Sprintf("%v", secret); got != "***REDACTED***" {
		t.Errorf("Sprintf = %q, want redacted placeholder", got)
	}
	if got := fmt.Sprintf("%s", secret); got != "***REDACTED***" {
		t.Errorf("Sprintf %%s = %q, want redacted placeholder", got)
	}
}

func TestSecretStringRedactsInJSON(t *testing.T) {
	payload := struct {
		URL SecretString `json:"url"`
	}{URL: "postgres://user:hunter2@db:5432/app"}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	if string(data) != `{"url":"***REDACTED***"}` {
		t.Errorf("Marshal = %s, want redacted", data)
	}
}

func TestSecretStringUnmask(t *testing.T) {
	secret := SecretString("raw-value")
	if secret.Unmask() != "raw-value" {
		t.Errorf("Unmask = %q, want raw-value", secret.Unmask())
	}
}
