package banner

import (
	"bytes"
	"strings"
	"testing"

	"github.com/alekspetrov/dobby/internal/health"
)

func TestStartupWithHealth(t *testing.T) {
	report := &health.Report{
		Store: "sqlite",
		Features: []health.FeatureStatus{
			{Name: "Feishu", Enabled: true, Status: health.StatusOK},
			{Name: "LLM", Status: health.StatusWarning, Note: "rule-based classification only"},
		},
	}

	var buf bytes.Buffer
	StartupWithHealth(&buf, "1.2.3", "127.0.0.1:9090", report)
	out := buf.String()

	for _, want := range []string{
		"DOBBY v1.2.3",
		"✓ Feishu",
		"○ LLM*",
		"* LLM: rule-based classification only",
		"Store:    sqlite",
		"Gateway:  127.0.0.1:9090",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("banner missing %q:\n%s", want, out)
		}
	}
}
