// Package health reports which bot features a configuration enables.
package health

import (
	"github.com/alekspetrov/dobby/internal/config"
	"github.com/alekspetrov/dobby/internal/taskstore"
)

// Status represents feature status
type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusError
	StatusDisabled
)

// FeatureStatus represents a feature with its availability
type FeatureStatus struct {
	Name    string
	Enabled bool
	Status  Status
	Note    string
}

// Report contains all feature checks.
type Report struct {
	Features []FeatureStatus
	Store    string
}

// RunChecks inspects cfg. It does no network I/O.
func RunChecks(cfg *config.Config) *Report {
	report := &Report{Features: checkFeatures(cfg)}
	if cfg.Store != nil {
		report.Store = cfg.Store.Backend
	}
	return report
}

// Healthy reports whether no feature is in error.
func (r *Report) Healthy() bool {
	for _, f := range r.Features {
		if f.Status == StatusError {
			return false
		}
	}
	return true
}

func checkFeatures(cfg *config.Config) []FeatureStatus {
	features := []FeatureStatus{}

	feishuOK := cfg.Feishu != nil && cfg.Feishu.AppID != "" && cfg.Feishu.AppSecret != ""
	f := FeatureStatus{Name: "Feishu", Enabled: feishuOK, Status: StatusOK}
	if !feishuOK {
		f.Status = StatusError
		f.Note = "app_id/app_secret missing"
	}
	features = append(features, f)

	tokenSet := cfg.Feishu != nil && cfg.Feishu.VerificationToken != ""
	f = FeatureStatus{Name: "Verify", Enabled: tokenSet, Status: StatusOK}
	if !tokenSet {
		f.Status = StatusWarning
		f.Note = "callbacks are not token-checked"
	}
	features = append(features, f)

	features = append(features, checkStore(cfg))

	llm := cfg.LLMEnabled()
	f = FeatureStatus{Name: "LLM", Enabled: llm, Status: StatusOK}
	if !llm {
		f.Status = StatusWarning
		f.Note = "rule-based classification only"
	}
	features = append(features, f)

	// Native tasks ride on the Feishu app credentials.
	features = append(features, FeatureStatus{
		Name:    "Native",
		Enabled: feishuOK,
		Status:  boolToStatus(feishuOK),
	})

	console := cfg.Gateway != nil && cfg.Gateway.DevConsole
	features = append(features, FeatureStatus{
		Name:    "Console",
		Enabled: console,
		Status:  boolToStatus(console),
	})

	return features
}

func checkStore(cfg *config.Config) FeatureStatus {
	f := FeatureStatus{Name: "Store", Status: StatusError}
	if cfg.Store == nil {
		f.Note = "not configured"
		return f
	}
	switch cfg.Store.Backend {
	case taskstore.BackendBitable:
		if cfg.Bitable == nil || cfg.Bitable.AppToken == "" || cfg.Bitable.TableID == "" {
			f.Note = "bitable app_token/table_id missing"
			return f
		}
	case taskstore.BackendSQLite:
		if cfg.Store.SQLitePath == "" {
			f.Note = "sqlite_path missing"
			return f
		}
	default:
		f.Note = "unknown backend " + cfg.Store.Backend
		return f
	}
	f.Enabled = true
	f.Status = StatusOK
	return f
}

// boolToStatus converts bool to Status
func boolToStatus(enabled bool) Status {
	if enabled {
		return StatusOK
	}
	return StatusDisabled
}

// Symbol returns the symbol for a status
func (s Status) Symbol() string {
	switch s {
	case StatusOK:
		return "✓"
	case StatusWarning:
		return "○"
	case StatusError:
		return "✗"
	case StatusDisabled:
		return "·"
	default:
		return "?"
	}
}

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarning:
		return "warning"
	case StatusError:
		return "error"
	case StatusDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}
