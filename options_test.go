package beaker

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/log"

	"github.com/branched-services/go-beaker/teal"
)

func TestDefaultCoordinatorConfig(t *testing.T) {
	config := defaultCoordinatorConfig()

	t.Run("sequential by default", func(t *testing.T) {
		if config.concurrency != 1 {
			t.Errorf("Expected concurrency to be 1, got %d", config.concurrency)
		}
	})

	t.Run("root logger by default", func(t *testing.T) {
		if config.logger == nil {
			t.Error("Expected a default logger")
		}
	})
}

func TestWithConcurrency(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{4, 4},
		{1, 1},
		{0, 1},
		{-3, 1},
	}
	for _, tt := range tests {
		config := defaultCoordinatorConfig()
		WithConcurrency(tt.in)(config)
		if config.concurrency != tt.want {
			t.Errorf("WithConcurrency(%d): concurrency = %d, want %d", tt.in, config.concurrency, tt.want)
		}
	}
}

func TestWithLogger(t *testing.T) {
	t.Run("sets logger", func(t *testing.T) {
		config := defaultCoordinatorConfig()
		l := log.NewLogger(log.DiscardHandler())
		WithLogger(l)(config)
		if config.logger != l {
			t.Error("Expected logger to be replaced")
		}
	})

	t.Run("ignores nil", func(t *testing.T) {
		config := defaultCoordinatorConfig()
		WithLogger(nil)(config)
		if config.logger == nil {
			t.Error("Expected nil logger to be ignored")
		}
	})
}

func TestAppOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		config := defaultAppConfig()
		if config.version != teal.DefaultVersion {
			t.Errorf("Expected version %d, got %d", teal.DefaultVersion, config.version)
		}
		if !config.defaults {
			t.Error("Expected default bare actions to be enabled")
		}
		if config.source != nil {
			t.Error("Expected no source override")
		}
	})

	t.Run("applied", func(t *testing.T) {
		config := defaultAppConfig()
		for _, opt := range []AppOption{
			WithDescription("a vault"),
			WithVersion(6),
			WithoutDefaultBareActions(),
			WithSource(func(context.Context) (string, string, error) { return "a", "c", nil }),
		} {
			opt(config)
		}
		if config.description != "a vault" || config.version != 6 || config.defaults || config.source == nil {
			t.Errorf("config = %+v", config)
		}
	})
}

func TestMethodOptions(t *testing.T) {
	config := &methodConfig{}
	pred := OnlyCreator()
	for _, opt := range []MethodOption{Authorize(pred), ReadOnly(), Describe("reads a value")} {
		opt(config)
	}
	if config.authorize != pred {
		t.Error("Expected authorize predicate to be set")
	}
	if !config.readOnly {
		t.Error("Expected readOnly to be true")
	}
	if config.description != "reads a value" {
		t.Errorf("Expected description %q, got %q", "reads a value", config.description)
	}
}

func TestLSigOptions(t *testing.T) {
	config := defaultLSigConfig()
	if config.version != teal.DefaultVersion {
		t.Errorf("Expected version %d, got %d", teal.DefaultVersion, config.version)
	}

	WithTemplateVariables(ownerVar)(config)
	WithTemplateVariables(amountVar)(config)
	WithLSigVersion(5)(config)

	if len(config.vars) != 2 || config.vars[0] != ownerVar || config.vars[1] != amountVar {
		t.Errorf("vars = %v", config.vars)
	}
	if config.version != 5 {
		t.Errorf("Expected version 5, got %d", config.version)
	}
}
