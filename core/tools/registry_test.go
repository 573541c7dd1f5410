package tools

import (
	"context"
	"errors"
	"testing"
)

type lookupParams struct {
	OrderID string `json:"order_id"`
}

func TestExecuteToolReturnsStructuredSuccess(t *testing.T) {
	registry := NewRegistry(WithDefinitions(
		New("lookup_order", "Look up an order", func(_ context.Context, p lookupParams) (any, error) {
			return "order " + p.OrderID + " is out for delivery", nil
		}),
	))

	result := registry.ExecuteTool(context.Background(), "lookup_order", `{"order_id":"42"}`)
	if !result.OK {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Result != "order 42 is out for delivery" {
		t.Fatalf("unexpected result: %v", result.Result)
	}
}

func TestExecuteToolReportsMissingDefinition(t *testing.T) {
	registry := NewRegistry(WithDefinitions())

	result := registry.ExecuteTool(context.Background(), "unknown_tool", "{}")
	if result.OK {
		t.Fatal("expected failure for unknown tool")
	}
	if result.Code != ErrorCodeNoToolDefinition {
		t.Fatalf("expected code %s, got %s", ErrorCodeNoToolDefinition, result.Code)
	}
}

func TestExecuteToolReportsUnloadedRegistry(t *testing.T) {
	registry := NewRegistry()

	result := registry.ExecuteTool(context.Background(), "anything", "{}")
	if result.OK || result.Code != ErrorCodeNotConfigured {
		t.Fatalf("expected not_configured, got %+v", result)
	}
}

func TestExecuteToolWrapsHandlerError(t *testing.T) {
	registry := NewRegistry(WithDefinitions(
		New("flaky", "Always fails", func(_ context.Context, _ struct{}) (any, error) {
			return nil, errors.New("backend unavailable")
		}),
	))

	result := registry.ExecuteTool(context.Background(), "flaky", "")
	if result.OK {
		t.Fatal("expected failure")
	}
	if result.Code != ErrorCodeExecutionFailed || result.Error != "backend unavailable" {
		t.Fatalf("expected structured execution failure, got %+v", result)
	}
}

func TestExecuteToolReportsMalformedArguments(t *testing.T) {
	registry := NewRegistry(WithDefinitions(
		New("lookup_order", "Look up an order", func(_ context.Context, p lookupParams) (any, error) {
			return p.OrderID, nil
		}),
	))

	result := registry.ExecuteTool(context.Background(), "lookup_order", "{not json")
	if result.OK || result.Code != ErrorCodeExecutionFailed {
		t.Fatalf("expected decode failure surfaced as structured error, got %+v", result)
	}
}

func TestLoadToolDefinitionsUsesLoader(t *testing.T) {
	registry := NewRegistry(WithLoader(func(context.Context) ([]Definition, error) {
		return []Definition{
			New("from_loader", "Loaded tool", func(_ context.Context, _ struct{}) (any, error) {
				return "loaded", nil
			}),
		}, nil
	}))

	if err := registry.LoadToolDefinitions(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := registry.GetToolDefinition("from_loader"); !ok {
		t.Fatal("expected loader-provided definition to be registered")
	}
}

func TestNewReflectsParameterSchema(t *testing.T) {
	def := New("lookup_order", "Look up an order", func(_ context.Context, p lookupParams) (any, error) {
		return nil, nil
	})

	if def.Parameters == nil {
		t.Fatal("expected reflected parameter schema")
	}
	if _, ok := def.Parameters.Properties.Get("order_id"); !ok {
		t.Fatal("expected order_id property in schema")
	}
}
