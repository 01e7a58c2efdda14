package tools

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func echoTool(name string) *Tool {
	return &Tool{
		Definition: &assistant.ToolDefinition{
			Name:        name,
			Description: "echoes its arguments",
			Parameters:  json.RawMessage(`{"type": "object"}`),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			return string(args), nil
		},
	}
}

func TestRegistry(t *testing.T) {
	t.Run("register and get", func(t *testing.T) {
		reg := NewRegistry(testLogger())
		require.NoError(t, reg.Register(echoTool("echo")))

		tool, err := reg.Get("echo")
		require.NoError(t, err)
		assert.Equal(t, "echo", tool.Definition.Name)
		assert.Equal(t, defaultTimeout, tool.Timeout)
		assert.True(t, reg.Has("echo"))
		assert.False(t, reg.Has("nope"))
	})

	t.Run("duplicate name rejected", func(t *testing.T) {
		reg := NewRegistry(testLogger())
		require.NoError(t, reg.Register(echoTool("echo")))
		err := reg.Register(echoTool("echo"))
		assert.ErrorContains(t, err, "already registered")
	})

	t.Run("invalid tools rejected", func(t *testing.T) {
		reg := NewRegistry(testLogger())
		assert.Error(t, reg.Register(nil))
		assert.Error(t, reg.Register(&Tool{}))
		assert.Error(t, reg.Register(&Tool{
			Definition: &assistant.ToolDefinition{Name: "no-handler"},
		}))
	})

	t.Run("definitions lists every tool", func(t *testing.T) {
		reg := NewRegistry(testLogger())
		require.NoError(t, reg.Register(echoTool("one")))
		require.NoError(t, reg.Register(echoTool("two")))
		assert.Len(t, reg.Definitions(), 2)
	})
}

func TestExecutorExecuteOne(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		reg := NewRegistry(testLogger())
		require.NoError(t, reg.Register(echoTool("echo")))
		exec := NewExecutor(reg, testLogger())

		res := exec.ExecuteOne(ctx, &assistant.ToolCall{
			ID:        "call_1",
			Name:      "echo",
			Arguments: json.RawMessage(`{"a": 1}`),
		})
		assert.Empty(t, res.Error)
		assert.Equal(t, `{"a": 1}`, res.Content)
		assert.Equal(t, "call_1", res.ToolCallID)
	})

	t.Run("unknown tool", func(t *testing.T) {
		reg := NewRegistry(testLogger())
		exec := NewExecutor(reg, testLogger())

		res := exec.ExecuteOne(ctx, &assistant.ToolCall{ID: "call_1", Name: "missing"})
		assert.Contains(t, res.Error, "not found")
	})

	t.Run("invalid arguments", func(t *testing.T) {
		reg := NewRegistry(testLogger())
		require.NoError(t, reg.Register(echoTool("echo")))
		exec := NewExecutor(reg, testLogger())

		res := exec.ExecuteOne(ctx, &assistant.ToolCall{
			ID:        "call_1",
			Name:      "echo",
			Arguments: json.RawMessage(`{broken`),
		})
		assert.Contains(t, res.Error, "invalid arguments")
	})

	t.Run("handler error", func(t *testing.T) {
		reg := NewRegistry(testLogger())
		require.NoError(t, reg.Register(&Tool{
			Definition: &assistant.ToolDefinition{Name: "boom"},
			Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				return "", errors.New("kaput")
			},
		}))
		exec := NewExecutor(reg, testLogger())

		res := exec.ExecuteOne(ctx, &assistant.ToolCall{ID: "call_1", Name: "boom"})
		assert.Equal(t, "kaput", res.Error)
	})

	t.Run("timeout", func(t *testing.T) {
		reg := NewRegistry(testLogger())
		require.NoError(t, reg.Register(&Tool{
			Definition: &assistant.ToolDefinition{Name: "slow"},
			Timeout:    50 * time.Millisecond,
			Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				select {
				case <-time.After(5 * time.Second):
					return "too late", nil
				case <-ctx.Done():
					return "", ctx.Err()
				}
			},
		}))
		exec := NewExecutor(reg, testLogger())

		res := exec.ExecuteOne(ctx, &assistant.ToolCall{ID: "call_1", Name: "slow"})
		assert.Contains(t, res.Error, "execution timed out")
	})
}

func TestExecutorKeepsCallOrder(t *testing.T) {
	reg := NewRegistry(testLogger())
	require.NoError(t, reg.Register(&Tool{
		Definition: &assistant.ToolDefinition{Name: "slow"},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			time.Sleep(50 * time.Millisecond)
			return "slow done", nil
		},
	}))
	require.NoError(t, reg.Register(echoTool("fast")))
	exec := NewExecutor(reg, testLogger())

	results := exec.Execute(context.Background(), []*assistant.ToolCall{
		{ID: "call_1", Name: "slow"},
		{ID: "call_2", Name: "fast", Arguments: json.RawMessage(`"hi"`)},
	})

	require.Len(t, results, 2)
	assert.Equal(t, "call_1", results[0].ToolCallID)
	assert.Equal(t, "slow done", results[0].Content)
	assert.Equal(t, "call_2", results[1].ToolCallID)
}

func TestResultMessage(t *testing.T) {
	t.Run("success content", func(t *testing.T) {
		res := &Result{ToolCallID: "call_1", Name: "echo", Content: "hello"}
		msg := res.Message()
		assert.Equal(t, assistant.RoleTool, msg.Role)
		assert.Equal(t, "echo", msg.Name)
		assert.Equal(t, "call_1", msg.ToolCallID)
		assert.Equal(t, "hello", msg.Content)
	})

	t.Run("error wraps content", func(t *testing.T) {
		res := &Result{ToolCallID: "call_1", Name: "echo", Error: "kaput"}
		assert.Equal(t, "An error occurred: kaput", res.Message().Content)
	})
}

func TestRegisterBuiltins(t *testing.T) {
	reg := NewRegistry(testLogger())
	require.NoError(t, RegisterBuiltins(reg, &Deps{Logger: testLogger()}))

	expected := []string{
		"get_weather", "search_web", "get_news", "get_stock_price",
		"get_time", "set_reminder", "currency_converter", "generate_password",
		"get_joke", "generate_qr_code", "parse_git_repo_url",
		"generate_code_snippet", "ask_coding_assistant", "create_agenda",
		"calculate_roi", "send_email", "send_email_with_attachment",
		"search_files",
	}
	for _, name := range expected {
		assert.True(t, reg.Has(name), "missing builtin %s", name)
	}
	assert.Len(t, reg.Definitions(), len(expected))
}
