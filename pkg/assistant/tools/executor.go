package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// Result is the outcome of a single executed tool call.
type Result struct {
	ToolCallID string        `json:"tool_call_id"`
	Name       string        `json:"name"`
	Content    string        `json:"content,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Message converts the result into the tool message fed back to the model.
func (r *Result) Message() *assistant.ChatMessage {
	content := r.Content
	if r.Error != "" {
		content = fmt.Sprintf("An error occurred: %s", r.Error)
	}
	return &assistant.ChatMessage{
		Role:       assistant.RoleTool,
		Name:       r.Name,
		Content:    content,
		ToolCallID: r.ToolCallID,
	}
}

// Executor runs tool calls from a registry.
type Executor struct {
	registry *Registry
	logger   *logrus.Entry
}

// NewExecutor creates an executor over the given registry.
func NewExecutor(registry *Registry, logger *logrus.Entry) *Executor {
	return &Executor{
		registry: registry,
		logger:   logger,
	}
}

// Execute runs every requested call concurrently and returns results in
// call order.
func (e *Executor) Execute(ctx context.Context, calls []*assistant.ToolCall) []*Result {
	results := make([]*Result, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, c *assistant.ToolCall) {
			defer wg.Done()
			results[idx] = e.ExecuteOne(ctx, c)
		}(i, call)
	}
	wg.Wait()

	return results
}

// ExecuteOne runs a single call under the tool's timeout. The handler runs
// in its own goroutine with a buffered channel so a timed-out tool cannot
// leak a blocked sender.
func (e *Executor) ExecuteOne(ctx context.Context, call *assistant.ToolCall) *Result {
	start := time.Now()
	result := &Result{
		ToolCallID: call.ID,
		Name:       call.Name,
	}

	tool, err := e.registry.Get(call.Name)
	if err != nil {
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}

	if len(call.Arguments) > 0 {
		var tmp interface{}
		if err := json.Unmarshal(call.Arguments, &tmp); err != nil {
			result.Error = fmt.Sprintf("invalid arguments: %s", err.Error())
			result.Duration = time.Since(start)
			return result
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, tool.Timeout)
	defer cancel()

	type outcome struct {
		content string
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		content, err := tool.Handler(execCtx, call.Arguments)
		select {
		case done <- outcome{content, err}:
		case <-execCtx.Done():
		}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			result.Error = out.err.Error()
			e.logger.WithError(out.err).WithField("tool", call.Name).Warnln("tool execution failed")
		} else {
			result.Content = out.content
		}
	case <-execCtx.Done():
		result.Error = fmt.Sprintf("execution timed out after %s", tool.Timeout)
		e.logger.WithField("tool", call.Name).Warnln(result.Error)
	}

	result.Duration = time.Since(start)
	return result
}
