package claude

import (
	"encoding/json"
	"fmt"
	"strings"

	"quadro/internal/domain"
)

// OutputKind is the classifier's verdict for one raw stdout line
type OutputKind string

const (
	KindAssistant  OutputKind = "assistant_message"
	KindToolUse    OutputKind = "tool_use"
	KindToolResult OutputKind = "tool_result"
	KindResult     OutputKind = "result"
	KindError      OutputKind = "error"
	KindTodos      OutputKind = "todos"
	KindRaw        OutputKind = "raw"
	KindSkip       OutputKind = "skip"
)

// Classified is the interpretation of one executor output line. Kind drives
// which event the session manager emits; Role is the message role when the
// content is worth persisting.
type Classified struct {
	Content       string
	Kind          OutputKind
	Role          domain.MessageRole
	StatusMessage string
	Todos         []domain.Todo
}

// streamLine mirrors the claude stream-json envelope
type streamLine struct {
	Type    string          `json:"type"`
	Subtype string          `json:"subtype"`
	Message *streamMessage  `json:"message"`
	Result  string          `json:"result"`
	IsError bool            `json:"is_error"`
	Error   json.RawMessage `json:"error"`
}

type streamMessage struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	Name    string          `json:"name"`
	Input   json.RawMessage `json:"input"`
	Content json.RawMessage `json:"content"`
}

type todoWriteInput struct {
	Todos []domain.Todo `json:"todos"`
}

// StreamParser classifies agent stream-json output lines. Parsing is
// best-effort: malformed JSON degrades to raw passthrough and never fails.
type StreamParser struct{}

// NewStreamParser creates a stream parser
func NewStreamParser() *StreamParser {
	return &StreamParser{}
}

// Classify interprets one raw stdout line
func (p *StreamParser) Classify(line string) Classified {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Classified{Kind: KindSkip}
	}

	var parsed streamLine
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		// Not JSON at all: pass the text through untouched
		return Classified{Kind: KindRaw, Content: line, Role: domain.RoleAssistant}
	}

	switch parsed.Type {
	case "system":
		// Init/config lines, not user-visible output
		return Classified{Kind: KindSkip}

	case "assistant":
		return p.classifyAssistant(parsed, line)

	case "user":
		return p.classifyToolResult(parsed)

	case "result":
		if parsed.IsError {
			return Classified{
				Content:       parsed.Result,
				Kind:          KindError,
				Role:          domain.RoleSystem,
				StatusMessage: "Executor reported an error",
			}
		}
		return Classified{
			Content:       parsed.Result,
			Kind:          KindResult,
			Role:          domain.RoleAssistant,
			StatusMessage: "Finishing up",
		}

	case "error":
		return Classified{
			Content:       string(parsed.Error),
			Kind:          KindError,
			Role:          domain.RoleSystem,
			StatusMessage: "Executor reported an error",
		}
	}

	// Unrecognized but non-empty: raw passthrough
	return Classified{Kind: KindRaw, Content: line, Role: domain.RoleAssistant}
}

func (p *StreamParser) classifyAssistant(parsed streamLine, raw string) Classified {
	if parsed.Message == nil {
		return Classified{Kind: KindRaw, Content: raw, Role: domain.RoleAssistant}
	}

	var texts []string
	for _, block := range parsed.Message.Content {
		switch block.Type {
		case "text":
			if strings.TrimSpace(block.Text) != "" {
				texts = append(texts, block.Text)
			}

		case "tool_use":
			if block.Name == "TodoWrite" {
				var input todoWriteInput
				if err := json.Unmarshal(block.Input, &input); err == nil && len(input.Todos) > 0 {
					return Classified{
						Kind:          KindTodos,
						StatusMessage: activeTodoForm(input.Todos),
						Todos:         input.Todos,
					}
				}
			}
			return Classified{
				Content:       describeToolUse(block),
				Kind:          KindToolUse,
				Role:          domain.RoleTool,
				StatusMessage: fmt.Sprintf("Using %s", block.Name),
			}
		}
	}

	if len(texts) == 0 {
		return Classified{Kind: KindSkip}
	}
	return Classified{
		Content:       strings.Join(texts, "\n"),
		Kind:          KindAssistant,
		Role:          domain.RoleAssistant,
		StatusMessage: "Working",
	}
}

func (p *StreamParser) classifyToolResult(parsed streamLine) Classified {
	if parsed.Message == nil {
		return Classified{Kind: KindSkip}
	}

	for _, block := range parsed.Message.Content {
		if block.Type != "tool_result" {
			continue
		}
		return Classified{
			Content:       toolResultText(block.Content),
			Kind:          KindToolResult,
			Role:          domain.RoleTool,
			StatusMessage: "Processing tool result",
		}
	}
	return Classified{Kind: KindSkip}
}

// describeToolUse renders a short human-readable summary of a tool call
func describeToolUse(block contentBlock) string {
	if len(block.Input) == 0 {
		return block.Name
	}

	var input map[string]any
	if err := json.Unmarshal(block.Input, &input); err != nil {
		return block.Name
	}

	// Common single-argument tools read better with the argument inline
	for _, key := range []string{"command", "file_path", "path", "pattern", "url"} {
		if v, ok := input[key].(string); ok && v != "" {
			return fmt.Sprintf("%s: %s", block.Name, v)
		}
	}
	return block.Name
}

// toolResultText extracts displayable text from a tool_result content field,
// which can be a plain string or a list of content blocks.
func toolResultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var texts []string
		for _, b := range blocks {
			if b.Type == "text" && b.Text != "" {
				texts = append(texts, b.Text)
			}
		}
		return strings.Join(texts, "\n")
	}
	return string(raw)
}

// activeTodoForm picks the in-progress todo's display form for the status line
func activeTodoForm(todos []domain.Todo) string {
	for _, todo := range todos {
		if todo.Status == "in_progress" && todo.ActiveForm != "" {
			return todo.ActiveForm
		}
	}
	return "Updating todo list"
}
