package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/goccy/go-json"
)

// gitHostPatterns match the repository URLs we know how to normalize.
var gitHostPatterns = []struct {
	kind string
	host string
	re   *regexp.Regexp
}{
	{"GitHub", "github.com", regexp.MustCompile(`^(https?://)?(www\.)?github\.com/([^/]+)/([^/]+?)(\.git)?/?$`)},
	{"GitLab", "gitlab.com", regexp.MustCompile(`^(https?://)?(www\.)?gitlab\.com/([^/]+)/([^/]+?)(\.git)?/?$`)},
	{"Bitbucket", "bitbucket.org", regexp.MustCompile(`^(https?://)?(www\.)?bitbucket\.org/([^/]+)/([^/]+?)(\.git)?/?$`)},
}

func (d *Deps) gitRepoURLTool() *Tool {
	return &Tool{
		Definition: &assistant.ToolDefinition{
			Name:        "parse_git_repo_url",
			Description: "Parse and validate a Git repository URL.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"repo_url": {"type": "string", "description": "Git repository URL to parse"}
				},
				"required": ["repo_url"]
			}`),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				RepoURL string `json:"repo_url"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", err
			}
			return parseGitRepoURL(strings.TrimSpace(in.RepoURL)), nil
		},
	}
}

func parseGitRepoURL(repoURL string) string {
	for _, p := range gitHostPatterns {
		m := p.re.FindStringSubmatch(repoURL)
		if m == nil {
			continue
		}
		owner, repo := m[3], m[4]

		httpsURL := fmt.Sprintf("https://%s/%s/%s.git", p.host, owner, repo)
		sshURL := fmt.Sprintf("git@%s:%s/%s.git", p.host, owner, repo)

		return fmt.Sprintf(`Repository information:
- Type: %s
- Owner: %s
- Repository: %s
- HTTPS URL: %s
- SSH URL: %s
- Clone command: git clone %s`, p.kind, owner, repo, httpsURL, sshURL, httpsURL)
	}
	return "Invalid or unsupported Git repository URL format."
}

func (d *Deps) codeSnippetTool() *Tool {
	return &Tool{
		Definition: &assistant.ToolDefinition{
			Name:        "generate_code_snippet",
			Description: "Generate a code snippet example for common programming tasks.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"language": {"type": "string", "description": "Programming language, e.g. python, javascript, java"},
					"task_description": {"type": "string", "description": "Description of the task to generate code for"}
				},
				"required": ["language", "task_description"]
			}`),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Language        string `json:"language"`
				TaskDescription string `json:"task_description"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", err
			}
			return lookupCodeSnippet(in.Language, in.TaskDescription), nil
		},
	}
}

func lookupCodeSnippet(language, taskDescription string) string {
	language = strings.ToLower(strings.TrimSpace(language))
	task := strings.ToLower(taskDescription)

	if byTask, ok := codeSnippets[language]; ok {
		for _, key := range snippetTaskOrder {
			snippet, ok := byTask[key]
			if !ok {
				continue
			}
			if strings.Contains(task, key) {
				return fmt.Sprintf("```%s\n%s\n```", language, snippet)
			}
		}
	}
	return fmt.Sprintf("No pre-defined code snippet available for '%s' in %s. Try asking the coding assistant for a tailored example.", taskDescription, language)
}

const codingAssistantSystemPrompt = "You are a helpful programming assistant. Provide clear, accurate, and concise answers to technical and coding questions. Include code examples where appropriate."

func (d *Deps) codingAssistantTool() *Tool {
	return &Tool{
		Definition: &assistant.ToolDefinition{
			Name:        "ask_coding_assistant",
			Description: "Get coding or technical answers from the configured language model.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"question": {"type": "string", "description": "Coding or technical question to ask"},
					"language": {"type": "string", "description": "Optional programming language for context"}
				},
				"required": ["question"]
			}`),
		},
		// LLM round trips regularly outlive the default tool budget.
		Timeout: 60 * time.Second,
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Question string `json:"question"`
				Language string `json:"language"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", err
			}
			if d.Chat == nil {
				return "Unable to answer: no chat provider is configured for coding questions.", nil
			}

			prompt := fmt.Sprintf("As a programming expert, please answer this technical question: %s", in.Question)
			if in.Language != "" {
				prompt = fmt.Sprintf("As an expert %s developer, please answer this technical question: %s", in.Language, in.Question)
			}

			temperature := 0.2
			result, err := d.Chat.Chat(ctx, &assistant.ChatRequest{
				System: codingAssistantSystemPrompt,
				Messages: []*assistant.ChatMessage{
					{Role: assistant.RoleUser, Content: prompt},
				},
				Temperature: &temperature,
				MaxTokens:   1024,
			})
			if err != nil {
				return "", fmt.Errorf("error getting an answer: %w", err)
			}

			return "Answer:\n\n" + result.Text, nil
		},
	}
}
