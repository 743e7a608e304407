package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"appguard-lab/internal/config"
	"appguard-lab/internal/domain/models"
	"appguard-lab/internal/sources"
	"appguard-lab/pkg/logger"
)

// Supported providers
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderClaude = "claude"
)

// ErrUnparseable is returned when the model answer carries no usable JSON
var ErrUnparseable = errors.New("advisor response is not valid JSON")

const (
	analysisSystemPrompt = "You are a cybersecurity expert specializing in Android app security analysis."
	chatSystemPrompt     = "You are a helpful cybersecurity assistant for Android mobile security. Answer concisely."
	chatPrimerReply      = "I understand. I am a cybersecurity assistant ready to help with Android security questions."
)

var providerDefaults = map[string]struct {
	name    string
	baseURL string
	model   string
}{
	ProviderOpenAI: {"OpenAI", "https://api.openai.com/v1", "gpt-3.5-turbo"},
	ProviderGemini: {"Gemini", "https://generativelanguage.googleapis.com/v1beta", "gemini-pro"},
	ProviderClaude: {"Claude", "https://api.anthropic.com/v1", "claude-3-haiku-20240307"},
}

// Advisor asks a hosted language model for a second opinion on an app and
// serves the security assistant chat.
type Advisor struct {
	*sources.BaseAdapter
	provider    string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	logger      *logger.Logger
}

// NewAdvisor creates a new advisor client
func NewAdvisor(cfg config.AdvisorConfig, log *logger.Logger) *Advisor {
	provider := strings.ToLower(cfg.Provider)
	defaults, ok := providerDefaults[provider]
	if !ok {
		provider = ProviderOpenAI
		defaults = providerDefaults[ProviderOpenAI]
	}

	base := sources.NewBaseAdapter("advisor", defaults.name+" advisor", cfg.AdapterConfig)

	a := &Advisor{
		BaseAdapter: base,
		provider:    provider,
		model:       cfg.Model,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: base.Config().Timeout,
		},
		logger: log.WithComponent("advisor"),
	}
	if a.model == "" {
		a.model = defaults.model
	}
	if a.baseURL == "" {
		a.baseURL = defaults.baseURL
	}
	if a.temperature == 0 {
		a.temperature = 0.3
	}
	if a.maxTokens == 0 {
		a.maxTokens = 500
	}
	return a
}

// Provider returns the configured provider name
func (a *Advisor) Provider() string {
	return a.provider
}

// Model returns the model identifier sent to the provider
func (a *Advisor) Model() string {
	return a.model
}

type message struct {
	Role    string
	Content string
}

// AnalyzeApp requests a structured risk opinion for one application
func (a *Advisor) AnalyzeApp(ctx context.Context, app models.AppFacts) (*models.AdvisorOpinion, error) {
	if !a.IsConfigured() {
		return nil, sources.ErrNotConfigured
	}

	content, err := a.complete(ctx, analysisSystemPrompt, []message{
		{Role: "user", Content: buildAnalysisPrompt(app)},
	})
	if err != nil {
		return nil, err
	}

	opinion, err := parseOpinion(content)
	if err != nil {
		a.logger.Warn().Err(err).Str("package", app.PackageName).Msg("failed to parse advisor response")
		return nil, err
	}
	return opinion, nil
}

// Chat answers a free-form security question, continuing history
func (a *Advisor) Chat(ctx context.Context, history []models.ChatMessage, question string) (*models.ChatReply, error) {
	if !a.IsConfigured() {
		return nil, sources.ErrNotConfigured
	}
	if strings.TrimSpace(question) == "" {
		return nil, errors.New("empty question")
	}

	msgs := make([]message, 0, len(history)+1)
	for _, m := range history {
		role := "user"
		if m.Role == "assistant" || m.Role == "model" {
			role = "assistant"
		}
		msgs = append(msgs, message{Role: role, Content: m.Content})
	}
	msgs = append(msgs, message{Role: "user", Content: question})

	content, err := a.complete(ctx, chatSystemPrompt, msgs)
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, sources.Unavailable("received an empty response from the model")
	}

	return &models.ChatReply{Reply: content, Provider: a.provider, Model: a.model}, nil
}

func buildAnalysisPrompt(app models.AppFacts) string {
	var sb strings.Builder
	sb.WriteString("Analyze the security risk of this Android app and provide a detailed assessment.\n\n")
	fmt.Fprintf(&sb, "App Name: %s\n", app.AppName)
	fmt.Fprintf(&sb, "Package: %s\n", app.PackageName)
	fmt.Fprintf(&sb, "Total Permissions: %d\n", len(app.Permissions))
	fmt.Fprintf(&sb, "Dangerous Permissions: %d\n\n", len(app.DangerousPermissions))
	sb.WriteString("Dangerous Permissions List:\n")
	sb.WriteString(strings.Join(app.DangerousPermissions, "\n"))
	sb.WriteString("\n\nPlease provide:\n")
	sb.WriteString("1. Risk Level (SAFE, RISKY, or MALWARE)\n")
	sb.WriteString("2. Security Score (0-100)\n")
	sb.WriteString("3. Key Security Concerns\n")
	sb.WriteString("4. Recommendations\n\n")
	sb.WriteString("Respond ONLY with valid JSON format:\n")
	sb.WriteString(`{"riskLevel": "SAFE|RISKY|MALWARE", "securityScore": 85, "concerns": ["concern1"], "recommendations": ["recommendation1"]}`)
	return sb.String()
}

// parseOpinion extracts the JSON object from a model answer, tolerating
// markdown fences and surrounding prose.
func parseOpinion(content string) (*models.AdvisorOpinion, error) {
	content = strings.TrimSpace(content)
	content = strings.ReplaceAll(content, "```json", "")
	content = strings.ReplaceAll(content, "```", "")

	startIdx := strings.Index(content, "{")
	endIdx := strings.LastIndex(content, "}")
	if startIdx == -1 || endIdx <= startIdx {
		return nil, ErrUnparseable
	}
	content = content[startIdx : endIdx+1]

	var opinion models.AdvisorOpinion
	if err := json.Unmarshal([]byte(content), &opinion); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	if strings.TrimSpace(opinion.RiskLevel) == "" {
		return nil, fmt.Errorf("%w: missing riskLevel", ErrUnparseable)
	}
	opinion.Normalize()
	return &opinion, nil
}

func (a *Advisor) complete(ctx context.Context, system string, msgs []message) (string, error) {
	switch a.provider {
	case ProviderClaude:
		return a.callClaude(ctx, system, msgs)
	case ProviderGemini:
		return a.callGemini(ctx, system, msgs)
	default:
		return a.callOpenAI(ctx, system, msgs)
	}
}

func (a *Advisor) post(ctx context.Context, url string, body any, headers map[string]string) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, sources.Unavailable("request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, sources.Unavailable("failed to read response: %v", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return respBody, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, sources.ErrUnauthorized
	default:
		return nil, sources.Unavailable("%s API error %d: %s", a.provider, resp.StatusCode, truncate(string(respBody), 256))
	}
}

func (a *Advisor) callOpenAI(ctx context.Context, system string, msgs []message) (string, error) {
	openAIMessages := []map[string]string{{"role": "system", "content": system}}
	for _, m := range msgs {
		openAIMessages = append(openAIMessages, map[string]string{"role": m.Role, "content": m.Content})
	}

	reqBody := map[string]any{
		"model":       a.model,
		"messages":    openAIMessages,
		"temperature": a.temperature,
		"max_tokens":  a.maxTokens,
	}

	body, err := a.post(ctx, a.baseURL+"/chat/completions", reqBody, map[string]string{
		"Authorization": "Bearer " + a.APIKey(),
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", sources.Unavailable("failed to decode response: %v", err)
	}
	if len(resp.Choices) == 0 {
		return "", sources.Unavailable("no response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

func (a *Advisor) callClaude(ctx context.Context, system string, msgs []message) (string, error) {
	claudeMessages := make([]map[string]string, 0, len(msgs))
	for _, m := range msgs {
		claudeMessages = append(claudeMessages, map[string]string{"role": m.Role, "content": m.Content})
	}

	reqBody := map[string]any{
		"model":       a.model,
		"max_tokens":  a.maxTokens,
		"temperature": a.temperature,
		"system":      system,
		"messages":    claudeMessages,
	}

	body, err := a.post(ctx, a.baseURL+"/messages", reqBody, map[string]string{
		"x-api-key":         a.APIKey(),
		"anthropic-version": "2023-06-01",
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", sources.Unavailable("failed to decode response: %v", err)
	}

	var sb strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	return sb.String(), nil
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

func (a *Advisor) callGemini(ctx context.Context, system string, msgs []message) (string, error) {
	// the system prompt is sent as a primed exchange at the head of the history
	contents := []geminiContent{
		{Role: "user", Parts: []geminiPart{{Text: system}}},
		{Role: "model", Parts: []geminiPart{{Text: chatPrimerReply}}},
	}
	for _, m := range msgs {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}

	reqBody := map[string]any{
		"contents": contents,
		"generationConfig": map[string]any{
			"temperature":     a.temperature,
			"maxOutputTokens": a.maxTokens,
		},
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", a.baseURL, a.model, a.APIKey())
	body, err := a.post(ctx, url, reqBody, nil)
	if err != nil {
		return "", err
	}

	var resp struct {
		Candidates []struct {
			Content geminiContent `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", sources.Unavailable("failed to decode response: %v", err)
	}
	if len(resp.Candidates) == 0 {
		return "", sources.Unavailable("no candidates from Gemini")
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n]
	}
	return s
}
