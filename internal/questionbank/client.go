package questionbank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
)

// maxBodyBytes bounds every response read from the bank.
const maxBodyBytes = 4 << 20

// ClientConfig locates the two remote endpoints.
type ClientConfig struct {
	BankURL      string
	DisclosedURL string
	Timeout      time.Duration
}

// Client is the HTTP Source backed by the public question bank.
type Client struct {
	cfg    ClientConfig
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a Client. A nil logger discards logs.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type filterBody struct {
	AsmtEventID int    `json:"asmtEventId"`
	Test        int    `json:"test"`
	Domain      string `json:"domain"`
}

// Filter issues the single filter query for req.
func (c *Client) Filter(ctx context.Context, req FilterRequest) ([]Reference, error) {
	asmt, err := AssessmentID(req.Assessment)
	if err != nil {
		return nil, err
	}
	test, err := SubjectID(req.Subject)
	if err != nil {
		return nil, err
	}

	body := filterBody{
		AsmtEventID: asmt,
		Test:        test,
		Domain:      strings.Join(req.Domains, ","),
	}
	raw, err := c.do(ctx, http.MethodPost, c.cfg.BankURL+"/get-questions", body)
	if err != nil {
		return nil, err
	}

	var refs []Reference
	if err := json.Unmarshal(raw, &refs); err != nil {
		return nil, fmt.Errorf("decode filter response: %w", err)
	}
	c.logger.Debug("filter query",
		slog.String("assessment", req.Assessment),
		slog.String("subject", req.Subject),
		slog.Int("references", len(refs)),
	)
	return refs, nil
}

// Fetch hydrates ref through the bank (external id) or the disclosed item
// store (ibn).
func (c *Client) Fetch(ctx context.Context, ref Reference) (*Question, error) {
	switch {
	case ref.HasExternalID():
		return c.fetchExternal(ctx, ref)
	case ref.IBN != "":
		return c.fetchDisclosed(ctx, ref)
	default:
		return nil, &ValidationError{
			Validator:  "reference",
			QuestionID: ref.QuestionID,
			Message:    "reference has neither external_id nor ibn",
		}
	}
}

type bankItem struct {
	Type          QuestionType `json:"type"`
	Stem          string       `json:"stem"`
	Stimulus      string       `json:"stimulus"`
	Rationale     string       `json:"rationale"`
	CorrectAnswer []string     `json:"correct_answer"`
	AnswerOptions []struct {
		ID      string `json:"id"`
		Content string `json:"content"`
	} `json:"answerOptions"`
}

func (c *Client) fetchExternal(ctx context.Context, ref Reference) (*Question, error) {
	raw, err := c.do(ctx, http.MethodPost, c.cfg.BankURL+"/get-question",
		map[string]string{"external_id": ref.ExternalID})
	if err != nil {
		return nil, err
	}
	if err := validateShape(questionSchema, ref.QuestionID, raw); err != nil {
		return nil, err
	}

	var item bankItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, &ValidationError{Validator: "json", QuestionID: ref.QuestionID, Message: "malformed body", Err: err}
	}

	q := &Question{
		Reference:     ref,
		Type:          item.Type,
		Stem:          item.Stem,
		Stimulus:      item.Stimulus,
		Rationale:     item.Rationale,
		CorrectAnswer: item.CorrectAnswer,
	}
	// Options are keyed A, B, C... in the order the bank lists them.
	for i, opt := range item.AnswerOptions {
		q.Options = append(q.Options, AnswerOption{
			Key:     string(rune('A' + i)),
			Content: opt.Content,
		})
	}
	return q, nil
}

type disclosedItem struct {
	Prompt string `json:"prompt"`
	Body   string `json:"body"`
	Answer struct {
		Style         string `json:"style"`
		CorrectChoice string `json:"correct_choice"`
		Rationale     string `json:"rationale"`
		Choices       map[string]struct {
			Body string `json:"body"`
		} `json:"choices"`
	} `json:"answer"`
}

func (c *Client) fetchDisclosed(ctx context.Context, ref Reference) (*Question, error) {
	raw, err := c.do(ctx, http.MethodGet, c.cfg.DisclosedURL+"/"+ref.IBN+".json", nil)
	if err != nil {
		return nil, err
	}
	if err := validateShape(disclosedSchema, ref.QuestionID, raw); err != nil {
		return nil, err
	}

	var items []disclosedItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &ValidationError{Validator: "json", QuestionID: ref.QuestionID, Message: "malformed body", Err: err}
	}
	item := items[0]

	q := &Question{
		Reference: ref,
		Type:      TypeMultipleChoice,
		Stem:      item.Prompt,
		Stimulus:  item.Body,
		Rationale: item.Answer.Rationale,
	}
	if strings.EqualFold(item.Answer.Style, "SPR") {
		q.Type = TypeFreeResponse
	}

	keys := make([]string, 0, len(item.Answer.Choices))
	for k := range item.Answer.Choices {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Options = append(q.Options, AnswerOption{
			Key:     strings.ToUpper(k),
			Content: item.Answer.Choices[k].Body,
		})
	}

	// Free-response keys list every accepted form, comma separated.
	for _, a := range strings.Split(item.Answer.CorrectChoice, ",") {
		if a = strings.TrimSpace(a); a != "" {
			if q.Type == TypeMultipleChoice {
				a = strings.ToUpper(a)
			}
			q.CorrectAnswer = append(q.CorrectAnswer, a)
		}
	}
	return q, nil
}

// do sends one request and returns the response body of a 2xx reply.
func (c *Client) do(ctx context.Context, method, url string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}

	c.logger.Debug("question bank request",
		slog.String("method", method),
		slog.String("url", url),
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(raw)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &HTTPError{URL: url, StatusCode: resp.StatusCode, Body: snippet}
	}
	return raw, nil
}

var _ Source = (*Client)(nil)
