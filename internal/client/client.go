// Package client is a thin HTTP client for the triagem API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/TimurManjosov/triagem/internal/document"
	"github.com/TimurManjosov/triagem/internal/eligibility"
	"github.com/TimurManjosov/triagem/internal/report"
	"github.com/TimurManjosov/triagem/internal/store"
	"github.com/TimurManjosov/triagem/internal/triage"
)

// Client is an HTTP client for the triagem API
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response. Code and Fields are filled when the
// server sent a structured error body.
type APIError struct {
	Status  int
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
	Body    string            `json:"-"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error (status %d): %s", e.Status, e.Body)
	}
	msg := fmt.Sprintf("API error (status %d, %s): %s", e.Status, e.Code, e.Message)
	for f, m := range e.Fields {
		msg += fmt.Sprintf("\n  %s: %s", f, m)
	}
	return msg
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// ListDemandas searches registered demandas.
func (c *Client) ListDemandas(ctx context.Context, f store.DemandaFilter) ([]store.Demanda, error) {
	q := url.Values{}
	if f.Nome != "" {
		q.Set("nome", f.Nome)
	}
	if f.CPF != "" {
		q.Set("cpf", f.CPF)
	}
	if f.Defensor != "" {
		q.Set("defensor", f.Defensor)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	var result struct {
		Demandas []store.Demanda `json:"demandas"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/demandas", q, nil, &result); err != nil {
		return nil, err
	}
	return result.Demandas, nil
}

// GetDemanda retrieves a single demanda by ID
func (c *Client) GetDemanda(ctx context.Context, id int64) (*store.Demanda, error) {
	var d store.Demanda
	if err := c.do(ctx, http.MethodGet, "/v1/demandas/"+strconv.FormatInt(id, 10), nil, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDemanda registers a demanda
func (c *Client) CreateDemanda(ctx context.Context, params store.CreateDemandaParams) (*store.Demanda, error) {
	var d store.Demanda
	if err := c.do(ctx, http.MethodPost, "/v1/demandas", nil, params, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateDemanda applies patch and reports whether anything changed.
func (c *Client) UpdateDemanda(ctx context.Context, id int64, patch store.DemandaPatch) (*store.Demanda, bool, error) {
	var result struct {
		Demanda *store.Demanda `json:"demanda"`
		Changed bool           `json:"changed"`
	}
	if err := c.do(ctx, http.MethodPatch, "/v1/demandas/"+strconv.FormatInt(id, 10), nil, patch, &result); err != nil {
		return nil, false, err
	}
	return result.Demanda, result.Changed, nil
}

// Evaluate runs the means test without recording it.
func (c *Client) Evaluate(ctx context.Context, in triage.Input) (eligibility.Verdict, error) {
	var v eligibility.Verdict
	err := c.do(ctx, http.MethodPost, "/v1/hipossuficiencia/evaluate", nil, in, &v)
	return v, err
}

// Analyze runs the means test and records the verdict.
func (c *Client) Analyze(ctx context.Context, in triage.Input) (*store.Analise, eligibility.Verdict, error) {
	var result struct {
		Analise *store.Analise      `json:"analise"`
		Verdict eligibility.Verdict `json:"verdict"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/hipossuficiencia/analises", nil, in, &result); err != nil {
		return nil, eligibility.Verdict{}, err
	}
	return result.Analise, result.Verdict, nil
}

// ListAnalises returns the verdicts recorded for documento.
func (c *Client) ListAnalises(ctx context.Context, documento string) ([]store.Analise, error) {
	var result struct {
		Analises []store.Analise `json:"analises"`
	}
	q := url.Values{"documento": {documento}}
	if err := c.do(ctx, http.MethodGet, "/v1/hipossuficiencia/analises", q, nil, &result); err != nil {
		return nil, err
	}
	return result.Analises, nil
}

// GenerateDocument fills the template for kind. A positive demandaID
// prefills data from that demanda.
func (c *Client) GenerateDocument(ctx context.Context, kind document.Kind, demandaID int64, data document.Data) (*document.Document, error) {
	body := struct {
		DemandaID int64 `json:"demandaId,omitempty"`
		document.Data
	}{demandaID, data}
	var doc document.Document
	if err := c.do(ctx, http.MethodPost, "/v1/documentos/"+url.PathEscape(string(kind)), nil, body, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Stats fetches the dashboard numbers. from and to use dd/mm/yyyy.
func (c *Client) Stats(ctx context.Context, defensor, from, to string) (*report.Stats, error) {
	q := url.Values{}
	if defensor != "" {
		q.Set("defensor", defensor)
	}
	if from != "" {
		q.Set("from", from)
	}
	if to != "" {
		q.Set("to", to)
	}
	var s report.Stats
	if err := c.do(ctx, http.MethodGet, "/v1/stats", q, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, in, out any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{Status: resp.StatusCode, Body: string(bodyBytes)}
		_ = json.Unmarshal(bodyBytes, apiErr)
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
