package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Client is the observation API HTTP client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	verbose    bool
}

// NewClient creates a new API client.
func NewClient(baseURL string, verbose bool) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		verbose: verbose,
	}
}

// Do performs an HTTP request and returns the response body.
func (c *Client) Do(method, path string, body any) ([]byte, int, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(context.Background(), method, url, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.send(req)
}

// Get performs a GET request.
func (c *Client) Get(path string) ([]byte, error) {
	data, _, err := c.Do(http.MethodGet, path, nil)
	return data, err
}

// Post performs a POST request.
func (c *Client) Post(path string, body any) ([]byte, error) {
	data, _, err := c.Do(http.MethodPost, path, body)
	return data, err
}

// Put performs a PUT request.
func (c *Client) Put(path string, body any) ([]byte, error) {
	data, _, err := c.Do(http.MethodPut, path, body)
	return data, err
}

// Upload posts a file as a multipart form together with extra form fields.
func (c *Client) Upload(path, filePath string, fields map[string]string) ([]byte, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write form field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalize form: %w", err)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	data, _, err := c.send(req)
	return data, err
}

func (c *Client) send(req *http.Request) ([]byte, int, error) {
	if c.verbose {
		fmt.Printf(">>> %s %s\n", req.Method, req.URL)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if c.verbose {
		fmt.Printf("<<< %d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode, parseAPIError(resp.StatusCode, respBody)
	}

	return respBody, resp.StatusCode, nil
}

// APIError represents an error returned by the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("API error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func parseAPIError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode}

	var parsed struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.Code = parsed.Code
		apiErr.Message = parsed.Message
	}

	if apiErr.Message == "" {
		switch statusCode {
		case 404:
			apiErr.Message = "resource not found"
		case 409:
			apiErr.Message = "conflict: resource already exists"
		default:
			apiErr.Message = fmt.Sprintf("API error: %d %s", statusCode, http.StatusText(statusCode))
		}
	}

	return apiErr
}

// Response types matching server handler structs.

type ProductResponse struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	PURL                     string `json:"purl,omitempty"`
	ProductGroupID           string `json:"product_group_id,omitempty"`
	ApplyGeneralRules        bool   `json:"apply_general_rules"`
	RiskAcceptanceExpiryDays *int   `json:"risk_acceptance_expiry_days,omitempty"`
	NotificationWebhookURL   string `json:"notification_webhook_url,omitempty"`
	CreatedAt                string `json:"created_at"`
	UpdatedAt                string `json:"updated_at"`
}

type BranchResponse struct {
	ID         string  `json:"id"`
	ProductID  string  `json:"product_id"`
	Name       string  `json:"name"`
	PURL       string  `json:"purl,omitempty"`
	LastImport *string `json:"last_import,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

type ObservationResponse struct {
	ID              string `json:"id"`
	ProductID       string `json:"product_id"`
	BranchID        string `json:"branch_id,omitempty"`
	ScannerName     string `json:"scanner_name"`
	Title           string `json:"title"`
	VulnerabilityID string `json:"vulnerability_id,omitempty"`

	ParserSeverity     string `json:"parser_severity"`
	RuleSeverity       string `json:"rule_severity,omitempty"`
	VEXStatus          string `json:"vex_status,omitempty"`
	AssessmentSeverity string `json:"assessment_severity,omitempty"`
	AssessmentStatus   string `json:"assessment_status,omitempty"`

	CurrentSeverity      string `json:"current_severity"`
	CurrentStatus        string `json:"current_status"`
	CurrentJustification string `json:"current_justification,omitempty"`
	NumericalSeverity    int    `json:"numerical_severity"`

	ImportLastSeen string `json:"import_last_seen"`
}

type RuleResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ProductID      string `json:"product_id,omitempty"`
	ProductGroupID string `json:"product_group_id,omitempty"`
	Enabled        bool   `json:"enabled"`
	ApprovalStatus string `json:"approval_status"`

	NewSeverity      string `json:"new_severity,omitempty"`
	NewStatus        string `json:"new_status,omitempty"`
	NewJustification string `json:"new_justification,omitempty"`
}

type ImportResponse struct {
	New      int `json:"new"`
	Updated  int `json:"updated"`
	Resolved int `json:"resolved"`
	Skipped  int `json:"skipped"`
}

type VEXImportResponse struct {
	DocumentID          string `json:"document_id"`
	Statements          int    `json:"statements"`
	ObservationsChanged int    `json:"observations_changed"`
}
