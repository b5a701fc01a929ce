package accounting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/erp/billsync/internal/infrastructure/clock"
	"github.com/erp/billsync/internal/infrastructure/telemetry"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// maxResponseSize bounds JSON and document response bodies (10MB)
	maxResponseSize = 10 * 1024 * 1024

	contentTypeJSON = "application/json"
	contentTypePDF  = "application/pdf"
)

// Client is the rate-limited client of the external accounting platform.
// All calls made through one Client share a single limiter, so outbound
// requests are spaced at least Config.RequestInterval apart.
type Client struct {
	config     Config
	httpClient *http.Client
	clock      clock.Clock
	limiter    *rateLimiter
	validate   *validator.Validate
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithClock replaces the system clock used for rate limiting
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		c.clock = clk
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient validates cfg and builds a Client
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		clock:    clock.NewSystem(),
		validate: validator.New(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.limiter = newRateLimiter(c.clock, cfg.RequestInterval)

	return c, nil
}

// ---------------------------------------------------------------------------
// Contacts
// ---------------------------------------------------------------------------

// CreateContact creates a person or company contact
func (c *Client) CreateContact(ctx context.Context, payload ContactPayload) (*ResourceReference, error) {
	if err := c.validatePayload(payload); err != nil {
		return nil, err
	}
	var ref ResourceReference
	if err := c.doJSON(ctx, http.MethodPost, "/v1/contacts", nil, payload, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// SearchContacts lists contacts matching filter
func (c *Client) SearchContacts(ctx context.Context, filter ContactFilter) (*ContactPage, error) {
	query := url.Values{}
	if filter.Name != "" {
		query.Set("name", filter.Name)
	}
	if filter.Email != "" {
		query.Set("email", filter.Email)
	}
	if filter.Page > 0 {
		query.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.Size > 0 {
		query.Set("size", strconv.Itoa(filter.Size))
	}

	var page ContactPage
	if err := c.doJSON(ctx, http.MethodGet, "/v1/contacts", query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetContact fetches one contact
func (c *Client) GetContact(ctx context.Context, id string) (*Contact, error) {
	var contact Contact
	if err := c.doJSON(ctx, http.MethodGet, "/v1/contacts/"+url.PathEscape(id), nil, nil, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

// ---------------------------------------------------------------------------
// Invoices
// ---------------------------------------------------------------------------

// CreateInvoice creates an invoice; finalize issues it instead of leaving a draft
func (c *Client) CreateInvoice(ctx context.Context, payload VoucherPayload, finalize bool) (*ResourceReference, error) {
	return c.createVoucher(ctx, "/v1/invoices", payload, finalize)
}

// GetInvoice fetches one invoice
func (c *Client) GetInvoice(ctx context.Context, id string) (*Voucher, error) {
	return c.getVoucher(ctx, "/v1/invoices/"+url.PathEscape(id))
}

// GetInvoiceDocument downloads the invoice PDF
func (c *Client) GetInvoiceDocument(ctx context.Context, id string) ([]byte, error) {
	return c.doRaw(ctx, "/v1/invoices/"+url.PathEscape(id)+"/document", contentTypePDF)
}

// ---------------------------------------------------------------------------
// Quotations
// ---------------------------------------------------------------------------

// CreateQuotation creates a quotation; finalize issues it instead of leaving a draft
func (c *Client) CreateQuotation(ctx context.Context, payload VoucherPayload, finalize bool) (*ResourceReference, error) {
	return c.createVoucher(ctx, "/v1/quotations", payload, finalize)
}

// GetQuotation fetches one quotation
func (c *Client) GetQuotation(ctx context.Context, id string) (*Voucher, error) {
	return c.getVoucher(ctx, "/v1/quotations/"+url.PathEscape(id))
}

// GetQuotationDocument downloads the quotation PDF
func (c *Client) GetQuotationDocument(ctx context.Context, id string) ([]byte, error) {
	return c.doRaw(ctx, "/v1/quotations/"+url.PathEscape(id)+"/document", contentTypePDF)
}

// ---------------------------------------------------------------------------
// Recurring templates and connection
// ---------------------------------------------------------------------------

// ListRecurringTemplates lists the platform's recurring templates (0-based page)
func (c *Client) ListRecurringTemplates(ctx context.Context, page, size int) (*RecurringTemplatePage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	if size > 0 {
		query.Set("size", strconv.Itoa(size))
	}

	var result RecurringTemplatePage
	if err := c.doJSON(ctx, http.MethodGet, "/v1/recurring-templates", query, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetRecurringTemplate fetches one recurring template
func (c *Client) GetRecurringTemplate(ctx context.Context, id string) (*RecurringTemplate, error) {
	var tmpl RecurringTemplate
	if err := c.doJSON(ctx, http.MethodGet, "/v1/recurring-templates/"+url.PathEscape(id), nil, nil, &tmpl); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// TestConnection checks the platform with a cheap authenticated call
func (c *Client) TestConnection(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := c.doJSON(ctx, http.MethodGet, "/v1/profile", nil, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ---------------------------------------------------------------------------
// Helper methods
// ---------------------------------------------------------------------------

func (c *Client) createVoucher(ctx context.Context, path string, payload VoucherPayload, finalize bool) (*ResourceReference, error) {
	if err := c.validatePayload(payload); err != nil {
		return nil, err
	}
	var query url.Values
	if finalize {
		query = url.Values{"finalize": []string{"true"}}
	}

	var ref ResourceReference
	if err := c.doJSON(ctx, http.MethodPost, path, query, payload, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

func (c *Client) getVoucher(ctx context.Context, path string) (*Voucher, error) {
	var v Voucher
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// validatePayload rejects payloads the platform would refuse, without spending a request
func (c *Client) validatePayload(payload any) error {
	if err := c.validate.Struct(payload); err != nil {
		return &APIError{StatusCode: http.StatusUnprocessableEntity, Message: "invalid payload: " + err.Error(), cause: err}
	}
	return nil
}

// doJSON sends body as JSON and decodes the response into out.
// A 204 response leaves out untouched.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("accounting: failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	status, respBody, err := c.do(ctx, method, path, query, reader, contentTypeJSON)
	if err != nil {
		return err
	}
	if status == http.StatusNoContent || len(respBody) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &APIError{StatusCode: status, Message: "failed to decode response: " + err.Error(), Body: string(respBody), cause: err}
	}
	return nil
}

// doRaw fetches a binary resource
func (c *Client) doRaw(ctx context.Context, path, accept string) ([]byte, error) {
	status, body, err := c.do(ctx, http.MethodGet, path, nil, nil, accept)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return []byte{}, nil
	}
	return body, nil
}

// do waits for the limiter, performs one request and returns the status and body.
// Non-2xx responses are returned as *APIError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, accept string) (int, []byte, error) {
	ctx, span := telemetry.StartSpan(ctx, "accounting."+method,
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute("http.method", method),
		telemetry.WithAttribute("http.route", path),
	)
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		apiErr := newTransportError(err)
		telemetry.RecordError(span, apiErr)
		return 0, nil, apiErr
	}

	endpoint := c.config.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, nil, fmt.Errorf("accounting: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Accept", accept)
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}

	started := c.clock.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		apiErr := newTransportError(err)
		telemetry.RecordError(span, apiErr)
		c.logger.Warn("accounting request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return 0, nil, apiErr
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		apiErr := newTransportError(err)
		apiErr.StatusCode = resp.StatusCode
		telemetry.RecordError(span, apiErr)
		return resp.StatusCode, nil, apiErr
	}

	telemetry.SetAttribute(span, "http.status_code", resp.StatusCode)
	c.logger.Debug("accounting request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", c.clock.Now().Sub(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newStatusError(resp.StatusCode, respBody)
		telemetry.RecordError(span, apiErr)
		return resp.StatusCode, respBody, apiErr
	}

	return resp.StatusCode, respBody, nil
}
