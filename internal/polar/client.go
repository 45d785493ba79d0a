package polar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/studyloop/polarsync/internal/config"
	"github.com/studyloop/polarsync/internal/observability/tracing"
	"go.uber.org/fx"
)

var (
	ErrCustomerNotFound = errors.New("customer_not_found")
	ErrCustomerConflict = errors.New("customer_conflict")
	ErrUnauthorized     = errors.New("unauthorized")
)

// Customer is the billing platform's payer record.
type Customer struct {
	ID         string         `json:"id"`
	Email      string         `json:"email"`
	ExternalID string         `json:"external_id"`
	Metadata   map[string]any `json:"metadata"`
}

// CreateCustomerParams carries the fields sent on customer creation. The
// local user id is recorded both as the external id and as a metadata hint
// so either survives platform-side edits of the other.
type CreateCustomerParams struct {
	Email      string         `json:"email"`
	ExternalID string         `json:"external_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Client is the subset of the billing platform API the sync engine needs.
type Client interface {
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	GetCustomerByExternalID(ctx context.Context, externalID string) (*Customer, error)
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error)
}

type httpClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient builds an HTTP client against the Polar API.
func NewClient(cfg config.Config) Client {
	return &httpClient{
		baseURL: strings.TrimRight(cfg.PolarBaseURL, "/"),
		token:   cfg.PolarAccessToken,
		client:  tracing.WrapHTTPClient(&http.Client{Timeout: 15 * time.Second}),
	}
}

func (c *httpClient) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrCustomerNotFound
	}
	return c.getCustomer(ctx, "/v1/customers/"+url.PathEscape(id))
}

func (c *httpClient) GetCustomerByExternalID(ctx context.Context, externalID string) (*Customer, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, ErrCustomerNotFound
	}
	return c.getCustomer(ctx, "/v1/customers/external/"+url.PathEscape(externalID))
}

func (c *httpClient) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/customers", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return decodeCustomer(resp.Body)
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity:
		// The platform enforces uniqueness on email and external id. A
		// racing creation surfaces here and is recovered by re-searching.
		return nil, ErrCustomerConflict
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	default:
		return nil, unexpectedStatus(resp)
	}
}

func (c *httpClient) getCustomer(ctx context.Context, path string) (*Customer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return decodeCustomer(resp.Body)
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrCustomerNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	default:
		return nil, unexpectedStatus(resp)
	}
}

func (c *httpClient) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	return c.client.Do(req)
}

func decodeCustomer(body io.Reader) (*Customer, error) {
	var customer Customer
	if err := json.NewDecoder(body).Decode(&customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

func unexpectedStatus(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("polar api status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}

var Module = fx.Module("polar",
	fx.Provide(NewClient),
)
