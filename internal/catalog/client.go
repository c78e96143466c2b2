package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// APIError is a failed action API call.
type APIError struct {
	Action  string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("catalog %s: HTTP %d: %s", e.Action, e.Status, e.Message)
}

// Client talks to a CKAN style action API.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse catalog url: %w", err)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{baseURL: parsed, apiKey: apiKey, httpClient: httpClient}, nil
}

func (c *Client) actionURL(action string) *url.URL {
	return c.baseURL.JoinPath("/api/3/action", action)
}

func (c *Client) Show(ctx context.Context, id string) (*Resource, error) {
	u := c.actionURL("resource_show")
	u.RawQuery = url.Values{"id": {id}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("construct resource_show request: %w", err)
	}

	result, err := c.do(req, "resource_show")
	if err != nil {
		return nil, err
	}

	return &Resource{
		ID:          result.Get("id").String(),
		URL:         result.Get("url").String(),
		Format:      result.Get("format").String(),
		WMSBaseURLs: result.Get("wms_base_urls").String(),
		raw:         []byte(result.Raw),
	}, nil
}

// Update writes the annotated fields back. Fields the client does not model
// are sent unchanged from the record returned by Show.
func (c *Client) Update(ctx context.Context, resource *Resource) error {
	body := resource.raw
	if len(body) == 0 {
		body = []byte("{}")
	}

	var err error
	for path, value := range map[string]string{
		"id":            resource.ID,
		"url":           resource.URL,
		"format":        resource.Format,
		"wms_base_urls": resource.WMSBaseURLs,
	} {
		body, err = sjson.SetBytes(body, path, value)
		if err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.actionURL("resource_update").String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("construct resource_update request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	result, err := c.do(req, "resource_update")
	if err != nil {
		return err
	}

	resource.raw = []byte(result.Raw)

	return nil
}

func (c *Client) do(req *http.Request, action string) (gjson.Result, error) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("catalog %s: %w", action, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read %s response: %w", action, err)
	}

	if !gjson.ValidBytes(body) {
		return gjson.Result{}, &APIError{Action: action, Status: resp.StatusCode, Message: "response is not JSON"}
	}

	if resp.StatusCode == http.StatusNotFound {
		return gjson.Result{}, fmt.Errorf("%w: %s", ErrNotFound, gjson.GetBytes(body, "error.message").String())
	}

	if resp.StatusCode != http.StatusOK || !gjson.GetBytes(body, "success").Bool() {
		message := gjson.GetBytes(body, "error.message").String()
		if message == "" {
			message = gjson.GetBytes(body, "error").Raw
		}
		return gjson.Result{}, &APIError{Action: action, Status: resp.StatusCode, Message: message}
	}

	return gjson.GetBytes(body, "result"), nil
}
