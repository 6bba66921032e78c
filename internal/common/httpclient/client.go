// Package httpclient is the HTTP client for the Vetrina API used by the CLI and the order editor.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"reflect"
	"regexp"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SessionCookie is the cookie carrying the numeric user id.
const SessionCookie = "session"

// Configurator supplies the server location and the session to present.
type Configurator interface {
	GetServerURL() string
	GetSession() string
}

// ServerError is the error body returned by the server.
type ServerError struct {
	Result int    `json:"result"`
	Error  string `json:"error"`
}

// HTTPError represents an error response from the server with a status code
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}

// Requester describes a request: method and a path template whose {placeholders} are filled from json fields.
type Requester interface {
	RequestMethod() (string, string)
}

// RequestOptions contains options for making HTTP requests
type RequestOptions struct {
	Method      string
	Path        string
	QueryParams map[string]string
	Body        []byte
	ContentType string
}

type Client struct {
	config     Configurator
	httpClient *http.Client
}

type Option func(*Client)

// WithTransport replaces the transport, e.g. with a HandlerTransport in tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func New(config Configurator, opts ...Option) *Client {
	c := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// DoRequest makes an HTTP request with the given options and returns the body and Location header.
func (c *Client) DoRequest(ctx context.Context, opts RequestOptions) ([]byte, string, error) {
	u, err := url.Parse(c.config.GetServerURL())
	if err != nil {
		return nil, "", fmt.Errorf("invalid server URL: %v", err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u.Path = path.Join(u.Path, opts.Path)

	q := u.Query()
	for k, v := range opts.QueryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, opts.Method, u.String(), body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %v", err)
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)
	if s := c.config.GetSession(); s != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: s})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	rspBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %v", err)
	}

	if resp.StatusCode >= 400 {
		var serverErr ServerError
		if err := json.Unmarshal(rspBody, &serverErr); err == nil && serverErr.Error != "" {
			return nil, "", &HTTPError{
				StatusCode: resp.StatusCode,
				Message:    serverErr.Error,
			}
		}
		return nil, "", &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    string(rspBody),
		}
	}

	return rspBody, resp.Header.Get("Location"), nil
}

// Do sends reqObj and decodes the JSON response into respObj when it is non-nil.
func (c *Client) Do(ctx context.Context, reqObj Requester, respObj any) error {
	method, _ := reqObj.RequestMethod()
	p, err := resolvePath(reqObj)
	if err != nil {
		return err
	}
	opts := RequestOptions{Method: method, Path: p}
	switch method {
	case http.MethodGet, http.MethodDelete:
		opts.QueryParams, err = structToQuery(reqObj)
		if err != nil {
			return err
		}
	case http.MethodPost, http.MethodPut:
		opts.Body, err = json.Marshal(reqObj)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	default:
		return errors.New("Do: method not supported")
	}

	body, _, err := c.DoRequest(ctx, opts)
	if err != nil {
		return err
	}
	if respObj == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, respObj); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

var placeholder = regexp.MustCompile(`\{([^}]+)\}`)

func resolvePath(data Requester) (string, error) {
	fields, err := toMap(data)
	if err != nil {
		return "", err
	}
	_, template := data.RequestMethod()
	replaced := placeholder.ReplaceAllStringFunc(template, func(match string) string {
		key := match[1 : len(match)-1]
		if value, ok := fields[key]; ok {
			return url.PathEscape(fmt.Sprintf("%v", value))
		}
		return match
	})
	if strings.Contains(replaced, "{") || strings.Contains(replaced, "//") {
		return "", errors.New("unable to determine request path")
	}
	return replaced, nil
}

func toMap(data any) (map[string]any, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	m := make(map[string]any)
	d := json.NewDecoder(bytes.NewReader(b))
	d.UseNumber()
	if err := d.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// structToQuery turns the scalar json fields of s into query parameters. Zero values are left out.
func structToQuery(s any) (map[string]string, error) {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("input must be a struct")
	}
	t := v.Type()
	q := make(map[string]string)
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		key := strings.Split(tag, ",")[0]
		fv := v.Field(i)
		if fv.IsZero() {
			continue
		}
		if fv.Kind() == reflect.Ptr {
			fv = fv.Elem()
		}
		q[key] = fmt.Sprintf("%v", fv.Interface())
	}
	return q, nil
}
