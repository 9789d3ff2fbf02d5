package core

import (
	"fmt"
	"maps"
	"net/url"
	"strconv"
	"strings"
)

// Params holds operation parameters or query values keyed by wire name.
type Params map[string]any

// Request is an exchange call before signing. Path is the full signed path,
// including the API prefix but not the query string.
type Request struct {
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	Query       Params            `json:"query,omitempty"`
	Body        any               `json:"body,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Weight      int               `json:"weight"`
	Bucket      string            `json:"bucket,omitempty"`
	RequireAuth bool              `json:"require_auth"`
}

// NewRequest creates a request with weight 1 and empty query and headers.
func NewRequest(method, path string) *Request {
	return &Request{
		Method:  strings.ToUpper(method),
		Path:    path,
		Query:   make(Params),
		Headers: make(map[string]string),
		Weight:  1,
	}
}

// SetQuery sets a query value. Nil values and empty strings are skipped so
// optional filters can be passed through unconditionally.
func (r *Request) SetQuery(key string, value any) *Request {
	if value == nil {
		return r
	}
	if s, ok := value.(string); ok && s == "" {
		return r
	}
	if r.Query == nil {
		r.Query = make(Params)
	}
	r.Query[key] = value
	return r
}

func (r *Request) SetBody(body any) *Request {
	r.Body = body
	return r
}

func (r *Request) SetHeader(key, value string) *Request {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
	return r
}

func (r *Request) SetWeight(weight int) *Request {
	r.Weight = weight
	return r
}

// SetBucket names the rate limit bucket the request is charged to.
func (r *Request) SetBucket(bucket string) *Request {
	r.Bucket = bucket
	return r
}

func (r *Request) SetRequireAuth(require bool) *Request {
	r.RequireAuth = require
	return r
}

func (r *Request) SetQueryParams(params Params) *Request {
	if r.Query == nil {
		r.Query = make(Params)
	}
	maps.Copy(r.Query, params)
	return r
}

// RequestURI returns the path with the encoded query string appended. Query
// keys are sorted, so the result is stable and is both signed and sent.
func (r *Request) RequestURI() string {
	if len(r.Query) == 0 {
		return r.Path
	}
	values := make(url.Values, len(r.Query))
	for k, v := range r.Query {
		values.Set(k, FormatParam(v))
	}
	return r.Path + "?" + values.Encode()
}

// FormatParam renders a parameter value the way it appears on the wire.
func FormatParam(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
