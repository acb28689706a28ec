package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// maxBodyBytes bounds a request body; the largest legitimate body is one member row.
const maxBodyBytes = 64 << 10

var errBodyTooLarge = fmt.Errorf("request body too large: limit is %d bytes", maxBodyBytes)

// rawParams are compared byte for byte against stored credentials and are
// never trimmed or stripped.
var rawParams = map[string]bool{
	"username": true,
	"password": true,
}

func cleanParam(key, value string) string {
	if rawParams[key] {
		return value
	}
	return sanitizeInput(value)
}

// Params is the flat parameter bag of an action call. Query string values
// come first; a form or JSON body overrides them key by key.
type Params map[string]string

// Get returns the value of key. Everything except credentials is trimmed and sanitized.
func (p Params) Get(key string) string {
	return p[key]
}

// RequestBodyParser reads a request body once and decodes it as JSON or as
// a url-encoded form, whichever it looks like.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		var tooLarge *http.MaxBytesError
		if errors.As(p.err, &tooLarge) {
			p.err = errBodyTooLarge
		}
	}
	return p
}

func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.formData = url.Values{}
		return nil
	}

	mediaType, _, _ := mime.ParseMediaType(p.contentType)
	if mediaType == "application/json" || body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal([]byte(body), &p.jsonData); err != nil {
			p.err = fmt.Errorf("invalid JSON body: %w", err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(body)
	return p.err
}

// Values returns every decoded body parameter.
func (p *RequestBodyParser) Values() Params {
	out := Params{}
	for k, v := range p.jsonData {
		out[k] = cleanParam(k, stringValue(v))
	}
	for k := range p.formData {
		out[k] = cleanParam(k, p.formData.Get(k))
	}
	return out
}

// ParseParams builds the parameter bag from the query string and body.
func ParseParams(w http.ResponseWriter, r *http.Request) (Params, error) {
	params := Params{}
	query := r.URL.Query()
	for k := range query {
		params[k] = cleanParam(k, query.Get(k))
	}
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return params, nil
	}

	parser := NewRequestBodyParser(w, r)
	if err := parser.Parse(); err != nil {
		return params, err
	}
	for k, v := range parser.Values() {
		params[k] = v
	}
	return params, nil
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
