package webhooks

import (
	"encoding/json"
	"net/url"
	"strings"
)

// BuiltRequest is a transport-ready request descriptor produced from a
// definition's declarative configuration.
type BuiltRequest struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    string
}

// BuildRequest translates a definition into a concrete request descriptor.
// Disabled header and param entries are excluded. Duplicate enabled header
// keys resolve last-write-wins. The body is omitted for GET and HEAD; when
// present and no explicit Content-Type header is configured, one is derived
// from the body's content type.
func BuildRequest(def *Definition) *BuiltRequest {
	req := &BuiltRequest{
		URL:     buildURL(def.URL, def.Params),
		Method:  def.Method,
		Headers: make(map[string]string),
	}

	for _, h := range def.Headers {
		if h.Enabled {
			req.Headers[h.Key] = h.Value
		}
	}

	if def.Method == MethodGet || def.Method == "HEAD" {
		return req
	}

	if def.Body != nil && def.Body.Content != "" {
		req.Body = def.Body.Content
		if !hasContentType(req.Headers) {
			req.Headers["Content-Type"] = def.Body.ContentType.MIME()
		}
	}

	return req
}

func buildURL(base string, params []KeyValue) string {
	var query []string
	for _, p := range params {
		if p.Enabled {
			query = append(query, url.QueryEscape(p.Key)+"="+url.QueryEscape(p.Value))
		}
	}
	if len(query) == 0 {
		return base
	}

	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + strings.Join(query, "&")
}

func hasContentType(headers map[string]string) bool {
	for k := range headers {
		if strings.EqualFold(k, "Content-Type") {
			return true
		}
	}
	return false
}

// ValidateJSONBody reports whether a configured JSON body parses. It is a
// form-feedback helper only; dispatch sends the stored string as-is.
func ValidateJSONBody(body *BodySpec) bool {
	if body == nil || body.ContentType != BodyJSON || body.Content == "" {
		return true
	}
	return json.Valid([]byte(body.Content))
}
