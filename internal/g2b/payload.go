package g2b

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Result codes the API embeds in an HTTP 200 body.
const (
	ResultCodeOK            = "00"
	ResultCodeRangeTooLarge = "07"
)

// Header is the application-level result carried inside every response,
// success or failure. A 200 response with a non-"00" code is an error.
type Header struct {
	ResultCode string
	ResultMsg  string
}

// OK reports whether the header signals success. A missing header (some
// operations omit it entirely on success) counts as success.
func (h Header) OK() bool {
	return h.ResultCode == "" || h.ResultCode == ResultCodeOK
}

// Payload is one decoded page of the bid-notice API.
type Payload struct {
	Header     Header
	Items      []map[string]any
	TotalCount *int
}

type rawHeader struct {
	ResultCode any `json:"resultCode"`
	ResultMsg  any `json:"resultMsg"`
}

type envelope struct {
	Response *struct {
		Header rawHeader `json:"header"`
		Body   *struct {
			Items      json.RawMessage `json:"items"`
			TotalCount json.RawMessage `json:"totalCount"`
		} `json:"body"`
	} `json:"response"`
	// Error responses arrive under a different top-level key.
	ResponseError *struct {
		Header rawHeader `json:"header"`
	} `json:"nkoneps.com.response.ResponseError"`
}

// ParsePayload decodes a response body. It tolerates the API's structural
// quirks: the header may live under the normal response or under the error
// envelope, items may be body.items.item (object or array) or body.items
// directly, and totalCount may be a number or a numeric string.
func ParsePayload(data []byte) (*Payload, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, eris.Wrap(err, "g2b: decode payload")
	}

	p := &Payload{}

	switch {
	case env.Response != nil && headerPresent(env.Response.Header):
		p.Header = coerceHeader(env.Response.Header)
	case env.ResponseError != nil:
		p.Header = coerceHeader(env.ResponseError.Header)
	}

	if env.Response != nil && env.Response.Body != nil {
		items, err := parseItems(env.Response.Body.Items)
		if err != nil {
			return nil, err
		}
		p.Items = items
		p.TotalCount = parseTotalCount(env.Response.Body.TotalCount)
	}

	return p, nil
}

func headerPresent(h rawHeader) bool {
	return h.ResultCode != nil || h.ResultMsg != nil
}

func coerceHeader(h rawHeader) Header {
	return Header{
		ResultCode: anyToString(h.ResultCode),
		ResultMsg:  anyToString(h.ResultMsg),
	}
}

// parseItems handles the singular-or-array item shapes.
func parseItems(raw json.RawMessage) ([]map[string]any, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || trimmed == `""` {
		return nil, nil
	}

	// body.items as a bare array of items
	if strings.HasPrefix(trimmed, "[") {
		var items []map[string]any
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, eris.Wrap(err, "g2b: decode items array")
		}
		return items, nil
	}

	// body.items.item, either an array or a single object
	var wrapper struct {
		Item json.RawMessage `json:"item"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, eris.Wrap(err, "g2b: decode items wrapper")
	}
	inner := strings.TrimSpace(string(wrapper.Item))
	if inner == "" || inner == "null" {
		return nil, nil
	}
	if strings.HasPrefix(inner, "[") {
		var items []map[string]any
		if err := json.Unmarshal(wrapper.Item, &items); err != nil {
			return nil, eris.Wrap(err, "g2b: decode item array")
		}
		return items, nil
	}
	var single map[string]any
	if err := json.Unmarshal(wrapper.Item, &single); err != nil {
		return nil, eris.Wrap(err, "g2b: decode single item")
	}
	return []map[string]any{single}, nil
}

func parseTotalCount(raw json.RawMessage) *int {
	s := strings.TrimSpace(strings.Trim(strings.TrimSpace(string(raw)), `"`))
	if s == "" || s == "null" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func anyToString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatInt(int64(x), 10)
	case json.Number:
		return x.String()
	default:
		return ""
	}
}
