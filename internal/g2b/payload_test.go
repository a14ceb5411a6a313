package g2b

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayload_ItemArray(t *testing.T) {
	body := []byte(`{"response":{"header":{"resultCode":"00","resultMsg":"정상"},
		"body":{"items":{"item":[{"bidNtceNo":"1"},{"bidNtceNo":"2"}]},"totalCount":2}}}`)

	p, err := ParsePayload(body)
	require.NoError(t, err)
	assert.True(t, p.Header.OK())
	require.Len(t, p.Items, 2)
	assert.Equal(t, "1", p.Items[0]["bidNtceNo"])
	require.NotNil(t, p.TotalCount)
	assert.Equal(t, 2, *p.TotalCount)
}

func TestParsePayload_SingleItemObject(t *testing.T) {
	body := []byte(`{"response":{"header":{"resultCode":"00"},
		"body":{"items":{"item":{"bidNtceNo":"only"}},"totalCount":"1"}}}`)

	p, err := ParsePayload(body)
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	assert.Equal(t, "only", p.Items[0]["bidNtceNo"])
	// totalCount arrives as a numeric string here
	require.NotNil(t, p.TotalCount)
	assert.Equal(t, 1, *p.TotalCount)
}

func TestParsePayload_BareItemsArray(t *testing.T) {
	body := []byte(`{"response":{"header":{"resultCode":"00"},
		"body":{"items":[{"bidNtceNo":"a"}],"totalCount":1}}}`)

	p, err := ParsePayload(body)
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	assert.Equal(t, "a", p.Items[0]["bidNtceNo"])
}

func TestParsePayload_EmptyItems(t *testing.T) {
	for _, body := range []string{
		`{"response":{"header":{"resultCode":"00"},"body":{"items":"","totalCount":0}}}`,
		`{"response":{"header":{"resultCode":"00"},"body":{"items":null,"totalCount":0}}}`,
		`{"response":{"header":{"resultCode":"00"},"body":{"totalCount":0}}}`,
	} {
		p, err := ParsePayload([]byte(body))
		require.NoError(t, err, body)
		assert.Empty(t, p.Items, body)
	}
}

func TestParsePayload_ErrorEnvelope(t *testing.T) {
	body := []byte(`{"nkoneps.com.response.ResponseError":{"header":{"resultCode":"07","resultMsg":"입력범위초과 에러"}}}`)

	p, err := ParsePayload(body)
	require.NoError(t, err)
	assert.False(t, p.Header.OK())
	assert.Equal(t, ResultCodeRangeTooLarge, p.Header.ResultCode)
	assert.Equal(t, "입력범위초과 에러", p.Header.ResultMsg)
}

func TestParsePayload_NumericResultCode(t *testing.T) {
	body := []byte(`{"response":{"header":{"resultCode":7,"resultMsg":"err"},"body":{}}}`)

	p, err := ParsePayload(body)
	require.NoError(t, err)
	assert.Equal(t, "7", p.Header.ResultCode)
	assert.False(t, p.Header.OK())
}

func TestParsePayload_NotJSON(t *testing.T) {
	_, err := ParsePayload([]byte(`<html>upstream error page</html>`))
	assert.Error(t, err)
}

func TestHeaderOK(t *testing.T) {
	assert.True(t, Header{}.OK())
	assert.True(t, Header{ResultCode: "00"}.OK())
	assert.False(t, Header{ResultCode: "99"}.OK())
}
