package validation

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vetrina/vetrina/internal/common/httpx"
)

type productReq struct {
	ArticleCode string `json:"article_code" validate:"required,articlecode"`
	Status      string `json:"status" validate:"omitempty,oneof=active inactive"`
}

func TestStruct(t *testing.T) {
	assert.NoError(t, Struct(productReq{ArticleCode: "ab 12"}))

	err := Struct(productReq{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required attribute article_code")

	err = Struct(productReq{ArticleCode: "--"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid value for article_code")

	err = Struct(productReq{ArticleCode: "A1", Status: "gone"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status must be one of [active inactive]")
	assert.Equal(t, http.StatusBadRequest, err.(*httpx.Error).StatusCode)
}

const schema = `{
	"type": "object",
	"required": ["type", "message"],
	"properties": {
		"type": {"enum": ["system", "order_status"]},
		"message": {"type": "string", "minLength": 1}
	}
}`

func TestDocument(t *testing.T) {
	s, err := CompileSchema(schema)
	require.NoError(t, err)

	assert.NoError(t, Document(s, []byte(`{"type":"system","message":"hi"}`)))

	err = Document(s, []byte(`{"type":"other","message":"hi"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/type")

	err = Document(s, []byte(`{"type":"system"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message")

	err = Document(s, []byte(`{not json`))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, err.(*httpx.Error).StatusCode)

	_, err = CompileSchema(`{"type": 1`)
	assert.Error(t, err)
}

func TestDocumentNumbers(t *testing.T) {
	s, err := CompileSchema(`{
		"type": "object",
		"properties": {
			"count": {"type": "integer", "minimum": 1},
			"price": {"type": "number", "maximum": 100}
		}
	}`)
	require.NoError(t, err)

	assert.NoError(t, Document(s, []byte(`{"count":3,"price":12.5}`)))
	assert.NoError(t, Document(s, []byte(`{"count":12345678901234567}`)))

	err = Document(s, []byte(`{"count":0}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/count")

	err = Document(s, []byte(`{"count":1.5}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/count")

	err = Document(s, []byte(`{"price":100.01}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/price")
}
