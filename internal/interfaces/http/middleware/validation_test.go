package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/salesdocs/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testItem struct {
	Number   string `json:"number" binding:"required"`
	Quantity string `json:"quantity" binding:"required,numeric"`
}

type testRequest struct {
	Type  string     `json:"type" binding:"required,document_type"`
	Mode  string     `json:"mode" binding:"omitempty,url_mode"`
	Items []testItem `json:"items" binding:"required,min=1,dive"`
}

func validationRouter() *gin.Engine {
	SetupValidator()
	router := gin.New()
	router.Use(RequestID())
	router.POST("/test", func(c *gin.Context) {
		var req testRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return router
}

func postJSON(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSetupValidator(t *testing.T) {
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	assert.True(t, ok)
	assert.NotNil(t, v)
}

func TestHandleValidationError(t *testing.T) {
	router := validationRouter()

	t.Run("reports every invalid field by JSON path", func(t *testing.T) {
		w := postJSON(router, `{"type":"receipt","mode":"print","items":[{"number":"","quantity":"x"}]}`)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.NotEmpty(t, resp.Error.RequestID)

		fields := map[string]string{}
		for _, d := range resp.Error.Details {
			fields[d.Field] = d.Message
		}
		assert.Contains(t, fields["type"], "quote")
		assert.Equal(t, "Must be one of: view download", fields["mode"])
		assert.Equal(t, "This field is required", fields["items[0].number"])
		assert.Equal(t, "Must be numeric", fields["items[0].quantity"])
	})

	t.Run("empty item list", func(t *testing.T) {
		w := postJSON(router, `{"type":"quote","items":[]}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Must contain at least 1 entries")
	})

	t.Run("malformed JSON", func(t *testing.T) {
		w := postJSON(router, `{"type":`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeInvalidJSON)
	})

	t.Run("valid request", func(t *testing.T) {
		w := postJSON(router, `{"type":"delivery_note","mode":"download","items":[{"number":"A-1","quantity":"5"}]}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestGetValidationMessage(t *testing.T) {
	type fields struct {
		Required string `validate:"required"`
		Min      string `validate:"min=5"`
		Max      string `validate:"max=2"`
		UUID     string `validate:"uuid"`
		OneOf    string `validate:"oneof=a b c"`
		GT       int    `validate:"gt=0"`
	}

	err := validator.New().Struct(fields{Max: "long", UUID: "nope", OneOf: "d"})
	require.Error(t, err)

	got := map[string]string{}
	for _, e := range err.(validator.ValidationErrors) {
		got[e.Field()] = getValidationMessage(e)
	}
	assert.Equal(t, "This field is required", got["Required"])
	assert.Equal(t, "Must be at least 5 characters", got["Min"])
	assert.Equal(t, "Must be at most 2 characters", got["Max"])
	assert.Equal(t, "Invalid UUID format", got["UUID"])
	assert.Equal(t, "Must be one of: a b c", got["OneOf"])
	assert.Equal(t, "Must be greater than 0", got["GT"])
}
