package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func formContext(t *testing.T, values url.Values) *gin.Context {
	t.Helper()
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest("POST", "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.Request = req
	return c
}

func TestFormTimezone(t *testing.T) {
	tests := []struct {
		name   string
		values url.Values
		want   string
	}{
		{"Field absent", url.Values{}, "Australia/Brisbane"},
		{"Field empty", url.Values{"timezone": {""}}, "Australia/Brisbane"},
		{"Field whitespace", url.Values{"timezone": {"   "}}, "Australia/Brisbane"},
		{"Field set", url.Values{"timezone": {"Asia/Kolkata"}}, "Asia/Kolkata"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := formContext(t, tt.values)
			assert.Equal(t, tt.want, formTimezone(c, "Australia/Brisbane"))
		})
	}
}

func TestUploadRejectedBodyShape(t *testing.T) {
	// rejections share the error envelope's message key and omit fields
	// that do not apply
	body, err := json.Marshal(UploadRejectedDTO{
		Message:  "unsupported file format: .pdf",
		UploadID: "3e9d",
		Status:   "failed",
	})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"message":"unsupported file format: .pdf","uploadId":"3e9d","status":"failed"}`, string(body))
}
