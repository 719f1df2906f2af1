package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func parseQuery(query string) Params {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?"+query, nil)
	return Parse(c)
}

func TestParse(t *testing.T) {
	tests := []struct {
		query string
		want  Params
	}{
		{query: "", want: Params{Page: 1, Limit: 20, Offset: 0}},
		{query: "page=3&limit=10", want: Params{Page: 3, Limit: 10, Offset: 20}},
		{query: "page=0&limit=-5", want: Params{Page: 1, Limit: 20, Offset: 0}},
		{query: "page=abc&limit=500", want: Params{Page: 1, Limit: 100, Offset: 0}},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, parseQuery(tc.query), tc.query)
	}
}

func TestNewResultTotalPages(t *testing.T) {
	p := Params{Page: 1, Limit: 20}
	assert.Equal(t, 0, NewResult(nil, 0, p).TotalPages)
	assert.Equal(t, 1, NewResult(nil, 20, p).TotalPages)
	assert.Equal(t, 2, NewResult(nil, 21, p).TotalPages)
}
