package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/credikids/credikids/core"
)

func TestOrdering_Bind(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []core.DBOrdering
	}{
		{name: "no param", query: ""},
		{name: "ascending", query: "ordering=assigned_date",
			want: []core.DBOrdering{{Field: "assigned_date", Ascending: true}}},
		{name: "descending", query: "ordering=-assigned_date",
			want: []core.DBOrdering{{Field: "assigned_date"}}},
		{name: "mixed list", query: "ordering=assigned_date,-id",
			want: []core.DBOrdering{{Field: "assigned_date", Ascending: true}, {Field: "id"}}},
		{name: "unlisted fields are dropped", query: "ordering=assigned_date)--,-id",
			want: []core.DBOrdering{{Field: "id"}}},
		{name: "all dropped", query: "ordering=score,nick"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			ctx := echo.New().NewContext(req, httptest.NewRecorder())

			var ord Ordering
			ord.Bind(ctx, "assigned_date", "created_at", "id")
			assert.Equal(t, tt.want, ord.Orderings)
		})
	}
}
