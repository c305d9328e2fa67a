package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSONHidesRevision(t *testing.T) {
	post := Post{ID: "1", Revision: "3-abc", Slug: "ola-mundo", Title: "Olá, Mundo!", Content: "x"}

	raw, err := json.Marshal(post)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "3-abc")
	assert.NotContains(t, string(raw), "revision")
}

func TestNewPagedPosts(t *testing.T) {
	tests := []struct {
		name      string
		req       PageRequest
		total     int64
		wantPages int
		wantNext  bool
	}{
		{"empty", PageRequest{Page: 0, Size: 10}, 0, 0, false},
		{"first of two", PageRequest{Page: 0, Size: 10}, 11, 2, true},
		{"last page exact", PageRequest{Page: 1, Size: 10}, 20, 2, false},
		{"past the end", PageRequest{Page: 5, Size: 10}, 20, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paged := NewPagedPosts(nil, tt.req, tt.total)
			assert.Equal(t, tt.wantPages, paged.TotalPages)
			assert.Equal(t, tt.wantNext, paged.HasNext)
			assert.NotNil(t, paged.Posts)
		})
	}
}
