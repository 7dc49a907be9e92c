package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterUsers(t *testing.T) {
	users := []User{
		{ID: 1, Login: "alice"},
		{ID: 2, Login: "Bob"},
		{ID: 3, Login: "alicia"},
		{ID: 4, Login: "ÉLODIE"},
	}

	tests := []struct {
		name  string
		query string
		want  []int64
	}{
		{"empty query keeps everything", "", []int64{1, 2, 3, 4}},
		{"substring", "ali", []int64{1, 3}},
		{"exact", "alice", []int64{1}},
		{"case insensitive", "BOB", []int64{2}},
		{"unicode folding", "élo", []int64{4}},
		{"no match", "charlie", []int64{}},
		{"whitespace is literal", " alice", []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterUsers(users, tt.query)
			ids := make([]int64, 0, len(got))
			for _, u := range got {
				ids = append(ids, u.ID)
			}
			assert.Equal(t, tt.want, ids)
			assert.NotNil(t, got)
		})
	}
}

func TestFilter_Properties(t *testing.T) {
	items := []string{"Go", "gopher", "Rust", "golang"}
	id := func(s string) string { return s }

	same := Filter(items, "", id)
	assert.Equal(t, items, same)

	got := Filter(items, "go", id)
	assert.Equal(t, []string{"Go", "gopher", "golang"}, got, "input order is kept")
	for _, s := range got {
		assert.Contains(t, items, s, "results are a subset of the input")
	}
	assert.Equal(t, []string{"Go", "gopher", "Rust", "golang"}, items, "input is not modified")
}
