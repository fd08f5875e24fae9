package github

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePRURL(t *testing.T) {
	cases := []struct {
		url  string
		want PRRef
		ok   bool
	}{
		{"https://github.com/acme/shop/pull/42", PRRef{"acme", "shop", 42}, true},
		{"https://github.com/acme/shop/pull/42/files", PRRef{"acme", "shop", 42}, true},
		{"https://github.com/acme/shop/issues/42", PRRef{}, false},
		{"https://gitlab.com/acme/shop/-/merge_requests/42", PRRef{}, false},
		{"not a url", PRRef{}, false},
	}

	for _, tc := range cases {
		ref, ok := ParsePRURL(tc.url)
		assert.Equal(t, tc.ok, ok, tc.url)
		assert.Equal(t, tc.want, ref, tc.url)
	}
}

func TestDisabledClientReportsAbsence(t *testing.T) {
	c := NewClient(context.Background(), "")

	details, err := c.FetchPRDetails(context.Background(), PRRef{"acme", "shop", 1})
	assert.NoError(t, err)
	assert.Nil(t, details)

	doc, err := c.FetchRepoDoc(context.Background(), "acme", "shop")
	assert.NoError(t, err)
	assert.Empty(t, doc)

	assert.Error(t, c.CheckAuth(context.Background()))
}
