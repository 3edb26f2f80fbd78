package notion

import (
	"context"
	"errors"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient returns canned responses keyed by start cursor.
type fakeClient struct {
	pages map[notionapi.Cursor]*notionapi.DatabaseQueryResponse
	err   error
	calls int
}

func (f *fakeClient) QueryDatabase(_ context.Context, _ string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	resp, ok := f.pages[req.StartCursor]
	if !ok {
		return nil, errors.New("unexpected cursor")
	}
	return resp, nil
}

func page(id string) notionapi.Page {
	return notionapi.Page{ID: notionapi.ObjectID(id)}
}

func TestQueryAll_SinglePage(t *testing.T) {
	t.Parallel()

	c := &fakeClient{pages: map[notionapi.Cursor]*notionapi.DatabaseQueryResponse{
		"": {Results: []notionapi.Page{page("a"), page("b")}},
	}}

	pages, err := QueryAll(context.Background(), c, "db-1", nil)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, c.calls)
}

func TestQueryAll_Paginates(t *testing.T) {
	t.Parallel()

	c := &fakeClient{pages: map[notionapi.Cursor]*notionapi.DatabaseQueryResponse{
		"":       {Results: []notionapi.Page{page("a")}, HasMore: true, NextCursor: "cur-1"},
		"cur-1":  {Results: []notionapi.Page{page("b")}, HasMore: true, NextCursor: "cur-2"},
		"cur-2":  {Results: []notionapi.Page{page("c")}},
	}}

	pages, err := QueryAll(context.Background(), c, "db-1", nil)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, notionapi.ObjectID("a"), pages[0].ID)
	assert.Equal(t, notionapi.ObjectID("c"), pages[2].ID)
	assert.Equal(t, 3, c.calls)
}

func TestQueryAll_CarriesFilterAcrossPages(t *testing.T) {
	t.Parallel()

	var seen []*notionapi.DatabaseQueryRequest
	c := &recordingClient{responses: []*notionapi.DatabaseQueryResponse{
		{Results: []notionapi.Page{page("a")}, HasMore: true, NextCursor: "cur-1"},
		{Results: []notionapi.Page{page("b")}},
	}, seen: &seen}

	filter := &notionapi.DatabaseQueryRequest{PageSize: 50}
	_, err := QueryAll(context.Background(), c, "db-1", filter)
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, 50, seen[0].PageSize)
	assert.Equal(t, 50, seen[1].PageSize)
	assert.Equal(t, notionapi.Cursor("cur-1"), seen[1].StartCursor)
}

func TestQueryAll_Error(t *testing.T) {
	t.Parallel()

	c := &fakeClient{err: errors.New("boom")}
	_, err := QueryAll(context.Background(), c, "db-1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query all")
}

type recordingClient struct {
	responses []*notionapi.DatabaseQueryResponse
	seen      *[]*notionapi.DatabaseQueryRequest
}

func (r *recordingClient) QueryDatabase(_ context.Context, _ string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	*r.seen = append(*r.seen, req)
	resp := r.responses[0]
	r.responses = r.responses[1:]
	return resp, nil
}
