package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/completeness-cli/internal/model"
)

func makeExpectationPage(id, field, entityType, applicability, condition, typeHint string) notionapi.Page {
	props := make(notionapi.Properties)

	props["Field"] = &notionapi.TitleProperty{
		Type: notionapi.PropertyTypeTitle,
		Title: []notionapi.RichText{
			{PlainText: field},
		},
	}

	props["EntityType"] = &notionapi.SelectProperty{
		Type:   notionapi.PropertyTypeSelect,
		Select: notionapi.Option{Name: entityType},
	}

	props["Applicability"] = &notionapi.SelectProperty{
		Type:   notionapi.PropertyTypeSelect,
		Select: notionapi.Option{Name: applicability},
	}

	props["Condition"] = &notionapi.RichTextProperty{
		Type: notionapi.PropertyTypeRichText,
		RichText: []notionapi.RichText{
			{PlainText: condition},
		},
	}

	if typeHint != "" {
		props["TypeHint"] = &notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: typeHint},
		}
	}

	return notionapi.Page{
		ID:         notionapi.ObjectID(id),
		Properties: props,
	}
}

func TestLoadNotion_Success(t *testing.T) {
	mc := new(mockNotionClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "e-db", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{
				makeExpectationPage("p1", "name", "company", "always", "", "string"),
				makeExpectationPage("p2", "ticker", "company", "conditional", "is_public == true", ""),
				makeExpectationPage("p3", "fax", "company", "never", "", ""),
			},
			HasMore: false,
		}, nil).Once()

	reg, err := LoadNotion(ctx, mc, "e-db")
	require.NoError(t, err)

	fields, err := reg.Fields("company")
	require.NoError(t, err)
	require.Len(t, fields, 3)
	assert.Equal(t, "name", fields[0].Name)
	assert.Equal(t, model.TypeHintString, fields[0].TypeHint)
	assert.Equal(t, "is_public == true", fields[1].Condition)
	assert.Equal(t, model.ApplicabilityNever, fields[2].Applicability)

	mc.AssertExpectations(t)
}

func TestLoadNotion_Pagination(t *testing.T) {
	mc := new(mockNotionClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "e-db", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return req.StartCursor == ""
	})).Return(&notionapi.DatabaseQueryResponse{
		Results:    []notionapi.Page{makeExpectationPage("p1", "name", "company", "always", "", "")},
		HasMore:    true,
		NextCursor: "cursor-next",
	}, nil).Once()

	mc.On("QueryDatabase", ctx, "e-db", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return req.StartCursor == "cursor-next"
	})).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{makeExpectationPage("p2", "email", "person", "always", "", "")},
		HasMore: false,
	}, nil).Once()

	reg, err := LoadNotion(ctx, mc, "e-db")
	require.NoError(t, err)
	assert.Equal(t, []string{"company", "person"}, reg.EntityTypes())
	mc.AssertExpectations(t)
}

func TestLoadNotion_SkipsMalformedPages(t *testing.T) {
	mc := new(mockNotionClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "e-db", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{
				makeExpectationPage("p1", "name", "company", "always", "", ""),
				makeExpectationPage("p2", "", "company", "always", "", ""),        // no Field title
				makeExpectationPage("p3", "email", "", "always", "", ""),          // no EntityType
				makeExpectationPage("p4", "phone", "company", "sometimes", "", ""), // bad Applicability
			},
			HasMore: false,
		}, nil).Once()

	reg, err := LoadNotion(ctx, mc, "e-db")
	require.NoError(t, err)

	fields, err := reg.Fields("company")
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "name", fields[0].Name)
	mc.AssertExpectations(t)
}

func TestLoadNotion_QueryError(t *testing.T) {
	mc := new(mockNotionClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "e-db", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(nil, errors.New("notion down")).Once()

	_, err := LoadNotion(ctx, mc, "e-db")
	assert.Error(t, err)
	mc.AssertExpectations(t)
}
