package registry

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/completeness-cli/internal/model"
	"github.com/sells-group/completeness-cli/pkg/notion"
)

// LoadNotion queries the Notion expectation database for all active field
// specs and returns a populated registry. Schema owners manage expectations
// as one Notion row per (entity type, field).
func LoadNotion(ctx context.Context, client notion.Client, dbID string) (*Registry, error) {
	filter := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Status",
			Status: &notionapi.StatusFilterCondition{
				Equals: "Active",
			},
		},
	}

	pages, err := notion.QueryAll(ctx, client, dbID, filter)
	if err != nil {
		return nil, eris.Wrap(err, "registry: load expectations from notion")
	}

	// Group rows by entity type, preserving Notion's row order per type.
	byType := make(map[string][]model.FieldSpec)
	var typeOrder []string
	for _, p := range pages {
		entityType, fs, err := parseExpectationPage(p)
		if err != nil {
			zap.L().Warn("registry: skipping malformed expectation page",
				zap.String("page_id", string(p.ID)),
				zap.Error(err),
			)
			continue
		}
		if _, seen := byType[entityType]; !seen {
			typeOrder = append(typeOrder, entityType)
		}
		byType[entityType] = append(byType[entityType], fs)
	}

	reg := New()
	for _, et := range typeOrder {
		if err := reg.Register(model.EntityType{Name: et, Fields: byType[et]}); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func parseExpectationPage(p notionapi.Page) (string, model.FieldSpec, error) {
	var entityType string
	var fs model.FieldSpec

	// Field (title)
	if prop, ok := p.Properties["Field"]; ok {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			fs.Name = plainText(tp.Title)
		}
	}

	// EntityType (select)
	if prop, ok := p.Properties["EntityType"]; ok {
		if sp, ok := prop.(*notionapi.SelectProperty); ok {
			entityType = sp.Select.Name
		}
	}

	// Applicability (select)
	if prop, ok := p.Properties["Applicability"]; ok {
		if sp, ok := prop.(*notionapi.SelectProperty); ok {
			fs.Applicability = model.Applicability(sp.Select.Name)
		}
	}

	// Condition (rich_text)
	if prop, ok := p.Properties["Condition"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			fs.Condition = plainText(rtp.RichText)
		}
	}

	// TypeHint (select)
	if prop, ok := p.Properties["TypeHint"]; ok {
		if sp, ok := prop.(*notionapi.SelectProperty); ok {
			fs.TypeHint = model.TypeHint(sp.Select.Name)
		}
	}

	if fs.Name == "" {
		return "", fs, eris.New("missing Field property")
	}
	if entityType == "" {
		return "", fs, eris.New("missing EntityType property")
	}
	switch fs.Applicability {
	case model.ApplicabilityAlways, model.ApplicabilityConditional, model.ApplicabilityNever:
	default:
		return "", fs, eris.Errorf("invalid Applicability %q", fs.Applicability)
	}

	return entityType, fs, nil
}

func plainText(rts []notionapi.RichText) string {
	var out string
	for _, rt := range rts {
		out += rt.PlainText
	}
	return out
}
