package refscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func form(elements ...any) map[string]any {
	return map[string]any{
		"className": "org.joget.apps.form.model.Form",
		"elements":  elements,
	}
}

func TestScan_SubformReference(t *testing.T) {
	def := form(map[string]any{
		"className":  "org.joget.apps.form.lib.SubForm",
		"properties": map[string]any{"formDefId": "childForm"},
	})

	refs := Scan("parent", def)
	assert.Equal(t, []Reference{{TargetID: "childForm", Kind: KindSubform}}, refs)
}

func TestScan_GridReference(t *testing.T) {
	def := form(map[string]any{
		"className":  "org.joget.plugin.enterprise.FormGrid",
		"properties": map[string]any{"formDefId": "rowForm"},
	})

	refs := Scan("parent", def)
	assert.Equal(t, []Reference{{TargetID: "rowForm", Kind: KindGrid}}, refs)
}

func TestScan_OptionsBinderReference(t *testing.T) {
	def := form(map[string]any{
		"className": "org.joget.apps.form.lib.SelectBox",
		"properties": map[string]any{
			"optionsBinder": map[string]any{
				"className":  "org.joget.apps.form.lib.FormOptionsBinder",
				"properties": map[string]any{"formDefId": "md01maritalStatus"},
			},
		},
	})

	refs := Scan("parent", def)
	assert.Equal(t, []Reference{{TargetID: "md01maritalStatus", Kind: KindLookup}}, refs)
}

func TestScan_LoadBinderReference(t *testing.T) {
	def := form(map[string]any{
		"className": "org.joget.apps.form.lib.TextField",
		"properties": map[string]any{
			"loadBinder": map[string]any{
				"properties": map[string]any{"formDefId": "sourceForm"},
			},
		},
	})

	refs := Scan("parent", def)
	assert.Equal(t, []Reference{{TargetID: "sourceForm", Kind: KindLookup}}, refs)
}

func TestScan_RecursesIntoNestedElements(t *testing.T) {
	def := form(map[string]any{
		"className":  "org.joget.apps.form.model.Section",
		"properties": map[string]any{},
		"elements": []any{
			map[string]any{
				"className":  "org.joget.apps.form.model.Column",
				"properties": map[string]any{},
				"elements": []any{
					map[string]any{
						"className":  "org.joget.apps.form.lib.SubForm",
						"properties": map[string]any{"formDefId": "deepChild"},
					},
				},
			},
		},
	})

	refs := Scan("parent", def)
	assert.Equal(t, []Reference{{TargetID: "deepChild", Kind: KindSubform}}, refs)
}

func TestScan_DeduplicatesAndSorts(t *testing.T) {
	def := form(
		map[string]any{
			"className":  "org.joget.apps.form.lib.SubForm",
			"properties": map[string]any{"formDefId": "zForm"},
		},
		map[string]any{
			"className":  "org.joget.apps.form.lib.SubForm",
			"properties": map[string]any{"formDefId": "zForm"},
		},
		map[string]any{
			"className":  "org.joget.apps.form.lib.SubForm",
			"properties": map[string]any{"formDefId": "aForm"},
		},
	)

	refs := Scan("parent", def)
	assert.Equal(t, []Reference{
		{TargetID: "aForm", Kind: KindSubform},
		{TargetID: "zForm", Kind: KindSubform},
	}, refs)
}

func TestScan_DropsSelfReference(t *testing.T) {
	def := form(map[string]any{
		"className":  "org.joget.apps.form.lib.SubForm",
		"properties": map[string]any{"formDefId": "parent"},
	})

	assert.Empty(t, Scan("parent", def))
}

func TestScan_IgnoresUnrecognizedShapes(t *testing.T) {
	def := form(
		map[string]any{
			"className":  "com.example.ExoticPlugin",
			"properties": map[string]any{"someOtherKey": "notAFormRef"},
		},
		map[string]any{
			"className":  "org.joget.apps.form.lib.TextField",
			"properties": map[string]any{"formDefId": "   "},
		},
	)

	assert.Empty(t, Scan("parent", def))
}

func TestScan_EmptyDefinition(t *testing.T) {
	assert.Empty(t, Scan("x", map[string]any{}))
	assert.Empty(t, Scan("x", map[string]any{"elements": "not-a-list"}))
}
