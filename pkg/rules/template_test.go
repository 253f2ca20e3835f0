package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplate_Render(t *testing.T) {
	rm, err := NewRuleManager()
	require.NoError(t, err)

	tpl, err := rm.CompileTemplate(map[interface{}]interface{}{
		"id":      "${params.id}",
		"label":   "objeto ${params.id} em ${query.region}",
		"size":    "${body.size + 1}",
		"fixed":   "texto puro",
		"nested":  []interface{}{map[string]interface{}{"m": "${{'k': params.id}}"}},
		"numeric": 7,
	})
	require.NoError(t, err)

	out, err := tpl.Render(map[string]interface{}{
		"params": map[string]interface{}{"id": "obj1"},
		"query":  map[string]interface{}{"region": "US"},
		"body":   map[string]interface{}{"size": 41},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{
		"id":      "obj1",
		"label":   "objeto obj1 em US",
		"size":    int64(42),
		"fixed":   "texto puro",
		"nested":  []interface{}{map[string]interface{}{"m": map[string]interface{}{"k": "obj1"}}},
		"numeric": 7,
	}, out)
}

func TestTemplate_CompileErrors(t *testing.T) {
	rm, _ := NewRuleManager()

	for _, bad := range []interface{}{
		"${params.id",
		"${ }",
		map[string]interface{}{"x": "${params.id ==}"},
		[]interface{}{"${unknown_var}"},
	} {
		_, err := rm.CompileTemplate(bad)
		assert.Error(t, err, "%v", bad)
	}
}

func TestRenderString(t *testing.T) {
	rm, _ := NewRuleManager()

	s, err := rm.RenderString("${size(params)}", map[string]interface{}{
		"params": map[string]interface{}{"a": "1", "b": "2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "2", s)

	s, err = rm.RenderString("req-${header['x-id']}", map[string]interface{}{
		"header": map[string]interface{}{"x-id": "abc"},
	})
	require.NoError(t, err)
	assert.Equal(t, "req-abc", s)
}
