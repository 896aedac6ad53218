package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ctxWith(sources map[string]any) *DataContext {
	return &DataContext{DataSources: sources}
}

func TestResolveBasics(t *testing.T) {
	ctx := ctxWith(map[string]any{
		"user": map[string]any{
			"name": "Ada",
			"tags": []any{"a", "b"},
			"meta": map[string]any{"x.y": "dotted"},
		},
	})

	t.Run("no tokens pass through", func(t *testing.T) {
		assert.Equal(t, "plain text", Resolve("plain text", ctx))
	})

	t.Run("simple path", func(t *testing.T) {
		assert.Equal(t, "Ada", Resolve("{{user.name}}", ctx))
	})

	t.Run("whitespace inside token", func(t *testing.T) {
		assert.Equal(t, "Ada", Resolve("{{  user.name  }}", ctx))
	})

	t.Run("multiple tokens in one string", func(t *testing.T) {
		assert.Equal(t, "Ada has a", Resolve("{{user.name}} has {{user.tags[0]}}", ctx))
	})

	t.Run("array index", func(t *testing.T) {
		assert.Equal(t, "b", Resolve("{{user.tags[1]}}", ctx))
	})

	t.Run("quoted key with dot", func(t *testing.T) {
		assert.Equal(t, "dotted", Resolve("{{user.meta['x.y']}}", ctx))
		assert.Equal(t, "dotted", Resolve(`{{user.meta["x.y"]}}`, ctx))
	})
}

func TestResolveMissingPolicy(t *testing.T) {
	ctx := ctxWith(map[string]any{
		"a": map[string]any{"b": "scalar"},
		"n": nil,
	})

	t.Run("missing root", func(t *testing.T) {
		assert.Equal(t, "", Resolve("{{missing}}", ctx))
	})

	t.Run("missing nested", func(t *testing.T) {
		assert.Equal(t, "", Resolve("{{a.nope.deeper}}", ctx))
	})

	t.Run("index on scalar", func(t *testing.T) {
		assert.Equal(t, "", Resolve("{{a.b[0]}}", ctx))
	})

	t.Run("field on scalar", func(t *testing.T) {
		assert.Equal(t, "", Resolve("{{a.b.x}}", ctx))
	})

	t.Run("index out of range", func(t *testing.T) {
		c := ctxWith(map[string]any{"arr": []any{"one"}})
		assert.Equal(t, "", Resolve("{{arr[5]}}", c))
	})

	t.Run("null value", func(t *testing.T) {
		assert.Equal(t, "", Resolve("{{n}}", ctx))
	})

	t.Run("malformed expression", func(t *testing.T) {
		assert.Equal(t, "", Resolve("{{a..b}}", ctx))
		assert.Equal(t, "", Resolve("{{a[x]}}", ctx))
	})
}

func TestResolveRootOrder(t *testing.T) {
	t.Run("item alias wins", func(t *testing.T) {
		ctx := &DataContext{
			Item:        map[string]any{"name": "from-item"},
			DataSources: map[string]any{"item": map[string]any{"name": "from-source"}},
		}
		assert.Equal(t, "from-item", Resolve("{{item.name}}", ctx))
	})

	t.Run("index alias", func(t *testing.T) {
		ctx := &DataContext{Index: 3}
		assert.Equal(t, "3", Resolve("{{index}}", ctx))
	})

	t.Run("custom aliases", func(t *testing.T) {
		ctx := &DataContext{
			Item:       map[string]any{"sku": "X-1"},
			Index:      7,
			ItemAlias:  "product",
			IndexAlias: "pos",
		}
		assert.Equal(t, "X-1", Resolve("{{product.sku}}", ctx))
		assert.Equal(t, "7", Resolve("{{pos}}", ctx))
		// Default aliases no longer bind when overridden
		assert.Equal(t, "", Resolve("{{item.sku}}", ctx))
	})

	t.Run("named data source", func(t *testing.T) {
		ctx := ctxWith(map[string]any{"products": map[string]any{"count": float64(2)}})
		assert.Equal(t, "2", Resolve("{{products.count}}", ctx))
	})

	t.Run("shared data fallback", func(t *testing.T) {
		ctx := &DataContext{
			SharedData: map[string]any{"siteName": "Demo"},
		}
		assert.Equal(t, "Demo", Resolve("{{siteName}}", ctx))
	})

	t.Run("data sources beat shared data", func(t *testing.T) {
		ctx := &DataContext{
			DataSources: map[string]any{"title": "from-source"},
			SharedData:  map[string]any{"title": "from-shared"},
		}
		assert.Equal(t, "from-source", Resolve("{{title}}", ctx))
	})

	t.Run("item is final fallback", func(t *testing.T) {
		ctx := &DataContext{
			Item: map[string]any{"price": float64(1.5)},
		}
		assert.Equal(t, "1.5", Resolve("{{price}}", ctx))
	})
}

func TestResolveIdempotentOnLiterals(t *testing.T) {
	ctx := ctxWith(map[string]any{"user": map[string]any{"name": "Ada"}})

	once := Resolve("hello world", ctx)
	twice := Resolve(once, ctx)
	assert.Equal(t, once, twice)
}

func TestResolveValue(t *testing.T) {
	ctx := &DataContext{
		Item:  map[string]any{"name": "A", "price": float64(1.5)},
		Index: 0,
	}

	props := map[string]any{
		"label":  "{{item.name}}: {{item.price}}",
		"count":  float64(3),
		"nested": map[string]any{"title": "{{item.name}}"},
		"list":   []any{"{{item.name}}", float64(9), map[string]any{"x": "{{index}}"}},
	}

	out := ResolveValue(props, ctx).(map[string]any)
	assert.Equal(t, "A: 1.5", out["label"])
	assert.Equal(t, float64(3), out["count"])
	assert.Equal(t, "A", out["nested"].(map[string]any)["title"])
	list := out["list"].([]any)
	assert.Equal(t, "A", list[0])
	assert.Equal(t, float64(9), list[1])
	assert.Equal(t, "0", list[2].(map[string]any)["x"])
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "x", Stringify("x"))
	assert.Equal(t, "true", Stringify(true))
	assert.Equal(t, "2", Stringify(float64(2)))
	assert.Equal(t, "1.5", Stringify(float64(1.5)))
	assert.Equal(t, "42", Stringify(42))
	assert.Equal(t, `["a","b"]`, Stringify([]any{"a", "b"}))
	assert.Equal(t, `{"k":"v"}`, Stringify(map[string]any{"k": "v"}))
}

func TestExtractPath(t *testing.T) {
	raw := map[string]any{
		"user":  map[string]any{"name": "Ada"},
		"items": []any{map[string]any{"id": float64(1)}},
	}

	assert.Equal(t, "Ada", ExtractPath(raw, "user.name"))
	assert.Equal(t, float64(1), ExtractPath(raw, "items[0].id"))
	assert.Nil(t, ExtractPath(raw, "user.age"))
	assert.Nil(t, ExtractPath(raw, "items[3].id"))
	assert.Nil(t, ExtractPath(nil, "user.name"))
	assert.Nil(t, ExtractPath(raw, ""))
}
