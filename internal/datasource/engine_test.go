package datasource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	t.Run("api requires endpoint", func(t *testing.T) {
		cfg := Config{Type: TypeAPI}
		assert.Error(t, cfg.Validate())
	})

	t.Run("context requires key", func(t *testing.T) {
		cfg := Config{Type: TypeContext}
		assert.Error(t, cfg.Validate())
	})

	t.Run("static needs nothing", func(t *testing.T) {
		cfg := Config{Type: TypeStatic}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("unknown type", func(t *testing.T) {
		cfg := Config{Type: "GRAPHQL"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad method", func(t *testing.T) {
		cfg := Config{Type: TypeAPI, Endpoint: "http://x", Method: "PATCH"}
		assert.Error(t, cfg.Validate())
	})
}

func TestParseConfigs(t *testing.T) {
	configs, err := ParseConfigs(`{"products":{"type":"API","endpoint":"http://x"}}`)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, TypeAPI, configs["products"].Type)

	configs, err = ParseConfigs("")
	require.NoError(t, err)
	assert.Empty(t, configs)

	_, err = ParseConfigs("{broken")
	assert.Error(t, err)
}

func TestFetchAllPartialFailure(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[1,2]`))
	}))
	defer good.Close()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer bad.Close()

	engine := NewEngine()
	configs := map[string]Config{
		"good": {Type: TypeAPI, Endpoint: good.URL},
		"bad":  {Type: TypeAPI, Endpoint: bad.URL},
	}

	result := engine.FetchAll(context.Background(), configs, nil)

	assert.Equal(t, []any{float64(1), float64(2)}, result.Data["good"])
	assert.Contains(t, result.Errors["bad"], "HTTP 500")
	assert.Greater(t, result.FetchTimeMs, int64(0))

	// data and errors keys are disjoint and cover all configured keys
	for k := range result.Data {
		_, dup := result.Errors[k]
		assert.False(t, dup, "key %q in both data and errors", k)
	}
	assert.Len(t, result.Data, 1)
	assert.Len(t, result.Errors, 1)
}

func TestFetchAPIMergesParams(t *testing.T) {
	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query().Get("userId"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	engine := NewEngine()
	configs := map[string]Config{
		"user": {Type: TypeAPI, Endpoint: srv.URL + "?expand=1"},
	}

	result := engine.FetchAll(context.Background(), configs, map[string]string{"userId": "42"})
	assert.Empty(t, result.Errors)
	assert.Equal(t, "42", gotQuery.Load())
}

func TestFetchAPIHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "secret" {
			http.Error(w, "denied", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`"ok"`))
	}))
	defer srv.Close()

	engine := NewEngine()
	configs := map[string]Config{
		"auth": {Type: TypeAPI, Endpoint: srv.URL, Headers: map[string]string{"X-API-Key": "secret"}},
	}

	result := engine.FetchAll(context.Background(), configs, nil)
	assert.Empty(t, result.Errors)
	assert.Equal(t, "ok", result.Data["auth"])
}

func TestFetchStaticAndContext(t *testing.T) {
	engine := NewEngine()
	configs := map[string]Config{
		"static": {Type: TypeStatic, StaticData: map[string]any{"title": "Hello"}},
		"ctx":    {Type: TypeContext, ContextKey: "tenant"},
		"missing": {
			Type: TypeContext, ContextKey: "absent",
		},
	}

	result := engine.FetchAll(context.Background(), configs, map[string]string{"tenant": "acme"})
	assert.Empty(t, result.Errors)
	assert.Equal(t, map[string]any{"title": "Hello"}, result.Data["static"])
	assert.Equal(t, "acme", result.Data["ctx"])
	assert.Nil(t, result.Data["missing"])
}

func TestFieldMappingWithFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user":{"name":"Ada"}}`))
	}))
	defer srv.Close()

	engine := NewEngine()
	configs := map[string]Config{
		"profile": {
			Type:     TypeAPI,
			Endpoint: srv.URL,
			FieldMapping: map[string]FieldSpec{
				"name": {Path: "user.name", Transform: "uppercase"},
				"age":  {Path: "user.age", Fallback: float64(0)},
			},
		},
	}

	result := engine.FetchAll(context.Background(), configs, nil)
	require.Empty(t, result.Errors)

	mapped := result.Data["profile"].(map[string]any)
	assert.Equal(t, "ADA", mapped["name"])
	assert.Equal(t, float64(0), mapped["age"])
}

func TestTransforms(t *testing.T) {
	cases := []struct {
		name      string
		value     any
		transform string
		want      any
	}{
		{"uppercase", "ada", "uppercase", "ADA"},
		{"lowercase", "ADA", "lowercase", "ada"},
		{"trim", "  x  ", "trim", "x"},
		{"number from string", "1.5", "number", float64(1.5)},
		{"number from bool", true, "number", float64(1)},
		{"integer", float64(3.9), "integer", int64(3)},
		{"boolean from string", "yes", "boolean", true},
		{"boolean from zero", float64(0), "boolean", false},
		{"string from number", float64(2), "string", "2"},
		{"unknown is no-op", "keep", "reverse", "keep"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, applyTransform(tc.value, tc.transform))
		})
	}

	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, applyTransform(nil, "uppercase"))
	})
}

func TestCaching(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"n":1}`))
	}))
	defer srv.Close()

	engine := NewEngine(WithDefaultTTL(time.Minute))
	configs := map[string]Config{
		"cached": {Type: TypeAPI, Endpoint: srv.URL, CacheKey: "k1"},
	}

	engine.FetchAll(context.Background(), configs, nil)
	engine.FetchAll(context.Background(), configs, nil)
	assert.Equal(t, int64(1), hits.Load())

	engine.Cache().ClearKey("k1")
	engine.FetchAll(context.Background(), configs, nil)
	assert.Equal(t, int64(2), hits.Load())
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache()
	c.Set("k", "v", 20*time.Millisecond)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	time.Sleep(30 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache()
	done := make(chan struct{})

	go func() {
		for i := 0; i < 1000; i++ {
			c.Set("k", i, time.Minute)
		}
		close(done)
	}()
	for i := 0; i < 1000; i++ {
		if v, ok := c.Get("k"); ok {
			// Values are replaced atomically - never torn.
			assert.IsType(t, 0, v)
		}
	}
	<-done
}

func TestFetchBatch(t *testing.T) {
	engine := NewEngine()
	configs := map[string]Config{
		"a": {Type: TypeStatic, StaticData: "A"},
		"b": {Type: TypeStatic, StaticData: "B"},
		"c": {Type: TypeStatic, StaticData: "C"},
	}

	result := engine.FetchBatch(context.Background(), configs, []string{"a", "c", "nope"}, nil)
	assert.Equal(t, "A", result.Data["a"])
	assert.Equal(t, "C", result.Data["c"])
	assert.NotContains(t, result.Data, "b")
	assert.Contains(t, result.Errors["nope"], "not configured")
}

func TestTestDataSource(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()

		res := NewEngine().TestDataSource(context.Background(), Config{Type: TypeAPI, Endpoint: srv.URL})
		assert.True(t, res.Success)
		assert.Equal(t, http.StatusOK, res.StatusCode)
	})

	t.Run("http error carries status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer srv.Close()

		res := NewEngine().TestDataSource(context.Background(), Config{Type: TypeAPI, Endpoint: srv.URL})
		assert.False(t, res.Success)
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
	})

	t.Run("invalid config", func(t *testing.T) {
		res := NewEngine().TestDataSource(context.Background(), Config{Type: TypeAPI})
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "endpoint")
	})
}

func TestDecodeErrorReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	engine := NewEngine()
	result := engine.FetchAll(context.Background(),
		map[string]Config{"page": {Type: TypeAPI, Endpoint: srv.URL}}, nil)
	assert.Contains(t, result.Errors["page"], "decode")
}
