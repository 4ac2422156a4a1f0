package httpcache

import (
	"math"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://api.example.com"

func TestBuildKeyFormat(t *testing.T) {
	key := BuildKey(testBaseURL, Descriptor{
		URL:    "/cars/get-all",
		Params: map[string]any{"page": 1},
	})

	assert.Equal(t, `get::https://api.example.com/cars/get-all?{"page":1}`, key)
}

func TestBuildKeyWithoutParams(t *testing.T) {
	key := BuildKey(testBaseURL, Descriptor{Method: "GET", URL: "/blogs/get-all"})

	assert.Equal(t, "get::https://api.example.com/blogs/get-all?", key)
}

func TestBuildKeyDeterministic(t *testing.T) {
	p1 := map[string]any{}
	p1["page"] = 2
	p1["filters"] = map[string]any{"make": "Audi", "year": 2020}
	p1["sort"] = []any{"price", "desc"}

	p2 := map[string]any{
		"sort":    []any{"price", "desc"},
		"filters": map[string]any{"year": 2020, "make": "Audi"},
		"page":    2,
	}

	for i := 0; i < 20; i++ {
		assert.Equal(t,
			BuildKey(testBaseURL, Descriptor{URL: "/cars/search", Params: p1}),
			BuildKey(testBaseURL, Descriptor{URL: "/cars/search", Params: p2}),
		)
	}

	mixed := map[any]any{1: "int", "1": "str", 1.5: "float", true: "bool"}
	want := SerializeParams(mixed)
	for i := 0; i < 200; i++ {
		require.Equal(t, want, SerializeParams(mixed), "keys of different types must order the same way every time")
	}
	assert.Equal(t, `{"1":"str",1:"int",1.5:"float",true:"bool"}`, want)
	assert.NotEqual(t,
		BuildKey(testBaseURL, Descriptor{URL: "/cars/search", Params: map[any]any{1: "x"}}),
		BuildKey(testBaseURL, Descriptor{URL: "/cars/search", Params: map[any]any{"1": "x"}}),
		"keys that differ only by type are distinct",
	)
}

func TestBuildKeySensitivity(t *testing.T) {
	base := Descriptor{Method: "get", URL: "/cars/search", Params: map[string]any{"page": 1, "make": "Audi"}}
	baseKey := BuildKey(testBaseURL, base)

	tests := []struct {
		name string
		d    Descriptor
	}{
		{"method", Descriptor{Method: "post", URL: base.URL, Params: base.Params}},
		{"url", Descriptor{URL: "/cars/get-all", Params: base.Params}},
		{"param value", Descriptor{URL: base.URL, Params: map[string]any{"page": 2, "make": "Audi"}}},
		{"param type", Descriptor{URL: base.URL, Params: map[string]any{"page": "1", "make": "Audi"}}},
		{"extra param", Descriptor{URL: base.URL, Params: map[string]any{"page": 1, "make": "Audi", "model": nil}}},
		{"missing param", Descriptor{URL: base.URL, Params: map[string]any{"page": 1}}},
		{"nesting", Descriptor{URL: base.URL, Params: map[string]any{"page": 1, "make": []any{"Audi"}}}},
		{"no params", Descriptor{URL: base.URL}},
	}

	seen := map[string]string{baseKey: "base"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := BuildKey(testBaseURL, tt.d)
			other, exists := seen[key]
			assert.False(t, exists, "key %q collides with %s", key, other)
			seen[key] = tt.name
		})
	}
}

func TestBuildKeyCustomSerializer(t *testing.T) {
	d := Descriptor{
		URL:        "/cars/get-all",
		Params:     map[string]any{"page": 1},
		Serializer: func(params any) string { return "page=1" },
	}

	assert.Equal(t, "get::https://api.example.com/cars/get-all?page=1", BuildKey(testBaseURL, d))
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		target string
		want   string
	}{
		{"absolute target", testBaseURL, "http://other.example.com/cars", "http://other.example.com/cars"},
		{"absolute target any case", testBaseURL, "HTTPS://other.example.com/cars", "HTTPS://other.example.com/cars"},
		{"rooted path", testBaseURL + "/api", "/cars/get-all", "https://api.example.com/cars/get-all"},
		{"relative path", testBaseURL + "/api/", "cars/get-all", "https://api.example.com/api/cars/get-all"},
		{"empty base", "", "/cars", "/cars"},
		{"unparsable base", "://bad/", "/cars", "://bad/cars"},
		{"relative base", "api/", "/cars", "api/cars"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveURL(tt.base, tt.target))
		})
	}
}

type searchFilter struct {
	Make    string    `structs:"make"`
	Year    int       `structs:"year"`
	Since   time.Time `structs:"since"`
	Ignored string    `structs:"-"`
	hidden  string
}

func TestSerializeParams(t *testing.T) {
	date := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	var nilMap map[string]any
	var nilPtr *int

	tests := []struct {
		name   string
		params any
		want   string
	}{
		{"nil", nil, "null"},
		{"undefined", Undefined, "undefined"},
		{"nan", math.NaN(), "NaN"},
		{"infinity", math.Inf(-1), "-Infinity"},
		{"float", 1.5, "1.5"},
		{"string", "Audi", `"Audi"`},
		{"bool", true, "true"},
		{"date", date, "date:2024-03-01T10:30:00Z"},
		{"nil map", nilMap, "null"},
		{"nil pointer", nilPtr, "null"},
		{"array order kept", []any{3, 1, 2}, "[3,1,2]"},
		{"bytes", []byte("abc"), `"abc"`},
		{"map keys sorted", map[string]any{"b": 1, "a": nil, "c": Undefined}, `{"a":null,"b":1,"c":undefined}`},
		{"url values", url.Values{"page": {"1"}, "make": {"Audi", "BMW"}}, `{"make":["Audi","BMW"],"page":["1"]}`},
		{
			"struct",
			searchFilter{Make: "Audi", Year: 2020, Since: date, Ignored: "x", hidden: "y"},
			`{"make":"Audi","since":date:2024-03-01T10:30:00Z,"year":2020}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SerializeParams(tt.params))
		})
	}
}

func TestSerializeParamsCycles(t *testing.T) {
	self := map[string]any{"page": 1}
	self["self"] = self
	assert.Equal(t, `{"page":1,"self":[Circular]}`, SerializeParams(self))

	list := []any{1, nil}
	list[1] = list
	assert.Equal(t, "[1,[Circular]]", SerializeParams(list))

	type node struct {
		Name string
		Next *node
	}
	n := &node{Name: "a"}
	n.Next = n
	assert.Equal(t, `{"Name":"a","Next":[Circular]}`, SerializeParams(n))
}

func TestSerializeParamsSharedReferences(t *testing.T) {
	inner := map[string]any{"a": 1}
	params := map[string]any{"x": inner, "y": inner}

	assert.Equal(t, `{"x":{"a":1},"y":{"a":1}}`, SerializeParams(params))
}

func TestDescriptorFromRequest(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://api.example.com/cars/search?make=Audi&tag=a&tag=b#top", nil)
	require.NoError(t, err)

	d := DescriptorFromRequest(req)

	assert.Equal(t, http.MethodGet, d.Method)
	assert.Equal(t, "https://api.example.com/cars/search", d.URL)
	assert.Equal(t, map[string]any{"make": "Audi", "tag": []any{"a", "b"}}, d.Params)
}

func TestDescriptorFromRequestRelative(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "/cars/get-all", nil)
	require.NoError(t, err)
	req.Host = "localhost:5000"

	d := DescriptorFromRequest(req)

	assert.Equal(t, "http://localhost:5000/cars/get-all", d.URL)
	assert.Nil(t, d.Params)
}
