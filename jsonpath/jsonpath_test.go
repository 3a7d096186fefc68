package jsonpath

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRemovePath(t *testing.T) {
	t.Run("Duplicate", func(t *testing.T) {
		x := New()
		require.NoError(t, x.AddPath("category", TypeString))
		assert.ErrorIs(t, x.AddPath("category", TypeInt), ErrDuplicatePath)
	})

	t.Run("Limit", func(t *testing.T) {
		x := New()
		for i := 0; i < MaxPaths; i++ {
			require.NoError(t, x.AddPath(fmt.Sprintf("p%d", i), TypeInt))
		}
		assert.ErrorIs(t, x.AddPath("overflow", TypeInt), ErrTooManyPaths)
	})

	t.Run("RemoveDropsEntries", func(t *testing.T) {
		x := New()
		require.NoError(t, x.AddPath("year", TypeInt))
		require.NoError(t, x.Insert(1, []byte(`{"year": 2024}`)))
		require.Equal(t, 1, x.Count("year"))

		require.NoError(t, x.RemovePath("year"))
		assert.Equal(t, 0, x.Count("year"))
		assert.ErrorIs(t, x.RemovePath("year"), ErrPathNotFound)
	})

	t.Run("Paths", func(t *testing.T) {
		x := New()
		require.NoError(t, x.AddPath("a", TypeString))
		require.NoError(t, x.AddPath("b", TypeInt))
		assert.Equal(t, []string{"a", "b"}, x.Paths())
	})
}

func TestInsertAndLookup(t *testing.T) {
	x := New()
	require.NoError(t, x.AddPath("category", TypeString))
	require.NoError(t, x.AddPath("year", TypeInt))
	require.NoError(t, x.AddPath("score", TypeFloat))
	require.NoError(t, x.AddPath("published", TypeBool))

	docs := map[uint64]string{
		0: `{"category": "tech", "year": 2020, "score": 0.5, "published": true}`,
		1: `{"category": "tech", "year": 2022, "score": 0.9, "published": false}`,
		2: `{"category": "science", "year": 2024, "score": 0.1, "published": true}`,
		3: `{"category": "science", "year": 2021}`,
	}
	for slot, doc := range docs {
		require.NoError(t, x.Insert(slot, []byte(doc)))
	}

	t.Run("String", func(t *testing.T) {
		got, err := x.LookupString("category", "tech")
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint64{0, 1}, got.ToArray())

		empty, err := x.LookupString("category", "absent")
		require.NoError(t, err)
		assert.True(t, empty.IsEmpty())
	})

	t.Run("IntRange", func(t *testing.T) {
		got, err := x.LookupIntRange("year", 2021, 2023)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint64{1, 3}, got.ToArray())

		all, err := x.LookupIntRange("year", 0, 3000)
		require.NoError(t, err)
		assert.Equal(t, uint64(4), all.GetCardinality())
	})

	t.Run("FloatRange", func(t *testing.T) {
		got, err := x.LookupFloatRange("score", 0.4, 1.0)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint64{0, 1}, got.ToArray())
	})

	t.Run("Bool", func(t *testing.T) {
		got, err := x.LookupBool("published", true)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint64{0, 2}, got.ToArray())
	})

	t.Run("MissingFieldSkipped", func(t *testing.T) {
		assert.Equal(t, 3, x.Count("score")) // slot 3 has no score
	})

	t.Run("UnknownPath", func(t *testing.T) {
		_, err := x.LookupString("nope", "x")
		assert.ErrorIs(t, err, ErrPathNotFound)
	})

	t.Run("TypeMismatch", func(t *testing.T) {
		_, err := x.LookupString("year", "2020")
		assert.ErrorIs(t, err, ErrTypeMismatch)
		_, err = x.LookupIntRange("category", 0, 1)
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("Remove", func(t *testing.T) {
		x.Remove(1)
		got, err := x.LookupString("category", "tech")
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint64{0}, got.ToArray())
		assert.Equal(t, 3, x.Count("year"))
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		assert.Error(t, x.Insert(9, []byte(`{broken`)))
	})
}

func TestNestedPaths(t *testing.T) {
	x := New()
	require.NoError(t, x.AddPath("address.city", TypeString))
	require.NoError(t, x.AddPath("tags[0]", TypeString))
	require.NoError(t, x.AddPath("points[1].y", TypeInt))

	doc := `{
		"address": {"city": "berlin"},
		"tags": ["alpha", "beta"],
		"points": [{"y": 1}, {"y": 2}]
	}`
	require.NoError(t, x.Insert(5, []byte(doc)))

	got, err := x.LookupString("address.city", "berlin")
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{5}, got.ToArray())

	got, err = x.LookupString("tags[0]", "alpha")
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{5}, got.ToArray())

	ints, err := x.LookupIntRange("points[1].y", 2, 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{5}, ints.ToArray())
}

func TestResolve(t *testing.T) {
	root := map[string]any{
		"a": map[string]any{"b": "deep"},
		"arr": []any{
			"zero",
			[]any{"nested0", "nested1"},
		},
	}

	cases := []struct {
		path string
		want any
		ok   bool
	}{
		{"a.b", "deep", true},
		{"arr[0]", "zero", true},
		{"arr[1][1]", "nested1", true},
		{"arr.0", "zero", true}, // numeric segment as array index
		{"a.missing", nil, false},
		{"arr[5]", nil, false},
		{"arr[x]", nil, false},
		{"a.b.c", nil, false},
		{"", nil, false},
	}
	for _, tc := range cases {
		got, ok := resolve(root, tc.path)
		assert.Equal(t, tc.ok, ok, "path %q", tc.path)
		if tc.ok {
			assert.Equal(t, tc.want, got, "path %q", tc.path)
		}
	}
}

func TestPersistRoundTrip(t *testing.T) {
	x := New()
	require.NoError(t, x.AddPath("category", TypeString))
	require.NoError(t, x.AddPath("year", TypeInt))
	require.NoError(t, x.AddPath("score", TypeFloat))
	require.NoError(t, x.AddPath("published", TypeBool))

	for slot := uint64(0); slot < 10; slot++ {
		doc := fmt.Sprintf(`{"category": "c%d", "year": %d, "score": %d.5, "published": %t}`,
			slot%3, 2000+slot, slot, slot%2 == 0)
		require.NoError(t, x.Insert(slot, []byte(doc)))
	}

	var buf bytes.Buffer
	require.NoError(t, x.WriteTo(&buf))

	got, err := ReadFrom(&buf)
	require.NoError(t, err)

	assert.Equal(t, x.Paths(), got.Paths())
	for _, p := range x.Paths() {
		assert.Equal(t, x.Count(p), got.Count(p), "path %q", p)
	}

	a, err := got.LookupString("category", "c1")
	require.NoError(t, err)
	b, err := x.LookupString("category", "c1")
	require.NoError(t, err)
	assert.Equal(t, b.ToArray(), a.ToArray())

	r1, err := got.LookupIntRange("year", 2003, 2006)
	require.NoError(t, err)
	r2, err := x.LookupIntRange("year", 2003, 2006)
	require.NoError(t, err)
	assert.Equal(t, r2.ToArray(), r1.ToArray())
}

func TestPersistErrors(t *testing.T) {
	t.Run("BadMagic", func(t *testing.T) {
		_, err := ReadFrom(bytes.NewReader([]byte("WRONG!\x01\x00\x00\x00")))
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("Truncated", func(t *testing.T) {
		x := New()
		require.NoError(t, x.AddPath("year", TypeInt))
		require.NoError(t, x.Insert(0, []byte(`{"year": 1}`)))

		var buf bytes.Buffer
		require.NoError(t, x.WriteTo(&buf))
		raw := buf.Bytes()

		_, err := ReadFrom(bytes.NewReader(raw[:len(raw)-3]))
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}

func TestSaveLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.jpi")

	x := New()
	require.NoError(t, x.AddPath("kind", TypeString))
	require.NoError(t, x.Insert(7, []byte(`{"kind": "doc"}`)))
	require.NoError(t, x.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	res, err := got.LookupString("kind", "doc")
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{7}, res.ToArray())
}
