package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripKeepsKeyOrder(t *testing.T) {
	in := `{"zeta":1,"alpha":{"b":true,"a":[1,{"y":"x","c":null}]},"mid":"<p>hi & bye</p>","big":12345678901234567890}`
	r, err := DecodeRecord([]byte(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"zeta", "alpha", "mid", "big"}, r.Keys())
	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, in, string(out))
}

func TestAccessorsWithDefaults(t *testing.T) {
	r, err := DecodeRecord([]byte(`{"id":42,"name":"Form","enabled":true,"nested":{"paging":{"next":{"link":"/p2"}}},"list":[{"a":1}]}`))
	require.NoError(t, err)

	assert.Equal(t, "42", r.ID())
	assert.Equal(t, int64(42), r.GetInt64("id", 0))
	assert.Equal(t, "Form", r.GetString("name", ""))
	assert.Equal(t, "fallback", r.GetString("missing", "fallback"))
	assert.True(t, r.GetBool("enabled", false))
	assert.False(t, r.GetBool("name", false))
	assert.Equal(t, int64(7), r.GetInt64("name", 7))
	assert.Nil(t, r.GetRecord("name"))
	assert.Len(t, r.GetList("list"), 1)
	assert.Equal(t, "/p2", r.PathString("nested.paging.next.link", ""))
	assert.Equal(t, "1", r.PathString("list.0.a", ""))

	_, ok := r.Path("nested.paging.prev")
	assert.False(t, ok)
	_, ok = r.Path("list.3")
	assert.False(t, ok)
}

func TestSetDeleteRename(t *testing.T) {
	r := New()
	r.Set("a", 1)
	r.Set("b", 2)
	r.Set("c", 3)
	r.Set("a", 10)
	assert.Equal(t, []string{"a", "b", "c"}, r.Keys())

	assert.True(t, r.Delete("b"))
	assert.False(t, r.Delete("b"))
	assert.Equal(t, []string{"a", "c"}, r.Keys())

	assert.True(t, r.Rename("a", "z"))
	assert.Equal(t, []string{"z", "c"}, r.Keys())
	v, _ := r.Get("z")
	assert.Equal(t, 10, v)

	assert.True(t, r.Rename("z", "c"))
	assert.Equal(t, []string{"c"}, r.Keys())
}

func TestCloneIsDeep(t *testing.T) {
	r, err := DecodeRecord([]byte(`{"group":{"fields":[{"name":"email"}]}}`))
	require.NoError(t, err)

	c := r.Clone()
	require.True(t, r.Equal(c))

	field := c.GetRecord("group").GetList("fields")[0].(*Record)
	field.Set("name", "changed")

	assert.False(t, r.Equal(c))
	assert.Equal(t, "email", r.PathString("group.fields.0.name", ""))
}

func TestDecodeArrayAndFromMap(t *testing.T) {
	v, err := Decode([]byte(`[{"id":"1"},2,{"id":"3"}]`))
	require.NoError(t, err)
	recs := Records(v.([]any))
	require.Len(t, recs, 2)
	assert.Equal(t, "3", recs[1].ID())

	_, err = Decode([]byte(`{"a":1} {"b":2}`))
	assert.Error(t, err)

	m := FromMap(map[string]any{"b": 1, "a": map[string]any{"y": 2, "x": 1}})
	assert.Equal(t, `{"a":{"x":1,"y":2},"b":1}`, m.String())
	assert.Equal(t, map[string]any{"a": map[string]any{"x": 1, "y": 2}, "b": 1}, m.ToMap())
}

func TestUnmarshalRejectsNonObject(t *testing.T) {
	var r Record
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &r))
}

func TestZeroRecordAndRenameKeepsPosition(t *testing.T) {
	var r Record
	assert.Equal(t, 0, r.Len())
	r.Set("a", 1)
	r.Set("b", 2)
	r.Set("c", 3)

	assert.True(t, r.Rename("b", "z"))
	assert.Equal(t, []string{"a", "z", "c"}, r.Keys())

	assert.True(t, r.Rename("a", "c"))
	assert.Equal(t, []string{"c", "z"}, r.Keys())
	v, _ := r.Get("c")
	assert.Equal(t, 1, v)
	assert.False(t, r.Rename("missing", "x"))
}

func TestDecodeKeepsNestedOrderAndPrecision(t *testing.T) {
	v, err := Decode([]byte(` [{"z":{"b":1,"a":[{"y":2,"x":1}]},"n":9007199254740993}] `))
	require.NoError(t, err)
	recs := Records(v.([]any))
	require.Len(t, recs, 1)
	assert.Equal(t, `{"z":{"b":1,"a":[{"y":2,"x":1}]},"n":9007199254740993}`, recs[0].String())
	assert.Equal(t, int64(9007199254740993), recs[0].GetInt64("n", 0))

	_, err = Decode([]byte(`{"a":`))
	assert.Error(t, err)
}
