package lookup

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecord_KeepsOrderAndNulls(t *testing.T) {
	t.Parallel()

	in := `{"phone":"3001234567","full_name":"Ali","age":42,"address":null,"tags":["a"]}`
	var r Record
	require.NoError(t, json.Unmarshal([]byte(in), &r))

	names := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		names = append(names, f.Name)
	}
	require.Equal(t, []string{"phone", "full_name", "age", "address", "tags"}, names)

	name, ok := r.Get(FieldFullName)
	require.True(t, ok)
	require.Equal(t, "Ali", name)
	_, ok = r.Get(FieldAddress)
	require.False(t, ok)
	age, _ := r.Get("age")
	require.Equal(t, "42", age)

	out, err := json.Marshal(r)
	require.NoError(t, err)
	require.Equal(t, `{"phone":"3001234567","full_name":"Ali","age":"42","address":null,"tags":"[\"a\"]"}`, string(out))
}

func TestRecord_RejectsNonObject(t *testing.T) {
	t.Parallel()

	var r Record
	require.Error(t, json.Unmarshal([]byte(`[1,2]`), &r))
}
