package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleOf(t *testing.T) {
	r := Default()
	cases := []struct {
		query  QueryType
		column string
		role   Role
	}{
		{"pools", "database", Tag},
		{"pools", "cl_active", Field},
		{"pools", "pool_mode", Tag},
		{"clients", "port", Field},
		{"clients", "ptr", Omit},
		{"sockets", "send_avail", Field},
		{"databases", "port", Field},
		{"fds", "password", Omit},
		{"config", "key", Tag},
		{"mem", "memtotal", Field},
	}
	for _, tc := range cases {
		t.Run(string(tc.query)+"."+tc.column, func(t *testing.T) {
			role, err := r.RoleOf(tc.query, tc.column)
			require.NoError(t, err)
			assert.Equal(t, tc.role, role)
		})
	}
}

func TestUnknownColumn(t *testing.T) {
	_, err := Default().RoleOf("pools", "no_such_column")
	var unknown *UnknownColumnError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, QueryType("pools"), unknown.Query)
	assert.Equal(t, "no_such_column", unknown.Column)

	// a column known for one type is still unknown for another
	_, err = Default().RoleOf("mem", "cl_active")
	assert.True(t, errors.As(err, &unknown))
}

func TestBuiltinQueryTypes(t *testing.T) {
	r := Default()
	for _, q := range []QueryType{"pools", "clients", "servers", "databases", "stats", "mem", "fds", "lists", "active_sockets", "sockets", "config"} {
		assert.True(t, r.Has(q), q)
		assert.NotEmpty(t, r.Columns(q), q)
	}
	assert.False(t, r.Has("help"))
}

func TestEveryTypeHasAField(t *testing.T) {
	r := Default()
	for _, q := range r.Types() {
		hasField := false
		for _, c := range r.Columns(q) {
			role, err := r.RoleOf(q, c)
			require.NoError(t, err)
			if role == Field {
				hasField = true
			}
		}
		assert.True(t, hasField, "query type %s has no field column", q)
	}
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New([]Entry{
		{Query: "pools", Column: "database", Role: Tag},
		{Query: "pools", Column: "database", Role: Field},
	})
	assert.Error(t, err)

	_, err = New([]Entry{{Query: "pools", Column: "database"}})
	assert.Error(t, err)

	_, err = New([]Entry{{Query: "", Column: "database", Role: Tag}})
	assert.Error(t, err)
}

func TestExtendIsolated(t *testing.T) {
	base, err := New([]Entry{
		{Query: "clients", Column: "port", Role: Field},
		{Query: "servers", Column: "port", Role: Field},
	})
	require.NoError(t, err)

	ext, err := base.Extend([]Entry{
		{Query: "clients", Column: "port", Role: Tag},
		{Query: "custom", Column: "value", Role: Field},
	})
	require.NoError(t, err)

	role, _ := ext.RoleOf("clients", "port")
	assert.Equal(t, Tag, role)
	role, _ = ext.RoleOf("servers", "port")
	assert.Equal(t, Field, role)
	role, _ = base.RoleOf("clients", "port")
	assert.Equal(t, Field, role)
	assert.True(t, ext.Has("custom"))
	assert.False(t, base.Has("custom"))
	assert.Equal(t, []string{"port"}, ext.Columns("clients"))
}

func TestLookup(t *testing.T) {
	q, err := Default().Lookup(" POOLS ")
	require.NoError(t, err)
	assert.Equal(t, QueryType("pools"), q)
	assert.Equal(t, "SHOW POOLS", q.Command())
	assert.Equal(t, "SHOW ACTIVE_SOCKETS", QueryType("active_sockets").Command())

	_, err = Default().Lookup("drop")
	var unknown *UnknownQueryError
	assert.True(t, errors.As(err, &unknown))
}

func TestTypesSorted(t *testing.T) {
	types := Default().Types()
	for i := 1; i < len(types); i++ {
		assert.Less(t, string(types[i-1]), string(types[i]))
	}
}

func TestParseRole(t *testing.T) {
	for s, want := range map[string]Role{"tag": Tag, "Field": Field, " omit ": Omit} {
		role, err := ParseRole(s)
		require.NoError(t, err)
		assert.Equal(t, want, role)
		assert.NotEmpty(t, role.String())
	}
	_, err := ParseRole("label")
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[column]]
query = "pools"
column = "cl_new"
role = "field"

[[column]]
query = "pools"
column = "pool_mode"
role = "omit"
`), 0644))
	entries, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Query: "pools", Column: "cl_new", Role: Field},
		{Query: "pools", Column: "pool_mode", Role: Omit},
	}, entries)

	r, err := Default().Extend(entries)
	require.NoError(t, err)
	role, err := r.RoleOf("pools", "pool_mode")
	require.NoError(t, err)
	assert.Equal(t, Omit, role)

	_, err = Decode("[[column]]\nquery = \"pools\"\ncolumn = \"x\"\nrole = \"label\"\n")
	assert.Error(t, err)
	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestDecodeUppercaseQuery(t *testing.T) {
	entries, err := Decode("[[column]]\nquery = \" POOLS \"\ncolumn = \"cl_new\"\nrole = \"field\"\n")
	require.NoError(t, err)
	r, err := Default().Extend(entries)
	require.NoError(t, err)
	assert.Equal(t, len(Default().Types()), len(r.Types()))

	q, err := r.Lookup("POOLS")
	require.NoError(t, err)
	role, err := r.RoleOf(q, "cl_new")
	require.NoError(t, err)
	assert.Equal(t, Field, role)
}

func TestTagOwners(t *testing.T) {
	r := Default()
	assert.Equal(t, []QueryType{"databases", "peers"}, r.TagOwners("host"))
	assert.Empty(t, r.TagOwners("server"))
	assert.Empty(t, r.TagOwners("cl_active"))
}
