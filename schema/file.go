package schema

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type fileEntry struct {
	Query  string `toml:"query"`
	Column string `toml:"column"`
	Role   string `toml:"role"`
}

type file struct {
	Columns []fileEntry `toml:"column"`
}

// LoadFile reads extra classifications from a TOML file of [[column]] tables:
//
//	[[column]]
//	query = "pools"
//	column = "cl_new_counter"
//	role = "field"
func LoadFile(path string) ([]Entry, error) {
	var f file
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("decode schema file %s: %w", path, err)
	}
	return f.entries()
}

// Decode is LoadFile for in-memory content.
func Decode(data string) ([]Entry, error) {
	var f file
	if _, err := toml.Decode(data, &f); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return f.entries()
}

func (f *file) entries() ([]Entry, error) {
	entries := make([]Entry, 0, len(f.Columns))
	for i, c := range f.Columns {
		role, err := ParseRole(c.Role)
		if err != nil {
			return nil, fmt.Errorf("column #%d (%s.%s): %w", i+1, c.Query, c.Column, err)
		}
		entries = append(entries, Entry{
			Query:  QueryType(strings.ToLower(strings.TrimSpace(c.Query))),
			Column: strings.TrimSpace(c.Column),
			Role:   role,
		})
	}
	return entries, nil
}
