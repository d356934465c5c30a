package process

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/taosdata/bouncerkeeper/db"
)

type Kind int

const (
	Absent Kind = iota
	Int
	Float
	Text
)

// Value is one cell of an admin console result. The zero Value is Absent.
type Value struct {
	Kind Kind
	i    int64
	f    float64
	s    string
}

func IntValue(i int64) Value   { return Value{Kind: Int, i: i} }
func TextValue(s string) Value { return Value{Kind: Text, s: s} }
func AbsentValue() Value       { return Value{} }

// FloatValue maps NaN and infinities to Absent, line protocol has no literal for them.
func FloatValue(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{Kind: Float, f: f}
}

func (v Value) Int() int64     { return v.i }
func (v Value) Float() float64 { return v.f }
func (v Value) Text() string   { return v.s }

// String is the bare text form, numbers in shortest decimal notation and Absent as "".
func (v Value) String() string {
	switch v.Kind {
	case Int:
		return strconv.FormatInt(v.i, 10)
	case Float:
		return decimal.NewFromFloat(v.f).String()
	case Text:
		return v.s
	default:
		return ""
	}
}

type Column struct {
	Name  string
	Value Value
}

// Row keeps the console's column order, which is also the output order.
type Row []Column

func (r Row) Get(name string) (Value, bool) {
	for _, c := range r {
		if c.Name == name {
			return c.Value, true
		}
	}
	return Value{}, false
}

// Normalize pairs every positional row with the column list. Short rows are padded with Absent,
// surplus values are dropped, and the row count is preserved.
func Normalize(data *db.Data) []Row {
	rows := make([]Row, 0, len(data.Data))
	for _, raw := range data.Data {
		row := make(Row, len(data.Head))
		for i, name := range data.Head {
			row[i].Name = name
			if i < len(raw) {
				dbType := ""
				if i < len(data.Types) {
					dbType = data.Types[i]
				}
				row[i].Value = convert(raw[i], dbType)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func convert(value interface{}, dbType string) Value {
	switch v := value.(type) {
	case nil:
		return AbsentValue()
	case int8:
		return IntValue(int64(v))
	case int16:
		return IntValue(int64(v))
	case int32:
		return IntValue(int64(v))
	case int64:
		return IntValue(v)
	case int:
		return IntValue(int64(v))
	case uint8:
		return IntValue(int64(v))
	case uint16:
		return IntValue(int64(v))
	case uint32:
		return IntValue(int64(v))
	case uint64:
		if v > math.MaxInt64 {
			return FloatValue(float64(v))
		}
		return IntValue(int64(v))
	case float32:
		return FloatValue(float64(v))
	case float64:
		return FloatValue(v)
	case bool:
		if v {
			return IntValue(1)
		}
		return IntValue(0)
	case string:
		return text(v, dbType)
	case []byte:
		return text(string(v), dbType)
	case time.Time:
		return TextValue(v.Format(time.RFC3339))
	default:
		return TextValue(fmt.Sprintf("%v", v))
	}
}

func text(s, dbType string) Value {
	if dbType == "NUMERIC" {
		d, err := decimal.NewFromString(s)
		if err == nil {
			return FloatValue(d.InexactFloat64())
		}
	}
	return TextValue(s)
}
