package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the value type of a listing field.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
	KindTime
)

// Field maps one camelCase API key to its snake_case column.
type Field struct {
	JSON     string
	Column   string
	Kind     Kind
	ReadOnly bool // store-managed; never written from a request body
	Image    bool
}

var ErrInvalidFieldValue = errors.New("invalid field value")

// Fields is the documented camelCase <-> snake_case correspondence.
var Fields = buildFields()

var (
	fieldsByJSON   = map[string]Field{}
	fieldsByColumn = map[string]Field{}
)

func init() {
	for _, f := range Fields {
		fieldsByJSON[f.JSON] = f
		fieldsByColumn[f.Column] = f
	}
}

func buildFields() []Field {
	fields := []Field{
		{JSON: "listingId", Column: "listing_id", Kind: KindInt, ReadOnly: true},
		{JSON: "stockId", Column: "stock_id", Kind: KindInt},
		{JSON: "make", Column: "make", Kind: KindString},
		{JSON: "model", Column: "model", Kind: KindString},
		{JSON: "price", Column: "price", Kind: KindInt},
		{JSON: "year", Column: "year", Kind: KindInt},
		{JSON: "transmission", Column: "transmission", Kind: KindString},
		{JSON: "mileage", Column: "mileage", Kind: KindInt},
		{JSON: "eColor", Column: "e_color", Kind: KindString},
		{JSON: "iColor", Column: "i_color", Kind: KindString},
		{JSON: "body", Column: "body", Kind: KindString},
		{JSON: "fuel", Column: "fuel", Kind: KindString},
		{JSON: "seats", Column: "seats", Kind: KindInt},
		{JSON: "doors", Column: "doors", Kind: KindInt},
		{JSON: "engine", Column: "engine", Kind: KindString},
		{JSON: "vin", Column: "vin", Kind: KindString},
		{JSON: "safety", Column: "safety", Kind: KindString},
		{JSON: "description", Column: "description", Kind: KindString},
		{JSON: "financingAvailable", Column: "financing_available", Kind: KindBool},
		{JSON: "sold", Column: "sold", Kind: KindBool},
		{JSON: "weeklySpecial", Column: "weekly_special", Kind: KindBool},
		{JSON: "createdAt", Column: "created_at", Kind: KindTime, ReadOnly: true},
		{JSON: "updatedAt", Column: "updated_at", Kind: KindTime, ReadOnly: true},
	}
	for n := 1; n <= MaxImageSlots; n++ {
		key := ImageColumn(n)
		fields = append(fields, Field{JSON: key, Column: key, Kind: KindString, Image: true})
	}
	return fields
}

// FieldByJSON looks up a field by its API key.
func FieldByJSON(key string) (Field, bool) {
	f, ok := fieldsByJSON[key]
	return f, ok
}

// ToColumns renames camelCase keys to columns. Unknown keys are dropped.
func ToColumns(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		if f, ok := fieldsByJSON[k]; ok {
			out[f.Column] = v
		}
	}
	return out
}

// FromColumns renames columns to camelCase keys. Unknown columns are dropped.
func FromColumns(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		if f, ok := fieldsByColumn[k]; ok {
			out[f.JSON] = v
		}
	}
	return out
}

// Coerce converts a decoded JSON value to the Go type stored for the field.
// JSON numbers arrive as float64; numeric strings are accepted for int fields
// since form inputs post them that way.
func (f Field) Coerce(v interface{}) (interface{}, error) {
	switch f.Kind {
	case KindString:
		switch x := v.(type) {
		case string:
			return x, nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		}
	case KindInt:
		switch x := v.(type) {
		case float64:
			// float64(math.MaxInt) rounds up to 2^63, which int cannot hold
			if x != math.Trunc(x) || x >= float64(math.MaxInt) || x < float64(math.MinInt) {
				break
			}
			return int(x), nil
		case int:
			return x, nil
		case int64:
			return int(x), nil
		case string:
			i, err := strconv.Atoi(strings.TrimSpace(x))
			if err == nil {
				return i, nil
			}
		}
	case KindBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(x))
			if err == nil {
				return b, nil
			}
		}
	case KindTime:
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidFieldValue, f.JSON)
}
