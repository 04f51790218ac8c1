package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
)

// JSONObject is a key→value map stored in a jsonb column — used for
// action_detail, sor_rows.data, and activity_log.detail.
type JSONObject map[string]any

func (j JSONObject) Value() (driver.Value, error) {
	if j == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(j))
}

func (j *JSONObject) Scan(src any) error {
	if src == nil {
		*j = JSONObject{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("JSONObject.Scan: unsupported type %T", src)
	}
	m := JSONObject{}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &m); err != nil {
			return err
		}
	}
	*j = m
	return nil
}

// JSONArray stores an ordered list (column definitions, installed skill ids)
// in a jsonb column.
type JSONArray []any

func (j JSONArray) Value() (driver.Value, error) {
	if j == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]any(j))
}

func (j *JSONArray) Scan(src any) error {
	if src == nil {
		*j = JSONArray{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("JSONArray.Scan: unsupported type %T", src)
	}
	a := JSONArray{}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &a); err != nil {
			return err
		}
	}
	*j = a
	return nil
}

// Float8Array maps to a Postgres double precision[] column — the chunk and
// memory embedding storage per §4.7 ("store embeddings in a vector-typed
// column when the store supports it"). pq.Float64Array provides the
// array-literal encode/decode that lib/pq contributes to the stack.
type Float8Array []float64

func (f Float8Array) Value() (driver.Value, error) {
	return pq.Array([]float64(f)).Value()
}

func (f *Float8Array) Scan(src any) error {
	var arr pq.Float64Array
	if err := arr.Scan(src); err != nil {
		return err
	}
	*f = Float8Array(arr)
	return nil
}
