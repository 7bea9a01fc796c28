// backend/internal/domain/project.go

package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// Record is a project object as returned by the upstream API. Records are
// passed through untouched apart from key-based merging, so they stay
// untyped maps instead of structs.
type Record map[string]any

// Field names the API uses for identifiers.
const (
	FieldID          = "id"
	FieldSlug        = "slug"
	FieldCreatedAt   = "created_at"
	FieldFkProjectID = "fk_project_id"
	FieldDetails     = "details"
)

// ID returns the integer project id of a list summary.
func (r Record) ID() (int64, bool) {
	return asInt(r[FieldID])
}

// FkProjectID returns the foreign-key project id carried by detail records.
func (r Record) FkProjectID() (int64, bool) {
	return asInt(r[FieldFkProjectID])
}

// EffectiveID is fk_project_id when it holds a non-empty, non-zero value,
// else id. A set fk_project_id that is not an integer yields no id at all.
func (r Record) EffectiveID() (int64, bool) {
	if fk := r[FieldFkProjectID]; isSet(fk) {
		return asInt(fk)
	}
	return r.ID()
}

// isSet reports whether a JSON value is neither null, false, zero nor empty.
func isSet(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	case map[string]any:
		return len(x) > 0
	case Record:
		return len(x) > 0
	case []any:
		return len(x) > 0
	default:
		return true
	}
}

// Slug returns the non-empty slug of the record.
func (r Record) Slug() (string, bool) {
	s, ok := r[FieldSlug].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// CreatedAt returns the raw created_at string.
func (r Record) CreatedAt() (string, bool) {
	s, ok := r[FieldCreatedAt].(string)
	return s, ok
}

// Ref builds the identifier pair used to request this project's detail.
func (r Record) Ref() ProjectRef {
	ref := ProjectRef{}
	ref.ID, ref.HasID = r.ID()
	ref.Slug, _ = r.Slug()
	return ref
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	return out
}

// FkIndex maps an integer project id to its detail record.
type FkIndex map[int64]Record

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

// AsInt reports whether v is an integral JSON number.
func AsInt(v any) (int64, bool) {
	return asInt(v)
}

// DecodeRecords reads a JSON array of objects, keeping numbers as json.Number.
// Array elements that are not objects are dropped.
func DecodeRecords(r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(raw))
	for _, item := range raw {
		if obj, ok := item.(map[string]any); ok {
			records = append(records, Record(obj))
		}
	}
	return records, nil
}

// DecodeValue decodes any JSON document, keeping numbers as json.Number.
func DecodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// AsRecord returns v as a Record when it is a JSON object.
func AsRecord(v any) (Record, bool) {
	switch obj := v.(type) {
	case Record:
		return obj, true
	case map[string]any:
		return Record(obj), true
	default:
		return nil, false
	}
}

func (r ProjectRef) String() string {
	switch {
	case r.HasID && r.Slug != "":
		return fmt.Sprintf("%d (%s)", r.ID, r.Slug)
	case r.HasID:
		return fmt.Sprintf("%d", r.ID)
	default:
		return r.Slug
	}
}
