package value

import (
	"bytes"
	"encoding/json"
	"math"
	"time"
)

type linkJSON struct {
	Type    string `json:"type"`
	Path    string `json:"path"`
	Name    string `json:"name"`
	Display string `json:"display,omitempty"`
}

// MarshalJSON encodes undefined as null, dates as RFC 3339 strings and links
// as {"type":"link","path":...,"name":...} so renderers can tell them apart
// from plain strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.num)
	case KindBoolean:
		return json.Marshal(v.b)
	case KindDate:
		return json.Marshal(v.t.Format(time.RFC3339))
	case KindLink:
		return json.Marshal(linkJSON{Type: "link", Path: v.link.Path, Name: v.link.Name, Display: v.link.Display})
	case KindList:
		return json.Marshal(v.list)
	case KindMapping:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := v.m[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}
	return []byte("null"), nil
}
