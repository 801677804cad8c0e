package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidFragment is returned for fragmented payloads that fail validation.
var ErrInvalidFragment = errors.New("content: invalid fragmented response")

const fragmentedSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["fragments"],
  "properties": {
    "fragments": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type", "delay"],
        "properties": {
          "type": {"enum": ["text", "image", "video", "document", "location", "audio", "contact"]},
          "delay": {"type": "number", "minimum": 0}
        },
        "allOf": [
          {"if": {"properties": {"type": {"const": "text"}}}, "then": {"required": ["content"], "properties": {"content": {"type": "string"}}}},
          {"if": {"properties": {"type": {"enum": ["image", "video", "audio"]}}}, "then": {"required": ["url"], "properties": {"url": {"type": "string"}}}},
          {"if": {"properties": {"type": {"const": "document"}}}, "then": {"required": ["url", "filename"], "properties": {"url": {"type": "string"}, "filename": {"type": "string"}}}},
          {"if": {"properties": {"type": {"const": "location"}}}, "then": {"required": ["latitude", "longitude", "name", "address"], "properties": {"latitude": {"type": "number"}, "longitude": {"type": "number"}, "name": {"type": "string"}, "address": {"type": "string"}}}},
          {"if": {"properties": {"type": {"const": "contact"}}}, "then": {"required": ["name", "phone"], "properties": {"name": {"type": "string"}, "phone": {"type": "string"}}}}
        ]
      }
    }
  }
}`

var fragmentedSchemaLoader = gojsonschema.NewStringLoader(fragmentedSchema)

type wireFragment struct {
	Type         string  `json:"type"`
	Delay        float64 `json:"delay"`
	Content      string  `json:"content,omitempty"`
	URL          string  `json:"url,omitempty"`
	Caption      string  `json:"caption,omitempty"`
	Filename     string  `json:"filename,omitempty"`
	Latitude     float64 `json:"latitude,omitempty"`
	Longitude    float64 `json:"longitude,omitempty"`
	Name         string  `json:"name,omitempty"`
	Address      string  `json:"address,omitempty"`
	Phone        string  `json:"phone,omitempty"`
	Organization string  `json:"organization,omitempty"`
}

// ParseFragmented validates raw against the fragment schema and decodes it.
func ParseFragmented(raw []byte) (Fragmented, error) {
	result, err := gojsonschema.Validate(fragmentedSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return Fragmented{}, fmt.Errorf("%w: %v", ErrInvalidFragment, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return Fragmented{}, fmt.Errorf("%w: %s", ErrInvalidFragment, strings.Join(errs, "; "))
	}

	var doc struct {
		Fragments []wireFragment `json:"fragments"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Fragmented{}, fmt.Errorf("%w: %v", ErrInvalidFragment, err)
	}

	out := Fragmented{Fragments: make([]Fragment, 0, len(doc.Fragments))}
	for _, w := range doc.Fragments {
		p := Pause{DelayMS: int(w.Delay)}
		switch w.Type {
		case "text":
			out.Fragments = append(out.Fragments, TextFragment{Pause: p, Content: w.Content})
		case "image":
			out.Fragments = append(out.Fragments, ImageFragment{Pause: p, URL: w.URL, Caption: w.Caption})
		case "video":
			out.Fragments = append(out.Fragments, VideoFragment{Pause: p, URL: w.URL, Caption: w.Caption})
		case "audio":
			out.Fragments = append(out.Fragments, AudioFragment{Pause: p, URL: w.URL})
		case "document":
			out.Fragments = append(out.Fragments, DocumentFragment{Pause: p, URL: w.URL, Filename: w.Filename, Caption: w.Caption})
		case "location":
			out.Fragments = append(out.Fragments, LocationFragment{Pause: p, Latitude: w.Latitude, Longitude: w.Longitude, Name: w.Name, Address: w.Address})
		case "contact":
			out.Fragments = append(out.Fragments, ContactFragment{Pause: p, Name: w.Name, Phone: w.Phone, Organization: w.Organization})
		}
	}
	return out, nil
}

// MarshalFragmented is the inverse of ParseFragmented.
func MarshalFragmented(f Fragmented) ([]byte, error) {
	wire := make([]wireFragment, 0, len(f.Fragments))
	for _, frag := range f.Fragments {
		var w wireFragment
		switch v := frag.(type) {
		case TextFragment:
			w = wireFragment{Type: "text", Delay: float64(v.DelayMS), Content: v.Content}
		case ImageFragment:
			w = wireFragment{Type: "image", Delay: float64(v.DelayMS), URL: v.URL, Caption: v.Caption}
		case VideoFragment:
			w = wireFragment{Type: "video", Delay: float64(v.DelayMS), URL: v.URL, Caption: v.Caption}
		case AudioFragment:
			w = wireFragment{Type: "audio", Delay: float64(v.DelayMS), URL: v.URL}
		case DocumentFragment:
			w = wireFragment{Type: "document", Delay: float64(v.DelayMS), URL: v.URL, Filename: v.Filename, Caption: v.Caption}
		case LocationFragment:
			w = wireFragment{Type: "location", Delay: float64(v.DelayMS), Latitude: v.Latitude, Longitude: v.Longitude, Name: v.Name, Address: v.Address}
		case ContactFragment:
			w = wireFragment{Type: "contact", Delay: float64(v.DelayMS), Name: v.Name, Phone: v.Phone, Organization: v.Organization}
		default:
			return nil, fmt.Errorf("content: unknown fragment %T", frag)
		}
		wire = append(wire, w)
	}
	return json.Marshal(struct {
		Fragments []wireFragment `json:"fragments"`
	}{Fragments: wire})
}
