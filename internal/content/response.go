package content

import (
	"fmt"
	"time"
)

// Response is a configured bot reply: either Text or Fragmented.
type Response interface {
	isResponse()
}

// Text is a single plain message.
type Text struct {
	Body string
}

// Fragmented is a sequence of messages sent one after another.
type Fragmented struct {
	Fragments []Fragment
}

func (Text) isResponse()       {}
func (Fragmented) isResponse() {}

// Summary renders a response as one line for logs and the test endpoint.
func Summary(r Response) string {
	switch v := r.(type) {
	case Text:
		return v.Body
	case Fragmented:
		return fmt.Sprintf("[Fragmentado: %d partes]", len(v.Fragments))
	default:
		return ""
	}
}

// Texts wraps plain strings as Text responses.
func Texts(bodies ...string) []Response {
	out := make([]Response, 0, len(bodies))
	for _, b := range bodies {
		out = append(out, Text{Body: b})
	}
	return out
}

// Fragment is one element of a Fragmented response.
type Fragment interface {
	// Delay is how long to wait before sending this fragment.
	Delay() time.Duration
	isFragment()
}

// Pause carries the per-fragment delay in milliseconds.
type Pause struct {
	DelayMS int `json:"delay"`
}

func (p Pause) Delay() time.Duration { return time.Duration(p.DelayMS) * time.Millisecond }
func (Pause) isFragment()            {}

type TextFragment struct {
	Pause
	Content string
}

type ImageFragment struct {
	Pause
	URL     string
	Caption string
}

type VideoFragment struct {
	Pause
	URL     string
	Caption string
}

type AudioFragment struct {
	Pause
	URL string
}

type DocumentFragment struct {
	Pause
	URL      string
	Filename string
	Caption  string
}

type LocationFragment struct {
	Pause
	Latitude  float64
	Longitude float64
	Name      string
	Address   string
}

type ContactFragment struct {
	Pause
	Name         string
	Phone        string
	Organization string
}
