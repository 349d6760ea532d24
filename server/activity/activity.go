package activity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotObject is returned when a JSON value can't be read as an object at all
var ErrNotObject = errors.New("not an activitystreams object")

// Object is an ActivityStreams 1 object.
// AS1 activities are objects with a verb, so the same struct carries both.
type Object struct {
	ID          string `json:"id,omitempty"`
	ObjectType  string `json:"objectType,omitempty"`
	Verb        string `json:"verb,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Username    string `json:"username,omitempty"`
	Alias       string `json:"alias,omitempty"`
	Content     string `json:"content,omitempty"`
	URL         string `json:"url,omitempty"`
	TargetURL   string `json:"targetUrl,omitempty"`
	Published   string `json:"published,omitempty"`
	Updated     string `json:"updated,omitempty"`

	Actor    *Object `json:"actor,omitempty"`
	Author   *Object `json:"author,omitempty"`
	Object   *Object `json:"object,omitempty"`
	Location *Object `json:"location,omitempty"`

	Image              Objects `json:"image,omitempty"`
	To                 Objects `json:"to,omitempty"`
	Tags               Objects `json:"tags,omitempty"`
	Attachments        Objects `json:"attachments,omitempty"`
	InReplyTo          Objects `json:"inReplyTo,omitempty"`
	UpstreamDuplicates Strings `json:"upstreamDuplicates,omitempty"`

	// event audiences
	Attending      Objects `json:"attending,omitempty"`
	NotAttending   Objects `json:"notAttending,omitempty"`
	MaybeAttending Objects `json:"maybeAttending,omitempty"`
	Invited        Objects `json:"invited,omitempty"`
}

// Activity is an Object with a verb, an actor and usually a wrapped object
type Activity = Object

// Objects is a list of objects that also accepts a single JSON value
type Objects []Object

// Strings is a list of strings that also accepts a single JSON string
type Strings []string

// Inner returns the wrapped object of an activity, or the object itself
func (o *Object) Inner() *Object {
	if o == nil {
		return nil
	}
	if o.Object != nil {
		return o.Object
	}
	return o
}

// Identity is the best available identifier for comparing references
func (o *Object) Identity() string {
	if o == nil {
		return ""
	}
	switch {
	case o.ID != "":
		return o.ID
	case o.URL != "":
		return o.URL
	}
	return o.DisplayName
}

// SameRef reports whether two references have the same id and url
func (o Object) SameRef(other Object) bool {
	return o.ID == other.ID && o.URL == other.URL
}

// Contains reports whether the list holds a reference equal to ref
func (l Objects) Contains(ref Object) bool {
	for _, o := range l {
		if o.SameRef(ref) {
			return true
		}
	}
	return false
}

// Decode parses a top-level JSON object.
// Bare strings and lists are accepted inside an object but not at the top.
func Decode(b []byte) (*Object, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil, fmt.Errorf("%w: expected a json object", ErrNotObject)
	}
	var o Object
	if err := json.Unmarshal(b, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// UnmarshalJSON reads an object, a bare url string, or the first element of a list.
// JSON-LD style payloads use all three interchangeably.
func (o *Object) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*o = Object{URL: s}
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		if len(list) == 0 {
			*o = Object{}
			return nil
		}
		return o.UnmarshalJSON(list[0])
	case '{':
		type plain Object
		var p plain
		if err := json.Unmarshal(b, &p); err != nil {
			return err
		}
		*o = Object(p)
	default:
		return fmt.Errorf("%w: %s", ErrNotObject, preview(b))
	}
	return nil
}

func (l *Objects) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	if b[0] == '[' {
		var list []Object
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		*l = list
		return nil
	}
	var o Object
	if err := o.UnmarshalJSON(b); err != nil {
		return err
	}
	*l = Objects{o}
	return nil
}

func (l *Strings) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = Strings{s}
		return nil
	}
	var values []any
	if err := json.Unmarshal(b, &values); err != nil {
		return err
	}
	list := make(Strings, 0, len(values))
	for _, v := range values {
		// non-string entries are junk from a loose payload, skip them
		if s, ok := v.(string); ok {
			list = append(list, s)
		}
	}
	*l = list
	return nil
}

func preview(b []byte) string {
	if len(b) > 40 {
		return string(b[:40]) + "..."
	}
	return string(b)
}
