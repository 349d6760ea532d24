// Package as2 converts between ActivityStreams 1 objects and ActivityStreams 2 JSON.
//
// AS2 values are handled as generic JSON maps since ActivityPub servers
// disagree about which fields are lists, links or embedded objects.
package as2

import (
	"errors"
	"fmt"

	"github.com/tkrehbiel/activitysift/server/activity"
	"github.com/tkrehbiel/activitysift/server/telemetry"
)

// ErrNotObject is returned for AS2 values that can't be read as objects
var ErrNotObject = errors.New("not an activitystreams 2 object")

// PublicCollection is the AS2 address of everyone
const PublicCollection = activity.Context + "#Public"

// AS2 types used as defaults when nothing more specific is known
const (
	ImageType  = "Image"
	PersonType = "Person"
	PlaceType  = "Place"
	CreateType = "Create"
	NoteType   = "Note"
	LikeType   = "Like"

	mentionType = "Mention"
)

var objectTypeToType = map[string]string{
	activity.ArticleObjectType: "Article",
	activity.AudioObjectType:   "Audio",
	activity.CollectionType:    "Collection",
	activity.CommentObjectType: NoteType,
	activity.EventObjectType:   "Event",
	activity.HashtagObjectType: "Tag",
	activity.ImageObjectType:   ImageType,
	activity.MentionObjectType: mentionType,
	activity.NoteObjectType:    NoteType,
	activity.PersonObjectType:  PersonType,
	activity.PlaceObjectType:   PlaceType,
	activity.VideoObjectType:   "Video",
}

var verbToType = map[string]string{
	activity.FavoriteVerb:  LikeType,
	activity.FollowVerb:    "Follow",
	activity.InviteVerb:    "Invite",
	activity.LikeVerb:      LikeType,
	activity.PostVerb:      CreateType,
	activity.RSVPMaybeVerb: "TentativeAccept",
	activity.RSVPNoVerb:    "Reject",
	activity.RSVPYesVerb:   "Accept",
	activity.ShareVerb:     "Announce",
	activity.TagVerb:       "Add",
	activity.UpdateVerb:    "Update",
}

var (
	typeToObjectType = invert(objectTypeToType, NoteType, activity.NoteObjectType)
	typeToVerb       = invert(verbToType, LikeType, activity.LikeVerb)
)

// invert flips a table, settling the one type that two keys share
func invert(m map[string]string, shared string, winner string) map[string]string {
	inv := make(map[string]string, len(m))
	for k, v := range m {
		inv[v] = k
	}
	inv[shared] = winner
	return inv
}

// FromAS1 converts an AS1 object or activity to AS2.
// A nil or empty object converts to an empty map.
func FromAS1(obj *activity.Object) map[string]any {
	if obj == nil {
		return map[string]any{}
	}
	m := fromAS1(obj, "")
	if len(m) == 0 {
		return m
	}
	m["@context"] = activity.Context
	return m
}

func fromAS1(obj *activity.Object, defaultType string) map[string]any {
	m := map[string]any{}

	key := obj.Verb
	if key == "" {
		key = obj.ObjectType
	}
	typ, ok := objectTypeToType[key]
	if !ok {
		typ, ok = verbToType[key]
	}
	if !ok {
		typ = defaultType
	}

	setString(m, "type", typ)
	setString(m, "id", obj.ID)
	setString(m, "name", obj.DisplayName)
	setString(m, "preferredUsername", obj.Username)
	setString(m, "content", obj.Content)
	setString(m, "published", obj.Published)
	setString(m, "updated", obj.Updated)
	if obj.ObjectType == activity.MentionObjectType {
		setString(m, "href", obj.URL)
	} else {
		setString(m, "url", obj.URL)
	}

	if obj.Actor != nil {
		m["actor"] = compact(fromAS1(obj.Actor, ""))
	}
	if obj.Author != nil {
		m["attributedTo"] = compact(fromAS1(obj.Author, PersonType))
	}
	if obj.Object != nil {
		m["object"] = compact(fromAS1(obj.Object, ""))
	}
	if obj.Location != nil {
		m["location"] = compact(fromAS1(obj.Location, PlaceType))
	}

	if images := listFromAS1(obj.Image, ImageType); len(images) > 0 {
		m["image"] = images
		if obj.ObjectType == activity.PersonObjectType {
			m["icon"] = images
		}
	}
	if attachments := listFromAS1(obj.Attachments, ""); len(attachments) > 0 {
		m["attachment"] = attachments
	}
	if tags := listFromAS1(obj.Tags, ""); len(tags) > 0 {
		m["tag"] = tags
	}

	var parents []any
	for _, p := range obj.InReplyTo {
		ref := p.ID
		if ref == "" {
			ref = p.URL
		}
		if ref != "" {
			parents = append(parents, ref)
		}
	}
	if len(parents) > 0 {
		m["inReplyTo"] = parents
	}

	var to []any
	for _, a := range obj.To {
		switch {
		case a.Alias == activity.PublicAlias:
			to = append(to, PublicCollection)
		case a.Alias == activity.UnlistedAlias:
			m["cc"] = []any{PublicCollection}
		case a.Alias == activity.PrivateAlias:
			// no Public collection is what makes it private
		case a.ID != "":
			to = append(to, a.ID)
		case a.URL != "":
			to = append(to, a.URL)
		}
	}
	if len(to) > 0 {
		m["to"] = to
	}
	return m
}

func listFromAS1(list activity.Objects, defaultType string) []any {
	var out []any
	for i := range list {
		out = append(out, compact(fromAS1(&list[i], defaultType)))
	}
	return out
}

// compact turns an object that is nothing but a url into a plain link
func compact(m map[string]any) any {
	if len(m) == 1 {
		if u, ok := m["url"]; ok {
			return u
		}
	}
	return m
}

func setString(m map[string]any, key string, value string) {
	if value != "" {
		m[key] = value
	}
}

// ToAS1 converts an AS2 object or activity to AS1.
// An empty map converts to an empty object.
func ToAS1(m map[string]any) (*activity.Object, error) {
	if len(m) == 0 {
		return &activity.Object{}, nil
	}
	return toAS1(m, true)
}

func toAS1(m map[string]any, useType bool) (*activity.Object, error) {
	obj := &activity.Object{}

	var typ string
	if t, ok := m["type"]; ok && t != nil {
		s, ok := t.(string)
		if !ok {
			return nil, fmt.Errorf("%w: type should be a string, got %T", ErrNotObject, t)
		}
		typ = s
	}
	if useType {
		obj.ObjectType = typeToObjectType[typ]
		obj.Verb = typeToVerb[typ]
		if len(list(m["inReplyTo"])) > 0 &&
			(obj.ObjectType == activity.NoteObjectType || obj.ObjectType == activity.ArticleObjectType) {
			obj.ObjectType = activity.CommentObjectType
		} else if obj.Verb != "" && obj.ObjectType == "" {
			obj.ObjectType = activity.ActivityObjectType
		}
	}

	obj.ID = link(m["id"])
	obj.URL = link(m["url"])
	obj.DisplayName = str(m["name"])
	obj.Username = str(m["preferredUsername"])
	obj.Content = str(m["content"])
	obj.Published = str(m["published"])
	obj.Updated = str(m["updated"])
	if typ == mentionType {
		obj.URL = link(m["href"])
	}

	// icon first, it's the profile picture on mastodon
	images := append([]any{}, list(m["icon"])...)
	for _, v := range append(images, list(m["image"])...) {
		img, err := valueToAS1(v, false)
		if err != nil {
			return nil, err
		}
		if img != nil && !obj.Image.Contains(*img) {
			obj.Image = append(obj.Image, *img)
		}
	}

	var err error
	if obj.Actor, err = valueToAS1(m["actor"], true); err != nil {
		return nil, err
	}
	if obj.Location, err = valueToAS1(m["location"], true); err != nil {
		return nil, err
	}

	inner, err := listToAS1(m["object"])
	if err != nil {
		return nil, err
	}
	if typ == CreateType && obj.Actor != nil {
		for i := range inner {
			inner[i].Author = mergeRef(inner[i].Author, obj.Actor)
		}
	}
	if len(inner) > 0 {
		if len(inner) > 1 {
			telemetry.Trace("keeping the first of %d inner objects", len(inner))
		}
		obj.Object = &inner[0]
	}

	if obj.Attachments, err = listToAS1(m["attachment"]); err != nil {
		return nil, err
	}
	if obj.Tags, err = listToAS1(m["tag"]); err != nil {
		return nil, err
	}
	if obj.InReplyTo, err = listToAS1(m["inReplyTo"]); err != nil {
		return nil, err
	}

	public := false
	for _, v := range list(m["to"]) {
		if s, ok := v.(string); ok && isPublic(s) {
			public = true
			obj.To = append(obj.To, audience(activity.PublicAlias))
			continue
		}
		a, err := valueToAS1(v, true)
		if err != nil {
			return nil, err
		}
		if a != nil {
			obj.To = append(obj.To, *a)
		}
	}
	if !public {
		cc := list(m["cc"])
		unlisted := false
		for _, v := range cc {
			if s, ok := v.(string); ok && isPublic(s) {
				unlisted = true
			}
		}
		switch {
		case unlisted:
			obj.To = append(obj.To, audience(activity.UnlistedAlias))
		case len(obj.To) > 0 || len(cc) > 0:
			// addressed, but not to everyone
			obj.To = append(obj.To, audience(activity.PrivateAlias))
		}
	}

	authors, err := listToAS1(m["attributedTo"])
	if err != nil {
		return nil, err
	}
	if len(authors) > 0 {
		if len(authors) > 1 {
			telemetry.Trace("AS1 has a single author, dropping %d attributedTo values", len(authors)-1)
		}
		obj.Author = mergeRef(obj.Author, &authors[0])
	}
	return obj, nil
}

func valueToAS1(v any, useType bool) (*activity.Object, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}
		return &activity.Object{URL: t}, nil
	case map[string]any:
		if len(t) == 0 {
			return nil, nil
		}
		return toAS1(t, useType)
	case []any:
		if len(t) == 0 {
			return nil, nil
		}
		return valueToAS1(t[0], useType)
	}
	return nil, fmt.Errorf("%w: got %T", ErrNotObject, v)
}

func listToAS1(v any) (activity.Objects, error) {
	var out activity.Objects
	for _, elem := range list(v) {
		o, err := valueToAS1(elem, true)
		if err != nil {
			return nil, err
		}
		if o != nil {
			out = append(out, *o)
		}
	}
	return out, nil
}

// mergeRef copies the non-empty identifying fields of src over dst
func mergeRef(dst *activity.Object, src *activity.Object) *activity.Object {
	if dst == nil {
		c := *src
		return &c
	}
	if src.ID != "" {
		dst.ID = src.ID
	}
	if src.URL != "" {
		dst.URL = src.URL
	}
	if src.ObjectType != "" {
		dst.ObjectType = src.ObjectType
	}
	if src.DisplayName != "" {
		dst.DisplayName = src.DisplayName
	}
	if src.Username != "" {
		dst.Username = src.Username
	}
	if len(src.Image) > 0 {
		dst.Image = src.Image
	}
	return dst
}

func audience(alias string) activity.Object {
	return activity.Object{ObjectType: activity.GroupObjectType, Alias: alias}
}

func isPublic(s string) bool {
	return s == PublicCollection || s == "as:Public" || s == "Public"
}

func list(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	}
	return []any{v}
}

func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// link reads a url that may be a string, a Link object or a list of either
func link(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if href := str(t["href"]); href != "" {
			return href
		}
		return str(t["url"])
	case []any:
		if len(t) > 0 {
			return link(t[0])
		}
	}
	return ""
}
