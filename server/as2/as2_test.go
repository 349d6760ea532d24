package as2

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tkrehbiel/activitysift/server/activity"
)

func decodeAS1(t *testing.T, s string) *activity.Object {
	t.Helper()
	obj, err := activity.Decode([]byte(s))
	require.NoError(t, err)
	return obj
}

func decodeAS2(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func assertJSON(t *testing.T, expected string, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, expected, string(b))
}

func TestFromAS1_Empty(t *testing.T) {
	assert.Empty(t, FromAS1(nil))
	assert.Empty(t, FromAS1(&activity.Object{}))
}

func TestFromAS1_Note(t *testing.T) {
	obj := decodeAS1(t, `{
		"objectType": "note",
		"id": "tag:x.com:1",
		"displayName": "Hi",
		"content": "hi there",
		"url": "http://x.com/1",
		"published": "2012-12-05T00:58:26+00:00",
		"author": {"id": "tag:x.com:alice", "displayName": "Alice", "url": "http://x.com/alice"},
		"inReplyTo": [{"url": "http://x.com/0"}, {"id": "tag:x.com:00"}],
		"tags": [
			{"objectType": "mention", "url": "http://x.com/bob", "displayName": "Bob"},
			{"objectType": "hashtag", "displayName": "go"}
		],
		"image": "http://x.com/pic.jpg",
		"to": [{"objectType": "group", "alias": "@public"}]
	}`)
	assertJSON(t, `{
		"@context": "https://www.w3.org/ns/activitystreams",
		"type": "Note",
		"id": "tag:x.com:1",
		"name": "Hi",
		"content": "hi there",
		"url": "http://x.com/1",
		"published": "2012-12-05T00:58:26+00:00",
		"attributedTo": {"type": "Person", "id": "tag:x.com:alice", "name": "Alice", "url": "http://x.com/alice"},
		"inReplyTo": ["http://x.com/0", "tag:x.com:00"],
		"tag": [
			{"type": "Mention", "href": "http://x.com/bob", "name": "Bob"},
			{"type": "Tag", "name": "go"}
		],
		"image": [{"type": "Image", "url": "http://x.com/pic.jpg"}],
		"to": ["https://www.w3.org/ns/activitystreams#Public"]
	}`, FromAS1(obj))
}

func TestFromAS1_Activity(t *testing.T) {
	obj := decodeAS1(t, `{
		"verb": "post",
		"actor": "http://x.com/alice",
		"object": {"objectType": "comment", "content": "x"}
	}`)
	assertJSON(t, `{
		"@context": "https://www.w3.org/ns/activitystreams",
		"type": "Create",
		"actor": "http://x.com/alice",
		"object": {"type": "Note", "content": "x"}
	}`, FromAS1(obj))
}

func TestFromAS1_Verbs(t *testing.T) {
	tests := map[string]string{
		activity.RSVPYesVerb:   "Accept",
		activity.RSVPNoVerb:    "Reject",
		activity.RSVPMaybeVerb: "TentativeAccept",
		activity.InviteVerb:    "Invite",
		activity.FavoriteVerb:  "Like",
		activity.LikeVerb:      "Like",
		activity.ShareVerb:     "Announce",
		activity.TagVerb:       "Add",
	}
	for verb, typ := range tests {
		m := FromAS1(&activity.Object{Verb: verb, ObjectType: activity.ActivityObjectType})
		assert.Equal(t, typ, m["type"], verb)
	}
}

func TestFromAS1_PersonAndPlace(t *testing.T) {
	obj := decodeAS1(t, `{
		"objectType": "event",
		"author": {"objectType": "person", "username": "al", "image": {"url": "http://x.com/a.jpg"}},
		"location": {"displayName": "Somewhere"}
	}`)
	assertJSON(t, `{
		"@context": "https://www.w3.org/ns/activitystreams",
		"type": "Event",
		"attributedTo": {
			"type": "Person",
			"preferredUsername": "al",
			"image": [{"type": "Image", "url": "http://x.com/a.jpg"}],
			"icon": [{"type": "Image", "url": "http://x.com/a.jpg"}]
		},
		"location": {"type": "Place", "name": "Somewhere"}
	}`, FromAS1(obj))
}

func TestToAS1_Empty(t *testing.T) {
	obj, err := ToAS1(nil)
	require.NoError(t, err)
	assert.Equal(t, &activity.Object{}, obj)
}

func TestToAS1_BadType(t *testing.T) {
	_, err := ToAS1(decodeAS2(t, `{"type": ["Note"]}`))
	assert.True(t, errors.Is(err, ErrNotObject))

	_, err = ToAS1(decodeAS2(t, `{"type": "Note", "tag": [{"type": 5}]}`))
	assert.True(t, errors.Is(err, ErrNotObject))

	_, err = ToAS1(decodeAS2(t, `{"type": "Note", "actor": 5}`))
	assert.True(t, errors.Is(err, ErrNotObject))
}

func TestToAS1_Comment(t *testing.T) {
	obj, err := ToAS1(decodeAS2(t, `{
		"@context": "https://www.w3.org/ns/activitystreams",
		"type": "Note",
		"id": "http://x.com/2",
		"content": "reply",
		"inReplyTo": "http://x.com/1",
		"attributedTo": ["http://x.com/alice", "http://x.com/bob"],
		"tag": [
			{"type": "Mention", "href": "http://x.com/bob", "name": "@bob"},
			{"type": "Tag", "name": "#go"}
		],
		"to": ["https://www.w3.org/ns/activitystreams#Public", "http://x.com/followers"]
	}`))
	require.NoError(t, err)
	assertJSON(t, `{
		"objectType": "comment",
		"id": "http://x.com/2",
		"content": "reply",
		"inReplyTo": [{"url": "http://x.com/1"}],
		"author": {"url": "http://x.com/alice"},
		"tags": [
			{"objectType": "mention", "url": "http://x.com/bob", "displayName": "@bob"},
			{"objectType": "hashtag", "displayName": "#go"}
		],
		"to": [{"objectType": "group", "alias": "@public"}, {"url": "http://x.com/followers"}]
	}`, obj)
}

func TestToAS1_Create(t *testing.T) {
	obj, err := ToAS1(decodeAS2(t, `{
		"type": "Create",
		"actor": {"type": "Person", "id": "http://x.com/alice", "name": "Alice"},
		"object": {"type": "Article", "name": "Title", "attributedTo": {"url": "http://x.com/alice/profile"}}
	}`))
	require.NoError(t, err)
	assertJSON(t, `{
		"objectType": "activity",
		"verb": "post",
		"actor": {"objectType": "person", "id": "http://x.com/alice", "displayName": "Alice"},
		"object": {
			"objectType": "article",
			"displayName": "Title",
			"author": {"objectType": "person", "id": "http://x.com/alice", "displayName": "Alice", "url": "http://x.com/alice/profile"}
		}
	}`, obj)
}

func TestToAS1_Like(t *testing.T) {
	obj, err := ToAS1(decodeAS2(t, `{"type": "Like", "object": ["http://x.com/1", "http://x.com/2"]}`))
	require.NoError(t, err)
	assert.Equal(t, activity.LikeVerb, obj.Verb)
	assert.Equal(t, activity.ActivityObjectType, obj.ObjectType)
	require.NotNil(t, obj.Object)
	assert.Equal(t, "http://x.com/1", obj.Object.URL)
}

func TestToAS1_Images(t *testing.T) {
	obj, err := ToAS1(decodeAS2(t, `{
		"type": "Person",
		"url": {"type": "Link", "href": "http://x.com/alice"},
		"icon": "http://x.com/a.jpg",
		"image": ["http://x.com/a.jpg", {"type": "Image", "url": "http://x.com/b.jpg"}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, activity.PersonObjectType, obj.ObjectType)
	assert.Equal(t, "http://x.com/alice", obj.URL)
	assert.Equal(t, activity.Objects{{URL: "http://x.com/a.jpg"}, {URL: "http://x.com/b.jpg"}}, obj.Image)
}

func TestRoundTrip(t *testing.T) {
	as1 := decodeAS1(t, `{
		"verb": "post",
		"objectType": "activity",
		"actor": {"objectType": "person", "id": "http://x.com/alice"},
		"object": {
			"objectType": "note",
			"id": "http://x.com/1",
			"content": "hello",
			"author": {"objectType": "person", "id": "http://x.com/alice"},
			"to": {"objectType": "group", "alias": "@public"}
		}
	}`)
	back, err := ToAS1(FromAS1(as1))
	require.NoError(t, err)
	assert.Equal(t, as1, back)
}

func TestFromAS1_Audiences(t *testing.T) {
	m := FromAS1(decodeAS1(t, `{"objectType": "note", "to": [{"objectType": "group", "alias": "@unlisted"}]}`))
	assert.Equal(t, []any{PublicCollection}, m["cc"])
	assert.NotContains(t, m, "to")

	m = FromAS1(decodeAS1(t, `{"objectType": "note", "to": [{"objectType": "group", "alias": "@private"}, {"url": "http://x.com/bob"}]}`))
	assert.Equal(t, []any{"http://x.com/bob"}, m["to"])
	assert.NotContains(t, m, "cc")
}

func TestToAS1_Audiences(t *testing.T) {
	obj, err := ToAS1(decodeAS2(t, `{"type": "Note", "to": ["http://x.com/followers"], "cc": ["https://www.w3.org/ns/activitystreams#Public"]}`))
	require.NoError(t, err)
	assert.Equal(t, activity.Objects{
		{URL: "http://x.com/followers"},
		{ObjectType: activity.GroupObjectType, Alias: activity.UnlistedAlias},
	}, obj.To)

	obj, err = ToAS1(decodeAS2(t, `{"type": "Note", "to": ["http://x.com/followers"], "cc": ["http://x.com/bob"]}`))
	require.NoError(t, err)
	assert.Equal(t, activity.Objects{
		{URL: "http://x.com/followers"},
		{ObjectType: activity.GroupObjectType, Alias: activity.PrivateAlias},
	}, obj.To)

	// no addressing at all says nothing about the audience
	obj, err = ToAS1(decodeAS2(t, `{"type": "Note", "content": "x"}`))
	require.NoError(t, err)
	assert.Empty(t, obj.To)
}

func TestRoundTrip_Unlisted(t *testing.T) {
	as1 := decodeAS1(t, `{"objectType": "note", "content": "x", "to": [{"objectType": "group", "alias": "@unlisted"}]}`)
	back, err := ToAS1(FromAS1(as1))
	require.NoError(t, err)
	assert.Equal(t, as1, back)
}
