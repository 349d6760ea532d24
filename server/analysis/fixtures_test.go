package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tkrehbiel/activitysift/server/activity"
)

// decode builds an object from a json literal so fixtures read like payloads
func decode(t *testing.T, s string) *activity.Object {
	t.Helper()
	obj, err := activity.Decode([]byte(s))
	require.NoError(t, err)
	return obj
}

// clone deep copies an object
func clone(t *testing.T, obj *activity.Object) *activity.Object {
	t.Helper()
	b, err := json.Marshal(obj)
	require.NoError(t, err)
	var c activity.Object
	require.NoError(t, json.Unmarshal(b, &c))
	return &c
}

const commentJSON = `{
	"objectType": "comment",
	"content": "foo bar",
	"id": "tag:fake.com:547822715231468_6796480",
	"published": "2012-12-05T00:58:26+00:00",
	"url": "https://www.facebook.com/547822715231468?comment_id=6796480",
	"inReplyTo": [{
		"id": "tag:fake.com:547822715231468",
		"url": "https://www.facebook.com/547822715231468"
	}]
}`

const eventJSON = `{
	"id": "tag:fake.com:246",
	"objectType": "event",
	"displayName": "Homebrew Website Club",
	"url": "https://facebook.com/246",
	"author": {"displayName": "Host", "id": "tag:fake.com,2013:666"}
}`

const rsvpsJSON = `[{
	"id": "tag:fake.com:246_rsvp_11500",
	"objectType": "activity",
	"verb": "rsvp-yes",
	"actor": {"displayName": "Aaron P", "id": "tag:fake.com,2013:11500"},
	"url": "https://facebook.com/246#11500"
}, {
	"objectType": "activity",
	"verb": "rsvp-no",
	"actor": {"displayName": "Ryan B"},
	"url": "https://facebook.com/246"
}, {
	"id": "tag:fake.com:246_rsvp_987",
	"objectType": "activity",
	"verb": "rsvp-maybe",
	"actor": {"displayName": "Foo", "id": "tag:fake.com,2013:987"},
	"url": "https://facebook.com/246#987"
}, {
	"id": "tag:fake.com:246_rsvp_555",
	"objectType": "activity",
	"verb": "invite",
	"actor": {"displayName": "Host", "id": "tag:fake.com,2013:666"},
	"object": {"displayName": "Invit Ee", "id": "tag:fake.com,2013:555"},
	"url": "https://facebook.com/246#555"
}]`

const eventWithRSVPsJSON = `{
	"id": "tag:fake.com:246",
	"objectType": "event",
	"displayName": "Homebrew Website Club",
	"url": "https://facebook.com/246",
	"author": {"displayName": "Host", "id": "tag:fake.com,2013:666"},
	"attending": [{"displayName": "Aaron P", "id": "tag:fake.com,2013:11500"}],
	"notAttending": [{"displayName": "Ryan B"}],
	"maybeAttending": [{"displayName": "Foo", "id": "tag:fake.com,2013:987"}],
	"invited": [{"displayName": "Invit Ee", "id": "tag:fake.com,2013:555"}]
}`

func rsvps(t *testing.T) []activity.Object {
	t.Helper()
	var list []activity.Object
	require.NoError(t, json.Unmarshal([]byte(rsvpsJSON), &list))
	return list
}
