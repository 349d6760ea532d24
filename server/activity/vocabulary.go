package activity

// ActivityStreams 1 and 2 vocabulary

const (
	Context     = "https://www.w3.org/ns/activitystreams"
	ContentType = "application/activity+json"
)

// AS1 object types
const (
	ActivityObjectType = "activity"
	ArticleObjectType  = "article"
	AudioObjectType    = "audio"
	CollectionType     = "collection"
	CommentObjectType  = "comment"
	EventObjectType    = "event"
	GroupObjectType    = "group"
	HashtagObjectType  = "hashtag"
	ImageObjectType    = "image"
	MentionObjectType  = "mention"
	NoteObjectType     = "note"
	PersonObjectType   = "person"
	PlaceObjectType    = "place"
	VideoObjectType    = "video"
)

// AS1 verbs
const (
	FavoriteVerb  = "favorite"
	FollowVerb    = "follow"
	InviteVerb    = "invite"
	LikeVerb      = "like"
	PostVerb      = "post"
	RSVPMaybeVerb = "rsvp-maybe"
	RSVPNoVerb    = "rsvp-no"
	RSVPYesVerb   = "rsvp-yes"
	ShareVerb     = "share"
	TagVerb       = "tag"
	UpdateVerb    = "update"
)

// Audience aliases used in "to" lists
const (
	PublicAlias   = "@public"
	UnlistedAlias = "@unlisted"
	PrivateAlias  = "@private"
)
