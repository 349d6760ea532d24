// Package analysis classifies and compares canonical ActivityStreams 1 objects.
// Nothing here touches the network or keeps state between calls.
package analysis

import "github.com/tkrehbiel/activitysift/server/activity"

// Visibility is the audience classification of an object
type Visibility int

const (
	Unknown Visibility = iota
	Public
	Private
)

// DefaultVisibility applies when an object has no audience targeting.
// Most sources that omit it are public by convention.
const DefaultVisibility = Public

// PublicAliases are the "to" aliases that count as a public vote
var PublicAliases = map[string]bool{
	activity.PublicAlias:   true,
	activity.UnlistedAlias: true,
}

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Private:
		return "private"
	}
	return "unknown"
}

func (v Visibility) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// IsPublic classifies an object or activity by its "to" audience list,
// falling back to the wrapped object's list.
// A public vote beats a private vote, which beats an unknown vote.
func IsPublic(obj *activity.Object) Visibility {
	if obj == nil {
		return DefaultVisibility
	}
	to := obj.To
	if len(to) == 0 && obj.Object != nil {
		to = obj.Object.To
	}

	var public, private, unknown bool
	for _, entry := range to {
		switch {
		case PublicAliases[entry.Alias]:
			public = true
		case entry.Alias != "":
			private = true
		case entry.ObjectType != "":
			// a group or other target we can't see into
			unknown = true
		}
	}

	switch {
	case public:
		return Public
	case private:
		return Private
	case unknown:
		return Unknown
	}
	return DefaultVisibility
}
