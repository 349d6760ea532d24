package analysis

import (
	"github.com/tkrehbiel/activitysift/server/activity"
	"github.com/tkrehbiel/activitysift/server/telemetry"
)

// RSVPKind is one of the fixed set of RSVP-style verbs an event understands
type RSVPKind int

const (
	RSVPNone RSVPKind = iota
	RSVPYes
	RSVPNo
	RSVPMaybe
	RSVPInvite
)

// rsvpKinds is in the order audiences are expanded back into activities
var rsvpKinds = []RSVPKind{RSVPYes, RSVPNo, RSVPMaybe, RSVPInvite}

// ParseRSVPKind maps a verb onto its RSVP kind, or RSVPNone
func ParseRSVPKind(verb string) RSVPKind {
	switch verb {
	case activity.RSVPYesVerb:
		return RSVPYes
	case activity.RSVPNoVerb:
		return RSVPNo
	case activity.RSVPMaybeVerb:
		return RSVPMaybe
	case activity.InviteVerb:
		return RSVPInvite
	}
	return RSVPNone
}

func (k RSVPKind) Verb() string {
	switch k {
	case RSVPYes:
		return activity.RSVPYesVerb
	case RSVPNo:
		return activity.RSVPNoVerb
	case RSVPMaybe:
		return activity.RSVPMaybeVerb
	case RSVPInvite:
		return activity.InviteVerb
	}
	return ""
}

// audience returns the event list for this kind
func (k RSVPKind) audience(event *activity.Object) *activity.Objects {
	switch k {
	case RSVPYes:
		return &event.Attending
	case RSVPNo:
		return &event.NotAttending
	case RSVPMaybe:
		return &event.MaybeAttending
	case RSVPInvite:
		return &event.Invited
	}
	return nil
}

// AddRSVPsToEvent appends each RSVP's actor (or an invite's object) to the
// matching event audience. Repeated calls accumulate; duplicates are the
// caller's problem since an RSVP may legitimately be announced twice.
func AddRSVPsToEvent(event *activity.Object, rsvps []activity.Object) {
	if event == nil {
		return
	}
	for _, rsvp := range rsvps {
		kind := ParseRSVPKind(rsvp.Verb)
		if kind == RSVPNone {
			telemetry.Trace("ignoring non-rsvp verb [%s] on event [%s]", rsvp.Verb, event.ID)
			continue
		}
		ref := rsvp.Actor
		if kind == RSVPInvite {
			ref = rsvp.Object
		}
		if ref == nil {
			continue
		}
		list := kind.audience(event)
		*list = append(*list, *ref)
	}
}

// GetRSVPsFromEvent expands an event's audiences back into RSVP and invite activities.
// Returns an empty list if the event id isn't a tag URI.
func GetRSVPsFromEvent(event *activity.Object) []activity.Object {
	rsvps := make([]activity.Object, 0)
	if event == nil || event.ID == "" {
		return rsvps
	}
	domain, eventName, ok := activity.ParseTagURI(event.ID)
	if !ok {
		return rsvps
	}

	for _, kind := range rsvpKinds {
		for _, ref := range *kind.audience(event) {
			ref := ref
			rsvp := activity.Object{
				ObjectType: activity.ActivityObjectType,
				Verb:       kind.Verb(),
				URL:        event.URL,
			}
			if kind == RSVPInvite {
				rsvp.Object = &ref
				if event.Author != nil {
					author := *event.Author
					rsvp.Actor = &author
				}
			} else {
				rsvp.Actor = &ref
			}
			if ref.ID != "" {
				actorName := ref.ID
				if _, name, ok := activity.ParseTagURI(ref.ID); ok {
					actorName = name
				}
				rsvp.ID = activity.TagURI(domain, eventName+"_rsvp_"+actorName)
				if event.URL != "" {
					rsvp.URL = event.URL + "#" + actorName
				}
			}
			rsvps = append(rsvps, rsvp)
		}
	}
	return rsvps
}
