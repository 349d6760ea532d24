package analysis

import "github.com/tkrehbiel/activitysift/server/activity"

// MergeReplies unions two inReplyTo lists without losing anything from before.
// The result is after's entries in order, then before's entries that after lacks.
// References are equal when both id and url match.
func MergeReplies(before activity.Objects, after activity.Objects) activity.Objects {
	merged := make(activity.Objects, 0, len(after)+len(before))
	merged = append(merged, after...)
	for _, ref := range before {
		if !after.Contains(ref) {
			merged = append(merged, ref)
		}
	}
	return merged
}

// AppendInReplyTo merges before's reply list into after's, in place.
// Wrapped objects are used when present. Identical lists are left alone.
func AppendInReplyTo(before *activity.Object, after *activity.Object) {
	if before == nil || after == nil {
		return
	}
	b := before.Inner()
	a := after.Inner()
	if sameRefs(b.InReplyTo, a.InReplyTo) {
		return
	}
	a.InReplyTo = MergeReplies(b.InReplyTo, a.InReplyTo)
}

func sameRefs(x activity.Objects, y activity.Objects) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if !x[i].SameRef(y[i]) {
			return false
		}
	}
	return true
}
