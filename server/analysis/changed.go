package analysis

import (
	"reflect"

	"github.com/tkrehbiel/activitysift/server/activity"
	"github.com/tkrehbiel/activitysift/server/telemetry"
)

// Changed reports whether after is a material edit of before.
// Both the activities and their wrapped objects are compared.
// Timestamps and other volatile fields are ignored, and a reply list
// that only grew is not an edit.
func Changed(before *activity.Object, after *activity.Object, log bool) bool {
	if before == nil {
		before = &activity.Object{}
	}
	if after == nil {
		after = &activity.Object{}
	}

	if changedFields(before, after, "activity", log) {
		return true
	}
	objBefore := before.Object
	if objBefore == nil {
		objBefore = &activity.Object{}
	}
	objAfter := after.Object
	if objAfter == nil {
		objAfter = &activity.Object{}
	}
	if changedFields(objBefore, objAfter, "activity[object]", log) {
		return true
	}

	if b, a := IsPublic(before), IsPublic(after); b != a {
		logChange(log, "activity", "visibility", b.String(), a.String())
		return true
	}
	return false
}

func changedFields(b *activity.Object, a *activity.Object, label string, log bool) bool {
	strs := []struct {
		field         string
		before, after string
	}{
		{"objectType", b.ObjectType, a.ObjectType},
		{"verb", b.Verb, a.Verb},
		{"content", b.Content, a.Content},
		{"actor", b.Actor.Identity(), a.Actor.Identity()},
		{"author", b.Author.Identity(), a.Author.Identity()},
	}
	for _, s := range strs {
		if s.before != s.after {
			logChange(log, label, s.field, s.before, s.after)
			return true
		}
	}

	if !reflect.DeepEqual(b.Location, a.Location) {
		logChange(log, label, "location", b.Location, a.Location)
		return true
	}
	if len(b.Image) > 0 || len(a.Image) > 0 {
		if !reflect.DeepEqual(b.Image, a.Image) {
			logChange(log, label, "image", b.Image, a.Image)
			return true
		}
	}

	for _, ref := range b.InReplyTo {
		if !a.InReplyTo.Contains(ref) {
			logChange(log, label, "inReplyTo", b.InReplyTo, a.InReplyTo)
			return true
		}
	}
	return false
}

func logChange(log bool, label string, field string, before any, after any) {
	if log {
		telemetry.Trace("%s[%s] %v => %v", label, field, before, after)
	}
}
