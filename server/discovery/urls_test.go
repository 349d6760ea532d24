package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		host string
	}{
		{"http://first", "http://first/", "first"},
		{" http://a.com/x ", "http://a.com/x", "a.com"},
		{"HTTP://a.com", "http://a.com/", "a.com"},
		{"http://a.com?utm_source=x", "http://a.com/", "a.com"},
		{"http://a.com/x?", "http://a.com/x", "a.com"},
		{"http://a.com/x#frag", "http://a.com/x#frag", "a.com"},
		{"http://a.com:8080/x", "http://a.com:8080/x", "a.com"},
		{"http://[::1]/x", "http://[::1]/x", "::1"},
		{"https://or.ig/post?utm_campaign=123", "https://or.ig/post", "or.ig"},
		{"http://other/link?utm_source=x&utm_medium=y&a=b", "http://other/link?a=b", "other"},
		{"http://Foo.COM/Path", "http://foo.com/Path", "foo.com"},
		{"http://bücher.de/x", "http://xn--bcher-kva.de/x", "xn--bcher-kva.de"},
		{"https://BÜCHER.de:8443/x", "https://xn--bcher-kva.de:8443/x", "xn--bcher-kva.de"},
		{"http://a.com./x", "http://a.com/x", "a.com"},
	}
	for _, tt := range tests {
		got, host, ok := cleanURL(tt.raw)
		if assert.True(t, ok, tt.raw) {
			assert.Equal(t, tt.want, got, tt.raw)
			assert.Equal(t, tt.host, host, tt.raw)
		}
	}
}

func TestCleanURL_Unusable(t *testing.T) {
	for _, raw := range []string{
		"",
		"   ",
		"ftp://a.com/x",
		"mailto:x@y.z",
		"/home/ryan/foo",
		"git@github.com:snarfed/granary.git",
		"file:///Users/Ryan/.npmrc",
		"http:///foo/bar",
		"http://bad]",
		"http://a.com/1...",
		"http://a.com/1…",
		"http://under_score.com/",
	} {
		_, _, ok := cleanURL(raw)
		assert.False(t, ok, raw)
	}
}

func TestStripTracking(t *testing.T) {
	tests := map[string]string{
		"utm_source=x&utm_medium=y&a=b": "a=b",
		"a=1&fbclid=2&b=3&gclid=4":      "a=1&b=3",
		"UTM_Source=x&z=%20":            "z=%20",
		"utm%5Fsource=x":                "",
		"b=2&a=1":                       "b=2&a=1",
		"a=1&&b=2":                      "a=1&b=2",
		"utmost=1":                      "utmost=1",
	}
	for in, want := range tests {
		assert.Equal(t, want, stripTracking(in), in)
	}
}

func TestIsReservedHost(t *testing.T) {
	reserved := []string{
		"localhost", "other", "y.local", "x.test", "a.example", "a.invalid",
		"foo.internal", "box.localdomain", "Y.LOCAL.",
		"127.0.0.1", "10.0.0.1", "192.168.1.1", "169.254.1.1", "0.0.0.0", "::1",
	}
	for _, h := range reserved {
		assert.True(t, IsReservedHost(h), h)
	}
	public := []string{"8.8.8.8", "snarfed.org", "sho.rt", "example.com", "me.x.y"}
	for _, h := range public {
		assert.False(t, IsReservedHost(h), h)
	}
}

func TestMatchesDomain(t *testing.T) {
	assert.True(t, MatchesDomain("me.x.y", []string{"me.x.y"}))
	assert.True(t, MatchesDomain("me.x.y", []string{"x.y"}))
	assert.True(t, MatchesDomain("me.x.y", []string{"foo", "x.y"}))
	assert.True(t, MatchesDomain("ME.X.Y", []string{"me.x.y."}))
	assert.True(t, MatchesDomain("bücher.de", []string{"xn--bcher-kva.de"}))

	assert.False(t, MatchesDomain("me.x.y", []string{"e.x.y"}))
	assert.False(t, MatchesDomain("me.x.y", []string{"not.me.x.y", "alsonotme"}))
	assert.False(t, MatchesDomain("me.x.y", nil))
	assert.False(t, MatchesDomain("me.x.y", []string{""}))
}

func TestDedupeKey(t *testing.T) {
	assert.Equal(t, dedupeKey("http://a.com/x/"), dedupeKey("https://a.com/x"))
	assert.Equal(t, "first", dedupeKey("http://first/"))
	assert.NotEqual(t, dedupeKey("http://a.com/x"), dedupeKey("http://a.com/y"))
}

func TestURLList(t *testing.T) {
	l := newURLList()
	l.add("http://a/")
	l.add("http://b/")
	l.add("https://a")
	l.add("http://b")
	l.add("http://c/")
	assert.Equal(t, []string{"https://a", "http://b/", "http://c/"}, l.urls)
	assert.True(t, l.has("http://c"))
	assert.False(t, l.has("http://d"))
}

func TestFindLinks(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"asdf http://first ooooh http://second qwert", []string{"http://first", "http://second"}},
		{"Foo (http://snarfed.org/xyz)", []string{"http://snarfed.org/xyz"}},
		{"Foo (http://snarfed.org/xyz).", []string{"http://snarfed.org/xyz"}},
		{"see http://a.com/b, and http://c.com/d!", []string{"http://a.com/b", "http://c.com/d"}},
		{"wiki http://a.com/b_(c) here", []string{"http://a.com/b_(c)"}},
		{`<a href="http://a.com/x">x</a>`, []string{"http://a.com/x"}},
		{"x http://foo.com/1...", []string{"http://foo.com/1..."}},
		{"(http://a.com/x…)", []string{"http://a.com/x…"}},
		{"HTTPS://A.com/", []string{"HTTPS://A.com/"}},
		{"no links here", []string{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, findLinks(tt.text), tt.text)
	}
}

func TestFindCitation(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"x (not.at end) y (at.the end)", "http://at.the/end", true},
		{"x (foo.com/1)", "http://foo.com/1", true},
		{"x (foo.com/a/b)  ", "http://foo.com/a/b", true},
		{"x (ttk.me 123…)", "http://ttk.me/123…", true},
		{"(at.the end) y", "", false},
		{"x (a.b c)", "", false},
		{"Foo (http://snarfed.org/xyz)", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := findCitation(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
}
