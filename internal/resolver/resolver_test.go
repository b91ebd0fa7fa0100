package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := New("https://brain.com.ua/", "/ukr/search/")
	require.NoError(t, err)
	return r
}

func TestSearchURL(t *testing.T) {
	r := newTestResolver(t)
	assert.Equal(t,
		"https://brain.com.ua/ukr/search/?Search=Apple+iPhone+15",
		r.SearchURL("Apple iPhone 15"))
}

func TestIsProductURL(t *testing.T) {
	r := newTestResolver(t)

	testCases := []struct {
		url  string
		want bool
	}{
		{"https://brain.com.ua/Mobilnij-telefon-Apple-iPhone-15-128GB-Black-p1034001.html", true},
		{"/Mobilnij-telefon-p1034001.html?utm=x", true},
		{"https://brain.com.ua/ukr/search/?Search=iphone", false},
		{"https://brain.com.ua/category-c1234.html", false},
		{"https://brain.com.ua/", false},
	}

	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			assert.Equal(t, tc.want, r.IsProductURL(tc.url))
		})
	}
}

func TestCandidates(t *testing.T) {
	r := newTestResolver(t)

	html := `<html><body>
	<a href="/ukr/promo/">Акції</a>
	<a href="/phone-one-p100.html">Phone One</a>
	<a href="/phone-two-p200.html">Phone Two</a>
	<a href="/phone-one-p100.html">Phone One duplicate</a>
	<a href="/phone-three-p300.html">   </a>
	</body></html>`

	candidates := r.Candidates(html)
	require.Len(t, candidates, 2)
	assert.Equal(t, "https://brain.com.ua/phone-one-p100.html", candidates[0].URL)
	assert.Equal(t, "Phone One", candidates[0].Title)
	assert.Equal(t, 0, candidates[0].Position)
	assert.Equal(t, "https://brain.com.ua/phone-two-p200.html", candidates[1].URL)
}

func TestPick(t *testing.T) {
	r := newTestResolver(t)

	t.Run("topmost result wins", func(t *testing.T) {
		url, ok := r.Pick(`<a href="/a-p1.html">A</a><a href="/b-p2.html">B</a>`)
		require.True(t, ok)
		assert.Equal(t, "https://brain.com.ua/a-p1.html", url)
	})

	t.Run("no results", func(t *testing.T) {
		_, ok := r.Pick(`<html><body><p>Нічого не знайдено</p></body></html>`)
		assert.False(t, ok)
	})
}

func TestResolveHref(t *testing.T) {
	r := newTestResolver(t)
	assert.Equal(t, "https://brain.com.ua/a-p1.html", r.ResolveHref("/a-p1.html"))
	assert.Equal(t, "https://cdn.other.com/x.html", r.ResolveHref("https://cdn.other.com/x.html"))
}
