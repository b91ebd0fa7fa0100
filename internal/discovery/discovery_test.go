package discovery

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkovalenko/brain-scraper/internal/resolver"
)

func TestDiscover(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
		<a href="/phone-one-p100.html">Phone One</a>
		<a href="/category/">More</a>
		</body></html>`)
	})
	mux.HandleFunc("/category/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
		<a href="/phone-two-p200.html">Phone Two</a>
		<a href="/phone-one-p100.html">Phone One again</a>
		</body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	res, err := resolver.New(server.URL+"/", "/search/")
	require.NoError(t, err)

	d := New(res, Options{MaxDepth: 2, MaxURLs: 10}, slog.Default())
	urls, err := d.Discover(server.URL + "/")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		server.URL + "/phone-one-p100.html",
		server.URL + "/phone-two-p200.html",
	}, urls)
}

func TestDiscover_RespectsMaxURLs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 20; i++ {
			fmt.Fprintf(w, `<a href="/item-%d-p%d.html">Item %d</a>`, i, i, i)
		}
	}))
	defer server.Close()

	res, err := resolver.New(server.URL+"/", "/search/")
	require.NoError(t, err)

	d := New(res, Options{MaxURLs: 5}, slog.Default())
	urls, err := d.Discover(server.URL + "/")
	require.NoError(t, err)
	assert.Len(t, urls, 5)
}

func TestDiscover_InvalidStartURL(t *testing.T) {
	res, err := resolver.New("https://brain.com.ua/", "/search/")
	require.NoError(t, err)

	d := New(res, Options{}, slog.Default())
	_, err = d.Discover("://not-a-url")
	assert.Error(t, err)
}
