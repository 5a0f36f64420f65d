package article

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const samplePage = `<!doctype html>
<html><head><title> Cultivated Meat Explained </title><script>var x = 1;</script></head>
<body>
<nav class="navbar"><a href="/">Home</a></nav>
<main>
<h1>Cultivated meat</h1>
<p>Cultivated meat is grown from animal cells.</p>
<div class="share">Share this</div>



<p>It is also called lab-grown meat.</p>
</main>
<footer>Copyright</footer>
</body></html>`

func serve(t *testing.T, contentType, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "Mozilla/5.0") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testFetcher(opts Options) *Fetcher {
	opts.AllowPrivate = true
	return NewFetcher(opts, nil)
}

func TestFetch_ExtractsMainContent(t *testing.T) {
	srv := serve(t, "text/html; charset=utf-8", samplePage, http.StatusOK)

	art, err := testFetcher(Options{}).Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	require.Equal(t, "Cultivated Meat Explained", art.Title)
	require.Contains(t, art.Text, "Cultivated meat is grown from animal cells.")
	require.Contains(t, art.Text, "lab-grown meat")
	require.NotContains(t, art.Text, "Share this")
	require.NotContains(t, art.Text, "Home")
	require.NotContains(t, art.Text, "Copyright")
	require.NotContains(t, art.Text, "\n\n\n")
	require.Equal(t, len([]rune(art.Text)), art.CharCount)
}

func TestFetch_Truncates(t *testing.T) {
	long := "<html><body><article><p>" + strings.Repeat("word ", 200) + "</p></article></body></html>"
	srv := serve(t, "text/html", long, http.StatusOK)

	art, err := testFetcher(Options{MaxChars: 50}).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(art.Text, truncatedSuffix))
	require.LessOrEqual(t, art.CharCount, 50+len(truncatedSuffix))
}

func TestFetch_Errors(t *testing.T) {
	t.Run("non html", func(t *testing.T) {
		srv := serve(t, "application/pdf", "%PDF", http.StatusOK)
		_, err := testFetcher(Options{}).Fetch(context.Background(), srv.URL)
		var ctErr *ContentTypeError
		require.ErrorAs(t, err, &ctErr)
		require.Equal(t, "application/pdf", ctErr.ContentType)
	})

	t.Run("upstream status", func(t *testing.T) {
		srv := serve(t, "text/html", "gone", http.StatusNotFound)
		_, err := testFetcher(Options{}).Fetch(context.Background(), srv.URL)
		var upErr *UpstreamError
		require.ErrorAs(t, err, &upErr)
		require.Equal(t, http.StatusNotFound, upErr.Status)
	})

	t.Run("nothing readable", func(t *testing.T) {
		srv := serve(t, "text/html", "<html><body><script>x()</script><nav>menu</nav></body></html>", http.StatusOK)
		_, err := testFetcher(Options{}).Fetch(context.Background(), srv.URL)
		require.ErrorIs(t, err, ErrNoContent)
	})

	t.Run("timeout", func(t *testing.T) {
		slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer slow.Close()
		_, err := testFetcher(Options{Timeout: 50 * time.Millisecond}).Fetch(context.Background(), slow.URL)
		require.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("invalid url", func(t *testing.T) {
		for _, raw := range []string{"", "ftp://example.com/x", "/relative", "javascript:alert(1)"} {
			_, err := testFetcher(Options{}).Fetch(context.Background(), raw)
			require.ErrorIs(t, err, ErrInvalidURL, raw)
		}
	})
}

func TestValidateURL_BlocksPrivateTargets(t *testing.T) {
	for _, raw := range []string{
		"http://localhost:8080/",
		"http://127.0.0.1/",
		"http://10.1.2.3/",
		"http://192.168.0.1/",
		"http://100.64.0.1/",
		"http://[::1]/",
		"http://[fd00::1]/",
		"http://printer.local/",
		"http://metadata.google.internal/",
	} {
		_, err := ValidateURL(raw, false)
		require.ErrorIs(t, err, ErrBlockedHost, raw)
	}

	u, err := ValidateURL("https://en.wikipedia.org/wiki/Genetically_modified_food", false)
	require.NoError(t, err)
	require.Equal(t, "en.wikipedia.org", u.Hostname())

	_, err = ValidateURL("http://127.0.0.1/", true)
	require.NoError(t, err)
}

func TestIsPrivateIP(t *testing.T) {
	require.True(t, IsPrivateIP(net.ParseIP("::ffff:10.0.0.1")))
	require.True(t, IsPrivateIP(net.ParseIP("169.254.169.254")))
	require.False(t, IsPrivateIP(net.ParseIP("8.8.8.8")))
}
