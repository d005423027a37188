package discover

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/magazine-archive/internal/archive"
)

func TestParseLinksResolvesAndFilters(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<a href="/mag/Spring-1995.pdf">Spring 1995</a>
<a href="https://cdn.example.org/Summer-1996.PDF">  Summer
   1996 </a>
<a href="winter.pdf" title="Winter 1997"></a>
<a href="fall.pdf"><img src="cover.jpg"></a>
<a href="/about.html">About</a>
<a href="mailto:editor@example.com">Mail</a>
<a href="#top">Top</a>
<a href="/mag/Spring-1995.pdf">Duplicate link</a>
<a href="/mag/report.pdf?download=1#page=2">Report 2001</a>
</body></html>`

	got, err := ParseLinks("https://example.com/archive/index.html", html, ".pdf")
	require.NoError(t, err)
	require.Equal(t, []archive.Candidate{
		{Title: "Spring 1995", DocumentURL: "https://example.com/mag/Spring-1995.pdf"},
		{Title: "Summer 1996", DocumentURL: "https://cdn.example.org/Summer-1996.PDF"},
		{Title: "Winter 1997", DocumentURL: "https://example.com/archive/winter.pdf"},
		{Title: UntitledTitle, DocumentURL: "https://example.com/archive/fall.pdf"},
		{Title: "Report 2001", DocumentURL: "https://example.com/mag/report.pdf?download=1"},
	}, got)
}

func TestParseLinksExtensionWithoutDot(t *testing.T) {
	t.Parallel()

	got, err := ParseLinks("https://example.com/", `<a href="a.djvu">A</a><a href="b.pdf">B</a>`, "djvu")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "https://example.com/a.djvu", got[0].DocumentURL)
}

func TestParseLinksEmptyPage(t *testing.T) {
	t.Parallel()

	got, err := ParseLinks("https://example.com/", "<html></html>", ".pdf")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestParseLinksInvalidBase(t *testing.T) {
	t.Parallel()

	_, err := ParseLinks("://bad", "<a href='x.pdf'>x</a>", ".pdf")
	require.Error(t, err)
}
