package services

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/desertthunder/lyx/internal/shared"
	"golang.org/x/net/html"
)

var (
	sectionHeader = regexp.MustCompile(`\[[^\]]*\]`)
	blankLines    = regexp.MustCompile(`\n{2,}`)
)

// ExtractLyrics pulls the lyric text out of a Genius song page.
//
// Text is gathered from every element marked data-lyrics-container="true"; <br> becomes a newline and
// subtrees marked data-exclude-from-selection are skipped. Returns nil when the page has no lyrics container.
func ExtractLyrics(r io.Reader, removeHeaders bool) (*string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse song page: %v", shared.ErrUnknownUpstream, err)
	}

	var (
		b     strings.Builder
		found bool
	)

	var walk func(n *html.Node, inside bool)
	walk = func(n *html.Node, inside bool) {
		if n.Type == html.ElementNode {
			if hasAttr(n, "data-exclude-from-selection", "true") {
				return
			}
			if !inside && hasAttr(n, "data-lyrics-container", "true") {
				if found {
					b.WriteString("\n")
				}
				found = true
				inside = true
			}
			if inside && n.Data == "br" {
				b.WriteString("\n")
			}
		}
		if inside && n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inside)
		}
	}
	walk(doc, false)

	if !found {
		return nil, nil
	}

	lyrics := CleanLyrics(b.String(), removeHeaders)
	return &lyrics, nil
}

// CleanLyrics optionally strips [Section] headers, then collapses blank lines and trims.
func CleanLyrics(text string, removeHeaders bool) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if removeHeaders {
		text = sectionHeader.ReplaceAllString(text, "")
	}
	text = blankLines.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

func hasAttr(n *html.Node, key, val string) bool {
	for _, a := range n.Attr {
		if a.Key == key && a.Val == val {
			return true
		}
	}
	return false
}
