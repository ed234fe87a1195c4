package checks

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/raysh454/cyberguard/internal/utils"
)

var (
	htmlMarker   = regexp.MustCompile(`(?i)<(?:!doctype|html|head|body|div|p|a|br|table|span|font|img)\b`)
	plainTextURL = regexp.MustCompile(`(?i)\bhttps?://[^\s<>"']+`)
)

// MaxLinks bounds how many distinct links of one email are scored.
const MaxLinks = 20

// emailContent is what an email body is scored on: its visible text and the
// link targets it contains.
type emailContent struct {
	text  string
	links []string
}

func looksLikeHTML(s string) bool {
	return htmlMarker.MatchString(s)
}

// extractEmail returns the visible text and raw link targets of body. HTML
// bodies are parsed; anything else is treated as plain text.
func extractEmail(body string) emailContent {
	if !looksLikeHTML(body) {
		return emailContent{text: body, links: plainTextURL.FindAllString(body, -1)}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return emailContent{text: body, links: plainTextURL.FindAllString(body, -1)}
	}

	var links []string
	doc.Find("a[href], area[href]").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			links = append(links, strings.TrimSpace(href))
		}
	})
	doc.Find("script, style, head, noscript").Remove()

	text := strings.Join(strings.Fields(doc.Text()), " ")
	// Link targets stay part of the scored text, as they are in a plain-text body.
	if len(links) > 0 {
		text = text + "\n" + strings.Join(links, "\n")
	}
	links = append(links, plainTextURL.FindAllString(doc.Text(), -1)...)
	return emailContent{text: text, links: links}
}

// canonicalLinks keeps the distinct http(s) links in first-seen order, at most MaxLinks.
func canonicalLinks(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	var out []string
	for _, r := range raw {
		r = strings.TrimRight(r, ".,;:!?)]}")
		c, err := utils.Canonicalize(r, utils.CanonicalizeOptions{DropTrackingParams: true, HTTPOnly: true})
		if err != nil {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
		if len(out) == MaxLinks {
			break
		}
	}
	return out
}
