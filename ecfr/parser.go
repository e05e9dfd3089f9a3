package ecfr

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// The HTML5 parser underneath goquery treats some tag names specially: a HEAD
// start tag in body content is ignored outright, and TABLE triggers foster
// parenting that relocates its contents. eCFR markup uses both names, so they
// are renamed to non-reserved ones before parsing.
var reservedTagPattern = regexp.MustCompile(`(?i)(</?)(head|table)([\s/>])`)

func rewriteReservedTags(raw []byte) []byte {
	return reservedTagPattern.ReplaceAll(raw, []byte("${1}ecfr-$2$3"))
}

// Section is the plain-text rendering of one regulation section, keyed by its
// citation (e.g. "§ 11.10").
type Section struct {
	Citation string `json:"citation"`
	Heading  string `json:"heading"`
	Text     string `json:"text"`
}

// ExtractSections parses eCFR XML and returns the human-readable text of each
// section, discarding markup scaffolding. Section bodies join the heading and
// paragraph text with blank lines so downstream chunking can break at
// paragraph boundaries.
func ExtractSections(raw []byte) ([]Section, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(rewriteReservedTags(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	var sections []Section
	doc.Find("div8").Each(func(_ int, sel *goquery.Selection) {
		if t, _ := sel.Attr("type"); t != "" && !strings.EqualFold(t, "section") {
			return
		}
		citation := strings.TrimSpace(sel.AttrOr("n", ""))
		heading := normalizeSpace(sel.Find("ecfr-head").First().Text())

		var paras []string
		if heading != "" {
			paras = append(paras, heading)
		}
		sel.Find("p").Each(func(_ int, p *goquery.Selection) {
			if text := normalizeSpace(p.Text()); text != "" {
				paras = append(paras, text)
			}
		})
		if len(paras) == 0 {
			return
		}
		sections = append(sections, Section{
			Citation: citation,
			Heading:  heading,
			Text:     strings.Join(paras, "\n\n"),
		})
	})

	if len(sections) > 0 {
		return sections, nil
	}

	// Some payloads carry no DIV8 section markup. Fall back to the whole
	// document text as a single unkeyed section.
	if text := normalizeSpace(doc.Text()); text != "" {
		return []Section{{Text: text}}, nil
	}
	return nil, fmt.Errorf("%w: no regulation text found", ErrParseFailed)
}

// FullText joins section texts into a single document for callers that do not
// care about section boundaries.
func FullText(sections []Section) string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, "\n\n")
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
