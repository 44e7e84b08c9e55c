// Package normalize reduces fetched pages to comparison-stable text.
//
// Normalization is deterministic by contract: byte-identical input and
// identical options always produce the same text and digest. Nothing in
// this package consults the clock, the locale, or map iteration order.
package normalize

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"

	"github.com/sitewatch/sitewatch/internal/watch"
)

// Options controls how raw page content is reduced to stable text.
type Options struct {
	// StripPatterns are regexes removed from the extracted text before
	// hashing, for volatile fragments like embedded timestamps.
	StripPatterns []string
	// WhitespaceCollapse folds all runs of whitespace to single spaces.
	WhitespaceCollapse bool
	// ExcludeSelectors are DOM subtrees dropped before text extraction.
	ExcludeSelectors []string
	// MaxTextChars caps the normalized text. The cap is part of
	// normalization and applies before hashing, so it can never cause a
	// hash/display mismatch.
	MaxTextChars int
}

// Normalizer implements watch.Normalizer for HTML pages.
type Normalizer struct {
	patterns []*regexp.Regexp
	collapse bool
	exclude  []string
	maxChars int
	hasher   watch.Hasher
}

// New compiles the configured strip patterns and returns a Normalizer.
func New(opts Options, hasher watch.Hasher) (*Normalizer, error) {
	patterns := make([]*regexp.Regexp, 0, len(opts.StripPatterns))
	for _, p := range opts.StripPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile strip pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}
	return &Normalizer{
		patterns: patterns,
		collapse: opts.WhitespaceCollapse,
		exclude:  opts.ExcludeSelectors,
		maxChars: opts.MaxTextChars,
		hasher:   hasher,
	}, nil
}

// Normalize decodes, strips, and digests the page. Undecodable content
// fails with *watch.DecodeError rather than being silently substituted.
func (n *Normalizer) Normalize(page watch.Page) (watch.Document, error) {
	text, charsetName, err := decodeText(page.Body, page.ContentType())
	if err != nil {
		return watch.Document{}, &watch.DecodeError{Charset: charsetName, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return watch.Document{}, &watch.DecodeError{Charset: charsetName, Err: fmt.Errorf("parse html: %w", err)}
	}
	for _, sel := range n.exclude {
		doc.Find(sel).Remove()
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	extracted := extractText(doc)

	for _, re := range n.patterns {
		extracted = re.ReplaceAllString(extracted, "")
	}
	if n.collapse {
		extracted = strings.Join(strings.Fields(extracted), " ")
	}
	extracted = capRunes(extracted, n.maxChars)

	digest, err := n.hasher.Hash([]byte(extracted))
	if err != nil {
		return watch.Document{}, fmt.Errorf("digest normalized text: %w", err)
	}

	return watch.Document{
		Title:     title,
		Text:      extracted,
		Digest:    digest,
		RawLength: len(page.Body),
	}, nil
}

// decodeText converts raw bytes to UTF-8 using the declared or sniffed
// charset. A decode that would substitute replacement characters is an
// error, not a silent degradation.
func decodeText(body []byte, contentType string) (string, string, error) {
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" {
		if !utf8.Valid(body) {
			return "", name, fmt.Errorf("content declared utf-8 contains invalid byte sequences")
		}
		return string(body), name, nil
	}
	decoded, err := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(body)))
	if err != nil {
		return "", name, fmt.Errorf("decode %s: %w", name, err)
	}
	if bytes.ContainsRune(decoded, utf8.RuneError) && !encodesReplacementRune(enc) {
		return "", name, fmt.Errorf("content is not decodable as %s", name)
	}
	return string(decoded), name, nil
}

// encodesReplacementRune reports whether the charset has its own byte
// sequence for U+FFFD. When it does not, a replacement rune in decoder
// output can only come from substitution of undecodable input, never
// from the page itself.
func encodesReplacementRune(enc encoding.Encoding) bool {
	out, err := enc.NewEncoder().Bytes([]byte("\uFFFD"))
	return err == nil && len(out) > 0
}

// extractText collects all text nodes joined by single spaces, the
// order given by document position.
func extractText(doc *goquery.Document) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			if t := strings.TrimSpace(node.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, node := range doc.Nodes {
		walk(node)
	}
	return strings.Join(parts, " ")
}

// capRunes bounds s at limit runes without splitting a character.
func capRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
