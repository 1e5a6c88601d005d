package processor

import (
	"log/slog"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"screenscrapehub/internal/config"
)

// Extractor turns a fetched HTML document into plain text. Implementations
// are total: malformed or empty input yields a (possibly empty) string.
type Extractor interface {
	Extract(pageURL *url.URL, rawHTML string) string
}

// TextExtractor strips non-content markup and emits whitespace-normalised text.
type TextExtractor struct {
	mode         string
	dropSelector string
	maxChars     int
	logger       *slog.Logger
}

// NewTextExtractor constructs an extractor from configuration.
func NewTextExtractor(cfg config.ExtractConfig, logger *slog.Logger) *TextExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	mode := cfg.Mode
	if mode == "" {
		mode = config.ExtractModeText
	}
	return &TextExtractor{
		mode:         mode,
		dropSelector: strings.Join(cfg.DropTags, ","),
		maxChars:     cfg.MaxChars,
		logger:       logger.With("component", "extractor", "mode", mode),
	}
}

var blockLevelTags = map[string]struct{}{
	"address":    {},
	"article":    {},
	"aside":      {},
	"blockquote": {},
	"dd":         {},
	"div":        {},
	"dl":         {},
	"dt":         {},
	"fieldset":   {},
	"figcaption": {},
	"figure":     {},
	"footer":     {},
	"form":       {},
	"h1":         {},
	"h2":         {},
	"h3":         {},
	"h4":         {},
	"h5":         {},
	"h6":         {},
	"header":     {},
	"hr":         {},
	"li":         {},
	"main":       {},
	"nav":        {},
	"ol":         {},
	"p":          {},
	"pre":        {},
	"section":    {},
	"table":      {},
	"title":      {},
	"tr":         {},
	"ul":         {},
}

// Extract implements Extractor.
func (e *TextExtractor) Extract(pageURL *url.URL, rawHTML string) string {
	if strings.TrimSpace(rawHTML) == "" {
		return ""
	}
	if e.mode == config.ExtractModeReadability {
		if text, ok := e.readable(pageURL, rawHTML); ok {
			return e.limit(text)
		}
	}
	return e.limit(e.plainText(rawHTML))
}

func (e *TextExtractor) plainText(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		e.logger.Debug("parse html failed", "error", err)
		return ""
	}
	if e.dropSelector != "" {
		doc.Find(e.dropSelector).Remove()
	}

	acc := &textAccumulator{}
	for _, node := range doc.Nodes {
		accumulateText(node, acc)
	}
	return acc.String()
}

// readable isolates the main article with go-readability and renders only
// that subtree. ok is false when readability fails or finds nothing.
func (e *TextExtractor) readable(pageURL *url.URL, rawHTML string) (text string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("readability panicked, falling back to text", "url", urlString(pageURL), "panic", r)
			text, ok = "", false
		}
	}()

	parser := readability.NewParser()
	article, err := parser.Parse(strings.NewReader(rawHTML), pageURL)
	if err != nil {
		e.logger.Debug("readability failed, falling back to text", "url", urlString(pageURL), "error", err)
		return "", false
	}
	if strings.TrimSpace(article.Content) == "" {
		return "", false
	}
	text = e.plainText(article.Content)
	return text, text != ""
}

func (e *TextExtractor) limit(text string) string {
	if e.maxChars <= 0 || utf8.RuneCountInString(text) <= e.maxChars {
		return text
	}
	count := 0
	for i := range text {
		if count == e.maxChars {
			return strings.TrimRightFunc(text[:i], unicode.IsSpace)
		}
		count++
	}
	return text
}

func urlString(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}

// textAccumulator collapses whitespace runs to one space and block
// boundaries to one newline. Lines never start or end with a space.
type textAccumulator struct {
	builder      strings.Builder
	pendingSpace bool
	atLineStart  bool
}

func (t *textAccumulator) String() string {
	return strings.TrimRightFunc(t.builder.String(), unicode.IsSpace)
}

func (t *textAccumulator) appendText(value string) {
	for _, r := range value {
		if unicode.IsSpace(r) {
			t.pendingSpace = true
			continue
		}
		if t.pendingSpace && t.builder.Len() > 0 && !t.atLineStart {
			t.builder.WriteByte(' ')
		}
		t.pendingSpace = false
		t.atLineStart = false
		t.builder.WriteRune(r)
	}
}

func (t *textAccumulator) ensureSpace() {
	t.pendingSpace = true
}

func (t *textAccumulator) ensureNewline() {
	t.pendingSpace = false
	if t.builder.Len() == 0 || t.atLineStart {
		return
	}
	t.builder.WriteByte('\n')
	t.atLineStart = true
}

func accumulateText(node *html.Node, acc *textAccumulator) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.TextNode:
		acc.appendText(node.Data)
	case html.DocumentNode:
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			accumulateText(child, acc)
		}
	case html.ElementNode:
		tag := strings.ToLower(node.Data)
		if tag == "br" {
			acc.ensureNewline()
			return
		}
		_, block := blockLevelTags[tag]
		if block {
			acc.ensureNewline()
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			accumulateText(child, acc)
		}
		switch {
		case block:
			acc.ensureNewline()
		case tag == "td" || tag == "th":
			acc.ensureSpace()
		}
	}
}
