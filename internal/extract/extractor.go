// Package extract turns the harbour movements page into records using goquery.
package extract

import (
	"fmt"
	"iter"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/JakeFAU/harbour-movements/internal/movement"
)

// DefaultTableSelector locates the movements table on the Port Authority page.
const DefaultTableSelector = ".view-vessel-movement .view-content table"

// MarkupShapeError describes which part of the expected table was missing.
// It is logged, never returned: a page without the table yields no records.
type MarkupShapeError struct {
	Selector string
	Missing  string
}

func (e *MarkupShapeError) Error() string {
	return fmt.Sprintf("table structure has changed or is missing: no %s under %q", e.Missing, e.Selector)
}

// Extractor reads the movements table out of an HTML document.
type Extractor struct {
	selector string
	logger   *zap.Logger
}

// New returns an Extractor for the table matched by selector.
func New(selector string, logger *zap.Logger) *Extractor {
	if strings.TrimSpace(selector) == "" {
		selector = DefaultTableSelector
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{selector: selector, logger: logger}
}

// Parse locates the table in page and returns a single-use sequence of one
// record per non-empty body row. Each record maps header labels to cell text
// positionally; a short row simply has fewer keys.
func (e *Extractor) Parse(page string) (iter.Seq[movement.Record], error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	table := doc.Find(e.selector).First()
	thead := table.Find("thead").First()
	tbody := table.Find("tbody").First()
	if shapeErr := e.checkShape(table, thead, tbody); shapeErr != nil {
		e.logger.Warn("Table structure has changed or is missing", zap.Error(shapeErr))
		return empty, nil
	}

	headings := thead.Find("th").Map(func(_ int, s *goquery.Selection) string {
		return strippedText(s)
	})
	e.logger.Debug("Found table headings", zap.Strings("headings", headings))

	used := false
	return func(yield func(movement.Record) bool) {
		if used {
			return
		}
		used = true

		count := 0
		rows := tbody.Find("tr")
		for i := range rows.Nodes {
			columns := rows.Eq(i).Find("td").Map(func(_ int, s *goquery.Selection) string {
				return strippedText(s)
			})
			if len(columns) == 0 {
				continue
			}

			rec := zip(headings, columns)
			count++
			e.logger.Debug("Parsed movement", zap.Stringer("movement", rec))
			if !yield(rec) {
				return
			}
		}
		e.logger.Info("Found vessel movements", zap.Int("count", count))
	}, nil
}

func (e *Extractor) checkShape(table, thead, tbody *goquery.Selection) error {
	switch {
	case table.Length() == 0:
		return &MarkupShapeError{Selector: e.selector, Missing: "table"}
	case thead.Length() == 0:
		return &MarkupShapeError{Selector: e.selector, Missing: "thead"}
	case tbody.Length() == 0:
		return &MarkupShapeError{Selector: e.selector, Missing: "tbody"}
	}
	return nil
}

func empty(func(movement.Record) bool) {}

// zip pairs headings with values up to the shorter of the two.
func zip(headings, values []string) movement.Record {
	rec := movement.NewRecord()
	n := min(len(headings), len(values))
	for i := 0; i < n; i++ {
		rec.Set(headings[i], values[i])
	}
	return rec
}

// strippedText concatenates every descendant text node with surrounding
// whitespace removed. "<td>Mon 15 Jan<br> 09:30</td>" becomes "Mon 15 Jan09:30".
func strippedText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		appendText(&b, n)
	}
	return b.String()
}

func appendText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(strings.TrimSpace(n.Data))
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		appendText(b, c)
	}
}
