package quality

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ReduceForScoring prepares content for edit-distance comparison. Drafts
// bound for html destinations carry markup the reviewer never edits
// directly, so they are reduced to visible text before scoring; every other
// format is compared verbatim.
func ReduceForScoring(content, format string) string {
	if !strings.EqualFold(format, "html") {
		return content
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	doc.Find("script, style").Remove()
	text := doc.Text()

	// Collapse the whitespace runs left behind by removed tags.
	return strings.Join(strings.Fields(text), " ")
}
