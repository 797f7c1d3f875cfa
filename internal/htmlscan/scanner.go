// Package htmlscan scans rendered HTML into a flat tag tree and collects the
// title, meta description, meta keywords and searchable text of a page.
//
// The scanner is a single pass over the document. It tolerates malformed
// markup and never fails. Regions can be kept out of the searchable text with
// the data-search annotation:
//
//	<nav data-search="excluded">...</nav>
//	<div data-search="excluded"><p data-search="included">kept</p></div>
//
// The innermost annotated ancestor decides whether text is captured.
package htmlscan

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Annotation attribute and its recognized values.
const (
	SearchAttribute = "data-search"
	SearchExcluded  = "excluded"
	SearchIncluded  = "included"
)

// stripPatterns remove regions that are never tokenized.
var stripPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)<!--.*?-->`),
	regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`),
	regexp.MustCompile(`(?is)<noscript\b[^>]*>.*?</noscript\s*>`),
	regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style\s*>`),
}

// scope is an annotation region opened by an element carrying
// data-search. It ends when the nesting level it opened is closed.
type scope struct {
	level    int
	excluded bool
}

// scanner holds the state of a single Scan call.
type scanner struct {
	result *Result

	level  int
	levels [][]int
	scopes []scope

	inDefinition bool
	definition   strings.Builder
	text         strings.Builder
	searchable   []string
}

// Scan parses document and returns its tag tree and extracted metadata.
// It is safe for concurrent use.
func Scan(document string) *Result {
	s := &scanner{result: &Result{}}

	document = Strip(document)
	for _, r := range document {
		switch {
		case r == '<' && !s.inDefinition:
			s.flushText()
			s.inDefinition = true
			s.definition.WriteRune(r)
		case r == '>' && s.inDefinition:
			s.definition.WriteRune(r)
			s.handleDefinition(s.definition.String())
			s.definition.Reset()
			s.inDefinition = false
		case s.inDefinition:
			s.definition.WriteRune(r)
		default:
			s.text.WriteRune(r)
		}
	}

	// An unterminated definition is plain trailing text.
	if s.inDefinition {
		s.text.WriteString(s.definition.String())
		s.definition.Reset()
		s.inDefinition = false
	}
	s.flushText()

	s.result.SearchableStr = strings.Join(strings.Fields(strings.Join(s.searchable, " ")), " ")
	return s.result
}

// Strip removes comments and script, noscript and style blocks.
func Strip(document string) string {
	for _, pattern := range stripPatterns {
		document = pattern.ReplaceAllString(document, "")
	}
	return document
}

func (s *scanner) handleDefinition(definition string) {
	switch {
	case strings.HasPrefix(definition, "</"):
		s.closeTag()
	case strings.HasPrefix(definition, "<!"), strings.HasPrefix(definition, "<?"):
		// doctype, CDATA and processing instructions carry no content
	default:
		s.openTag(definition)
	}
}

func (s *scanner) openTag(definition string) {
	tag := parseTag(definition)
	if tag == nil {
		return
	}

	tag.index = len(s.result.Tags)
	if parent := s.lastOpened(s.level - 1); parent != nil {
		tag.Parent = parent.index
		parent.Children = append(parent.Children, tag.index)
	}
	s.result.Tags = append(s.result.Tags, tag)
	for len(s.levels) <= s.level {
		s.levels = append(s.levels, nil)
	}
	s.levels[s.level] = append(s.levels[s.level], tag.index)

	if tag.Name == "meta" && !s.excludedFor(tag) {
		s.applyMeta(tag)
	}

	if tag.IsSelfClosing() {
		return
	}

	s.level++
	if value, ok := tag.Attr(SearchAttribute); ok {
		switch value {
		case SearchExcluded:
			s.scopes = append(s.scopes, scope{level: s.level, excluded: true})
		case SearchIncluded:
			s.scopes = append(s.scopes, scope{level: s.level, excluded: false})
		}
	}
}

func (s *scanner) closeTag() {
	if s.level == 0 {
		return
	}

	excluded := s.excluded()
	closing := s.level
	s.level--
	for len(s.scopes) > 0 && s.scopes[len(s.scopes)-1].level >= closing {
		s.scopes = s.scopes[:len(s.scopes)-1]
	}

	tag := s.lastOpened(s.level)
	if tag != nil && tag.Name == "title" && !excluded {
		title := strings.TrimSpace(tag.Text())
		s.result.Title = &title
	}
}

// flushText hands the pending text to the element it belongs to.
func (s *scanner) flushText() {
	raw := s.text.String()
	s.text.Reset()
	if raw == "" {
		return
	}

	parent := s.lastOpened(s.level - 1)
	if parent != nil && textExcludedTags[parent.Name] {
		return
	}
	if s.excluded() {
		return
	}

	decoded := html.UnescapeString(raw)
	if parent != nil {
		parent.AddText(decoded)
	}
	if trimmed := strings.TrimSpace(decoded); trimmed != "" {
		s.searchable = append(s.searchable, trimmed)
	}
}

func (s *scanner) applyMeta(tag *Tag) {
	name, ok := tag.Attr("name")
	if !ok {
		return
	}
	content, ok := tag.Attr("content")
	if !ok {
		return
	}

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "keywords":
		s.result.KeywordsStr = &content
	case "description":
		s.result.Description = &content
	}
}

// lastOpened returns the most recent tag opened at level.
func (s *scanner) lastOpened(level int) *Tag {
	if level < 0 || level >= len(s.levels) || len(s.levels[level]) == 0 {
		return nil
	}
	opened := s.levels[level]
	return s.result.Tags[opened[len(opened)-1]]
}

func (s *scanner) excluded() bool {
	if len(s.scopes) == 0 {
		return false
	}
	return s.scopes[len(s.scopes)-1].excluded
}

// excludedFor applies a self-closing tag's own annotation to itself.
func (s *scanner) excludedFor(tag *Tag) bool {
	switch value, _ := tag.Attr(SearchAttribute); value {
	case SearchExcluded:
		return true
	case SearchIncluded:
		return false
	}
	return s.excluded()
}
