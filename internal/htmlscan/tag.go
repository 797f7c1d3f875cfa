package htmlscan

import (
	"regexp"
	"strings"
)

// definitionTokenPattern splits a tag definition on whitespace while keeping
// quoted attribute values together.
var definitionTokenPattern = regexp.MustCompile(`(?:[^\s"']+|"[^"]*"|'[^']*')+`)

// selfClosingTags never receive children and never push a nesting level.
var selfClosingTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "command": true,
	"embed": true, "hr": true, "img": true, "input": true, "keygen": true,
	"link": true, "meta": true, "param": true, "source": true, "track": true,
	"wbr": true,
}

// textExcludedTags never accumulate text.
var textExcludedTags = map[string]bool{
	"script": true,
}

// Attribute is a name/value pair from a tag definition.
type Attribute struct {
	Name  string
	Value string
}

// Tag is one parsed element. Parent and Children are indices into
// Result.Tags; Parent is -1 for root elements.
type Tag struct {
	Name       string
	Attributes []Attribute
	Parent     int
	Children   []int

	index int
	text  strings.Builder
}

// Index returns the tag's position in Result.Tags.
func (t *Tag) Index() int {
	return t.index
}

// Text returns the decoded text accumulated directly inside the tag.
func (t *Tag) Text() string {
	return t.text.String()
}

// AddText appends decoded text to the tag.
func (t *Tag) AddText(text string) {
	t.text.WriteString(text)
}

// Attr returns the value of the first attribute with the given name.
// Attribute names are compared case-insensitively.
func (t *Tag) Attr(name string) (string, bool) {
	for _, attr := range t.Attributes {
		if strings.EqualFold(attr.Name, name) {
			return attr.Value, true
		}
	}
	return "", false
}

// IsSelfClosing reports whether the tag kind is a void element.
func (t *Tag) IsSelfClosing() bool {
	return selfClosingTags[t.Name]
}

// parseTag builds a Tag from a raw definition such as `<a href="/x">`.
// It returns nil when the definition carries no name.
func parseTag(definition string) *Tag {
	definition = strings.Trim(definition, "<>")
	definition = strings.TrimRight(definition, "/")

	tokens := definitionTokenPattern.FindAllString(definition, -1)
	if len(tokens) == 0 {
		return nil
	}

	tag := &Tag{
		Name:   strings.ToLower(tokens[0]),
		Parent: -1,
	}
	for _, token := range tokens[1:] {
		tag.Attributes = append(tag.Attributes, parseAttribute(token))
	}
	return tag
}

// parseAttribute splits `key=value` on the first '=' and strips quotes.
func parseAttribute(token string) Attribute {
	name, value, _ := strings.Cut(token, "=")
	return Attribute{
		Name:  name,
		Value: unquote(value),
	}
}

func unquote(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' || first == '\'') && first == last {
			return value[1 : len(value)-1]
		}
	}
	return strings.Trim(value, `"'`)
}
