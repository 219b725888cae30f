package manifest

import (
	"regexp"
	"strings"
)

// Attr is one name=value pair from a tag's attribute list. Quoted records
// whether the value was enclosed in double quotes, so a rewrite reproduces
// the original form.
type Attr struct {
	Name   string
	Value  string
	Quoted bool
}

// Attribute lists are comma-separated name=value pairs where quoted values
// may themselves contain commas.
var attrRe = regexp.MustCompile(`([-A-Za-z0-9]+)=("[^"\x0A\x0D]*"|[^",\s]*)`)

// ParseAttrList parses the attribute list of a tag line (the part after the
// first colon) into attributes in document order.
func ParseAttrList(s string) []Attr {
	matches := attrRe.FindAllStringSubmatch(s, -1)
	attrs := make([]Attr, 0, len(matches))
	for _, m := range matches {
		value := m[2]
		quoted := false
		if strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) && len(value) >= 2 {
			value = value[1 : len(value)-1]
			quoted = true
		}
		attrs = append(attrs, Attr{Name: m[1], Value: value, Quoted: quoted})
	}
	return attrs
}

// FormatAttrList renders attributes back into a comma-joined list, re-quoting
// the values that were quoted in the source.
func FormatAttrList(attrs []Attr) string {
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		if a.Quoted {
			parts = append(parts, a.Name+`="`+a.Value+`"`)
		} else {
			parts = append(parts, a.Name+"="+a.Value)
		}
	}
	return strings.Join(parts, ",")
}

// attrValue returns the value of the named attribute, or "" if absent.
func attrValue(attrs []Attr, name string) (string, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// tagAttrs extracts and parses the attribute list of a tag line. The second
// return is false when the line has no colon.
func tagAttrs(line string) ([]Attr, bool) {
	_, rest, found := strings.Cut(line, ":")
	if !found {
		return nil, false
	}
	return ParseAttrList(rest), true
}
