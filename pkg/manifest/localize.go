package manifest

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// KeyRef is one distinct encryption key referenced by the playlist.
// Deduplication is by absolute URI: every key directive resolving to the same
// URI shares one local file.
type KeyRef struct {
	// Attrs is the directive's attribute list in document order.
	Attrs []Attr
	// URI is the resolved absolute key URL.
	URI string
	// LocalName is the file name within the working directory (key_<n>).
	LocalName string
	// LocalPath is the full path of the local key file.
	LocalPath string
}

// SegmentRef is one media segment referenced by the playlist. Index is the
// 0-based position in document order; it defines the final mux order and is
// encoded into the local file name, so concurrent download completion order
// can never reorder playback.
type SegmentRef struct {
	Index     int
	URI       string
	LocalName string
	LocalPath string
}

// Plan is the localization plan for one media playlist: the classified
// original lines plus every key and segment reference, each mapped to a
// local file.
type Plan struct {
	lines    []Line
	Keys     []*KeyRef
	Segments []*SegmentRef

	keyForLine map[int]keyLine
	segForLine map[int]*SegmentRef
}

// keyLine ties a key directive line to its shared KeyRef while keeping the
// line's own attribute list: two directives may resolve to the same key URI
// yet differ in other attributes such as IV.
type keyLine struct {
	attrs []Attr
	key   *KeyRef
}

// BuildPlan walks a media playlist and assigns a local file in dir to every
// key and segment reference, resolving each URI through res.
func BuildPlan(text string, res *Resolver, dir string) (*Plan, error) {
	plan := &Plan{
		lines:      ClassifyAll(text),
		keyForLine: make(map[int]keyLine),
		segForLine: make(map[int]*SegmentRef),
	}
	keyByURI := make(map[string]*KeyRef)

	for i, line := range plan.lines {
		switch line.Kind {
		case LineKey:
			attrs, ok := tagAttrs(line.Raw)
			if !ok {
				continue
			}
			uri, ok := attrValue(attrs, "URI")
			if !ok {
				// METHOD=NONE key directives carry no URI; copied verbatim.
				continue
			}
			abs, err := res.Resolve(uri)
			if err != nil {
				return nil, err
			}
			key, seen := keyByURI[abs]
			if !seen {
				name := fmt.Sprintf("key_%d", len(keyByURI))
				key = &KeyRef{
					Attrs:     attrs,
					URI:       abs,
					LocalName: name,
					LocalPath: filepath.Join(dir, name),
				}
				keyByURI[abs] = key
				plan.Keys = append(plan.Keys, key)
			}
			plan.keyForLine[i] = keyLine{attrs: attrs, key: key}

		case LineURI:
			abs, err := res.Resolve(line.Raw)
			if err != nil {
				return nil, err
			}
			index := len(plan.Segments)
			name := fmt.Sprintf("segment_%06d%s", index, refExt(line.Raw))
			seg := &SegmentRef{
				Index:     index,
				URI:       abs,
				LocalName: name,
				LocalPath: filepath.Join(dir, name),
			}
			plan.Segments = append(plan.Segments, seg)
			plan.segForLine[i] = seg
		}
	}

	return plan, nil
}

// LocalManifest rewrites the playlist so every key URI attribute and every
// segment reference points at its local file name. All other lines, and all
// non-URI key attributes, are reproduced verbatim and in original order.
func (p *Plan) LocalManifest() string {
	var b strings.Builder
	for i, line := range p.lines {
		switch {
		case p.keyForLine[i].key != nil:
			kl := p.keyForLine[i]
			attrs := make([]Attr, len(kl.attrs))
			copy(attrs, kl.attrs)
			for j := range attrs {
				if attrs[j].Name == "URI" {
					attrs[j].Value = kl.key.LocalName
					attrs[j].Quoted = true
				}
			}
			b.WriteString(tagKey + ":" + FormatAttrList(attrs))
		case p.segForLine[i] != nil:
			b.WriteString(p.segForLine[i].LocalName)
		default:
			b.WriteString(line.Raw)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// refExt returns the file extension of a reference URI's path, defaulting to
// .ts when the path has none.
func refExt(ref string) string {
	p := ref
	if u, err := url.Parse(ref); err == nil {
		p = u.Path
	}
	if ext := path.Ext(p); ext != "" {
		return ext
	}
	return ".ts"
}
