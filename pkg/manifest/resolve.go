package manifest

import (
	"net/url"
	"path"
	"strings"

	"github.com/vodsnap/vodsnap/pkg/errors"
)

// Resolver turns playlist references into absolute URLs. It carries the base
// directory of the playlist's own URL plus the playlist URL's query string,
// which is propagated onto any resolved reference that has no query of its
// own. Access tokens and signatures usually live only in the top-level
// manifest URL's query, while per-segment URIs from the origin omit them.
type Resolver struct {
	base  *url.URL
	query string
}

// NewResolver builds a Resolver from a playlist's absolute URL.
func NewResolver(manifestURL string) (*Resolver, error) {
	u, err := url.Parse(manifestURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ValidationError, "invalid manifest URL", errors.ErrBadManifestURL)
	}
	if !u.IsAbs() {
		return nil, errors.New(errors.ValidationError, "manifest URL must be absolute", manifestURL, errors.ErrBadManifestURL)
	}

	base := *u
	base.Path = path.Dir(base.Path) + "/"
	base.RawQuery = ""
	base.Fragment = ""

	return &Resolver{base: &base, query: u.RawQuery}, nil
}

// Resolve returns the absolute URL for a reference. Relative references
// resolve against the playlist's directory. If the result carries no query
// and the resolver has a propagated query, the query is appended; an explicit
// query on the reference always wins.
func (r *Resolver) Resolve(ref string) (string, error) {
	refURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", errors.Wrap(err, errors.ManifestError, "invalid reference URI", errors.ErrBadReferenceURI)
	}

	abs := r.base.ResolveReference(refURL)
	s := abs.String()
	if abs.RawQuery == "" && r.query != "" {
		sep := "?"
		if strings.Contains(s, "?") {
			sep = "&"
		}
		s += sep + r.query
	}
	return s, nil
}

// Query returns the propagated query string (may be empty).
func (r *Resolver) Query() string {
	return r.query
}
