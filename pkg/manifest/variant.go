package manifest

import (
	"strconv"

	"github.com/vodsnap/vodsnap/pkg/errors"
)

// IsMaster reports whether the playlist is a master playlist, i.e. whether
// any line is an #EXT-X-STREAM-INF variant directive.
func IsMaster(text string) bool {
	for _, line := range ClassifyAll(text) {
		if line.Kind == LineStreamInf {
			return true
		}
	}
	return false
}

// SelectVariant scans a master playlist and returns the absolute URL of the
// variant with the highest declared BANDWIDTH. A variant without a parseable
// BANDWIDTH ranks lowest (-1). When two variants declare the same bandwidth
// the first in document order wins. Fails with a ManifestError when no
// variant directive is followed by a URI line.
func SelectVariant(text string, res *Resolver) (string, error) {
	lines := ClassifyAll(text)
	bestBandwidth := -2
	bestURI := ""

	for i, line := range lines {
		if line.Kind != LineStreamInf {
			continue
		}

		bandwidth := -1
		if attrs, ok := tagAttrs(line.Raw); ok {
			if v, ok := attrValue(attrs, "BANDWIDTH"); ok {
				if n, err := strconv.Atoi(v); err == nil {
					bandwidth = n
				}
			}
		}

		// The variant's URI is the next non-blank line.
		for j := i + 1; j < len(lines); j++ {
			if lines[j].Kind == LineBlank {
				continue
			}
			if bandwidth > bestBandwidth {
				bestBandwidth = bandwidth
				bestURI = lines[j].Raw
			}
			break
		}
	}

	if bestURI == "" {
		return "", errors.New(errors.ManifestError, "no variant selectable from master playlist", "", errors.ErrNoVariant)
	}
	return res.Resolve(bestURI)
}
