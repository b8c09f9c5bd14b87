package release

// Comparer orders qualities by their position in a profile's accept list.
// The first entry in the list is the most wanted quality. Qualities not in
// the list rank below every listed one, ordered by bare resolution.
type Comparer struct {
	specs []Quality
}

// NewComparer builds a comparer from an ordered accept list, e.g.
// ["1080p bluray", "1080p webdl", "720p"].
func NewComparer(accept []string) *Comparer {
	c := &Comparer{}
	for _, s := range accept {
		c.specs = append(c.specs, ParseQuality(s))
	}
	return c
}

// Compare returns >0 when a outranks b, <0 when b outranks a, 0 when equal.
func (c *Comparer) Compare(a, b Quality) int {
	ra, rb := c.rank(a), c.rank(b)
	if ra != rb {
		return rb - ra // lower index = higher rank
	}
	if a.Resolution != b.Resolution {
		return int(a.Resolution) - int(b.Resolution)
	}
	if a.Proper != b.Proper {
		if a.Proper {
			return 1
		}
		return -1
	}
	return 0
}

// rank returns the index of the first matching spec, or len(specs) when the
// quality is not in the accept list.
func (c *Comparer) rank(q Quality) int {
	for i, spec := range c.specs {
		if spec.Resolution != q.Resolution {
			continue
		}
		if spec.Source == SourceUnknown || spec.Source == q.Source {
			return i
		}
	}
	return len(c.specs)
}
