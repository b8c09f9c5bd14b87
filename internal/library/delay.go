package library

import (
	"sort"
	"time"

	"github.com/trackarr/trackarr/pkg/release"
)

// DelayProfile defines how long grabbing a pending release is deferred,
// per protocol. Profiles are tag-scoped; a profile without tags is the
// catch-all default and matches every series.
type DelayProfile struct {
	Order        int
	Tags         []int64
	UsenetDelay  time.Duration
	TorrentDelay time.Duration
}

// ProtocolDelay returns the delay for the given protocol.
func (p DelayProfile) ProtocolDelay(protocol release.Protocol) time.Duration {
	if protocol == release.ProtocolTorrent {
		return p.TorrentDelay
	}
	return p.UsenetDelay
}

// DelayService resolves delay profiles for series tags.
type DelayService struct {
	profiles []DelayProfile
}

// NewDelayService creates a delay service over a fixed profile set.
// When no profile matches a tag set, a zero-delay default applies.
func NewDelayService(profiles []DelayProfile) *DelayService {
	return &DelayService{profiles: profiles}
}

// AllForTags returns the profiles applying to the given tags, ordered by
// profile order (lowest first). The first entry is the effective profile.
func (s *DelayService) AllForTags(tags []int64) []DelayProfile {
	var matched []DelayProfile
	for _, p := range s.profiles {
		if matchesTags(p.Tags, tags) {
			matched = append(matched, p)
		}
	}

	if len(matched) == 0 {
		matched = append(matched, DelayProfile{})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Order < matched[j].Order
	})
	return matched
}

// matchesTags reports whether a profile applies: untagged profiles match
// everything, tagged ones need at least one tag in common.
func matchesTags(profileTags, seriesTags []int64) bool {
	if len(profileTags) == 0 {
		return true
	}
	for _, pt := range profileTags {
		for _, st := range seriesTags {
			if pt == st {
				return true
			}
		}
	}
	return false
}
