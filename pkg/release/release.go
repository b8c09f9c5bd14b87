// Package release parses episode release names and models release quality.
package release

import "strings"

// Resolution represents the video resolution of a release.
type Resolution int

const (
	ResolutionUnknown Resolution = iota
	Resolution480p
	Resolution720p
	Resolution1080p
	Resolution2160p
)

// unknownStr is the string representation for unknown values.
const unknownStr = "unknown"

func (r Resolution) String() string {
	switch r {
	case Resolution480p:
		return "480p"
	case Resolution720p:
		return "720p"
	case Resolution1080p:
		return "1080p"
	case Resolution2160p:
		return "2160p"
	default:
		return unknownStr
	}
}

// Source represents the media source type of a release.
type Source int

const (
	SourceUnknown Source = iota
	SourceBluRay
	SourceWEBDL
	SourceWEBRip
	SourceHDTV
	SourceDVD
)

func (s Source) String() string {
	switch s {
	case SourceBluRay:
		return "bluray"
	case SourceWEBDL:
		return "webdl"
	case SourceWEBRip:
		return "webrip"
	case SourceHDTV:
		return "hdtv"
	case SourceDVD:
		return "dvd"
	default:
		return unknownStr
	}
}

// Quality is the resolution/source pair carried by a release.
type Quality struct {
	Resolution Resolution
	Source     Source
	Proper     bool
}

func (q Quality) String() string {
	if q.Source == SourceUnknown {
		return q.Resolution.String()
	}
	return q.Resolution.String() + " " + q.Source.String()
}

// ParseQuality parses strings like "1080p bluray" or "720p" into a Quality.
// A missing source means "any source". Round-trips with Quality.String.
func ParseQuality(s string) Quality {
	q := Quality{}
	s = strings.ToLower(strings.TrimSpace(s))

	switch {
	case strings.Contains(s, "2160p"):
		q.Resolution = Resolution2160p
	case strings.Contains(s, "1080p"):
		q.Resolution = Resolution1080p
	case strings.Contains(s, "720p"):
		q.Resolution = Resolution720p
	case strings.Contains(s, "480p"):
		q.Resolution = Resolution480p
	}

	switch {
	case strings.Contains(s, "bluray"):
		q.Source = SourceBluRay
	case strings.Contains(s, "webdl"):
		q.Source = SourceWEBDL
	case strings.Contains(s, "webrip"):
		q.Source = SourceWEBRip
	case strings.Contains(s, "hdtv"):
		q.Source = SourceHDTV
	case strings.Contains(s, "dvd"):
		q.Source = SourceDVD
	}

	q.Proper = strings.Contains(s, "proper")
	return q
}
