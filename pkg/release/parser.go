package release

import (
	"regexp"
	"strconv"
	"strings"
)

// ParsedInfo contains episode identity and quality parsed from a release name.
type ParsedInfo struct {
	SeriesTitle    string
	Season         int
	EpisodeNumbers []int
	FullSeason     bool
	Quality        Quality
	ReleaseGroup   string
}

var (
	// Series.Name.S01E02.or.S01E02E03.or.S01E02-E04
	episodeRegex = regexp.MustCompile(`(?i)^(?P<title>.+?)[-_. ]+S(?P<season>\d{1,2})(?P<episodes>(?:[-_. ]?E\d{1,3})+)`)

	// Series.Name.S01 (full season pack)
	seasonRegex = regexp.MustCompile(`(?i)^(?P<title>.+?)[-_. ]+S(?P<season>\d{1,2})(?:[-_. ]|$)`)

	// 1x02 style
	altEpisodeRegex = regexp.MustCompile(`(?i)^(?P<title>.+?)[-_. ]+(?P<season>\d{1,2})x(?P<episode>\d{1,3})`)

	episodeNumberRegex = regexp.MustCompile(`(?i)E(\d{1,3})`)

	groupRegex = regexp.MustCompile(`-([A-Za-z0-9]+)(?:\.\w{2,4})?$`)
)

// ParseTitle extracts episode identity from a release name.
// Returns nil when the name does not carry a recognizable season/episode
// pattern; callers treat that as an unparseable title, not an error.
func ParseTitle(title string) *ParsedInfo {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}

	info := &ParsedInfo{Quality: parseQualityFromName(title)}

	if m := episodeRegex.FindStringSubmatch(title); m != nil {
		info.SeriesTitle = cleanSeriesTitle(m[1])
		info.Season, _ = strconv.Atoi(m[2])
		for _, em := range episodeNumberRegex.FindAllStringSubmatch(m[3], -1) {
			n, _ := strconv.Atoi(em[1])
			info.EpisodeNumbers = append(info.EpisodeNumbers, n)
		}
	} else if m := altEpisodeRegex.FindStringSubmatch(title); m != nil {
		info.SeriesTitle = cleanSeriesTitle(m[1])
		info.Season, _ = strconv.Atoi(m[2])
		n, _ := strconv.Atoi(m[3])
		info.EpisodeNumbers = []int{n}
	} else if m := seasonRegex.FindStringSubmatch(title); m != nil {
		info.SeriesTitle = cleanSeriesTitle(m[1])
		info.Season, _ = strconv.Atoi(m[2])
		info.FullSeason = true
	} else {
		return nil
	}

	if info.SeriesTitle == "" {
		return nil
	}

	if gm := groupRegex.FindStringSubmatch(title); gm != nil {
		info.ReleaseGroup = gm[1]
	}

	return info
}

func cleanSeriesTitle(s string) string {
	s = strings.NewReplacer(".", " ", "_", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func parseQualityFromName(name string) Quality {
	normalized := strings.ToLower(strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(name))
	q := Quality{}

	switch {
	case containsAny(normalized, "2160p", "4k", "uhd"):
		q.Resolution = Resolution2160p
	case strings.Contains(normalized, "1080p"):
		q.Resolution = Resolution1080p
	case strings.Contains(normalized, "720p"):
		q.Resolution = Resolution720p
	case strings.Contains(normalized, "480p"):
		q.Resolution = Resolution480p
	}

	switch {
	case containsAny(normalized, "bluray", "blu ray", "bdrip", "brrip"):
		q.Source = SourceBluRay
	case containsAny(normalized, "web dl", "webdl"):
		q.Source = SourceWEBDL
	case containsAny(normalized, "webrip", "web rip"):
		q.Source = SourceWEBRip
	case strings.Contains(normalized, "hdtv"):
		q.Source = SourceHDTV
	case containsAny(normalized, "dvdrip", "dvd"):
		q.Source = SourceDVD
	}

	q.Proper = containsAny(normalized, "proper", "repack")
	return q
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
