// Package parser resolves parsed release titles against the series catalog.
package parser

import (
	"errors"
	"fmt"
	"time"

	"github.com/trackarr/trackarr/internal/library"
	"github.com/trackarr/trackarr/pkg/release"
)

// Sentinel errors for title resolution.
var (
	// ErrNoMatchingSeries is returned when a parsed title matches no catalog series.
	ErrNoMatchingSeries = errors.New("no matching series")

	// ErrNoEpisodes is returned when a series matched but none of the parsed
	// episode numbers exist in the catalog.
	ErrNoEpisodes = errors.New("no matching episodes")
)

// IsResolutionFailure reports whether err means the title resolved to
// nothing, as opposed to a catalog access failure.
func IsResolutionFailure(err error) bool {
	return errors.Is(err, ErrNoMatchingSeries) || errors.Is(err, ErrNoEpisodes)
}

// ReleaseInfo is the indexer-reported metadata of a release.
type ReleaseInfo struct {
	Title       string           `json:"title"`
	Size        int64            `json:"size"`
	PublishDate time.Time        `json:"publish_date"`
	Indexer     string           `json:"indexer"`
	Protocol    release.Protocol `json:"protocol"`
	DownloadURL string           `json:"download_url,omitempty"`
}

// Age returns how long ago the release was published.
func (r ReleaseInfo) Age() time.Duration {
	return time.Since(r.PublishDate)
}

// RemoteEpisode joins a release with its resolved series and episodes.
type RemoteEpisode struct {
	Series     *library.Series
	Episodes   []library.Episode
	ParsedInfo *release.ParsedInfo
	Release    *ReleaseInfo
}

// EpisodeIDs returns the ids of all resolved episodes.
func (r *RemoteEpisode) EpisodeIDs() []int64 {
	ids := make([]int64, len(r.Episodes))
	for i, e := range r.Episodes {
		ids[i] = e.ID
	}
	return ids
}

// Catalog is the slice of the library the parser needs.
type Catalog interface {
	GetSeries(id int64) (*library.Series, error)
	FindByTitle(title string) (*library.Series, error)
	FindEpisodes(seriesID int64, season int, numbers []int) ([]library.Episode, error)
}

// Service maps ParsedInfo to catalog series and episodes.
type Service struct {
	catalog Catalog
}

// NewService creates a parser service over the given catalog.
func NewService(catalog Catalog) *Service {
	return &Service{catalog: catalog}
}

// Map resolves a parsed title to a RemoteEpisode against the current catalog.
// Returns ErrNoMatchingSeries or ErrNoEpisodes when resolution fails.
func (s *Service) Map(parsed *release.ParsedInfo, rel *ReleaseInfo) (*RemoteEpisode, error) {
	series, err := s.catalog.FindByTitle(parsed.SeriesTitle)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			return nil, fmt.Errorf("map %q: %w", parsed.SeriesTitle, ErrNoMatchingSeries)
		}
		return nil, fmt.Errorf("map %q: %w", parsed.SeriesTitle, err)
	}

	return s.mapToSeries(parsed, rel, series)
}

// MapForSeries resolves a parsed title against a known series id. Used when
// the owning series is already recorded, e.g. for stored pending releases.
func (s *Service) MapForSeries(parsed *release.ParsedInfo, rel *ReleaseInfo, seriesID int64) (*RemoteEpisode, error) {
	series, err := s.catalog.GetSeries(seriesID)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			return nil, fmt.Errorf("map for series %d: %w", seriesID, ErrNoMatchingSeries)
		}
		return nil, fmt.Errorf("map for series %d: %w", seriesID, err)
	}

	return s.mapToSeries(parsed, rel, series)
}

func (s *Service) mapToSeries(parsed *release.ParsedInfo, rel *ReleaseInfo, series *library.Series) (*RemoteEpisode, error) {
	episodes, err := s.catalog.FindEpisodes(series.ID, parsed.Season, parsed.EpisodeNumbers)
	if err != nil {
		return nil, fmt.Errorf("find episodes for series %d: %w", series.ID, err)
	}
	if len(episodes) == 0 {
		return nil, fmt.Errorf("series %d season %d: %w", series.ID, parsed.Season, ErrNoEpisodes)
	}

	return &RemoteEpisode{
		Series:     series,
		Episodes:   episodes,
		ParsedInfo: parsed,
		Release:    rel,
	}, nil
}
