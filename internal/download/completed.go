package download

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/trackarr/trackarr/internal/events"
	"github.com/trackarr/trackarr/internal/history"
)

// ImportResult is the per-file outcome reported by the import engine.
type ImportResult struct {
	Path     string
	Imported bool
	Errors   []string
}

// ImportService is the external media-file import engine.
type ImportService interface {
	// ProcessPath imports everything eligible under path for the given item.
	ProcessPath(ctx context.Context, path string, item Item) ([]ImportResult, error)
}

// CompletedConfig tunes the completion importer.
type CompletedConfig struct {
	// DownloadedEpisodesFolder is the intermediate folder watched by the
	// legacy path-scan import; completed items already inside it are skipped.
	DownloadedEpisodesFolder string
	// RemoveCompleted removes fully imported items from their client.
	RemoveCompleted bool
}

// CompletedService decides whether a finished download should be imported
// and transitions it to Imported when every file makes it into the library.
type CompletedService struct {
	history  *history.Store
	imports  ImportService
	provider Provider
	bus      *events.Bus
	config   CompletedConfig
	logger   *slog.Logger
}

// NewCompletedService creates a completion importer.
func NewCompletedService(historyStore *history.Store, imports ImportService, provider Provider, bus *events.Bus, cfg CompletedConfig, logger *slog.Logger) *CompletedService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompletedService{
		history:  historyStore,
		imports:  imports,
		provider: provider,
		bus:      bus,
		config:   cfg,
		logger:   logger,
	}
}

// Process imports a tracked download whose item completed. Items that were
// not grabbed through the ledger and carry no category are out-of-band and
// ignored with a warning; import rejections leave the download in
// Downloading state with per-file status messages.
func (s *CompletedService) Process(ctx context.Context, tracked *TrackedDownload) error {
	if tracked.Item.Status != ItemCompleted {
		return nil
	}

	recent, err := s.history.MostRecentForDownloadID(tracked.Item.DownloadID)
	if err != nil {
		return fmt.Errorf("history for %q: %w", tracked.Item.DownloadID, err)
	}

	if recent == nil && strings.TrimSpace(tracked.Item.Category) == "" {
		tracked.Warn("Download wasn't grabbed by trackarr and not in a category, skipping")
		s.logger.Warn("completed item has no history and no category, skipping",
			"download_id", tracked.Item.DownloadID, "title", tracked.Item.Title)
		return nil
	}

	outputPath := tracked.Item.OutputPath
	if outputPath == "" {
		tracked.Warn("Download doesn't contain an output path, skipping")
		s.logger.Warn("completed item has no output path, skipping",
			"download_id", tracked.Item.DownloadID, "title", tracked.Item.Title)
		return nil
	}

	if s.config.DownloadedEpisodesFolder != "" && pathContains(s.config.DownloadedEpisodesFolder, outputPath) {
		tracked.Warn("Output path is inside the downloaded episodes folder, skipping")
		s.logger.Warn("completed item already staged for path-scan import, skipping",
			"download_id", tracked.Item.DownloadID, "path", outputPath)
		return nil
	}

	return s.importItem(ctx, tracked, outputPath)
}

func (s *CompletedService) importItem(ctx context.Context, tracked *TrackedDownload, outputPath string) error {
	results, err := s.imports.ProcessPath(ctx, outputPath, tracked.Item)
	if err != nil {
		return fmt.Errorf("import %q: %w", outputPath, err)
	}

	if len(results) == 0 {
		tracked.Warn("No files found are eligible for import in %s", outputPath)
		s.logger.Warn("nothing eligible for import",
			"download_id", tracked.Item.DownloadID, "path", outputPath)
		return nil
	}

	var rejected []StatusMessage
	for _, result := range results {
		if result.Imported {
			continue
		}
		rejected = append(rejected, StatusMessage{
			Title:    filepath.Base(result.Path),
			Messages: result.Errors,
		})
	}

	if len(rejected) > 0 {
		tracked.SetStatusMessages(rejected...)
		s.logger.Warn("import rejected some files, download stays in queue",
			"download_id", tracked.Item.DownloadID, "rejected", len(rejected))
		return nil
	}

	tracked.SetState(StateImported)

	completed := &events.DownloadCompleted{
		BaseEvent:  events.NewBaseEvent(events.EventDownloadCompleted, events.EntityDownload, 0),
		TrackingID: tracked.TrackingID,
		DownloadID: tracked.Item.DownloadID,
	}
	if tracked.RemoteEpisode != nil {
		completed.SeriesID = tracked.RemoteEpisode.Series.ID
		completed.EpisodeIDs = tracked.RemoteEpisode.EpisodeIDs()
	}
	if err := s.bus.Publish(ctx, completed); err != nil {
		s.logger.Error("failed to publish download completed", "error", err)
	}

	s.logger.Info("download imported", "download_id", tracked.Item.DownloadID, "title", tracked.Item.Title)

	if s.config.RemoveCompleted {
		s.removeFromClient(ctx, tracked)
	}
	return nil
}

// removeFromClient drops a fully imported item from its download client.
// Read-only items (seeding torrents, locked history entries) are left alone.
func (s *CompletedService) removeFromClient(ctx context.Context, tracked *TrackedDownload) {
	if tracked.Item.IsReadOnly {
		s.logger.Debug("imported item is read-only, leaving it on the client",
			"download_id", tracked.Item.DownloadID)
		return
	}

	client, err := s.provider.Get(tracked.ClientID)
	if err != nil {
		s.logger.Warn("unable to resolve client for imported item",
			"client_id", tracked.ClientID, "download_id", tracked.Item.DownloadID, "error", err)
		return
	}
	if err := client.RemoveItem(ctx, tracked.Item.DownloadID); err != nil {
		s.logger.Warn("unable to remove imported item from client",
			"download_id", tracked.Item.DownloadID, "error", err)
		return
	}

	s.logger.Info("removed imported download from client",
		"download_id", tracked.Item.DownloadID, "client", client.Definition().Name)
}

// pathContains reports whether child lies within parent.
func pathContains(parent, child string) bool {
	rel, err := filepath.Rel(filepath.Clean(parent), filepath.Clean(child))
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
