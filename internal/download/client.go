package download

import (
	"context"

	"github.com/trackarr/trackarr/internal/parser"
	"github.com/trackarr/trackarr/pkg/release"
)

// ClientDefinition identifies one configured download-client backend.
type ClientDefinition struct {
	ID       int64
	Name     string
	Protocol release.Protocol
}

// ClientStatus is the health of a download client backend.
type ClientStatus struct {
	OutputRootFolders []string
}

// Client is one download-client backend (SABnzbd, a torrent client, ...).
// Implementations live outside this core and are selected at runtime by
// their definition id.
type Client interface {
	// Definition identifies this backend instance.
	Definition() ClientDefinition
	// GetItems returns the client's current queue and history items.
	GetItems(ctx context.Context) ([]Item, error)
	// RemoveItem removes an item from the client.
	RemoveItem(ctx context.Context, downloadID string) error
	// RetryDownload requeues a failed item, returning the new external id.
	RetryDownload(ctx context.Context, downloadID string) (string, error)
	// Download sends a release to the client, returning the external id.
	Download(ctx context.Context, remote *parser.RemoteEpisode) (string, error)
	// Status reports backend health.
	Status(ctx context.Context) (ClientStatus, error)
}

// Provider resolves configured download clients.
type Provider interface {
	// GetClients returns all enabled clients.
	GetClients() []Client
	// Get returns the client with the given definition id.
	Get(id int64) (Client, error)
}

// StaticProvider serves a fixed set of clients registered at startup.
type StaticProvider struct {
	clients []Client
}

// NewStaticProvider creates a provider over the given clients.
func NewStaticProvider(clients ...Client) *StaticProvider {
	return &StaticProvider{clients: clients}
}

func (p *StaticProvider) GetClients() []Client {
	return p.clients
}

func (p *StaticProvider) Get(id int64) (Client, error) {
	for _, c := range p.clients {
		if c.Definition().ID == id {
			return c, nil
		}
	}
	return nil, ErrClientNotFound
}
