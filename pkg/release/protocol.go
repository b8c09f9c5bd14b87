package release

// Protocol is the transfer protocol a release is distributed over.
type Protocol string

const (
	ProtocolUsenet  Protocol = "usenet"
	ProtocolTorrent Protocol = "torrent"
)
