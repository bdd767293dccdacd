package cvmfs

import (
	"fmt"
	"strings"
)

// ServerType is the role a server plays in the distribution tree.
type ServerType string

// Server roles.
const (
	ServerTypePrimary  ServerType = "stratum0"
	ServerTypeReplica  ServerType = "stratum1"
	ServerTypeSyncOnly ServerType = "syncserver"
)

// ParseServerType accepts the canonical names and common aliases.
func ParseServerType(s string) (ServerType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stratum0", "s0", "primary":
		return ServerTypePrimary, nil
	case "stratum1", "s1", "replica":
		return ServerTypeReplica, nil
	case "syncserver", "sync", "sync-only", "synconly":
		return ServerTypeSyncOnly, nil
	default:
		return "", fmt.Errorf("%w: unknown server type %q", ErrLexical, s)
	}
}

// Label is the human name used in messages.
func (t ServerType) Label() string {
	switch t {
	case ServerTypePrimary:
		return "Stratum0 server"
	case ServerTypeReplica:
		return "Stratum1 server"
	case ServerTypeSyncOnly:
		return "SyncServer"
	default:
		return string(t)
	}
}

// BackendType is how a server exposes its repository list.
type BackendType string

// Backend modes.
const (
	BackendObjectStore BackendType = "s3"
	BackendWebFileset  BackendType = "cvmfs"
	BackendAutoDetect  BackendType = "autodetect"
)

// ParseBackendType accepts the canonical names and common aliases. An empty
// string selects auto-detection.
func ParseBackendType(s string) (BackendType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "autodetect", "auto":
		return BackendAutoDetect, nil
	case "s3", "objectstore", "object-store":
		return BackendObjectStore, nil
	case "cvmfs", "webfileset", "web-fileset":
		return BackendWebFileset, nil
	default:
		return "", fmt.Errorf("%w: unknown backend type %q", ErrLexical, s)
	}
}

// Server identifies one host to scrape.
type Server struct {
	Type     ServerType  `json:"type"`
	Backend  BackendType `json:"backend"`
	Hostname Hostname    `json:"hostname"`
}

// NewServer builds a Server.
func NewServer(serverType ServerType, backend BackendType, hostname Hostname) Server {
	return Server{Type: serverType, Backend: backend, Hostname: hostname}
}

func (s Server) String() string {
	return fmt.Sprintf("%s (%s, %s)", s.Hostname, s.Type, s.Backend)
}

// ValidateSelfDescription checks the server's role against the replica list
// of its self-description.
func (s Server) ValidateSelfDescription(doc RepositoriesJSON) error {
	hasReplicas := len(doc.Replicas) > 0
	switch {
	case s.Type == ServerTypePrimary && hasReplicas:
		return fmt.Errorf("%w: %s is a %s, but replicas were found in the repositories.json",
			ErrServerTypeMismatch, s.Hostname, s.Type.Label())
	case s.Type == ServerTypeReplica && !hasReplicas, s.Type == ServerTypeSyncOnly && !hasReplicas:
		return fmt.Errorf("%w: %s is a %s, but no replicas were found in the repositories.json",
			ErrServerTypeMismatch, s.Hostname, s.Type.Label())
	}
	return nil
}
