package cvmfs

import "fmt"

// PopulatedRepository is one successfully scraped repository.
type PopulatedRepository struct {
	Name     string       `json:"name"`
	Manifest Manifest     `json:"manifest"`
	Status   StatusRecord `json:"status"`
}

// Revision is the manifest's revision number.
func (r PopulatedRepository) Revision() int32 {
	return r.Manifest.Revision
}

// ScrapedServer is the outcome of scraping one server: either a
// *PopulatedServer or a *FailedServer, never both.
type ScrapedServer interface {
	Server() Server
	scrapedServer()
}

// PopulatedServer is a complete snapshot of one server.
type PopulatedServer struct {
	Identity        Server                `json:"server"`
	BackendDetected BackendType           `json:"backend_detected"`
	Repositories    []PopulatedRepository `json:"repositories"`
	Metadata        ServerMetadata        `json:"metadata"`
	Geoapi          GeoapiQuery           `json:"geoapi"`
}

// FailedServer carries the cause of a failed scrape.
type FailedServer struct {
	Identity Server `json:"server"`
	Err      error  `json:"-"`
}

// Server returns the scraped server's identity.
func (p *PopulatedServer) Server() Server { return p.Identity }

// Server returns the scraped server's identity.
func (f *FailedServer) Server() Server { return f.Identity }

func (*PopulatedServer) scrapedServer() {}
func (*FailedServer) scrapedServer()    {}

// HasRepository reports whether name was scraped.
func (p *PopulatedServer) HasRepository(name string) bool {
	for _, r := range p.Repositories {
		if r.Name == name {
			return true
		}
	}
	return false
}

func (f *FailedServer) Error() string {
	return fmt.Sprintf("%s: %v", f.Identity.Hostname, f.Err)
}

func (f *FailedServer) Unwrap() error {
	return f.Err
}

// IsPopulated reports whether s is a *PopulatedServer.
func IsPopulated(s ScrapedServer) bool {
	_, ok := s.(*PopulatedServer)
	return ok
}

// AsPopulated returns the populated variant or an error naming the failed host.
func AsPopulated(s ScrapedServer) (*PopulatedServer, error) {
	if p, ok := s.(*PopulatedServer); ok {
		return p, nil
	}
	return nil, fmt.Errorf("%s is a failed server", s.Server().Hostname)
}

// AsFailed returns the failed variant or an error naming the populated host.
func AsFailed(s ScrapedServer) (*FailedServer, error) {
	if f, ok := s.(*FailedServer); ok {
		return f, nil
	}
	return nil, fmt.Errorf("%s is a populated server", s.Server().Hostname)
}
