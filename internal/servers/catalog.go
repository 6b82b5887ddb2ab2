package servers

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"slices"
	"strings"
	"sync"

	"vpnprofile/internal/profiles"

	"gopkg.in/yaml.v3"
)

var ErrServerNotFound = errors.New("server not found")

type catalogFile struct {
	Servers []Server `yaml:"servers"`
}

// Catalog is the set of servers currently known. It resolves a profile's
// ServerWrapper to one concrete server.
type Catalog struct {
	mu      sync.RWMutex
	servers []Server
	intn    func(int) int
}

func NewCatalog(list []Server) *Catalog {
	c := &Catalog{intn: rand.Intn}
	c.replace(list)
	return c
}

// LoadCatalog reads a YAML server list.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog yaml: %w", err)
	}
	return NewCatalog(file.Servers), nil
}

// Save writes the catalog back as YAML.
func (c *Catalog) Save(path string) error {
	c.mu.RLock()
	data, err := yaml.Marshal(catalogFile{Servers: c.servers})
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return nil
}

func (c *Catalog) replace(list []Server) {
	cleaned := make([]Server, len(list))
	for i, s := range list {
		s.ExitCountry = strings.ToUpper(s.ExitCountry)
		s.EntryCountry = strings.ToUpper(s.EntryCountry)
		s.Domains = slices.Clone(s.Domains)
		cleaned[i] = s
	}
	c.mu.Lock()
	c.servers = cleaned
	c.mu.Unlock()
}

// Servers returns a copy of every server.
func (c *Catalog) Servers() []Server {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Server, len(c.servers))
	for i, s := range c.servers {
		s.Domains = slices.Clone(s.Domains)
		out[i] = s
	}
	return out
}

func (c *Catalog) ServerByID(id string) (Server, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.servers {
		if s.ID == id {
			s.Domains = slices.Clone(s.Domains)
			return s, true
		}
	}
	return Server{}, false
}

// ServerFor returns the server w currently resolves to. Online servers are
// preferred; when none of the eligible servers is online, offline ones are
// still considered.
func (c *Catalog) ServerFor(w profiles.ServerWrapper) (Server, bool) {
	if w.Type == profiles.TypeDirect {
		s, ok := c.ServerByID(w.ServerID)
		if !ok || s.SecureCore != w.SecureCore {
			return Server{}, false
		}
		return s, true
	}

	candidates := c.filter(func(s Server) bool {
		if s.SecureCore != w.SecureCore {
			return false
		}
		switch w.Type {
		case profiles.TypeFastestInCountry, profiles.TypeRandomInCountry:
			return s.ExitCountry == w.Country
		case profiles.TypeFastest, profiles.TypeRandom:
			return true
		}
		return false
	})
	if online := onlineOnly(candidates); len(online) > 0 {
		candidates = online
	}
	if len(candidates) == 0 {
		return Server{}, false
	}

	switch w.Type {
	case profiles.TypeFastest, profiles.TypeFastestInCountry:
		return fastest(candidates), true
	case profiles.TypeRandom, profiles.TypeRandomInCountry:
		return candidates[c.intn(len(candidates))], true
	default:
		return Server{}, false
	}
}

// SetDomainOnline updates the status of a domain; it reports whether the
// domain exists.
func (c *Catalog) SetDomainOnline(domainID string, online bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.servers {
		for j := range c.servers[i].Domains {
			if c.servers[i].Domains[j].ID == domainID {
				c.servers[i].Domains[j].Online = online
				return true
			}
		}
	}
	return false
}

// FillCountries sets the exit country of servers that have none, using
// locate on the exit (or entry) ip of their domains.
func (c *Catalog) FillCountries(locate func(ip string) (string, bool)) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	filled := 0
	for i := range c.servers {
		if c.servers[i].ExitCountry != "" {
			continue
		}
		for _, d := range c.servers[i].Domains {
			ip := d.ExitIP
			if ip == "" {
				ip = d.EntryIP
			}
			if cc, ok := locate(ip); ok && cc != "" {
				c.servers[i].ExitCountry = strings.ToUpper(cc)
				filled++
				break
			}
		}
	}
	return filled
}

func (c *Catalog) filter(keep func(Server) bool) []Server {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Server
	for _, s := range c.servers {
		if keep(s) {
			s.Domains = slices.Clone(s.Domains)
			out = append(out, s)
		}
	}
	return out
}

func onlineOnly(list []Server) []Server {
	var out []Server
	for _, s := range list {
		if s.Online() {
			out = append(out, s)
		}
	}
	return out
}

// fastest picks the lowest score; ties keep catalog order.
func fastest(list []Server) Server {
	best := list[0]
	for _, s := range list[1:] {
		if s.Score < best.Score {
			best = s
		}
	}
	return best
}
