// Package app opens the durable state and catalog a command works with.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gorm.io/gorm"

	"vpnprofile/internal/config"
	"vpnprofile/internal/db"
	"vpnprofile/internal/domains"
	"vpnprofile/internal/geoip"
	"vpnprofile/internal/logger"
	"vpnprofile/internal/profiles"
	"vpnprofile/internal/protocol"
	"vpnprofile/internal/servers"
	"vpnprofile/internal/settings"
)

// ErrNoDomain is returned when the resolved server has no domain usable
// with the requested protocol.
var ErrNoDomain = errors.New("no connecting domain available")

type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Settings *settings.Manager
	Profiles *profiles.Manager
	Catalog  *servers.Catalog
	Policy   protocol.PolicySource
	Resolver *domains.Resolver
	// Geo is nil when no GeoIP database is configured.
	Geo *geoip.Locator
}

// Open connects to the database, loads settings and profiles, and reads
// the server catalog. A missing catalog file gives an empty catalog.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.For("app")

	database, err := db.Connect(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database); err != nil {
		db.Close(database)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	st, err := settings.Load(ctx, database)
	if err != nil {
		db.Close(database)
		return nil, err
	}

	store := db.NewKeyValueStore(database)
	countries := cfg.Profiles.DefaultCountries
	saved, writeBack := profiles.LoadProfiles(ctx, store, func() profiles.SavedProfiles {
		return profiles.DefaultProfiles(countries...)
	})

	catalog, err := servers.LoadCatalog(cfg.Catalog.Path)
	if errors.Is(err, os.ErrNotExist) {
		log.Warnf("Catalog %s not found, starting with no servers", cfg.Catalog.Path)
		catalog = servers.NewCatalog(nil)
	} else if err != nil {
		db.Close(database)
		return nil, err
	}

	a := &App{
		Config:   cfg,
		DB:       database,
		Settings: st,
		Profiles: profiles.NewManager(saved, st, store),
		Catalog:  catalog,
		Policy:   protocol.NewConfigPolicy(cfg.SmartProtocols),
	}
	a.Resolver = domains.NewResolver(a.Policy)

	if writeBack {
		if err := a.Profiles.Persist(ctx); err != nil {
			log.Warnf("Profiles not saved yet, ids may change on restart: %v", err)
		}
	}

	if cfg.GeoIP.ASNPath != "" || cfg.GeoIP.CountryPath != "" {
		geo, err := geoip.Open(cfg.GeoIP.ASNPath, cfg.GeoIP.CountryPath)
		if err != nil {
			log.Warnf("GeoIP disabled: %v", err)
		} else {
			a.Geo = geo
			if n := catalog.FillCountries(geo.Country); n > 0 {
				log.Debugf("Filled exit country of %d servers from GeoIP", n)
			}
		}
	}

	log.Debugf("Loaded %d profiles and %d servers", len(a.Profiles.SavedProfiles()), len(catalog.Servers()))
	return a, nil
}

// Close retries any profile write that failed earlier and releases the
// database.
func (a *App) Close() {
	if err := a.Profiles.Flush(context.Background()); err != nil {
		logger.For("app").Warnf("Unsaved profile changes: %v", err)
	}
	if a.Geo != nil {
		a.Geo.Close()
	}
	db.Close(a.DB)
}

// Target is a profile resolved down to the endpoint a tunnel would use.
type Target struct {
	Profile  profiles.Profile
	Server   servers.Server
	Domain   servers.ConnectingDomain
	Protocol protocol.Selection
}

// Address is the ip the tunnel dials for Protocol.
func (t Target) Address() string {
	return t.Domain.EntryIPFor(t.Protocol)
}

// ResolveProfile maps p to a server through the catalog and picks one of
// its connecting domains. sel may be nil to let the smart policy decide.
func (a *App) ResolveProfile(ctx context.Context, p profiles.Profile, sel *protocol.Selection) (Target, error) {
	server, ok := a.Catalog.ServerFor(p.Wrapper)
	if !ok {
		return Target{}, fmt.Errorf("%s: %w", p.Wrapper, servers.ErrServerNotFound)
	}

	res := <-a.Resolver.ResolveAsync(ctx, server, sel)
	if res.Err != nil {
		return Target{}, res.Err
	}
	if !res.Found {
		return Target{}, fmt.Errorf("%s: %w", server.Name, ErrNoDomain)
	}

	chosen := protocol.Smart
	if sel != nil && !sel.IsSmart() {
		chosen = *sel
	} else {
		smart, err := a.Policy.SmartProtocols(ctx)
		if err != nil {
			return Target{}, err
		}
		for _, s := range smart {
			if res.Domain.SupportsProtocol(s) {
				chosen = s
				break
			}
		}
	}

	return Target{Profile: p, Server: server, Domain: res.Domain, Protocol: chosen}, nil
}
