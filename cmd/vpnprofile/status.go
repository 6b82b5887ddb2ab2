package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"vpnprofile/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored state and catalog statistics",
	Long:  `Displays a dashboard of the database, saved profiles, the default profile, catalog size and the protocols enabled for smart selection.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpen(cmd.Context())
		defer a.Close()
		cfg := a.Config

		var storedDocs int64
		a.DB.Model(&model.StorageEntry{}).Count(&storedDocs)

		dbSize := getFileSize(cfg.Database.Path)
		walSize := getFileSize(cfg.Database.Path + "-wal")

		list := a.Profiles.SavedProfiles()
		def := a.Profiles.DefaultOrFastest()
		ref := a.Settings.DefaultProfileID()

		servers := a.Catalog.Servers()
		var domainCount, onlineDomains int
		countryCounts := make(map[string]int)
		for _, s := range servers {
			domainCount += len(s.Domains)
			for _, d := range s.Domains {
				if d.Online {
					onlineDomains++
				}
			}
			if s.ExitCountry != "" {
				countryCounts[s.ExitCountry]++
			}
		}
		countries := make([]string, 0, len(countryCounts))
		for cc := range countryCounts {
			countries = append(countries, cc)
		}
		sort.Slice(countries, func(i, j int) bool {
			if countryCounts[countries[i]] != countryCounts[countries[j]] {
				return countryCounts[countries[i]] > countryCounts[countries[j]]
			}
			return countries[i] < countries[j]
		})
		if len(countries) > 5 {
			countries = countries[:5]
		}

		smart, err := a.Policy.SmartProtocols(cmd.Context())
		var smartNames []string
		for _, s := range smart {
			smartNames = append(smartNames, s.String())
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

		fmt.Println("\n\033[1mVPNPROFILE STATUS\033[0m")
		fmt.Println("────────────────────────────────────────")

		fmt.Fprintln(w, "\033[1;36m[ STORAGE ]\033[0m\t")
		fmt.Fprintf(w, "  Database Path:\t%s\n", cfg.Database.Path)
		fmt.Fprintf(w, "  DB Size:\t%s\n", formatBytes(dbSize))
		if walSize > 0 {
			fmt.Fprintf(w, "  WAL Size:\t%s (pending checkpoint)\n", formatBytes(walSize))
		}
		fmt.Fprintf(w, "  Stored Documents:\t%d\n", storedDocs)
		fmt.Fprintln(w, "\t")

		fmt.Fprintln(w, "\033[1;36m[ PROFILES ]\033[0m\t")
		fmt.Fprintf(w, "  Saved:\t%d\n", len(list))
		fmt.Fprintf(w, "  Default:\t%s (%s)\n", def.DisplayName(), def.Wrapper)
		if !ref.Valid {
			fmt.Fprintln(w, "  \t(no explicit default, using first profile)")
		}
		fmt.Fprintln(w, "\t")

		fmt.Fprintln(w, "\033[1;36m[ CATALOG ]\033[0m\t")
		fmt.Fprintf(w, "  Servers:\t%d\n", len(servers))
		fmt.Fprintf(w, "  Domains Online:\t%d/%d\n", onlineDomains, domainCount)
		for _, cc := range countries {
			fmt.Fprintf(w, "  %s %s:\t%d\n", getFlagEmoji(cc), cc, countryCounts[cc])
		}
		fmt.Fprintln(w, "\t")

		fmt.Fprintln(w, "\033[1;36m[ SMART PROTOCOLS ]\033[0m\t")
		switch {
		case err != nil:
			fmt.Fprintf(w, "  unavailable: %v\n", err)
		case len(smartNames) == 0:
			fmt.Fprintln(w, "  (none enabled, any protocol accepted)")
		default:
			fmt.Fprintf(w, "  Order:\t%s\n", strings.Join(smartNames, ", "))
		}

		w.Flush()
		fmt.Println("")
	},
}

func getFileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func getFlagEmoji(countryCode string) string {
	if len(countryCode) != 2 {
		return "🌐"
	}
	countryCode = strings.ToUpper(countryCode)
	return string(rune(countryCode[0])+127397) + string(rune(countryCode[1])+127397)
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
