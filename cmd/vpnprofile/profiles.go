package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"vpnprofile/internal/logger"
	"vpnprofile/internal/profiles"
)

var (
	flagName        string
	flagType        string
	flagCountry     string
	flagServer      string
	flagSecureCore  bool
	flagMakeDefault bool
	flagClear       bool
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List and edit saved profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show saved profiles",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpen(cmd.Context())
		defer a.Close()

		def := a.Profiles.DefaultOrFastest()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\tID\tNAME\tTARGET")
		for _, p := range a.Profiles.SavedProfiles() {
			mark := ""
			if p.Same(def) {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mark, p.ID, p.DisplayName(), p.Wrapper)
		}
		w.Flush()
	},
}

var profilesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Save a new profile",
	Example: `  vpnprofile profiles add --name work --type fastest-in-country --country CH
  vpnprofile profiles add --type direct --server ch-12 --default`,
	Run: func(cmd *cobra.Command, args []string) {
		wrapper, err := wrapperFromFlags()
		if err != nil {
			logger.Log.Fatalf("Invalid profile: %v", err)
		}

		a := mustOpen(cmd.Context())
		defer a.Close()

		p := profiles.NewProfile(flagName, wrapper)
		if err := a.Profiles.AddOrUpdate(cmd.Context(), p); err != nil {
			logger.Log.Fatalf("Failed to save profile: %v", err)
		}
		if flagMakeDefault {
			if err := a.Profiles.SetDefault(cmd.Context(), p.ID); err != nil {
				logger.Log.Fatalf("Failed to set default: %v", err)
			}
		}
		logger.Log.Infof("Saved profile %s (%s)", p.ID, p.DisplayName())
	},
}

var profilesDeleteCmd = &cobra.Command{
	Use:   "delete <profile-id>",
	Short: "Remove a saved profile",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpen(cmd.Context())
		defer a.Close()

		p, err := findProfile(a.Profiles, args[0])
		if err != nil {
			logger.Log.Fatal(err)
		}
		if err := a.Profiles.Delete(cmd.Context(), p); err != nil {
			logger.Log.Fatalf("Failed to delete profile: %v", err)
		}
		logger.Log.Infof("Deleted profile %s", p.DisplayName())
	},
}

var profilesDefaultCmd = &cobra.Command{
	Use:   "default [profile-id]",
	Short: "Show or change the default profile",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpen(cmd.Context())
		defer a.Close()

		switch {
		case flagClear:
			if err := a.Profiles.ClearDefault(cmd.Context()); err != nil {
				logger.Log.Fatalf("Failed to clear default: %v", err)
			}
		case len(args) == 1:
			p, err := findProfile(a.Profiles, args[0])
			if err != nil {
				logger.Log.Fatal(err)
			}
			if err := a.Profiles.SetDefault(cmd.Context(), p.ID); err != nil {
				logger.Log.Fatalf("Failed to set default: %v", err)
			}
		}

		p := a.Profiles.DefaultOrFastest()
		fmt.Printf("%s\t%s\t%s\n", p.ID, p.DisplayName(), p.Wrapper)
	},
}

func wrapperFromFlags() (profiles.ServerWrapper, error) {
	typ, legacySC, ok := profiles.ParseProfileType(strings.ReplaceAll(flagType, "-", "_"))
	if !ok {
		return profiles.ServerWrapper{}, fmt.Errorf("unknown type %q", flagType)
	}

	var w profiles.ServerWrapper
	switch typ {
	case profiles.TypeFastest:
		w = profiles.MakeFastest()
	case profiles.TypeRandom:
		w = profiles.MakeRandom()
	case profiles.TypeFastestInCountry:
		w = profiles.MakeFastestForCountry(flagCountry)
	case profiles.TypeRandomInCountry:
		w = profiles.MakeRandomForCountry(flagCountry)
	case profiles.TypeDirect:
		w = profiles.MakeWithServer(flagServer)
	}
	if flagSecureCore || legacySC {
		w = w.SecureCoreVariant()
	}
	return w, w.Validate()
}

var errAmbiguous = errors.New("ambiguous profile id prefix")

// findProfile accepts a full id or a unique prefix of one.
func findProfile(m *profiles.Manager, arg string) (profiles.Profile, error) {
	if id, err := uuid.Parse(arg); err == nil {
		if p, ok := m.FindByID(id); ok {
			return p, nil
		}
		return profiles.Profile{}, fmt.Errorf("%w: %s", profiles.ErrProfileNotFound, arg)
	}

	var found []profiles.Profile
	for _, p := range m.SavedProfiles() {
		if strings.HasPrefix(p.ID.String(), strings.ToLower(arg)) {
			found = append(found, p)
		}
	}
	switch len(found) {
	case 0:
		return profiles.Profile{}, fmt.Errorf("%w: %s", profiles.ErrProfileNotFound, arg)
	case 1:
		return found[0], nil
	}
	return profiles.Profile{}, fmt.Errorf("%w: %s", errAmbiguous, arg)
}

func init() {
	profilesAddCmd.Flags().StringVar(&flagName, "name", "", "Display name")
	profilesAddCmd.Flags().StringVar(&flagType, "type", "fastest", "fastest, random, fastest-in-country, random-in-country or direct")
	profilesAddCmd.Flags().StringVar(&flagCountry, "country", "", "Exit country code for the in-country types")
	profilesAddCmd.Flags().StringVar(&flagServer, "server", "", "Server id for the direct type")
	profilesAddCmd.Flags().BoolVar(&flagSecureCore, "secure-core", false, "Use the secure-core variant")
	profilesAddCmd.Flags().BoolVar(&flagMakeDefault, "default", false, "Make the new profile the default")
	profilesDefaultCmd.Flags().BoolVar(&flagClear, "clear", false, "Remove the default reference")

	profilesCmd.AddCommand(profilesListCmd, profilesAddCmd, profilesDeleteCmd, profilesDefaultCmd)
	rootCmd.AddCommand(profilesCmd)
}
