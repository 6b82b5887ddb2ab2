package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"vpnprofile/internal/logger"
	"vpnprofile/internal/protocol"
)

var flagProtocol string

var connectCmd = &cobra.Command{
	Use:   "connect [profile-id]",
	Short: "Resolve a profile to the endpoint a tunnel would connect to",
	Long: `Resolves the given profile (or the default one) to a server from the
catalog and picks one of its connecting domains. No tunnel is started.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sel, err := protocol.Parse(flagProtocol)
		if err != nil {
			logger.Log.Fatal(err)
		}

		a := mustOpen(cmd.Context())
		defer a.Close()

		p := a.Profiles.DefaultOrFastest()
		if len(args) == 1 {
			if p, err = findProfile(a.Profiles, args[0]); err != nil {
				logger.Log.Fatal(err)
			}
		}

		target, err := a.ResolveProfile(cmd.Context(), p, &sel)
		if err != nil {
			logger.Log.Fatalf("Cannot connect %s: %v", p.DisplayName(), err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Profile:\t%s (%s)\n", target.Profile.DisplayName(), target.Profile.Wrapper)
		fmt.Fprintf(w, "Server:\t%s %s %s\n", getFlagEmoji(target.Server.ExitCountry), target.Server.Name, target.Server.City)
		fmt.Fprintf(w, "Domain:\t%s\n", target.Domain.EntryDomain)
		fmt.Fprintf(w, "Address:\t%s:%d\n", target.Address(), target.Protocol.Port())
		fmt.Fprintf(w, "Protocol:\t%s\n", target.Protocol)
		if !target.Domain.Online {
			fmt.Fprintln(w, "Status:\tlast known offline")
		}
		if a.Geo != nil {
			if geo, err := a.Geo.Lookup(target.Address()); err == nil && geo.ISP != "" {
				fmt.Fprintf(w, "Network:\t%s\n", geo.ISP)
			}
		}
		w.Flush()
	},
}

func init() {
	connectCmd.Flags().StringVar(&flagProtocol, "protocol", "smart", "smart, wireguard-udp, wireguard-tcp, wireguard-tls, openvpn-udp or openvpn-tcp")
	rootCmd.AddCommand(connectCmd)
}
