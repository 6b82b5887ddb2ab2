package main

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"vpnprofile/internal/logger"
	"vpnprofile/internal/metrics"
	"vpnprofile/internal/prober"
)

var flagWrite bool

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check which connecting domains accept connections",
	Long: `Dials every connecting domain in the catalog over TCP and reports which
ones answered. With --write the results are stored as the domains' online
status in the catalog file.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpen(ctx)
		defer a.Close()

		smart, err := a.Policy.SmartProtocols(ctx)
		if err != nil {
			logger.Log.Fatalf("Failed to read smart protocols: %v", err)
		}
		targets := prober.Targets(a.Catalog.Servers(), smart)
		if len(targets) == 0 {
			logger.Log.Warn("No domains to probe.")
			return
		}

		cfg := a.Config.Prober
		mc := metrics.New()
		p, err := prober.New(cfg, mc)
		if err != nil {
			logger.Log.Fatalf("Failed to set up prober: %v", err)
		}

		logger.Log.Infof("Probing %d domains with %d workers...", len(targets), cfg.WorkerCount)
		bar := progressbar.NewOptions(len(targets),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWidth(15),
			progressbar.OptionSetDescription("[cyan]Probing...[reset]"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)

		var alive atomic.Int32
		outcomes := p.Run(ctx, targets, func(o prober.Outcome) {
			if o.Reachable {
				bar.Describe(fmt.Sprintf("[cyan]Reachable: %d[reset]", alive.Add(1)))
			}
			bar.Add(1)
		})
		bar.Finish()
		fmt.Fprintln(os.Stderr)

		logger.Log.Infof("Reachable: %d/%d", alive.Load(), len(targets))
		mc.PrintReport(os.Stdout, cfg.Timeout, cfg.Retries)

		if ctx.Err() != nil {
			logger.Log.Warn("Probe interrupted, catalog left unchanged.")
			return
		}
		if flagWrite {
			n := prober.Apply(a.Catalog, outcomes)
			if err := a.Catalog.Save(a.Config.Catalog.Path); err != nil {
				logger.Log.Fatalf("Failed to save catalog: %v", err)
			}
			logger.Log.Infof("Updated %d domains in %s", n, a.Config.Catalog.Path)
		}
	},
}

func init() {
	probeCmd.Flags().BoolVar(&flagWrite, "write", false, "Store results as online status in the catalog")
	rootCmd.AddCommand(probeCmd)
}
