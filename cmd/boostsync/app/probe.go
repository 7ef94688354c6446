package app

import (
	"context"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/stacklok/boostsync/internal/app"
	"github.com/stacklok/boostsync/internal/vanity"
)

var probeCmd = &cobra.Command{
	Use:   "probe [code...]",
	Short: "Look up vanity codes once and print the result",
	Long: `Look up each vanity code once against the invite endpoint and print a table
of observations. Codes default to vanity.codes from the configuration file.
No trackers are updated and no notifications are sent.`,
	RunE: runProbe,
}

// probeResult is one row of the probe table
type probeResult struct {
	Code        string
	Observation vanity.Observation
	Err         error
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, creds, err := loadConfiguration()
	if err != nil {
		return err
	}

	codes := args
	if len(codes) == 0 {
		codes = cfg.Vanity.Codes
	}
	if len(codes) == 0 {
		return fmt.Errorf("no vanity codes given and none configured")
	}

	results := probeCodes(contextOrBackground(cmd), app.NewProber(cfg, creds.Token), codes)
	return renderProbeResults(cmd.OutOrStdout(), results)
}

func probeCodes(ctx context.Context, prober vanity.Prober, codes []string) []probeResult {
	results := make([]probeResult, 0, len(codes))
	for _, code := range codes {
		obs, err := prober.Probe(ctx, code)
		results = append(results, probeResult{Code: code, Observation: obs, Err: err})
	}
	return results
}

func renderProbeResults(w io.Writer, results []probeResult) error {
	table := tablewriter.NewWriter(w)
	table.Header("Code", "Observation", "Error")

	for _, r := range results {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		if err := table.Append(r.Code, string(r.Observation), errText); err != nil {
			return fmt.Errorf("failed to add row for %s: %w", r.Code, err)
		}
	}

	return table.Render()
}
