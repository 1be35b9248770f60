package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pingwatch/internal/domain"
)

func newPingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping HOST...",
		Short: "Probe hosts once and print the result",
		Long: `Probe each HOST once. A HOST is an IPv4 or IPv6 address, a hostname, or
host:port to test a TCP port instead of ICMP.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.ping(cmd.Context(), args)
			if err != nil {
				return err
			}
			return printResults(results)
		},
	}
}

// ping probes every address concurrently, keeping argument order
func (a *app) ping(ctx context.Context, addresses []string) ([]domain.ProbeResult, error) {
	prober := a.prober()
	cfg := a.probeConfig()
	results := make([]domain.ProbeResult, len(addresses))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)
	for i, addr := range addresses {
		g.Go(func() error {
			res, err := prober.Probe(gctx, strings.TrimSpace(addr), cfg)
			if err != nil {
				return fmt.Errorf("%s: %w", addr, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func printResults(results []domain.ProbeResult) error {
	data := pterm.TableData{{"Host", "Alive", "Latency"}}
	down := 0
	for _, r := range results {
		alive, latency := pterm.Green("yes"), "-"
		if !r.Alive {
			alive = pterm.Red("no")
			down++
		}
		if r.LatencyMs != nil {
			latency = fmt.Sprintf("%.2f ms", *r.LatencyMs)
		}
		data = append(data, []string{r.Host, alive, latency})
	}
	if err := pterm.DefaultTable.WithHasHeader(true).WithData(data).Render(); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	if down > 0 {
		pterm.Warning.Printfln("%d of %d hosts unreachable", down, len(results))
	}
	return nil
}
