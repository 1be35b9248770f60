package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"pingwatch/internal/adapter"
	"pingwatch/internal/browse"
	"pingwatch/internal/config"
	"pingwatch/internal/domain"
	"pingwatch/internal/preflight"
	"pingwatch/internal/state"
)

type browseOptions struct {
	iface  string
	start  string
	length uint
	save   bool
}

func newBrowseCmd(a *app) *cobra.Command {
	opts := &browseOptions{}
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Sweep a subnet once for responsive hosts",
		Long: `Sweep the subnet of an interface, or an explicit range, and list the hosts
that answered. Configured devices are left out. With --save the new hosts are
appended to the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return a.browse(ctx, opts, cmd.Flags().Changed("length"))
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.iface, "interface", "i", "", "interface name or address (default: first external IPv4)")
	flags.StringVar(&opts.start, "start", "", "first address of an explicit range")
	flags.UintVar(&opts.length, "length", 0, "number of addresses in the explicit range")
	flags.BoolVar(&opts.save, "save", false, "append detected hosts to the config file")
	return cmd
}

func (a *app) browse(ctx context.Context, opts *browseOptions, hasLength bool) error {
	rng := domain.BrowseRange{RangeStart: opts.start}
	if hasLength {
		rng.RangeLength = &opts.length
	}
	explicit := rng.RangeStart != "" || rng.RangeLength != nil

	iface, err := pickInterface(ctx, opts.iface)
	if err != nil && (!explicit || opts.iface != "") {
		return err
	}
	rng.IP, rng.Netmask = iface.IP, iface.Netmask

	prober := a.prober()
	report := a.preflight(ctx, prober)
	report.Log(a.log)
	if !report.OK(preflight.CheckPing) {
		pterm.Warning.Println("ping not available, hosts will not be detected")
	}

	store := state.NewMemory()
	ids := domain.NewBrowseIDs(a.cfg.Namespace)
	sopts := []browse.Option{
		browse.WithProbeConfig(a.probeConfig()),
		browse.WithLogger(a.log),
	}
	if e := newEnricher(ctx, a.cfg, a.log, report.OK(preflight.CheckRawICMP)); e != nil {
		sopts = append(sopts, browse.WithEnricher(e))
	}
	sweeper := browse.New(prober, store, a.cfg.Namespace, sopts...)
	sweeper.SetStatic(configuredAddresses(a.cfg))

	spinner, _ := pterm.DefaultSpinner.Start("browsing " + describeRange(iface, rng))
	unsub := store.Subscribe(ids.Status, func(st state.State) {
		if text, ok := state.String(&st); ok && text != "" && spinner != nil {
			spinner.UpdateText("browsing " + text)
		}
	})
	hosts, err := sweeper.Run(ctx, browse.Request{Range: rng, Manual: true})
	unsub()
	if err != nil {
		if spinner != nil {
			spinner.Fail(err.Error())
		}
		return err
	}
	if spinner != nil {
		spinner.Success(fmt.Sprintf("%d hosts detected", len(hosts)))
	}

	if len(hosts) > 0 {
		data := pterm.TableData{{"Address", "MAC", "Vendor"}}
		for _, h := range hosts {
			data = append(data, []string{h.IP, orDash(h.MAC), orDash(h.Vendor)})
		}
		if err := pterm.DefaultTable.WithHasHeader(true).WithData(data).Render(); err != nil {
			return fmt.Errorf("render table: %w", err)
		}
	}

	if opts.save {
		return a.saveDetected(hosts)
	}
	return nil
}

func (a *app) saveDetected(hosts []domain.DetectedHost) error {
	path := a.cfgPath
	if path == "" {
		path = config.DefaultConfigPath()
		if err := config.EnsureConfigDir(path); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	added := a.cfg.AddDevices(hosts)
	if added == 0 {
		pterm.Info.Println("no new devices to save")
		return nil
	}
	if err := a.cfg.Save(path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	pterm.Success.Printfln("added %d devices to %s", added, path)
	return nil
}

func pickInterface(ctx context.Context, key string) (domain.HostInterface, error) {
	ifaces, err := adapter.NewInventory().HostInterfaces(ctx)
	if err != nil {
		return domain.HostInterface{}, fmt.Errorf("list interfaces: %w", err)
	}
	if key != "" {
		if iface, ok := adapter.FindInterface(ifaces, key); ok {
			return iface, nil
		}
		return domain.HostInterface{}, fmt.Errorf("no interface %q", key)
	}
	if iface, ok := adapter.DefaultInterface(ifaces); ok {
		return iface, nil
	}
	return domain.HostInterface{}, fmt.Errorf("no usable network interface")
}

func configuredAddresses(cfg *config.Config) []string {
	out := make([]string, 0, len(cfg.Devices))
	for _, d := range cfg.Devices {
		out = append(out, d.IP)
	}
	return out
}

func describeRange(iface domain.HostInterface, rng domain.BrowseRange) string {
	if rng.RangeStart != "" {
		return "from " + rng.RangeStart
	}
	if iface.Name != "" {
		return iface.Name + " (" + iface.IP + "/" + iface.Netmask + ")"
	}
	return iface.IP
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
