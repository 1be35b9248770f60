package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"pingwatch/internal/adapter"
)

func newInterfacesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interfaces",
		Short: "List network interfaces usable for browsing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ifaces, err := adapter.NewInventory().HostInterfaces(cmd.Context())
			if err != nil {
				return fmt.Errorf("list interfaces: %w", err)
			}
			def, hasDefault := adapter.DefaultInterface(ifaces)

			data := pterm.TableData{{"Name", "Address", "Netmask", "Family", ""}}
			for _, i := range ifaces {
				mark := ""
				switch {
				case hasDefault && i == def:
					mark = "default"
				case i.Internal:
					mark = "internal"
				}
				data = append(data, []string{i.Name, i.IP, i.Netmask, i.Family, mark})
			}
			return pterm.DefaultTable.WithHasHeader(true).WithData(data).Render()
		},
	}
}
