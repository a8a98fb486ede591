package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/stripes-go/stripes/pkg/stripes/controller"
)

func newRoutesCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List URL bindings and the events each bean handles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := demoRegistry(opts.logger(cmd))
			if err != nil {
				return err
			}
			diagnostics := opts.diagnostics(cmd)
			diagnostics.Section("Routes")
			diagnostics.Table(routeRows(registry))
			return nil
		},
	}
}

// routeRows renders one row per bean event; the first row is the header
func routeRows(registry *controller.Registry) [][]string {
	rows := [][]string{{"BINDING", "BEAN", "EVENT", "METHODS"}}
	for _, b := range registry.Beans() {
		for _, event := range b.Events() {
			h, err := registry.Handler(b, event)
			if err != nil {
				continue
			}

			name := event
			if h.Default {
				name += " (default)"
			}
			methods := "ANY"
			if len(h.Methods) > 0 {
				methods = strings.Join(h.Methods, ",")
			}
			if b.REST() {
				methods = strings.ToUpper(event)
			}
			rows = append(rows, []string{b.Binding.String(), b.Name, name, methods})
		}
	}
	return rows
}
