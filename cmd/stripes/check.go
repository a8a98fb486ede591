package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/stripes-go/stripes/internal/config"
	"github.com/stripes-go/stripes/internal/errors"
	"github.com/stripes-go/stripes/internal/utils"
	"github.com/stripes-go/stripes/pkg/stripes/controller"
)

func newCheckCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration, bindings and validation rules without serving",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := opts.logger(cmd)
			diagnostics := opts.diagnostics(cmd)
			diagnostics.Section("Checking configuration")

			cfg, err := config.Load(logger, opts.envFiles...)
			if err != nil {
				return err
			}
			if cfg.Dispatch.EncryptionKey == "" {
				diagnostics.Warn("STRIPES_ENCRYPTION_KEY is unset; encrypted form fields will not survive a restart")
			}

			registry, err := demoRegistry(logger)
			if err != nil {
				return err
			}

			problems := 0
			problems += reportConflicts(diagnostics, registry)
			problems += reportRuleEvents(diagnostics, registry)

			interceptors, err := interceptorRegistry(logger, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			stackConfig, err := loadStackConfig(cfg)
			if err != nil {
				return err
			}
			if _, err := interceptors.Build(stackConfig, logger); err != nil {
				diagnostics.Error("interceptor stacks: %v", err)
				problems++
			}

			if problems > 0 {
				return errors.Newf(errors.ConfigurationErrorCode, "%d problem(s) found", problems)
			}
			diagnostics.Success("%d action bean(s) checked, no problems found", len(registry.Beans()))
			return nil
		},
	}
}

// reportConflicts lists paths claimed by more than one bean
func reportConflicts(diagnostics *utils.DiagnosticSystem, registry *controller.Registry) int {
	conflicts := registry.Conflicts()
	paths := make([]string, 0, len(conflicts))
	for path := range conflicts {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		diagnostics.Error("binding %s is claimed by %s", path, strings.Join(conflicts[path], ", "))
	}
	return len(paths)
}

// reportRuleEvents flags validation rules and methods restricted to events
// the bean does not handle
func reportRuleEvents(diagnostics *utils.DiagnosticSystem, registry *controller.Registry) int {
	problems := 0
	unknown := func(b *controller.Bean, owner string, events []string) {
		for _, event := range events {
			event = strings.TrimPrefix(event, "!")
			if !b.Handles(event) {
				diagnostics.Error("%s: %s names unknown event %q", b.Name, owner, event)
				problems++
			}
		}
	}

	for _, b := range registry.Beans() {
		for _, property := range b.Properties() {
			if m, ok := b.Metadata(property); ok {
				unknown(b, "rule for "+property, m.On)
			}
		}
		for _, m := range b.ValidationMethods() {
			unknown(b, fmt.Sprintf("validation method %s", m.Name), m.On)
		}
		diagnostics.Verbose("%s: %d rule(s), %d validation method(s)", b.Name, len(b.Properties()), len(b.ValidationMethods()))
	}
	return problems
}
