package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/qos-sim/qos-sim/sim/report"
	"github.com/qos-sim/qos-sim/sim/scenario"
)

func newRoutesCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Build a scenario and print its routing tables without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := scenario.Resolve(v.GetString("scenario"))
			if err != nil {
				return err
			}
			sc, err := scenario.Build(cfg, scenario.Options{})
			if err != nil {
				return err
			}
			defer sc.Close()
			sc.PrintRoutes(cmd.OutOrStdout())
			return nil
		},
	}
	addScenarioFlag(cmd)
	return cmd
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the built-in scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetBorder(false)
			table.SetAutoWrapText(false)
			table.SetHeader([]string{"NAME", "DURATION", "DESCRIPTION"})
			for _, name := range scenario.PresetNames() {
				cfg, err := scenario.Preset(name)
				if err != nil {
					return err
				}
				table.Append([]string{name, cfg.Duration.String(), strings.Join(strings.Fields(cfg.Description), " ")})
			}
			table.Render()
			return nil
		},
	}
}

func newRunsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List runs stored in a report database, or show one run's groups",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := v.GetString("report-db")
			if path == "" {
				return fmt.Errorf("--report-db is required")
			}
			store, err := report.OpenStore(path)
			if err != nil {
				return err
			}
			defer store.Close()
			ctx := context.Background()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				groups, err := store.Groups(ctx, args[0])
				if err != nil {
					return err
				}
				table := tablewriter.NewWriter(out)
				table.SetBorder(false)
				table.SetHeader([]string{"GROUP", "TX", "RX", "LOSS %", "DELAY ms", "JITTER ms", "THROUGHPUT Mbps"})
				for _, g := range groups {
					table.Append([]string{
						g.Name,
						strconv.FormatUint(g.TxPackets, 10),
						strconv.FormatUint(g.RxPackets, 10),
						strconv.FormatFloat(g.LossPercent, 'f', 2, 64),
						strconv.FormatFloat(g.AvgDelayMs, 'f', 2, 64),
						strconv.FormatFloat(g.AvgJitterMs, 'f', 2, 64),
						strconv.FormatFloat(g.ThroughputMbps, 'f', 2, 64),
					})
				}
				table.Render()
				return nil
			}

			runs, err := store.Runs(ctx, v.GetString("scenario"))
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(out)
			table.SetBorder(false)
			table.SetHeader([]string{"RUN", "SCENARIO", "SEED", "CREATED", "EVENTS"})
			for _, r := range runs {
				table.Append([]string{
					r.ID,
					r.Scenario,
					strconv.FormatInt(r.Seed, 10),
					r.CreatedAt.Format("2006-01-02 15:04:05"),
					strconv.FormatUint(r.Executed, 10),
				})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().String("report-db", "", "SQLite database written by run --report-db")
	cmd.Flags().String("scenario", "", "Only list runs of this scenario")
	return cmd
}
