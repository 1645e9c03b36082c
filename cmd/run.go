package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/qos-sim/qos-sim/sim/report"
	"github.com/qos-sim/qos-sim/sim/scenario"
	"github.com/qos-sim/qos-sim/sim/trace"
)

func addScenarioFlag(cmd *cobra.Command) {
	cmd.Flags().String("scenario", "qos", "Preset name or path to a scenario YAML file")
}

// buildOptions reads the flags shared by run and routes.
func buildOptions(v *viper.Viper) (scenario.Options, error) {
	level := v.GetString("trace")
	if !trace.IsValidTraceLevel(level) {
		return scenario.Options{}, fmt.Errorf("invalid trace level %q (none, decisions, all)", level)
	}
	opts := scenario.Options{
		Trace:     trace.TraceConfig{Level: trace.TraceLevel(level), MaxRecords: v.GetInt("trace-max")},
		PolicyLog: !v.GetBool("no-policy-log"),
	}
	if v.IsSet("seed") {
		seed := v.GetInt64("seed")
		opts.Seed = &seed
	}
	return opts, nil
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario and print its flow report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd, v)
		},
	}
	addScenarioFlag(cmd)
	cmd.Flags().Int64("seed", 0, "Override the scenario seed")
	cmd.Flags().String("trace", "none", "Trace level (none, decisions, all)")
	cmd.Flags().Int("trace-max", 0, "Cap on stored trace records per kind (0 = unbounded)")
	cmd.Flags().Bool("no-policy-log", false, "Disable decision logging of policies marked log: true")
	cmd.Flags().Bool("print-routes", false, "Print every node's routing table before running")
	cmd.Flags().String("pcap-dir", "", "Write pcap captures of links marked capture: true to this directory")
	cmd.Flags().String("report-db", "", "Append the run to this SQLite database")
	cmd.Flags().String("metrics-out", "", "Write results as a Prometheus textfile")
	return cmd
}

func runScenario(cmd *cobra.Command, v *viper.Viper) error {
	out := cmd.OutOrStdout()
	cfg, err := scenario.Resolve(v.GetString("scenario"))
	if err != nil {
		return err
	}
	opts, err := buildOptions(v)
	if err != nil {
		return err
	}
	sc, err := scenario.Build(cfg, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := sc.Close(); err != nil {
			logrus.Warnf("closing captures: %v", err)
		}
	}()

	if dir := v.GetString("pcap-dir"); dir != "" {
		if err := sc.EnableCapture(dir); err != nil {
			return err
		}
	}
	if v.GetBool("print-routes") {
		sc.PrintRoutes(out)
	}

	logrus.Infof("running scenario %s (seed %d, duration %s)", cfg.Name, sc.Seed, cfg.Duration)
	res, err := sc.Run()
	if err != nil {
		return err
	}
	report.Print(out, res)

	if path := v.GetString("report-db"); path != "" {
		store, err := report.OpenStore(path)
		if err != nil {
			return err
		}
		defer store.Close()
		id, err := store.Save(context.Background(), res)
		if err != nil {
			return fmt.Errorf("saving run: %w", err)
		}
		fmt.Fprintf(out, "\nrun %s saved to %s\n", id, path)
	}
	if path := v.GetString("metrics-out"); path != "" {
		e := report.NewExporter()
		e.Observe(res)
		if err := e.WriteTextfile(path); err != nil {
			return err
		}
		logrus.Infof("metrics written to %s", path)
	}
	return nil
}
