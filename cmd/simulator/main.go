// Command simulator runs one elastic optical network disaster
// simulation from a YAML scenario and writes the per-request records
// as CSV or JSON.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/logging"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/observability"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/scenario"
	"github.com/Claudiof5/simulador-EON-pre-Desastre-sub000/internal/sim"
)

var rootCmd = &cobra.Command{
	Use:   "simulator",
	Short: "Elastic optical network disaster simulator",
	Long: `simulator is a discrete-event simulator for elastic optical networks
under disaster scenarios. It routes traffic with pluggable routing and
spectrum assignment policies, fails links and nodes on a configured
disaster timeline, migrates datacenter traffic ahead of the failure,
and reports per-request outcomes.`,
	SilenceUsage: true,
}

var runFlags struct {
	scenarioPath  string
	outputPath    string
	format        string
	seed          int64
	metricsListen string
	verbose       bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulation to completion",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSimulation(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.scenarioPath, "scenario", "s", "", "scenario YAML file (required)")
	runCmd.Flags().StringVarP(&runFlags.outputPath, "output", "o", "", "record output file (default stdout)")
	runCmd.Flags().StringVarP(&runFlags.format, "format", "f", "csv", "record output format: csv or json")
	runCmd.Flags().Int64Var(&runFlags.seed, "seed", 0, "override the scenario seed")
	runCmd.Flags().StringVar(&runFlags.metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address while running")
	runCmd.Flags().BoolVarP(&runFlags.verbose, "verbose", "v", false, "debug logging")
	_ = runCmd.MarkFlagRequired("scenario")
}

func runSimulation(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logging.NewFromEnv()
	if runFlags.verbose {
		log = logging.New(logging.Config{Level: "debug", Format: os.Getenv("LOG_FORMAT")})
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	scn, err := scenario.Load(runFlags.scenarioPath)
	if err != nil {
		return err
	}
	if runFlags.seed != 0 {
		scn.Seed = runFlags.seed
	}

	collector, err := observability.NewSimCollector(nil)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if runFlags.metricsListen != "" {
		srv := &http.Server{Addr: runFlags.metricsListen, Handler: collector.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error(ctx, "metrics server failed", logging.String("error", err.Error()))
			}
		}()
		defer srv.Close()
		log.Info(ctx, "serving metrics", logging.String("addr", runFlags.metricsListen))
	}

	driver, err := sim.New(scn, sim.WithLogger(log), sim.WithCollector(collector))
	if err != nil {
		return err
	}
	res, err := driver.Run(ctx)
	if err != nil {
		return err
	}

	out := os.Stdout
	if runFlags.outputPath != "" {
		f, err := os.Create(runFlags.outputPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if err := writeRecords(out, runFlags.format, res); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "run %s: %d requests, %d accepted, %d blocked (rate %.4f), %d rerouted\n",
		res.RunID, res.Created, res.Accepted, res.Blocked, res.BlockingRate, res.Rerouted)
	isps := make([]int, 0, len(res.MigrationCompletion))
	for isp := range res.MigrationCompletion {
		isps = append(isps, isp)
	}
	sort.Ints(isps)
	for _, isp := range isps {
		fmt.Fprintf(os.Stderr, "ISP %d migration: %.1f%%\n", isp, res.MigrationCompletion[isp])
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
