package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/envpool/internal/config"
	"github.com/san-kum/envpool/internal/engine"
	"github.com/san-kum/envpool/internal/policy"
	"github.com/san-kum/envpool/internal/pool"
	"github.com/san-kum/envpool/internal/storage"
	"github.com/san-kum/envpool/internal/tui"
)

var (
	dataDir    string
	numEnvs    int
	numWorkers int
	steps      int
	dt         float64
	horizon    int
	timeoutMs  int
	seed       int64
	policyName string
	rewardName string
	configFile string
	preset     string
	plotEnv    int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "envpool",
		Short: "parallel simulation environment pool",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".envpool", "data directory")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "drive a pool and record the rollout",
		Args:  cobra.ExactArgs(1),
		RunE:  runPool,
	}
	addPoolFlags(runCmd)
	runCmd.Flags().IntVar(&steps, "steps", 1000, "orchestrator steps to run")

	liveCmd := &cobra.Command{
		Use:   "live [model]",
		Short: "drive a pool with a live monitor",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	addPoolFlags(liveCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list recorded runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot one environment's cumulative reward",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&plotEnv, "env", 0, "environment id to plot")

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, plotCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addPoolFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&numEnvs, "envs", config.DefaultNumEnvs, "number of environments")
	cmd.Flags().IntVar(&numWorkers, "workers", config.DefaultNumWorkers, "number of workers")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().IntVar(&horizon, "horizon", config.DefaultHorizon, "episode step limit (0 disables)")
	cmd.Flags().IntVar(&timeoutMs, "timeout-ms", config.DefaultTimeoutMs, "worker response budget")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	cmd.Flags().StringVar(&policyName, "policy", "random", "driving policy (random, zero, pd)")
	cmd.Flags().StringVar(&rewardName, "reward", "survival", "reward reference")
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
}

// buildConfig resolves precedence: preset, then config file, then CLI flags.
func buildConfig(cmd *cobra.Command, model string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.Model = model

	if preset != "" {
		p := config.GetPreset(model, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(model))
		}
		tmp := *p
		cfg = &tmp
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		cfg.Model = model
	}

	if cmd.Flags().Changed("envs") {
		cfg.NumEnvs = numEnvs
	}
	if cmd.Flags().Changed("workers") {
		cfg.NumWorkers = numWorkers
	}
	if cmd.Flags().Changed("dt") {
		cfg.Dt = dt
	}
	if cmd.Flags().Changed("horizon") {
		cfg.Horizon = horizon
	}
	if cmd.Flags().Changed("timeout-ms") {
		cfg.StepTimeoutMs = timeoutMs
	}
	if cmd.Flags().Changed("policy") {
		cfg.Policy = policyName
	}
	if cmd.Flags().Changed("reward") {
		cfg.Reward = rewardName
	}
	if cfg.Seed == 0 || cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}
	return cfg, nil
}

func buildPool(cfg *config.Config) (*pool.Orchestrator, policy.Policy, error) {
	orch := pool.New(engine.NewDefault(), cfg.PoolOptions())
	if err := orch.Initialize(context.Background()); err != nil {
		return nil, nil, err
	}
	pol, err := policy.New(cfg.Policy, cfg.ActionDim(), cfg.Seed)
	if err != nil {
		orch.Shutdown()
		return nil, nil, err
	}
	return orch, pol, nil
}

func runPool(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args[0])
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	orch, pol, err := buildPool(cfg)
	if err != nil {
		return err
	}
	defer orch.Shutdown()

	fmt.Printf("running %s pool: %d envs on %d workers...\n", cfg.Model, cfg.NumEnvs, cfg.NumWorkers)
	start := time.Now()

	ctx := context.Background()
	records := make([]storage.StepRecord, 0, steps*cfg.NumEnvs)
	episodes := 0
	var totalReward float64

	for i := 0; i < steps; i++ {
		states := orch.States()
		actions := make(map[int][]float64, len(states))
		for _, s := range states {
			actions[s.EnvID] = pol.Action(s.LastObservation)
		}

		batch, err := orch.Step(ctx, actions)
		if err != nil {
			return err
		}

		for envID, out := range batch {
			s, err := orch.EnvironmentState(envID)
			if err != nil {
				continue
			}
			records = append(records, storage.StepRecord{
				Step:             i,
				EnvID:            envID,
				Episode:          s.EpisodeIndex,
				Reward:           out.Reward,
				CumulativeReward: s.CumulativeReward,
				Done:             out.Done,
			})
			totalReward += out.Reward
			if out.Done {
				episodes++
			}
		}
	}

	elapsed := time.Since(start)

	meta := storage.RunMetadata{
		Model:      cfg.Model,
		NumEnvs:    cfg.NumEnvs,
		NumWorkers: cfg.NumWorkers,
		Steps:      steps,
		Horizon:    cfg.Horizon,
		Seed:       cfg.Seed,
		Policy:     cfg.Policy,
		Reward:     cfg.Reward,
		Episodes:   episodes,
		MeanReward: totalReward / float64(steps*cfg.NumEnvs),
	}
	runID, err := st.Save(meta, records)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("episodes finished: %d\n", episodes)
	fmt.Printf("mean step reward: %.4f\n", meta.MeanReward)
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args[0])
	if err != nil {
		return err
	}

	orch, pol, err := buildPool(cfg)
	if err != nil {
		return err
	}
	defer orch.Shutdown()

	title := fmt.Sprintf("envpool · %s · %d envs / %d workers", cfg.Model, cfg.NumEnvs, cfg.NumWorkers)
	return tui.Run(orch, pol, title)
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tENVS\tWORKERS\tSTEPS\tEPISODES\tMEAN REWARD\tWHEN")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%.4f\t%s\n",
			r.ID, r.Model, r.NumEnvs, r.NumWorkers, r.Steps, r.Episodes,
			r.MeanReward, r.Timestamp.Format(time.RFC3339))
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	series, err := st.LoadSeries(args[0], plotEnv)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s, env %d, %d samples\n\n", meta.Model, plotEnv, len(series))
	fmt.Println(asciigraph.Plot(series, asciigraph.Height(12), asciigraph.Width(72)))
	return nil
}
