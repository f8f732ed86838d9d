// cmd/root.go
package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/convtile/tilesched/tile"
	"github.com/convtile/tilesched/tile/kernel"
	"github.com/convtile/tilesched/tile/policy"
	"github.com/convtile/tilesched/tile/workerpool"
)

var (
	configPath string
	logLevel   string
	dumpPlan   bool
	imgIndex   int
)

var rootCmd = &cobra.Command{
	Use:   "tilesched",
	Short: "Tiling scheduler for a convolutional layer on a host+accelerator platform",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Plan and drive one layer invocation",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg := loadRunConfig(configPath)
		logrus.Infof("Scheduling layer: inputs=%dx%dx%d weights=%dx%dx%d ofm=%d",
			cfg.Layer.Inputs.Rows, cfg.Layer.Inputs.Cols, cfg.Layer.Inputs.Channels,
			cfg.Layer.Weights.Rows, cfg.Layer.Weights.Cols, cfg.Layer.Weights.Channels,
			cfg.Layer.Outputs.Channels)

		act := tile.BuildActivationPlan(cfg.Layer, cfg.HW)
		chosen := tile.SelectPlan(act, cfg.HW, cfg.Policy, tile.DefaultCostGateConfig())
		logrus.Infof("Cost gate selected: %s", chosen.Kind)

		if chosen.Activation != nil {
			tile.AnnotateActivationPlan(chosen.Activation, cfg.Sampling)
		} else {
			tile.AnnotateWeightPlan(chosen.Weight, cfg.Sampling)
		}

		if dumpPlan {
			tile.DumpPlan(os.Stdout, chosen)
		}

		pool := workerpool.New(cfg.Workers)
		defer pool.Shutdown()

		inputPolicy := policy.NewOperandPolicy(cfg.Policy.Inputs.Kind)
		weightPolicy := policy.NewOperandPolicy(cfg.Policy.Weights.Kind)
		driver := tile.NewDriver(cfg.HW, cfg.Policy, inputPolicy, weightPolicy, pool, kernel.NewReferencePrimitive())

		hostInputs := make([]float32, cfg.Layer.Inputs.Rows*cfg.Layer.Inputs.Cols*cfg.Layer.Inputs.AlignedChannels())
		hostWeights := make([]float32, cfg.Layer.Weights.Rows*cfg.Layer.Weights.Cols*cfg.Layer.Weights.AlignedChannels()*cfg.Layer.Outputs.Channels)
		hostResults := make([]float32, cfg.Layer.Outputs.Channels*cfg.Layer.Outputs.Rows*cfg.Layer.Outputs.Cols)

		driver.Run(chosen, imgIndex, hostInputs, hostWeights, hostResults)
		pool.Join()

		logrus.Info("Layer execution complete.")
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Path to a layer/hardware/policy/sampling YAML config")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&dumpPlan, "dump", false, "Print the chosen tile plan before executing it")
	runCmd.Flags().IntVar(&imgIndex, "image", 0, "Image index to stamp onto emitted PassOptions/results")
	runCmd.MarkFlagRequired("config")

	rootCmd.AddCommand(runCmd)
}
