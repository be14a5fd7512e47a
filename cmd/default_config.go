package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flagger-go/covhmm/config"
)

var defaultConfigCmd = &cobra.Command{
	Use:   "default-config",
	Short: "Print the default configuration as YAML",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Default()
		out, err := yaml.Marshal(toFileConfig(cfg))
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
			return
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
	},
}

func toFileConfig(cfg config.Config) config.FileConfig {
	return config.FileConfig{
		Model:                      cfg.Emission.ModelType.String(),
		MaxCoverage:                cfg.Emission.MaxCoverage,
		NumComponents:              cfg.Emission.NumComponents,
		NumCollapseStates:          cfg.Emission.NumCollapseStates,
		IncludeMisjoin:             cfg.Emission.IncludeMisjoin,
		ErrCompBindingCoef:         cfg.Emission.ErrCompBindingCoef,
		ExpTruncPointCovFraction:   cfg.Emission.ExpTruncPointCovFraction,
		MinCountForParameterUpdate: cfg.Emission.MinCountForParameterUpdate,
		GoldenSectionTol:           cfg.Emission.GoldenSectionTol,
		ConvergenceTol:             cfg.Emission.ConvergenceTol,
		TerminationProb:            cfg.Transition.TerminationProb,
		DiagonalProb:               cfg.Transition.DiagonalProb,
		MaxHighMapqRatioDup:        cfg.Transition.MaxHighMapqRatioDup,
		MinHighMapqRatioCol:        cfg.Transition.MinHighMapqRatioCol,
		MinHighClipRatioMsj:        cfg.Transition.MinHighClipRatioMsj,
		MaxIterations:              cfg.EM.MaxIterations,
		WorkerPoolSize:             cfg.EM.WorkerPoolSize,
		MeanReadLength:             cfg.EM.MeanReadLength,
		MinReadFractionAtEnds:      cfg.EM.MinReadFractionAtEnds,
		UseAccelerator:             cfg.EM.UseAccelerator,
		NumRegions:                 cfg.NumRegions,
	}
}
