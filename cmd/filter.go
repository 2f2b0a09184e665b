package cmd

import (
	"io"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/CraigKelly/tvtrend/model"
	"github.com/CraigKelly/tvtrend/rand"
	"github.com/CraigKelly/tvtrend/sampler"
)

const defaultBurn = 20

func newFilterCmd(v *viper.Viper, stdout io.Writer, stderr io.Writer) *cobra.Command {
	filterCmd := &cobra.Command{
		Use:   "filter",
		Short: "Estimate the trend of a series",
		Long: `filter reads a series (one observation per line, optionally preceded by
an index column) and prints the posterior mean trend next to each
observation, followed by the posterior means of sigma2 and lambda2.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sp, err := newStartupParams(v, stdout, stderr)
			if err != nil {
				return err
			}
			defer sp.Close()
			return TrendFilter(sp)
		},
	}

	def := sampler.DefaultConfig()
	f := filterCmd.Flags()
	f.StringP("data", "d", "", "Series file to filter")
	f.String("reference", "", "Optional reference (true trend) series to score against")
	f.StringP("out", "o", "", "Write the trend table to this file instead of stdout")
	f.StringP("model", "m", "l1filter", "Name of model to use (see the models command)")
	f.Float64("alpha", def.Alpha, "Gamma prior shape offset for lambda2")
	f.Float64("rho", def.Rho, "Gamma prior rate offset for lambda2")
	f.Int("order", def.Order, "Total variation order (0-3)")
	f.IntP("iterations", "n", sampler.DefaultIterations, "Number of Gibbs sweeps")
	f.IntP("burn", "b", defaultBurn, "Sweeps discarded before averaging")
	f.Int("max-restart", sampler.DefaultMaxRestart, "Retries allowed for a failed sweep step")
	f.Int("window", 0, "Drift diagnostic window (0 disables)")

	return filterCmd
}

func scoreReport(sp *startupParams, title string, score *model.Score) {
	sp.out.Printf("%s | MeanAE:%9.5f MaxAE:%9.5f RMSE:%9.5f ResVar:%9.5f\n",
		title,
		score.MeanAbsError,
		score.MaxAbsError,
		score.RMSE,
		score.ResidualVariance,
	)
}

// TrendFilter runs the selected model over the data file and reports the
// posterior mean trend.
func TrendFilter(sp *startupParams) error {
	if len(sp.dataFile) < 1 {
		return errors.Wrap(model.ErrConfig, "A data file is required (--data)")
	}
	if sp.burn < 0 || sp.burn >= sp.iterations {
		return errors.Wrapf(model.ErrConfig, "burn %d must be in [0, iterations=%d)", sp.burn, sp.iterations)
	}

	sp.log.Info("reading series", "file", sp.dataFile)
	series, err := model.NewSeriesFromFile(sp.dataFile)
	if err != nil {
		return err
	}
	sp.log.Info("series loaded", "name", series.Name, "observations", series.Len())

	var ref *model.Series
	if len(sp.refFile) > 0 {
		ref, err = model.NewSeriesFromFile(sp.refFile)
		if err != nil {
			return errors.Wrapf(err, "Could not read reference")
		}
		if ref.Len() != series.Len() {
			return errors.Wrapf(model.ErrConfig, "reference has %d values, series has %d", ref.Len(), series.Len())
		}
	}

	gen, err := rand.NewGenerator(sp.randomSeed)
	if err != nil {
		return err
	}

	reg := sampler.DefaultRegistry()
	samp, err := reg.New(sp.modelName, gen, series.Values, sp.cfg)
	if err != nil {
		return err
	}

	gibbs, err := sampler.NewGibbs(samp)
	if err != nil {
		return err
	}
	gibbs.Log = sp.log
	gibbs.Window = sp.window

	var mon *monitor
	if sp.monitor {
		mon = newMonitor(sp.log)
		if err = mon.Start(sp.monitorAddr); err != nil {
			return err
		}
		defer mon.Stop()
		mon.Model.Set(sp.modelName)
		mon.Iterations.Set(int64(sp.iterations))
		mon.BurnIn.Set(int64(sp.burn))
		mon.MaxRestart.Set(int64(sp.maxRestart))
	}

	var bar *progressbar.ProgressBar
	if sp.progress {
		bar = progressbar.NewOptions(sp.iterations,
			progressbar.OptionSetWriter(sp.bar),
			progressbar.OptionSetDescription("sampling "+series.Name),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	startTime := time.Now()
	gibbs.Progress = func(info sampler.SweepInfo) {
		if bar != nil {
			bar.Add(1)
		}
		if mon != nil {
			mon.Observe(info, time.Since(startTime))
		}
	}

	sp.log.Info("sampling", "model", sp.modelName, "iterations", sp.iterations, "burn", sp.burn, "seed", sp.randomSeed)
	err = gibbs.Run(sp.iterations, sp.maxRestart)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return errors.Wrapf(err, "Sampling failed after %v", time.Since(startTime))
	}
	sp.log.Info("sampling complete", "elapsed", time.Since(startTime), "restarts", gibbs.Restarts())

	trend, err := gibbs.Output(sp.burn, sampler.ParamTrend)
	if err != nil {
		return err
	}

	sp.trace.Printf("index\tobservation\ttrend\n")
	estimate := make([]float64, series.Len())
	for i, y := range series.Values {
		idx := strconv.Itoa(i)
		if i < len(series.Index) && len(series.Index[i]) > 0 {
			idx = series.Index[i]
		}
		estimate[i] = trend.At(i, 0)
		sp.trace.Printf("%s\t%.6f\t%.6f\n", idx, y, estimate[i])
	}

	for _, name := range []string{sampler.ParamSigma2, sampler.ParamLambda2} {
		m, err := gibbs.Output(sp.burn, name)
		if err != nil {
			return err
		}
		sp.out.Printf("%-8s posterior mean %g\n", name, m.At(0, 0))
	}
	sp.out.Printf("restarts %d\n", gibbs.Restarts())

	if ref != nil {
		score, err := model.NewScore(estimate, ref.Values)
		if err != nil {
			return err
		}
		scoreReport(sp, "TREND VS "+ref.Name, score)

		obsScore, err := model.NewScore(series.Values, ref.Values)
		if err != nil {
			return err
		}
		scoreReport(sp, "OBSERVED VS "+ref.Name, obsScore)
	}

	return nil
}

func newModelsCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the registered model names",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range sampler.DefaultRegistry().Names() {
				io.WriteString(stdout, name+"\n")
			}
		},
	}
}
