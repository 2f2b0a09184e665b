package cmd

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/CraigKelly/tvtrend/sampler"
)

// startupParams is everything a command needs once flags, the config file and
// the environment have been merged.
type startupParams struct {
	verbose     bool
	randomSeed  int64
	modelName   string
	dataFile    string
	refFile     string
	outFile     string
	cfg         sampler.Config
	iterations  int
	burn        int
	maxRestart  int
	window      int
	monitor     bool
	monitorAddr string
	progress    bool

	out   *log.Logger  // human readable output
	trace *log.Logger  // results destination: out unless --out was given
	log   *slog.Logger // diagnostics
	bar   io.Writer    // progress bar destination

	closers []io.Closer
}

// Close releases any files opened for output
func (sp *startupParams) Close() error {
	var first error
	for _, c := range sp.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	sp.closers = nil
	return first
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !term.IsTerminal(int(f.Fd()))
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    noColor,
	}))
}

func newStartupParams(v *viper.Viper, stdout io.Writer, stderr io.Writer) (*startupParams, error) {
	sp := &startupParams{
		verbose:    v.GetBool("verbose"),
		randomSeed: v.GetInt64("seed"),
		modelName:  v.GetString("model"),
		dataFile:   v.GetString("data"),
		refFile:    v.GetString("reference"),
		outFile:    v.GetString("out"),
		cfg: sampler.Config{
			Alpha: v.GetFloat64("alpha"),
			Rho:   v.GetFloat64("rho"),
			Order: v.GetInt("order"),
		},
		iterations:  v.GetInt("iterations"),
		burn:        v.GetInt("burn"),
		maxRestart:  v.GetInt("max-restart"),
		window:      v.GetInt("window"),
		monitor:     v.GetBool("monitor"),
		monitorAddr: v.GetString("monitor-addr"),
	}

	sp.out = log.New(stdout, "", 0)
	sp.trace = sp.out
	sp.log = newLogger(stderr, sp.verbose)
	sp.bar = stderr

	// The bar would fight with debug logging for the terminal
	if f, ok := stderr.(*os.File); ok && !sp.verbose {
		sp.progress = term.IsTerminal(int(f.Fd()))
	}

	if len(sp.outFile) > 0 {
		f, err := os.Create(sp.outFile)
		if err != nil {
			return nil, errors.Wrapf(err, "Could not create output file %s", sp.outFile)
		}
		sp.trace = log.New(f, "", 0)
		sp.closers = append(sp.closers, f)
	}

	return sp, nil
}

// readConfig loads the config file (if any) into v. An explicit file must
// exist; the default $HOME/.tvtrend.yaml is optional.
func readConfig(v *viper.Viper, cfgFile string) error {
	if len(cfgFile) > 0 {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		v.AddConfigPath(home)
		v.SetConfigName(".tvtrend")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("TVTREND")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if len(cfgFile) < 1 && errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrapf(err, "Could not read config %s", v.ConfigFileUsed())
	}
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Name == "config" {
			return
		}
		err = v.BindPFlag(f.Name, f)
	})
	return err
}

// newRootCmd builds the command tree. Each call gets its own viper instance so
// that the tree can be built more than once (tests).
func newRootCmd(stdout io.Writer, stderr io.Writer) *cobra.Command {
	var cfgFile string
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "tvtrend",
		Short: "Bayesian total variation trend filtering",
		Long: `tvtrend estimates a smooth trend underlying a noisy series.
Among other features:

  - A Gibbs sampler with restart on numerically failed draws
  - Total variation (fused lasso) penalties of order 0 through 3
  - An expvar progress monitor for long runs
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := readConfig(v, cfgFile); err != nil {
				return err
			}
			return bindFlags(v, cmd.Flags())
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file (default is $HOME/.tvtrend.yaml)")
	pf.BoolP("verbose", "v", false, "Verbose logging (default is much more parsimonious)")
	pf.Int64P("seed", "r", 1, "Random seed to use")
	pf.Bool("monitor", false, "Serve run progress over HTTP (expvar)")
	pf.String("monitor-addr", ":8000", "Listen address for the progress monitor")

	rootCmd.AddCommand(newFilterCmd(v, stdout, stderr))
	rootCmd.AddCommand(newModelsCmd(stdout))

	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once.
func Execute() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
