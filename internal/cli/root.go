// Package cli is the tasksched command line front end.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"tasksched/internal/app"
	"tasksched/internal/config"
	logx "tasksched/pkg/logx"
)

// env is the per-invocation state shared by subcommands.
type env struct {
	cfgPath   string
	storePath string
	driver    string
	verbose   bool

	logSvc *logx.Service
	log    logx.Logger
	app    *app.App
}

func (e *env) close() {
	if e.logSvc != nil {
		_ = e.logSvc.Close()
		e.logSvc = nil
	}
}

// NewRootCommand builds the command tree. Output goes to the command's
// configured out/err writers.
func NewRootCommand(version string) *cobra.Command {
	root, _ := newRoot(version)
	return root
}

func newRoot(version string) (*cobra.Command, *env) {
	e := &env{}
	root := &cobra.Command{
		Use:   "tasksched",
		Short: "Manage and execute tasks by unique priority",
		Long: `tasksched keeps a persisted list of tasks, each with a priority that is
unique among pending tasks. Lower numbers run first.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			e.close()
		},
	}

	root.PersistentFlags().StringVarP(&e.cfgPath, "config", "c", "", "Path to a JSON or YAML config file")
	root.PersistentFlags().StringVarP(&e.storePath, "store", "s", "", "Task store path (overrides storage.path)")
	root.PersistentFlags().StringVar(&e.driver, "driver", "", "Storage driver: file or sqlite (overrides storage.driver)")
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		addCmd(e),
		runAllCmd(e),
		executeCmd(e),
		viewCmd(e),
		clearHistoryCmd(e),
	)
	return root, e
}

func (e *env) setup(cmd *cobra.Command) error {
	// The configured logger does not exist until the config is read.
	bootLevel := "warn"
	if e.verbose {
		bootLevel = "debug"
	}
	boot := logx.NewConsole(bootLevel)
	boot.Debug("loading config", logx.String("path", e.cfgPath))

	cfg, err := config.Load(e.cfgPath)
	if err != nil {
		boot.Debug("config rejected", logx.String("path", e.cfgPath), logx.Err(err))
		return fmt.Errorf("load config: %w", err)
	}
	if strings.TrimSpace(e.driver) != "" {
		cfg.Storage.Driver = e.driver
		if strings.TrimSpace(e.storePath) == "" {
			cfg.Storage.Path = ""
		}
	}
	if strings.TrimSpace(e.storePath) != "" {
		cfg.Storage.Path = e.storePath
	}
	if e.verbose {
		cfg.Logging.Level = "debug"
		cfg.Logging.Console = true
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.logSvc, e.log = logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	e.app, err = app.New(cfg, e.log, app.WithHooks(progressHooks(cmd.OutOrStdout())))
	return err
}

// Execute runs the CLI and prints any error as "Error: ...".
func Execute(ctx context.Context, version string, args []string, stdout, stderr io.Writer) error {
	root, e := newRoot(version)
	defer e.close()
	root.SetArgs(withNegativeArgs(root, args))
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", describe(err))
		return err
	}
	return nil
}

var errUsage = errors.New("usage")

var negativeInt = regexp.MustCompile(`^-[0-9]+$`)

// withNegativeArgs moves negative integer arguments (priorities such as -1)
// behind a "--" so they are not parsed as shorthand flags. Flags and their
// values stay in front; positional order is preserved.
func withNegativeArgs(root *cobra.Command, args []string) []string {
	var (
		head   = make([]string, 0, len(args)+1)
		tail   []string
		sawNeg bool
	)
	for i := 0; i < len(args); i++ {
		tok := args[i]
		switch {
		case tok == "--":
			if !sawNeg {
				return args
			}
			tail = append(tail, args[i+1:]...)
			i = len(args)
		case negativeInt.MatchString(tok):
			sawNeg = true
			tail = append(tail, tok)
		case strings.HasPrefix(tok, "-") && len(tok) > 1:
			head = append(head, tok)
			if flagTakesValue(root, tok) && i+1 < len(args) {
				i++
				head = append(head, args[i])
			}
		case sawNeg:
			tail = append(tail, tok)
		default:
			head = append(head, tok)
		}
	}
	if !sawNeg {
		return args
	}
	return append(append(head, "--"), tail...)
}

// flagTakesValue reports whether tok names a known flag that consumes the
// next argument.
func flagTakesValue(root *cobra.Command, tok string) bool {
	if strings.Contains(tok, "=") {
		return false
	}
	var lookup func(fs *pflag.FlagSet) *pflag.Flag
	if name, ok := strings.CutPrefix(tok, "--"); ok {
		lookup = func(fs *pflag.FlagSet) *pflag.Flag { return fs.Lookup(name) }
	} else {
		short := tok[len(tok)-1:]
		lookup = func(fs *pflag.FlagSet) *pflag.Flag { return fs.ShorthandLookup(short) }
	}
	sets := []*pflag.FlagSet{root.PersistentFlags(), root.Flags()}
	for _, sub := range root.Commands() {
		sets = append(sets, sub.Flags())
	}
	for _, fs := range sets {
		if f := lookup(fs); f != nil {
			return f.NoOptDefVal == ""
		}
	}
	return false
}
