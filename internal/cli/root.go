package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sufield/provenance/internal/config"
	"github.com/sufield/provenance/pkg/provenance"
)

// rootOptions holds state shared by all subcommands of one invocation.
type rootOptions struct {
	configFile string
	dir        string
	envFile    string
	viper      *viper.Viper
}

func (o *rootOptions) load() (*config.Configuration, error) {
	cfg, err := config.Load(o.viper, config.LoadOptions{
		File:    o.configFile,
		Dir:     o.dir,
		EnvFile: o.envFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return cfg, nil
}

// bind ties a flag to a configuration key. Flags only win when set explicitly.
func (o *rootOptions) bind(cmd *cobra.Command, key, flag string) {
	f := cmd.Flags().Lookup(flag)
	if f == nil {
		f = cmd.PersistentFlags().Lookup(flag)
	}
	if err := o.viper.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("bind flag %q to %q: %v", flag, key, err))
	}
}

// NewRootCommand builds the provenance command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{viper: config.NewViper()}

	cmd := &cobra.Command{
		Use:   "provenance",
		Short: "Capture build environment facts and embed them into Go binaries",
		Long: `Capture build environment facts and embed them into Go binaries.

Provenance records the package version, version control state, target platform and
compiler version once per build and hands them to the Go compiler, so a binary can
report exactly how it was built.`,
		Version:       provenance.Current().PackageVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "Path to configuration file (default: "+config.DefaultConfigName+".* in --dir)")
	pf.StringVar(&opts.dir, "dir", ".", "Project directory")
	pf.StringVar(&opts.envFile, "env-file", "", "Load environment variables from a dotenv file")
	pf.String("log-level", "warn", "Log level (debug|info|warn|error)")
	pf.String("log-format", "text", "Log format (text|json)")
	opts.bind(cmd, config.KeyLogLevel, "log-level")
	opts.bind(cmd, config.KeyLogFormat, "log-format")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	})

	cmd.AddCommand(newDiscoverCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the CLI with the process arguments.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
