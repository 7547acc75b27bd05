package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ukenn2112/mojibobplugin/internal/config"
	"github.com/ukenn2112/mojibobplugin/internal/logger"
	"github.com/ukenn2112/mojibobplugin/internal/service/appcast"
	"github.com/ukenn2112/mojibobplugin/internal/version"
)

var errUnknownLogLevel = errors.New("unknown log level")

// newRootCmd builds the update-appcast command.
func newRootCmd() *cobra.Command {
	var (
		options  appcast.Options
		logLevel string
	)

	root := &cobra.Command{
		Use:   "update-appcast [flags] [--] <description>",
		Short: "Prepend the current plugin release to the appcast feed",
		Long: "Reads the version from " + config.DefaultMetadataFile + ", checksums " +
			config.DefaultArtifactFile + " and prepends a release entry to " +
			config.DefaultFeedFile + ". Prints the released version as v<version>.\n\n" +
			"The description is free text. An argument that starts with a dash and names\n" +
			"no flag, such as \"- Fix bug\", is taken as the description; use -- to pass\n" +
			"one that collides with a flag.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%w: %q", errUnknownLogLevel, logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options.Description = args[0]

			released, err := appcast.Run(ctx, &options)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "v%s\n", released)

			return err
		},
	}

	// Setup command flags with consistent naming and descriptions.
	flags := root.Flags()
	flags.StringVarP(&options.ConfigPath, "config", "c", "",
		"path to settings file (default "+config.DefaultConfigFilename+" when present)")
	flags.BoolVar(&options.DryRun, "dry-run", false, "compute the entry without writing the appcast")
	flags.BoolVar(&options.Strict, "strict", false, "fail when the artifact bundles a different version")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	version.AttachCobraVersion(root)

	return root
}

// Execute runs the update-appcast CLI and exits with non-zero status on error.
func Execute() {
	root := newRootCmd()
	root.SetArgs(descriptionArgs(root, os.Args[1:]))

	if err := root.ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintln(root.ErrOrStderr(), "Error:", err)

		os.Exit(1)
	}
}

// descriptionArgs moves arguments that look like flags but name none of
// root's flags behind a "--" terminator, so that release notes written as a
// Markdown list reach the command as its description.
func descriptionArgs(root *cobra.Command, args []string) []string {
	root.InitDefaultHelpFlag()
	root.InitDefaultVersionFlag()

	var flagArgs, positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}

		flag, inline := lookupFlag(root, arg)
		if flag == nil {
			positional = append(positional, arg)
			continue
		}

		flagArgs = append(flagArgs, arg)

		// A flag that needs a value takes the next argument, as pflag does.
		if !inline && flag.NoOptDefVal == "" && i+1 < len(args) {
			i++
			flagArgs = append(flagArgs, args[i])
		}
	}

	if len(positional) == 0 {
		return flagArgs
	}

	return append(append(flagArgs, "--"), positional...)
}

// lookupFlag returns the flag arg refers to, if any, and whether arg also
// carries the flag's value.
func lookupFlag(root *cobra.Command, arg string) (*pflag.Flag, bool) {
	switch {
	case len(arg) < 2 || arg[0] != '-':
		return nil, false
	case strings.HasPrefix(arg, "--"):
		name, _, inline := strings.Cut(arg[2:], "=")

		return findFlag(root, func(flags *pflag.FlagSet) *pflag.Flag {
			return flags.Lookup(name)
		}), inline
	default:
		return findFlag(root, func(flags *pflag.FlagSet) *pflag.Flag {
			return flags.ShorthandLookup(arg[1:2])
		}), len(arg) > 2
	}
}

func findFlag(root *cobra.Command, lookup func(*pflag.FlagSet) *pflag.Flag) *pflag.Flag {
	for _, flags := range []*pflag.FlagSet{root.Flags(), root.PersistentFlags()} {
		if flag := lookup(flags); flag != nil {
			return flag
		}
	}

	return nil
}
