package main

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hyp3rd/trainstats/internal/constants"
	"github.com/hyp3rd/trainstats/internal/libs/serializer"
	"github.com/hyp3rd/trainstats/pkg/stats"
	"github.com/hyp3rd/trainstats/pkg/training"
)

// cli carries what every command shares.
type cli struct {
	codec    string
	logLevel string
	log      *logrus.Logger
	registry *stats.Registry
}

func newRootCmd() *cobra.Command {
	app := &cli{
		log:      logrus.New(),
		registry: training.NewRegistry(),
	}

	cmd := &cobra.Command{
		Use:           "trainstats",
		Short:         "Inspect, merge and serve training job statistics",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := logrus.ParseLevel(app.logLevel)
			if err != nil {
				return err
			}

			app.log.SetLevel(level)
			app.log.SetOutput(cmd.ErrOrStderr())

			return nil
		},
	}

	cmd.PersistentFlags().AddFlagSet(globalFlags(app))

	cmd.AddCommand(
		renderCmd(app),
		mergeCmd(app),
		schemasCmd(app),
		drainCmd(app),
		serveCmd(app),
	)

	return cmd
}

func globalFlags(app *cli) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("trainstats", pflag.ContinueOnError)
	flagSet.StringVar(&app.codec, "codec", constants.DefaultCodec, "snapshot file codec: json, msgpack or cbor")
	flagSet.StringVar(&app.logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")

	return flagSet
}

func (app *cli) serializer() (serializer.ISerializer, error) {
	return serializer.New(app.codec)
}

// readSet decodes the snapshot stored at path.
func (app *cli) readSet(path string) (*stats.Set, error) {
	ser, err := app.serializer()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	set, err := app.registry.Decode(ser, data)
	if err != nil {
		return nil, err
	}

	app.log.WithField("schema", set.Name()).Debugf("decoded %s", path)

	return set, nil
}

func (app *cli) writeSet(path string, set *stats.Set) error {
	ser, err := app.serializer()
	if err != nil {
		return err
	}

	data, err := stats.Encode(ser, set)
	if err != nil {
		return err
	}

	//nolint:gosec,mnd
	return os.WriteFile(path, data, 0o644)
}

func printRendered(out io.Writer, set *stats.Set) error {
	_, err := io.WriteString(out, stats.Render(set))

	return err
}
