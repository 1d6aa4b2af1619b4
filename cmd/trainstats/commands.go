package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hyp3rd/trainstats"
	"github.com/hyp3rd/trainstats/internal/constants"
	"github.com/hyp3rd/trainstats/internal/libs/serializer"
	"github.com/hyp3rd/trainstats/pkg/exchange"
	exchangeredis "github.com/hyp3rd/trainstats/pkg/exchange/redis"
	"github.com/hyp3rd/trainstats/pkg/middleware"
	"github.com/hyp3rd/trainstats/pkg/stats"
	"github.com/hyp3rd/trainstats/pkg/training"
)

const shutdownTimeout = 5 * time.Second

func renderCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "render [file]",
		Short: "Print the statistics held in a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := app.readSet(args[0])
			if err != nil {
				return err
			}

			return printRendered(cmd.OutOrStdout(), set)
		},
	}
}

func mergeCmd(app *cli) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "merge [files...]",
		Short: "Merge snapshot files of the same schema",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sets := make([]stats.Container, 0, len(args))

			var schema *stats.Schema

			for _, path := range args {
				set, err := app.readSet(path)
				if err != nil {
					return err
				}

				if schema == nil {
					schema = set.Schema()
				}

				sets = append(sets, set)
			}

			merged, err := trainstats.Reduce(schema, sets...)
			if err != nil {
				return err
			}

			app.log.WithField("schema", merged.Name()).Infof("merged %d snapshots", len(sets))

			if out == "" {
				return printRendered(cmd.OutOrStdout(), merged)
			}

			return app.writeSet(out, merged)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "write the merged snapshot to this file instead of printing it")

	return cmd
}

func schemasCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "schemas",
		Short: "List the known statistics schemas and their keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

			for _, name := range app.registry.Names() {
				schema, err := app.registry.Lookup(name)
				if err != nil {
					return err
				}

				fmt.Fprintf(tw, "%s\t%016x\n", name, schema.Fingerprint())

				for _, field := range schema.Fields() {
					fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", field.Key, field.Kind, field.Rule, field.Help)
				}
			}

			return tw.Flush()
		},
	}
}

// exchangeFlags are shared by the commands talking to Redis.
type exchangeFlags struct {
	redisAddr string
	job       string
	schema    string
	codec     string
}

func (f *exchangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.redisAddr, "redis-addr", "localhost:6379", "Redis address")
	cmd.Flags().StringVar(&f.job, "job", "", "job id")
	cmd.Flags().StringVar(&f.schema, "schema", training.MasterSchemaName, "schema of the job statistics")
	cmd.Flags().StringVar(&f.codec, "exchange-codec", constants.ExchangeCodec, "codec the workers publish with")

	_ = cmd.MarkFlagRequired("job")
}

func (f *exchangeFlags) open(app *cli) (*exchange.Exchange, *trainstats.Aggregator, func(), error) {
	schema, err := app.registry.Lookup(f.schema)
	if err != nil {
		return nil, nil, nil, err
	}

	agg, err := trainstats.NewAggregator(schema)
	if err != nil {
		return nil, nil, nil, err
	}

	ser, err := serializer.New(f.codec)
	if err != nil {
		return nil, nil, nil, err
	}

	client, err := exchangeredis.New(exchangeredis.WithAddr(f.redisAddr))
	if err != nil {
		return nil, nil, nil, err
	}

	ex, err := exchange.New(client, app.registry, exchange.WithSerializer(ser))
	if err != nil {
		_ = client.Close()

		return nil, nil, nil, err
	}

	return ex, agg, func() { _ = client.Close() }, nil
}

// drainInto submits every pending snapshot of job to svc.
func drainInto(ctx context.Context, app *cli, ex *exchange.Exchange, job string, svc trainstats.Service) error {
	n, err := ex.Drain(ctx, job, func(set *stats.Set) error {
		submitErr := svc.Submit(ctx, set)
		if submitErr != nil {
			app.log.WithError(submitErr).WithField("schema", set.Name()).Warn("snapshot rejected")
		}

		return submitErr
	})
	if err != nil {
		return err
	}

	if n > 0 {
		app.log.WithField("job", job).Infof("drained %d snapshots", n)
	}

	return nil
}

func drainCmd(app *cli) *cobra.Command {
	flags := &exchangeFlags{}

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Drain a job's pending snapshots from Redis and print the merged statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ex, agg, closeFn, err := flags.open(app)
			if err != nil {
				return err
			}
			defer closeFn()

			err = drainInto(cmd.Context(), app, ex, flags.job, agg)
			if err != nil {
				return err
			}

			return printRendered(cmd.OutOrStdout(), agg.Result())
		},
	}

	flags.register(cmd)

	return cmd
}

func serveCmd(app *cli) *cobra.Command {
	var (
		addr     string
		interval time.Duration
	)

	flags := &exchangeFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Drain a job periodically and serve its statistics over HTTP",
		Args:  cobra.NoArgs,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive, got %s", interval)
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ex, agg, closeFn, err := flags.open(app)
			if err != nil {
				return err
			}
			defer closeFn()

			svc, err := decorate(app, agg, flags.job)
			if err != nil {
				return err
			}

			srv := trainstats.NewManagementHTTPServer(addr, trainstats.WithMgmtLogger(app.log))

			err = srv.Start(ctx, svc)
			if err != nil {
				return err
			}

			app.log.WithField("addr", srv.Address()).WithField("job", flags.job).Info("serving statistics")

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
					defer cancel()

					return srv.Shutdown(shutdownCtx)
				case <-ticker.C:
					err = drainInto(ctx, app, ex, flags.job, svc)
					if err != nil {
						app.log.WithError(err).Error("drain failed")
					}
				}
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "management HTTP listen address")
	cmd.Flags().DurationVar(&interval, "interval", constants.DefaultDrainInterval, "how often to drain the job")
	flags.register(cmd)

	return cmd
}

// decorate wraps the aggregator with logging, tracing and metrics using the
// global OpenTelemetry providers.
func decorate(app *cli, agg *trainstats.Aggregator, job string) (trainstats.Service, error) {
	metrics, err := middleware.NewOTelMetricsMiddleware(agg, otel.GetMeterProvider().Meter("trainstats"))
	if err != nil {
		return nil, err
	}

	return trainstats.ApplyMiddleware(metrics,
		func(next trainstats.Service) trainstats.Service {
			return middleware.NewLoggingMiddleware(next, app.log.WithField("job", job))
		},
		func(next trainstats.Service) trainstats.Service {
			return middleware.NewOTelTracingMiddleware(next, otel.Tracer("trainstats"),
				middleware.WithCommonAttributes(attribute.String("job", job)))
		},
	), nil
}
