package main

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/framewire/internal/endpoint"
	"github.com/danmuck/framewire/internal/loop"
	"github.com/spf13/cobra"
)

func newServerCmd(opts *globalOptions) *cobra.Command {
	var (
		kindName string
		mode     string
		count    int
	)
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Accept one peer and echo every value it sends",
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := lookupKind(kindName)
			if err != nil {
				return err
			}
			m, err := loop.ParseMode(mode, count)
			if err != nil {
				return err
			}
			cfg, err := opts.load(cmd.Flags(), string(endpoint.RoleServer))
			if err != nil {
				return err
			}
			return runSession(cmd.Context(), cfg, func(ctx context.Context, s *session) error {
				ctrl := loop.New(s.ch, loop.Options{Role: cfg.Role, ShowIPS: cfg.ShowIPS, Debug: cfg.Debug})
				summary, err := ctrl.ServerLoop(ctx, loop.OperationFunc(func(ctx context.Context, it loop.Iteration) error {
					v, err := k.receive(ctx, s.ch)
					if err != nil {
						return err
					}
					s.log.Info().Int("iteration", it.Index).Str("kind", kindName).Str("value", k.format(v)).Msg("received")
					return k.send(ctx, s.ch, v)
				}), m)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "echoed %d value(s) in %s\n", summary.Iterations, summary.Elapsed.Round(time.Millisecond))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kindName, "kind", "string", "value kind: "+joinKinds())
	cmd.Flags().StringVar(&mode, "mode", "until-peer-stop", "termination: until-peer-stop|count|forever")
	cmd.Flags().IntVar(&count, "count", 1, "iterations for --mode count")
	return cmd
}
