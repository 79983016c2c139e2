package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/danmuck/framewire/internal/endpoint"
	"github.com/danmuck/framewire/internal/loop"
	"github.com/spf13/cobra"
)

func newClientCmd(opts *globalOptions) *cobra.Command {
	var (
		kindName string
		value    string
		mode     string
		count    int
	)
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Send a value to the server and print its echo",
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := lookupKind(kindName)
			if err != nil {
				return err
			}
			v, err := k.parse(value)
			if err != nil {
				return fmt.Errorf("--value: %w", err)
			}
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			m, err := loop.ParseMode(mode, count)
			if err != nil {
				return err
			}
			cfg, err := opts.load(cmd.Flags(), string(endpoint.RoleClient))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return runSession(cmd.Context(), cfg, func(ctx context.Context, s *session) error {
				ctrl := loop.New(s.ch, loop.Options{Role: cfg.Role, ShowIPS: cfg.ShowIPS, Debug: cfg.Debug})
				_, err := ctrl.ClientLoop(ctx, loop.OperationFunc(func(ctx context.Context, it loop.Iteration) error {
					if err := k.send(ctx, s.ch, v); err != nil {
						return err
					}
					echo, err := k.receive(ctx, s.ch)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, k.format(echo))
					if it.Index+1 >= count {
						ctrl.Stop()
					}
					return nil
				}), m)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&kindName, "kind", "string", "value kind: "+joinKinds())
	cmd.Flags().StringVar(&value, "value", "", "value to send; a file path for --kind image")
	cmd.Flags().StringVar(&mode, "mode", "until-peer-stop", "termination: until-peer-stop|count|forever; must match the server")
	cmd.Flags().IntVar(&count, "count", 1, "number of values to send")
	return cmd
}

func joinKinds() string {
	return strings.Join(kindNames(), "|")
}
