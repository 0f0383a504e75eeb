package main

import (
	"codeberg.org/mutker/torquectl/internal/profile"
	"github.com/spf13/cobra"
)

func NewMatchCommand(a *app) *cobra.Command {
	var (
		value float64
		unit  string
	)

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Find the first profile whose max torque is near a value",
		Long: `Find the first profile whose max torque is near a value.

The value is converted to newton-meters and compared with each profile's max
torque, also in newton-meters. A profile matches within 10% of the value or
2 Nm, whichever is larger. Profiles are tried in storage order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := openStore(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer closeStore(repo)

			p, err := matchProfile(cmd.Context(), repo, a.cfg.Units, value, unit)
			if err != nil {
				return err
			}

			printProfiles(cmd.OutOrStdout(), []profile.Profile{p})

			return nil
		},
	}

	f := cmd.Flags()
	f.Float64Var(&value, "value", 0, "torque value")
	f.StringVar(&unit, "unit", "Nm", "torque unit")
	_ = cmd.MarkFlagRequired("value")

	return cmd
}
