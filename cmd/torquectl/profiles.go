package main

import (
	"fmt"

	"codeberg.org/mutker/torquectl/internal/errors"
	"codeberg.org/mutker/torquectl/internal/logger"
	"codeberg.org/mutker/torquectl/internal/profile"
	"github.com/spf13/cobra"
)

type profileFlags struct {
	maxTorque float64
	unit      string
	category  string
	targets   string
}

func (pf *profileFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64Var(&pf.maxTorque, "max-torque", 0, "rated maximum torque")
	f.StringVar(&pf.unit, "unit", "Nm", "torque unit")
	f.StringVar(&pf.category, "type", "Wrench", "tool type")
	f.StringVar(&pf.targets, "targets", "", "explicit applied-torque targets, comma separated (default derived from --max-torque)")
}

// build derives a profile from the flags. Explicit targets take precedence
// over the ones generated from max torque.
func (pf *profileFlags) build() (profile.Profile, error) {
	if pf.maxTorque <= 0 {
		return profile.Profile{}, errors.New().WithMessage(errors.ErrInvalidArgument, "--max-torque must be positive")
	}

	p := profile.Generate(pf.maxTorque, pf.unit, pf.category)
	if pf.targets != "" {
		targets, err := parseTargets(pf.targets)
		if err != nil {
			return profile.Profile{}, err
		}
		p.Bands = profile.BandsFromTargets(targets)
	}

	return p, nil
}

func NewProfilesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profiles",
		Aliases: []string{"profile"},
		Short:   "Manage calibration profiles",
	}

	cmd.AddCommand(
		newProfilesListCommand(a),
		newProfilesAddCommand(a),
		newProfilesUpdateCommand(a),
		newProfilesDeleteCommand(a),
		newProfilesGenerateCommand(),
	)

	return cmd
}

func newProfilesListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := openStore(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer closeStore(repo)

			profiles, err := repo.ListProfiles(cmd.Context())
			if err != nil {
				return err
			}

			printProfiles(cmd.OutOrStdout(), profiles)

			return nil
		},
	}
}

func newProfilesAddCommand(a *app) *cobra.Command {
	pf := &profileFlags{}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a profile generated from its max torque",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := pf.build()
			if err != nil {
				return err
			}

			repo, err := openStore(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer closeStore(repo)

			id, err := repo.AddProfile(cmd.Context(), p)
			if err != nil {
				return err
			}
			p.ID = id

			logger.Info().Int64("id", id).Str("profile", p.String()).Msg("Profile added")
			printProfiles(cmd.OutOrStdout(), []profile.Profile{p})

			return nil
		},
	}

	pf.register(cmd)
	_ = cmd.MarkFlagRequired("max-torque")

	return cmd
}

func newProfilesUpdateCommand(a *app) *cobra.Command {
	pf := &profileFlags{}

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a stored profile",
		Long: `Update a stored profile.

Changing --max-torque regenerates the targets and bands. --targets replaces
the targets and recomputes their bands. --unit and --type change only the
named field.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args)
			if err != nil {
				return err
			}

			repo, err := openStore(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer closeStore(repo)

			p, err := repo.GetProfile(cmd.Context(), id)
			if err != nil {
				return err
			}

			f := cmd.Flags()
			if f.Changed("unit") {
				p.Unit = pf.unit
			}
			if f.Changed("type") {
				p.Category = pf.category
			}
			if f.Changed("max-torque") {
				if pf.maxTorque <= 0 {
					return errors.New().WithMessage(errors.ErrInvalidArgument, "--max-torque must be positive")
				}
				p.MaxTorque = pf.maxTorque
				p.Bands = profile.BandsFromTargets(profile.ComputeTargets(p.MaxTorque))
			}
			if f.Changed("targets") {
				targets, err := parseTargets(pf.targets)
				if err != nil {
					return err
				}
				p.Bands = profile.BandsFromTargets(targets)
			}

			if err := repo.UpdateProfile(cmd.Context(), p); err != nil {
				return err
			}

			logger.Info().Int64("id", id).Str("profile", p.String()).Msg("Profile updated")
			printProfiles(cmd.OutOrStdout(), []profile.Profile{p})

			return nil
		},
	}

	pf.register(cmd)

	return cmd
}

func newProfilesDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args)
			if err != nil {
				return err
			}

			repo, err := openStore(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer closeStore(repo)

			if err := repo.DeleteProfile(cmd.Context(), id); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted profile %d\n", id)

			return nil
		},
	}
}

func newProfilesGenerateCommand() *cobra.Command {
	pf := &profileFlags{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print the targets and bands for a max torque without saving",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := pf.build()
			if err != nil {
				return err
			}

			printProfiles(cmd.OutOrStdout(), []profile.Profile{p})

			return nil
		},
	}

	pf.register(cmd)
	_ = cmd.MarkFlagRequired("max-torque")

	return cmd
}
