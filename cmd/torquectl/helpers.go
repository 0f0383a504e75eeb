package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"codeberg.org/mutker/torquectl/internal/config"
	"codeberg.org/mutker/torquectl/internal/errors"
	"codeberg.org/mutker/torquectl/internal/logger"
	"codeberg.org/mutker/torquectl/internal/profile"
	"codeberg.org/mutker/torquectl/internal/session"
	"codeberg.org/mutker/torquectl/internal/store"
)

// openStore opens the database named by p and seeds the sample profiles into
// an empty one.
func openStore(ctx context.Context, p config.Provider) (*store.Repository, error) {
	repo, err := store.Open(store.Config{
		DBPath:       p.GetDatabasePath(),
		BatchSize:    p.GetBatchSize(),
		BatchTimeout: p.GetBatchTimeout(),
		BackupDir:    p.GetBackupDir(),
	}, logger.Default())
	if err != nil {
		return nil, err
	}

	if _, err := repo.SeedDefaults(ctx); err != nil {
		repo.Close()
		return nil, err
	}

	return repo, nil
}

func closeStore(repo *store.Repository) {
	if err := repo.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close database")
	}
}

func parseIDArg(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errors.New().WithMessage(errors.ErrInvalidArgument, "expected exactly one profile id")
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, errors.New().Wrap(errors.ErrInvalidArgument, err)
	}

	return id, nil
}

// parseTargets reads three comma-separated applied-torque targets.
func parseTargets(s string) ([profile.BandCount]float64, error) {
	var targets [profile.BandCount]float64

	parts := strings.Split(s, ",")
	if len(parts) != profile.BandCount {
		return targets, errors.New().WithMessage(errors.ErrInvalidArgument,
			fmt.Sprintf("expected %d targets, got %q", profile.BandCount, s))
	}

	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return targets, errors.New().Wrap(errors.ErrInvalidArgument, err)
		}
		targets[i] = v
	}

	return targets, nil
}

func formatTorque(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func printProfiles(w io.Writer, profiles []profile.Profile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMAX\tUNIT\tTYPE\tTARGETS\tBAND 1\tBAND 2\tBAND 3")
	for _, p := range profiles {
		targets := p.Targets()
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s, %s, %s\t%s\t%s\t%s\n",
			p.ID, formatTorque(p.MaxTorque), p.Unit, p.Category,
			formatTorque(targets[0]), formatTorque(targets[1]), formatTorque(targets[2]),
			p.Bands[0].Range(), p.Bands[1].Range(), p.Bands[2].Range())
	}
	tw.Flush()
}

func printSummary(w io.Writer, sessionID string, p profile.Profile, rows []session.SummaryRow) {
	fmt.Fprintf(w, "Session %s, profile %d (%s)\n", sessionID, p.ID, p.String())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BAND\tAPPLIED\tRANGE\tTESTS")
	for _, row := range rows {
		tests := make([]string, len(row.Tests))
		for i, v := range row.Tests {
			tests[i] = formatTorque(v)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n",
			row.BandIndex, formatTorque(row.Target), row.Range, strings.Join(tests, " "))
	}
	tw.Flush()
}
