package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "schedctl",
		Short:        "Operator tools for the clinic scheduling store",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(migrateCmd(), availabilityCmd(), lapseCmd(), statsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// withApp loads config, opens the store (which applies migrations) and runs fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(zerolog.WarnLevel)

	a, err := app.Open(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations to the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				files, err := db.MigrationFiles(a.Config.StoreDriver)
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Printf("applied %s\n", f)
				}
				return nil
			})
		},
	}
}

func availabilityCmd() *cobra.Command {
	var (
		doctor   string
		date     string
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Print free slots for a doctor on a clinic day",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorID, err := uuid.Parse(doctor)
			if err != nil {
				return fmt.Errorf("--doctor: %w", err)
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				policy := a.Service.Policy()
				day, err := time.ParseInLocation("2006-01-02", date, policy.Location)
				if err != nil {
					return fmt.Errorf("--date: %w", err)
				}
				avail, err := a.Service.Availability(ctx, appointment.AvailabilityQuery{
					DoctorID: doctorID,
					Date:     day,
					Duration: duration,
				})
				if err != nil {
					return err
				}
				for _, s := range avail.Available {
					fmt.Println(s.String())
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&doctor, "doctor", "", "doctor UUID")
	cmd.Flags().StringVar(&date, "date", time.Now().Format("2006-01-02"), "clinic day, YYYY-MM-DD")
	cmd.Flags().DurationVar(&duration, "duration", 30*time.Minute, "appointment length")
	_ = cmd.MarkFlagRequired("doctor")
	return cmd
}

func lapseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lapse",
		Short: "Cancel pending requests whose start time has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Service.LapseOverdue(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("lapsed %d appointment(s)\n", n)
				return nil
			})
		},
	}
}

func statsCmd() *cobra.Command {
	var doctor string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print dashboard counters for a doctor",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorID, err := uuid.Parse(doctor)
			if err != nil {
				return fmt.Errorf("--doctor: %w", err)
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				stats, err := a.Service.DoctorStats(ctx, appointment.AdminActor(uuid.Nil), doctorID)
				if err != nil {
					return err
				}
				return printJSON(stats)
			})
		},
	}

	cmd.Flags().StringVar(&doctor, "doctor", "", "doctor UUID")
	_ = cmd.MarkFlagRequired("doctor")
	return cmd
}
