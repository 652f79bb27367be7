package main

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/config"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

var reasons = []string{
	"Annual check-up",
	"Follow-up visit",
	"Prescription renewal",
	"Lab results review",
	"Persistent headache",
	"Skin rash",
	"Back pain",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("config load error")
	}
	logger := app.NewLogger(cfg.Env).With().Str("component", "seed").Logger()

	ctx := context.Background()
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	doctors, err := seedDoctors(ctx, a.Store, getInt("SEED_DOCTORS", 20), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}
	patients, err := seedPatients(ctx, a.Store, getInt("SEED_PATIENTS", 500), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}
	if err := seedAppointments(ctx, a.Service, doctors, patients, getInt("SEED_DAYS", 5), logger); err != nil {
		logger.Fatal().Err(err).Msg("seed appointments")
	}

	logger.Info().Msg("seed complete")
}

func seedDoctors(ctx context.Context, dir appointment.Directory, count int, logger zerolog.Logger) ([]uuid.UUID, error) {
	logger.Info().Int("count", count).Msg("seeding doctors")

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]
		d := &appointment.Doctor{
			ID:        uuid.New(),
			Name:      "Dr. " + gofakeit.Name(),
			Specialty: &spec,
		}
		if err := dir.CreateDoctor(ctx, d); err != nil {
			return nil, err
		}
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func seedPatients(ctx context.Context, dir appointment.Directory, count int, logger zerolog.Logger) ([]uuid.UUID, error) {
	logger.Info().Int("count", count).Msg("seeding patients")

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		email := gofakeit.Email()
		p := &appointment.Patient{
			ID:    uuid.New(),
			Name:  gofakeit.Name(),
			Email: &email,
		}
		if err := dir.CreatePatient(ctx, p); err != nil {
			return nil, err
		}
		ids = append(ids, p.ID)

		if (i+1)%500 == 0 {
			logger.Info().Int("done", i+1).Int("total", count).Msg("patients seeded")
		}
	}
	return ids, nil
}

// seedAppointments fills roughly half of each doctor's free slots over the coming days.
// Bookings go through the service so every row passes the same checks as real traffic.
func seedAppointments(ctx context.Context, svc *appointment.Service, doctors, patients []uuid.UUID, days int, logger zerolog.Logger) error {
	if len(patients) == 0 {
		return nil
	}
	admin := appointment.AdminActor(uuid.New())
	durations := []time.Duration{15 * time.Minute, 30 * time.Minute, 45 * time.Minute, time.Hour}
	locations := []appointment.Location{appointment.LocationInPerson, appointment.LocationOnline}

	booked, skipped := 0, 0
	for _, doctor := range doctors {
		for day := 1; day <= days; day++ {
			date := time.Now().AddDate(0, 0, day)
			d := durations[gofakeit.Number(0, len(durations)-1)]

			avail, err := svc.Availability(ctx, appointment.AvailabilityQuery{DoctorID: doctor, Date: date, Duration: d})
			if err != nil {
				return err
			}

			for _, slot := range avail.Available {
				if gofakeit.Number(0, 1) == 0 {
					continue
				}
				patient := patients[gofakeit.Number(0, len(patients)-1)]
				_, err := svc.Book(ctx, admin, appointment.BookingRequest{
					PatientID: patient,
					DoctorID:  doctor,
					StartTime: slot.Start,
					Duration:  d,
					Location:  locations[gofakeit.Number(0, len(locations)-1)],
					Reason:    reasons[gofakeit.Number(0, len(reasons)-1)],
				})
				switch {
				case err == nil:
					booked++
				case errors.Is(err, appointment.ErrConflict):
					// slots are listed at the query duration and can overlap each other
					skipped++
				default:
					return err
				}
			}
		}
	}

	logger.Info().Int("booked", booked).Int("skipped", skipped).Msg("appointments seeded")
	return nil
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
