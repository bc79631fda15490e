package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
)

const seedPassword = "password123"

var specializations = []string{
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

func seedCmd() *cobra.Command {
	var doctors, patients, days int

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with demo doctors, patients and availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			if doctors < 0 || patients < 0 || days < 0 {
				return fmt.Errorf("counts must not be negative")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if days > cfg.Scheduling.MaxAdvanceDays {
				days = cfg.Scheduling.MaxAdvanceDays
			}

			ctx := cmd.Context()
			svc, err := newServices(ctx, cfg)
			if err != nil {
				return err
			}
			defer svc.close()

			faker := gofakeit.New(0)
			out := cmd.OutOrStdout()

			created, err := seedAccounts(ctx, svc, faker, model.RoleDoctor, doctors)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "seeded %d doctors\n", len(created))

			for _, d := range created {
				if err := seedAvailability(ctx, svc, faker, d, days); err != nil {
					return err
				}
			}
			fmt.Fprintf(out, "seeded %d days of availability per doctor\n", days)

			seededPatients, err := seedAccounts(ctx, svc, faker, model.RolePatient, patients)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "seeded %d patients (password %q)\n", len(seededPatients), seedPassword)
			return nil
		},
	}

	cmd.Flags().IntVar(&doctors, "doctors", 5, "number of doctors")
	cmd.Flags().IntVar(&patients, "patients", 20, "number of patients")
	cmd.Flags().IntVar(&days, "days", 14, "days of availability from today")
	return cmd
}

func seedAccounts(ctx context.Context, svc *services, faker *gofakeit.Faker, role model.Role, count int) ([]*model.User, error) {
	users := make([]*model.User, 0, count)
	for len(users) < count {
		req := model.CreateUserRequest{
			Name:     faker.Name(),
			Email:    faker.Email(),
			Password: seedPassword,
			Role:     string(role),
		}
		if role == model.RoleDoctor {
			req.Specialization = faker.RandomString(specializations)
		}

		u, err := svc.users.CreateAccount(ctx, req)
		if apperrors.IsCode(err, apperrors.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", role, err)
		}
		users = append(users, u)
	}
	return users, nil
}

// seedAvailability opens a random half of the day's slots on each date.
func seedAvailability(ctx context.Context, svc *services, faker *gofakeit.Faker, doctor *model.User, days int) error {
	caller := &model.Caller{UserID: doctor.ID, Role: model.RoleDoctor, Name: doctor.Name}
	labels := model.TimeLabels()
	today := svc.availability.Today()

	for i := 0; i < days; i++ {
		faker.ShuffleStrings(labels)
		times := append([]string(nil), labels[:len(labels)/2]...)
		sort.Strings(times)

		_, err := svc.availability.SetAvailability(ctx, caller, doctor.ID, model.SetAvailabilityRequest{
			Date:  today.AddDays(i).String(),
			Times: times,
		})
		if err != nil {
			return fmt.Errorf("seed availability for %s: %w", doctor.Email, err)
		}
	}
	return nil
}
