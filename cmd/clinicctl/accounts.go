package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/clinic-scheduler/internal/config"
	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository/postgres"
	"github.com/jwalitptl/clinic-scheduler/internal/service/availability"
	"github.com/jwalitptl/clinic-scheduler/internal/service/user"
	"github.com/jwalitptl/clinic-scheduler/pkg/security"
)

type services struct {
	users        *user.Service
	availability *availability.Service
	close        func() error
}

func newServices(ctx context.Context, cfg *config.Config) (*services, error) {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Scheduling.Location()
	if err != nil {
		db.Close()
		return nil, err
	}

	base := postgres.NewBaseRepository(db)
	userRepo := postgres.NewUserRepository(base)
	slotRepo := postgres.NewAvailabilityRepository(base)

	availabilitySvc := availability.NewService(slotRepo, postgres.NewAppointmentRepository(base), userRepo, nil, availability.Config{
		Location:       loc,
		MaxAdvanceDays: cfg.Scheduling.MaxAdvanceDays,
	})
	userSvc := user.NewService(
		postgres.NewTransactor(base),
		userRepo,
		slotRepo,
		availabilitySvc,
		security.NewBcryptHasher(bcrypt.DefaultCost),
		security.NewTextSanitizer(),
	)

	return &services{users: userSvc, availability: availabilitySvc, close: db.Close}, nil
}

func createAdminCmd() *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			svc, err := newServices(ctx, cfg)
			if err != nil {
				return err
			}
			defer svc.close()

			admin, err := svc.users.CreateAccount(ctx, model.CreateUserRequest{
				Name:     name,
				Email:    email,
				Password: password,
				Role:     string(model.RoleAdmin),
			})
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", admin.Email, admin.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
