package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"score_tracker/internal/config"
	"score_tracker/internal/repository"
	"score_tracker/internal/services"
)

var (
	newUsername string
	newPassword string
	newIsAdmin  bool
)

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create a user account",
	Args:  cobra.NoArgs,
	RunE:  runCreateUser,
}

func init() {
	createUserCmd.Flags().StringVar(&newUsername, "username", "", "Login name (required)")
	createUserCmd.Flags().StringVar(&newPassword, "password", "", "Initial password (required)")
	createUserCmd.Flags().BoolVar(&newIsAdmin, "admin", false, "Grant admin rights")
	createUserCmd.MarkFlagRequired("username")
	createUserCmd.MarkFlagRequired("password")
}

func runCreateUser(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	store := repository.NewStore(db)
	users := services.NewUserService(store.Users, cfg.JWTSecret, cfg.TokenTTL)

	user, err := users.Register(cmd.Context(), newUsername, newPassword, newIsAdmin)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created user %q with id %d.\n", user.Username, user.ID)
	return nil
}
