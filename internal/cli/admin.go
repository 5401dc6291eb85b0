package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/aldoetobex/rentify-backend/internal/auth"
	"github.com/aldoetobex/rentify-backend/pkg/models"
)

func AdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}
	cmd.AddCommand(adminCreateCmd(), adminListCmd())
	return cmd
}

func adminCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			firstName, _ := cmd.Flags().GetString("first-name")
			lastName, _ := cmd.Flags().GetString("last-name")

			email = strings.ToLower(strings.TrimSpace(email))
			if email == "" || len(password) < 6 {
				return errors.New("--email and a --password of at least 6 characters are required")
			}

			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			var exists int64
			if err := e.db.Model(&models.User{}).Where("email = ?", email).Count(&exists).Error; err != nil {
				return err
			}
			if exists > 0 {
				return fmt.Errorf("email already exists: %s", email)
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			u := models.User{
				Email:        email,
				PasswordHash: hash,
				Role:         models.RoleAdmin,
				FirstName:    firstName,
				LastName:     lastName,
			}
			if err := e.db.Create(&u).Error; err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), u.ID)
			return nil
		},
	}
	cmd.Flags().String("email", "", "login email")
	cmd.Flags().String("password", "", "login password")
	cmd.Flags().String("first-name", "Admin", "first name")
	cmd.Flags().String("last-name", "", "last name")
	return cmd
}

func adminListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List administrators",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			var admins []models.User
			if err := e.db.Where("role = ?", models.RoleAdmin).Order("created_at").Find(&admins).Error; err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-36s  %-30s  %s\n", "ID", "Email", "Name")
			for _, a := range admins {
				fmt.Fprintf(out, "%-36s  %-30s  %s\n", a.ID, a.Email, a.DisplayName())
			}
			return nil
		},
	}
}

func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			var u models.User
			if err := e.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("no user with email %q", email)
				}
				return err
			}
			if ttl <= 0 {
				ttl = e.cfg.TokenTTL
			}
			token, err := auth.IssueToken(e.cfg.JWTSecret, ttl, u.ID.String(), string(u.Role))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("email", "", "user email")
	cmd.Flags().Duration("ttl", time.Hour, "token lifetime (0 uses TOKEN_TTL)")
	return cmd
}
