package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/camden-git/studiobackend/models"
	"github.com/camden-git/studiobackend/services"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type createUserInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
	TeamName string `validate:"required"`
	Name     string
}

var newUser createUserInput

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create a studio user, creating the team when needed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := validator.New().Struct(newUser); err != nil {
			return fmt.Errorf("invalid user: %w", err)
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		slug := services.Slugify(newUser.TeamName)
		team, err := a.teams.GetBySlug(slug)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			team = &models.Team{Name: strings.TrimSpace(newUser.TeamName), Slug: slug, NotificationEmail: &newUser.Email}
			err = a.teams.Create(team)
		}
		if err != nil {
			return fmt.Errorf("failed to resolve team %q: %w", newUser.TeamName, err)
		}

		user := &models.User{TeamID: team.ID, Email: newUser.Email, Name: newUser.Name}
		if err := user.SetPassword(newUser.Password); err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		if err := a.users.Create(user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d) in team %s\n", user.Email, user.ID, team.Slug)
		return nil
	},
}

func init() {
	flags := createUserCmd.Flags()
	flags.StringVar(&newUser.Email, "email", "", "login email")
	flags.StringVar(&newUser.Password, "password", "", "initial password")
	flags.StringVar(&newUser.TeamName, "team", "", "team name")
	flags.StringVar(&newUser.Name, "name", "", "display name")
}
