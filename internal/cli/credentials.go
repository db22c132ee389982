package cli

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"promptathon/internal/domain"
)

const passwordCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789" +
	"!#$%&()*+,-./:;<=>?@[]^_{|}~"

const defaultPasswordLength = 12

// NewCredentialsCmd builds the subcommand that seeds participant logins from
// the event config and prints them.
func NewCredentialsCmd(eventPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "credentials",
		Short: "Seed and print participant credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCredentials(cmd.Context(), *eventPath)
		},
	}
}

func runCredentials(ctx context.Context, eventPath string) error {
	eng, err := newEngine(ctx, eventPath)
	if err != nil {
		return err
	}
	defer eng.Close()

	if eng.cfg.Event == nil || len(eng.cfg.Event.General.Auth) == 0 {
		return domain.ErrNoParticipants
	}

	creds := make([]domain.Credential, 0, len(eng.cfg.Event.General.Auth))
	for _, participant := range eng.cfg.Event.General.Auth {
		password := participant.Password
		if password == "" {
			password, err = generatePassword(defaultPasswordLength)
			if err != nil {
				return fmt.Errorf("generate password: %w", err)
			}
		}
		creds = append(creds, domain.Credential{Username: participant.Username, Password: password})
	}

	seeded, err := eng.writer.SeedCredentials(ctx, creds)
	if err != nil {
		return err
	}

	fmt.Println("Authentication enabled! Here's the list of participants and their passwords:")
	fmt.Println(renderCredentials(seeded))
	fmt.Println("Please save this information in a secure location.")
	return nil
}

func renderCredentials(creds []domain.Credential) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers("Username", "Password")
	for _, cred := range creds {
		t.Row(cred.Username, cred.Password)
	}
	return t.Render()
}

func generatePassword(length int) (string, error) {
	password := make([]byte, length)
	max := big.NewInt(int64(len(passwordCharset)))
	for i := range password {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		password[i] = passwordCharset[n.Int64()]
	}
	return string(password), nil
}
