package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/opsdesk/opsdesk/internal/config"
	"github.com/opsdesk/opsdesk/internal/db"
	"github.com/opsdesk/opsdesk/internal/models"
	"github.com/opsdesk/opsdesk/internal/repository"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "User management commands",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	RunE:  runUserCreate,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	RunE:  runUserList,
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete [email]",
	Short: "Delete a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserDelete,
}

var userSetRoleCmd = &cobra.Command{
	Use:   "set-role [email] [role]",
	Short: "Change a user's role",
	Args:  cobra.ExactArgs(2),
	RunE:  runUserSetRole,
}

var userTokenCmd = &cobra.Command{
	Use:   "token [email]",
	Short: "Issue an API token for a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserToken,
}

var (
	userEmail    string
	userPassword string
	userName     string
	userRole     string
	tokenName    string
	tokenTTL     time.Duration
)

func init() {
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "User email")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "User password (will prompt if not provided)")
	userCreateCmd.Flags().StringVar(&userName, "name", "", "User name")
	userCreateCmd.Flags().StringVar(&userRole, "role", string(models.RoleViewer), "User role (ADMIN, MANAGER, AGENT, VIEWER)")
	userCreateCmd.MarkFlagRequired("email")

	userTokenCmd.Flags().StringVar(&tokenName, "name", "cli", "Token name")
	userTokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (0 for no expiry)")

	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userDeleteCmd)
	userCmd.AddCommand(userSetRoleCmd)
	userCmd.AddCommand(userTokenCmd)

	userCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/opsdesk/opsdesk.yaml", "Path to configuration file")
}

func openDatabase() (*db.DB, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	role := models.Role(strings.ToUpper(userRole))
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", userRole)
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	password := userPassword
	if password == "" {
		fmt.Print("Enter password: ")
		pwBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()
		password = string(pwBytes)

		fmt.Print("Confirm password: ")
		pwBytes2, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()

		if password != string(pwBytes2) {
			return fmt.Errorf("passwords do not match")
		}
	}

	if len(password) < 10 {
		return fmt.Errorf("password must be at least 10 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	users := repository.NewUserRepository(database.DB)
	u := &models.User{
		Name:     userName,
		Email:    userEmail,
		Role:     role,
		IsActive: true,
	}
	if err := users.Create(u, string(hash)); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("user with email %s already exists", userEmail)
		}
		return err
	}

	fmt.Printf("User %s created with role %s\n", userEmail, role)
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	users, err := repository.NewUserRepository(database.DB).List()
	if err != nil {
		return err
	}

	fmt.Printf("%-36s  %-30s  %-20s  %-8s  %s\n", "ID", "Email", "Name", "Role", "Active")
	fmt.Println(strings.Repeat("-", 104))
	for _, u := range users {
		fmt.Printf("%-36s  %-30s  %-20s  %-8s  %v\n", u.ID, u.Email, u.Name, u.Role, u.IsActive)
	}

	return nil
}

func runUserDelete(cmd *cobra.Command, args []string) error {
	email := args[0]

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	fmt.Printf("Are you sure you want to delete user %s? [y/N]: ", email)
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))

	if response != "y" && response != "yes" {
		fmt.Println("Cancelled")
		return nil
	}

	if err := repository.NewUserRepository(database.DB).Delete(email); err != nil {
		return fmt.Errorf("user %s not found", email)
	}

	fmt.Printf("User %s deleted\n", email)
	return nil
}

func runUserSetRole(cmd *cobra.Command, args []string) error {
	email := args[0]
	role := models.Role(strings.ToUpper(args[1]))
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", args[1])
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	users := repository.NewUserRepository(database.DB)
	u, err := users.GetByEmail(email)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("user %s not found", email)
	}

	// The CLI runs as the operator, not as a console user, so the
	// self-change guard does not apply here.
	if err := users.UpdateRole(u.ID, role, ""); err != nil {
		return err
	}

	fmt.Printf("User %s is now %s\n", email, role)
	return nil
}

func runUserToken(cmd *cobra.Command, args []string) error {
	email := args[0]

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	users := repository.NewUserRepository(database.DB)
	u, err := users.GetByEmail(email)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("user %s not found", email)
	}

	var expiresAt *time.Time
	if tokenTTL > 0 {
		t := time.Now().Add(tokenTTL)
		expiresAt = &t
	}

	result, err := repository.NewTokenRepository(database.DB).Create(u.ID, tokenName, expiresAt)
	if err != nil {
		return err
	}

	fmt.Printf("Token created for %s (shown once, store it now):\n%s\n", email, result.Key)
	return nil
}
