package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/stepauth/internal/termx"
	"github.com/aussiebroadwan/stepauth/internal/verify/app"
	"github.com/aussiebroadwan/stepauth/internal/verify/service"
)

func main() {
	_ = godotenv.Load(".env") // optional

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "verifyd",
		Short:         "Two step verification service",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       app.BuildVersion,
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(app.LoadConfig())
			if err != nil {
				return err
			}
			return a.Run()
		},
	}

	root.AddCommand(serve, userCmd())
	return root
}

// withUsers opens the database named by the environment and runs fn.
func withUsers(fn func(ctx context.Context, users *service.UserService) error) error {
	cfg := app.LoadConfig()

	db, err := app.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	hasher, err := app.NewHasher(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return fn(ctx, &service.UserService{Store: db, Hasher: hasher})
}

func userCmd() *cobra.Command {
	users := &cobra.Command{
		Use:   "user",
		Short: "Manage the users allowed to log in",
	}

	var username, chatID string

	add := &cobra.Command{
		Use:   "add",
		Short: "Create a user; the password is prompted for or read from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := termx.Stdio().NewSecret("Password: ", "Repeat password: ")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			return withUsers(func(ctx context.Context, us *service.UserService) error {
				u, err := us.AddUser(ctx, username, password, chatID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", u.Username, u.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&username, "username", "", "login name")
	add.Flags().StringVar(&chatID, "chat-id", "", "messenger chat the codes are sent to")
	_ = add.MarkFlagRequired("username")
	_ = add.MarkFlagRequired("chat-id")

	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsers(func(ctx context.Context, us *service.UserService) error {
				all, err := us.ListUsers(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "USERNAME\tCHAT ID\tCREATED")
				for _, u := range all {
					fmt.Fprintf(w, "%s\t%s\t%s\n", u.Username, u.ChatID, u.CreatedAt.Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}

	passwd := &cobra.Command{
		Use:   "passwd",
		Short: "Change a user's password",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := termx.Stdio().NewSecret("New password: ", "Repeat password: ")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			return withUsers(func(ctx context.Context, us *service.UserService) error {
				return us.SetPassword(ctx, username, password)
			})
		},
	}
	passwd.Flags().StringVar(&username, "username", "", "login name")
	_ = passwd.MarkFlagRequired("username")

	setChat := &cobra.Command{
		Use:   "set-chat",
		Short: "Send a user's codes to another chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsers(func(ctx context.Context, us *service.UserService) error {
				return us.SetChatID(ctx, username, chatID)
			})
		},
	}
	setChat.Flags().StringVar(&username, "username", "", "login name")
	setChat.Flags().StringVar(&chatID, "chat-id", "", "messenger chat the codes are sent to")
	_ = setChat.MarkFlagRequired("username")
	_ = setChat.MarkFlagRequired("chat-id")

	remove := &cobra.Command{
		Use:   "remove",
		Short: "Delete a user with its challenges and sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsers(func(ctx context.Context, us *service.UserService) error {
				return us.RemoveUser(ctx, username)
			})
		},
	}
	remove.Flags().StringVar(&username, "username", "", "login name")
	_ = remove.MarkFlagRequired("username")

	users.AddCommand(add, list, passwd, setChat, remove)
	return users
}
