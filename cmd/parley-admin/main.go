// ABOUTME: Admin CLI for the parley datastore
// ABOUTME: Initializes the schema and manages users, sessions and chat history locally

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/identity"
	"github.com/parleyhq/parley/internal/ledger"
	"github.com/parleyhq/parley/internal/store"
	"github.com/parleyhq/parley/internal/token"
)

// Version is set by goreleaser at build time.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}
	if cmd == "version" {
		fmt.Println("parley-admin", version)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
	setupLogger(cfg.Logging)

	st, err := store.Open(cfg.Database)
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	switch cmd {
	case "init":
		// Open already migrated the schema; say so.
		color.Green("Schema is up to date (%s backend)\n", cfg.Database.Backend)
	case "user":
		err = cmdUser(st, args)
	case "session":
		err = cmdSession(st, args)
	case "chat":
		err = cmdChat(st, args)
	case "purge":
		err = cmdPurge(st)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the config path from PARLEY_CONFIG, falling back to
// ./parley.yaml.
func loadConfig() (*config.Config, error) {
	path := os.Getenv("PARLEY_CONFIG")
	if path == "" {
		path = "parley.yaml"
	}
	return config.Load(path)
}

func setupLogger(cfg config.LoggingConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Println("parley-admin - datastore administration")
	fmt.Println()
	fmt.Println("Usage: parley-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  init                          Create or migrate the schema")
	fmt.Println("  user add <email> <password>   Register a user")
	fmt.Println("  user show <email>             Show a user's profile")
	fmt.Println("  user verify <email>           Issue and print an email-verification token")
	fmt.Println("  user deactivate <email>       Deactivate an account")
	fmt.Println("  session list <email>          List a user's auth sessions")
	fmt.Println("  chat new                      Generate a fresh chat session id")
	fmt.Println("  chat history <session-id>     Print a chat session's history")
	fmt.Println("  chat sessions <email>         List a user's chat sessions")
	fmt.Println("  purge                         Delete expired sessions and tokens")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  PARLEY_CONFIG    Config file path (default: ./parley.yaml)")
	fmt.Println()
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func cmdUser(st store.Store, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: user <add|show|verify|deactivate> <email> [password]")
	}
	sub, email := args[0], args[1]

	ctx, cancel := opCtx()
	defer cancel()

	svc := identity.NewService(st)

	switch sub {
	case "add":
		if len(args) < 3 {
			return fmt.Errorf("usage: user add <email> <password>")
		}
		user, err := svc.Register(ctx, email, args[2], "", "")
		if err != nil {
			return err
		}
		color.Green("Created user %d (%s)\n", user.ID, user.Email)
		return nil
	case "show":
		user, err := svc.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		printUser(user)
		return nil
	case "verify":
		user, err := svc.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		tok, err := token.NewIssuer(st).IssueEmailVerification(ctx, user.ID)
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	case "deactivate":
		user, err := svc.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		if err := svc.Deactivate(ctx, user.ID); err != nil {
			return err
		}
		color.Green("Deactivated user %d\n", user.ID)
		return nil
	default:
		return fmt.Errorf("unknown user subcommand: %s", sub)
	}
}

func printUser(user *store.User) {
	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  User")
	cyan.Println("  ----")
	fmt.Printf("  ID:           %d\n", user.ID)
	fmt.Printf("  Email:        %s\n", user.Email)
	fmt.Printf("  Full Name:    %s\n", orDash(user.FullName))
	fmt.Printf("  Display Name: %s\n", orDash(user.DisplayName))
	fmt.Printf("  Job Title:    %s\n", orDash(user.JobTitle))
	fmt.Printf("  Timezone:     %s\n", user.Timezone)
	fmt.Printf("  Active:       %v\n", user.IsActive)
	fmt.Printf("  Verified:     %v\n", user.IsVerified)
	fmt.Printf("  Created:      %s\n", user.CreatedAt.Format(time.RFC3339))
	fmt.Println()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func cmdSession(st store.Store, args []string) error {
	if len(args) < 2 || args[0] != "list" {
		return fmt.Errorf("usage: session list <email>")
	}

	ctx, cancel := opCtx()
	defer cancel()

	user, err := identity.NewService(st).GetByEmail(ctx, args[1])
	if err != nil {
		return err
	}

	sessions, err := st.ListUserSessions(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tACTIVE\tEXPIRES\tLAST USED\tUSER AGENT")
	for _, sess := range sessions {
		fmt.Fprintf(w, "%d\t%v\t%s\t%s\t%s\n",
			sess.ID,
			sess.IsActive,
			sess.ExpiresAt.Format(time.RFC3339),
			sess.LastUsedAt.Format(time.RFC3339),
			orDash(sess.UserAgent),
		)
	}
	return w.Flush()
}

func cmdChat(st store.Store, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: chat <new|history|sessions> [args]")
	}

	ctx, cancel := opCtx()
	defer cancel()

	lg := ledger.New(st)

	switch args[0] {
	case "new":
		sessionID := uuid.NewString()
		if err := lg.EnsureSession(ctx, sessionID, nil); err != nil {
			return err
		}
		fmt.Println(sessionID)
		return nil
	case "history":
		if len(args) < 2 {
			return fmt.Errorf("usage: chat history <session-id>")
		}
		limit := 0
		if len(args) > 2 {
			n, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("parsing limit %q: %w", args[2], err)
			}
			limit = n
		}
		messages, err := lg.History(ctx, args[1], limit)
		if err != nil {
			return err
		}
		for _, msg := range messages {
			role := color.CyanString(msg.Role)
			if msg.Role == ledger.RoleAssistant {
				role = color.GreenString(msg.Role)
			}
			fmt.Printf("[%s] %s: %s\n", msg.Timestamp.Format(time.RFC3339), role, msg.Content)
		}
		return nil
	case "sessions":
		if len(args) < 2 {
			return fmt.Errorf("usage: chat sessions <email>")
		}
		user, err := identity.NewService(st).GetByEmail(ctx, args[1])
		if err != nil {
			return err
		}
		sessions, err := lg.SessionsForUser(ctx, user.ID)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tCREATED\tUPDATED")
		for _, sess := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%s\n",
				sess.SessionID,
				sess.CreatedAt.Format(time.RFC3339),
				sess.UpdatedAt.Format(time.RFC3339),
			)
		}
		return w.Flush()
	default:
		return fmt.Errorf("unknown chat subcommand: %s", args[0])
	}
}

func cmdPurge(st store.Store) error {
	ctx, cancel := opCtx()
	defer cancel()

	sessions, err := st.DeleteExpiredSessions(ctx)
	if err != nil {
		return err
	}
	tokens, err := st.DeleteExpiredTokens(ctx)
	if err != nil {
		return err
	}
	color.Green("Purged %d expired sessions and %d expired tokens\n", sessions, tokens)
	return nil
}
