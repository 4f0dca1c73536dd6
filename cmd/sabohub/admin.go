package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sabohub/sabohub/internal/app"
	"github.com/sabohub/sabohub/internal/audit"
	"github.com/sabohub/sabohub/internal/auth"
	"github.com/sabohub/sabohub/internal/companies"
	"github.com/sabohub/sabohub/internal/db"
	"github.com/sabohub/sabohub/internal/events"
	"github.com/sabohub/sabohub/internal/retention"
	"github.com/sabohub/sabohub/internal/roles"
	"github.com/sabohub/sabohub/internal/users"
	"github.com/sabohub/sabohub/internal/validation"
)

const adminTimeout = 2 * time.Minute

type adminCommand struct {
	name  string
	usage string
	run   func(args []string) int
}

func adminCommands() []adminCommand {
	return []adminCommand{
		{"migrate", "migrate [--db-dsn <dsn>]", runMigrate},
		{"create-company", "create-company --name <name> --ceo-email <email> [--ceo-name <name>] [--ceo-password <pw>] [--business-type <type>] [--db-dsn <dsn>]", runCreateCompany},
		{"create-user", "create-user --company-id <id> --email <email> --role <ROLE> [--name <name>] [--password <pw>] [--db-dsn <dsn>]", runCreateUser},
		{"set-role", "set-role --company-id <id> --user-id <id> --role <ROLE> [--db-dsn <dsn>]", runSetRole},
		{"repair-ceos", "repair-ceos [--db-dsn <dsn>]", runRepairCEOs},
		{"expired-invitations", "expired-invitations [--since 24h] [--db-dsn <dsn>]", runExpiredInvitations},
		{"purge-invitations", "purge-invitations --older-than <duration> [--db-dsn <dsn>]", runPurgeInvitations},
		{"issue-token", "issue-token --user-id <id> [--hours 24] [--jwt-secret <secret>]", runIssueToken},
		{"reset-password", "reset-password --email user@example.com [--password <new>] [--db-dsn <dsn>]", runResetPassword},
	}
}

func runAdmin(args []string) int {
	if len(args) == 0 {
		printAdminUsage(os.Stderr)
		return 2
	}

	for _, cmd := range adminCommands() {
		if cmd.name == args[0] {
			return cmd.run(args[1:])
		}
	}

	fmt.Fprintf(os.Stderr, "Unknown admin command: %s\n", args[0])
	printAdminUsage(os.Stderr)
	return 2
}

func printAdminUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	for _, cmd := range adminCommands() {
		fmt.Fprintf(w, "  sabohub admin %s\n", cmd.usage)
	}
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - --db-dsn defaults to SH_DB_DSN, --jwt-secret to SH_JWT_SECRET.")
	fmt.Fprintln(w, "  - repair-ceos keeps the earliest CEO of each company and demotes the rest to BRANCH_MANAGER;")
	fmt.Fprintln(w, "    companies without a CEO get their earliest active BRANCH_MANAGER promoted.")
}

func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	dsn := fs.String("db-dsn", "", "Postgres DSN (defaults to SH_DB_DSN)")
	return fs, dsn
}

func parseFlags(fs *flag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0, false
		}
		return 2, false
	}
	return 0, true
}

func resolveDSN(flagValue string) (string, bool) {
	dsn := strings.TrimSpace(flagValue)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("SH_DB_DSN"))
	}
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "--db-dsn is required (or set SH_DB_DSN)")
		return "", false
	}
	return dsn, true
}

func connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	app.SetupLogger(envOr("SH_LOG_LEVEL", "warn"), true)
	return db.Connect(ctx, dsn, db.Options{})
}

// adminDispatcher records admin changes in the audit log like API changes.
// The returned recorder sees the same events for the command summary.
func adminDispatcher(pool *pgxpool.Pool) (events.Dispatcher, *events.Recorder) {
	d := events.NewInMemoryDispatcher()
	audit.NewWriter(pool).Register(d)
	rec := &events.Recorder{}
	d.SubscribeAll(rec.Handle)
	return d, rec
}

// writeEventSummary lists the events a command published, one per line.
func writeEventSummary(w io.Writer, rec *events.Recorder) {
	for _, ev := range rec.Events() {
		fmt.Fprintf(w, "event=%s company_id=%s\n", ev.Type, ev.CompanyID)
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func requireFlag(value, name string) bool {
	if strings.TrimSpace(value) == "" {
		fmt.Fprintf(os.Stderr, "--%s is required\n", name)
		return false
	}
	return true
}

func parseUUIDFlag(value, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		fmt.Fprintf(os.Stderr, "--%s must be a UUID\n", name)
		return uuid.Nil, false
	}
	return id, true
}

func hashOptionalPassword(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	if err := validation.ValidatePassword(password); err != nil {
		return "", err
	}
	return auth.HashPassword(password)
}

func runMigrate(args []string) int {
	fs, dsnFlag := newFlagSet("migrate")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	dsn, ok := resolveDSN(*dsnFlag)
	if !ok {
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	pool, err := connect(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	pending, err := db.PendingMigrations(ctx, pool)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list migrations: %v\n", err)
		return 1
	}
	if err := db.RunMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to run migrations: %v\n", err)
		return 1
	}

	fmt.Fprintf(os.Stdout, "Applied %d migration(s).\n", len(pending))
	for _, m := range pending {
		fmt.Fprintf(os.Stdout, "  %s\n", m)
	}
	return 0
}

func runCreateCompany(args []string) int {
	fs, dsnFlag := newFlagSet("create-company")
	name := fs.String("name", "", "Company name")
	businessType := fs.String("business-type", "", "Business type")
	contactEmail := fs.String("contact-email", "", "Contact email")
	contactPhone := fs.String("contact-phone", "", "Contact phone")
	address := fs.String("address", "", "Address")
	ceoEmail := fs.String("ceo-email", "", "Email of the first CEO")
	ceoName := fs.String("ceo-name", "", "Full name of the first CEO")
	ceoPassword := fs.String("ceo-password", "", "Password of the first CEO (optional)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if !requireFlag(*name, "name") || !requireFlag(*ceoEmail, "ceo-email") {
		return 2
	}
	dsn, ok := resolveDSN(*dsnFlag)
	if !ok {
		return 2
	}

	passwordHash, err := hashOptionalPassword(*ceoPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid password: %v\n", err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	pool, err := connect(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	dispatcher, recorder := adminDispatcher(pool)
	service := companies.NewService(pool, dispatcher)
	company, ceo, err := service.CreateCompanyWithCEO(ctx, *name, companies.Details{
		BusinessType: *businessType,
		ContactEmail: *contactEmail,
		ContactPhone: *contactPhone,
		Address:      *address,
	}, users.NewUser{
		Email:        *ceoEmail,
		FullName:     *ceoName,
		PasswordHash: passwordHash,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create company: %v\n", err)
		return 1
	}

	fmt.Fprintf(os.Stdout, "company_id=%s\n", company.ID)
	fmt.Fprintf(os.Stdout, "ceo_user_id=%s\n", ceo.ID)
	writeEventSummary(os.Stderr, recorder)
	return 0
}

func runCreateUser(args []string) int {
	fs, dsnFlag := newFlagSet("create-user")
	companyIDFlag := fs.String("company-id", "", "Company ID")
	email := fs.String("email", "", "User email")
	role := fs.String("role", "", "CEO, BRANCH_MANAGER, SHIFT_LEADER or STAFF")
	name := fs.String("name", "", "Full name")
	password := fs.String("password", "", "Password (optional)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if !requireFlag(*email, "email") || !requireFlag(*role, "role") {
		return 2
	}
	companyID, ok := parseUUIDFlag(*companyIDFlag, "company-id")
	if !ok {
		return 2
	}
	r, err := roles.Parse(*role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --role: %v\n", err)
		return 2
	}
	dsn, ok := resolveDSN(*dsnFlag)
	if !ok {
		return 2
	}

	passwordHash, err := hashOptionalPassword(*password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid password: %v\n", err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	pool, err := connect(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	dispatcher, recorder := adminDispatcher(pool)
	service := users.NewService(pool, dispatcher)
	user, err := service.CreateUser(ctx, nil, users.NewUser{
		Email:        *email,
		FullName:     *name,
		PasswordHash: passwordHash,
		Role:         r,
		CompanyID:    companyID,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create user: %v\n", err)
		return 1
	}

	fmt.Fprintf(os.Stdout, "user_id=%s\n", user.ID)
	writeEventSummary(os.Stderr, recorder)
	return 0
}

func runSetRole(args []string) int {
	fs, dsnFlag := newFlagSet("set-role")
	companyIDFlag := fs.String("company-id", "", "Company ID")
	userIDFlag := fs.String("user-id", "", "User ID")
	role := fs.String("role", "", "CEO, BRANCH_MANAGER, SHIFT_LEADER or STAFF")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	companyID, ok := parseUUIDFlag(*companyIDFlag, "company-id")
	if !ok {
		return 2
	}
	userID, ok := parseUUIDFlag(*userIDFlag, "user-id")
	if !ok {
		return 2
	}
	r, err := roles.Parse(*role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --role: %v\n", err)
		return 2
	}
	dsn, ok := resolveDSN(*dsnFlag)
	if !ok {
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	pool, err := connect(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	dispatcher, recorder := adminDispatcher(pool)
	previous, err := users.NewService(pool, dispatcher).AssignRole(ctx, companyID, userID, r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set role: %v\n", err)
		return 1
	}

	fmt.Fprintf(os.Stdout, "%s -> %s\n", previous, r)
	writeEventSummary(os.Stderr, recorder)
	return 0
}

func runRepairCEOs(args []string) int {
	fs, dsnFlag := newFlagSet("repair-ceos")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	dsn, ok := resolveDSN(*dsnFlag)
	if !ok {
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	pool, err := connect(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	dispatcher, recorder := adminDispatcher(pool)
	report, err := users.NewService(pool, dispatcher).RepairCEOs(ctx)
	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	}
	writeEventSummary(os.Stderr, recorder)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CEO repair failed: %v\n", err)
		return 1
	}
	if len(report.Failures) > 0 {
		return 1
	}
	return 0
}

func runExpiredInvitations(args []string) int {
	fs, dsnFlag := newFlagSet("expired-invitations")
	since := fs.Duration("since", 24*time.Hour, "Report window")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	dsn, ok := resolveDSN(*dsnFlag)
	if !ok {
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	pool, err := connect(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	report, err := retention.ReportExpiredInvitations(ctx, pool, *since)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build report: %v\n", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
	return 0
}

func runPurgeInvitations(args []string) int {
	fs, dsnFlag := newFlagSet("purge-invitations")
	olderThan := fs.Duration("older-than", 0, "Delete never-redeemed invitations that expired longer ago than this")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if *olderThan <= 0 {
		fmt.Fprintln(os.Stderr, "--older-than is required and must be positive (e.g. 2160h)")
		return 2
	}
	dsn, ok := resolveDSN(*dsnFlag)
	if !ok {
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	pool, err := connect(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	deleted, err := retention.PurgeExpiredInvitations(ctx, pool, *olderThan)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to purge invitations: %v\n", err)
		return 1
	}

	fmt.Fprintf(os.Stdout, "Deleted %d invitation(s).\n", deleted)
	return 0
}

func runIssueToken(args []string) int {
	fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	userIDFlag := fs.String("user-id", "", "User ID")
	hours := fs.Int("hours", 24, "Token lifetime in hours")
	secret := fs.String("jwt-secret", "", "Signing secret (defaults to SH_JWT_SECRET)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	userID, ok := parseUUIDFlag(*userIDFlag, "user-id")
	if !ok {
		return 2
	}
	if *hours <= 0 {
		fmt.Fprintln(os.Stderr, "--hours must be positive")
		return 2
	}
	key := strings.TrimSpace(*secret)
	if key == "" {
		key = os.Getenv("SH_JWT_SECRET")
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "--jwt-secret is required (or set SH_JWT_SECRET)")
		return 2
	}

	token, err := auth.CreateToken(userID, key, time.Duration(*hours)*time.Hour)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create token: %v\n", err)
		return 1
	}

	fmt.Fprintln(os.Stdout, token)
	return 0
}

func runResetPassword(args []string) int {
	fs, dsnFlag := newFlagSet("reset-password")
	email := fs.String("email", "", "User email")
	password := fs.String("password", "", "New password (if empty, generates one)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if !requireFlag(*email, "email") {
		return 2
	}
	dsn, ok := resolveDSN(*dsnFlag)
	if !ok {
		return 2
	}

	newPassword := *password
	generated := false
	if newPassword == "" {
		pw, err := generatePassword(24)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate password: %v\n", err)
			return 1
		}
		newPassword = pw
		generated = true
	}

	passwordHash, err := hashOptionalPassword(newPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid password: %v\n", err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	pool, err := connect(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	tag, err := pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = NOW()
		WHERE lower(email) = lower($1)
	`, strings.TrimSpace(*email), passwordHash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to update password: %v\n", err)
		return 1
	}
	if tag.RowsAffected() == 0 {
		fmt.Fprintf(os.Stderr, "No user found with email %q\n", *email)
		return 1
	}

	fmt.Fprintln(os.Stdout, "Password updated.")
	if generated {
		fmt.Fprintln(os.Stdout, newPassword)
	}
	return 0
}

func generatePassword(bytesLen int) (string, error) {
	if bytesLen < 8 {
		bytesLen = 8
	}

	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	// URL-safe, printable, without padding.
	return base64.RawURLEncoding.EncodeToString(b), nil
}
