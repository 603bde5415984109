// Command billboardctl is a command-line client for the billboard server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/example/billboard-server/internal/policy"
	"github.com/example/billboard-server/internal/transport"
)

const (
	defaultAddr    = "127.0.0.1:4000"
	defaultTimeout = 30 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "billboardctl: %v\n", err)
		os.Exit(1)
	}
}

type command struct {
	usage string
	run   func(ctx context.Context, env *cliEnv, args []string) error
}

// cliEnv carries what every command needs.
type cliEnv struct {
	client *transport.Client
	out    io.Writer
	errOut io.Writer
}

var commands = map[string]command{
	"login":           {"login USERNAME [--password P]", runLogin},
	"logout":          {"logout", runLogout},
	"whoami":          {"whoami", runWhoami},
	"billboards":      {"billboards", runListBillboards},
	"show":            {"show ID|NAME", runShowBillboard},
	"create":          {"create NAME (--file PATH | --content XML)", runCreateBillboard},
	"update":          {"update ID [--name NAME] (--file PATH | --content XML)", runUpdateBillboard},
	"delete":          {"delete ID", runDeleteBillboard},
	"current":         {"current", runCurrent},
	"schedules":       {"schedules [--billboard ID]", runListSchedules},
	"schedule":        {"schedule BILLBOARD_ID --day D --start HH:MM --duration MIN [--every MIN]", runAddSchedule},
	"unschedule":      {"unschedule SCHEDULE_ID", runDeleteSchedule},
	"users":           {"users", runListUsers},
	"user":            {"user ID|USERNAME", runShowUser},
	"add-user":        {"add-user USERNAME --password P [--permissions a,b]", runAddUser},
	"delete-user":     {"delete-user ID", runDeleteUser},
	"set-permissions": {"set-permissions ID --permissions a,b", runSetPermissions},
	"set-password":    {"set-password ID --password P", runSetPassword},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags := pflag.NewFlagSet("billboardctl", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.SetInterspersed(false)
	addr := flags.StringP("addr", "a", envOr("BILLBOARD_ADDR", defaultAddr), "server address")
	token := flags.StringP("token", "t", os.Getenv("BILLBOARD_TOKEN"), "session token")
	timeout := flags.Duration("timeout", defaultTimeout, "request timeout")
	flags.Usage = func() {
		fmt.Fprintln(stderr, "usage: billboardctl [flags] COMMAND [args]")
		flags.PrintDefaults()
		fmt.Fprintln(stderr, "\ncommands:")
		names := make([]string, 0, len(commands))
		for name := range commands {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(stderr, "  %s\n", commands[name].usage)
		}
	}
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return errors.New("missing command")
	}

	name := flags.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}

	client := transport.NewClient(*addr)
	client.SetToken(*token)

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	return cmd.run(ctx, &cliEnv{client: client, out: stdout, errOut: stderr}, flags.Args()[1:])
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func (e *cliEnv) print(v any) error {
	encoder := yaml.NewEncoder(e.out)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return encoder.Close()
}

func newFlagSet(name string) *pflag.FlagSet {
	return pflag.NewFlagSet(name, pflag.ContinueOnError)
}

func parseArgs(flags *pflag.FlagSet, args []string, positional int) ([]string, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if flags.NArg() != positional {
		return nil, fmt.Errorf("%s: expected %d argument(s), got %d", flags.Name(), positional, flags.NArg())
	}
	return flags.Args(), nil
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", value)
	}
	return id, nil
}

// parseMinuteOfDay accepts HH:MM or a plain minute count.
func parseMinuteOfDay(value string) (int, error) {
	if hours, minutes, ok := strings.Cut(value, ":"); ok {
		h, herr := strconv.Atoi(hours)
		m, merr := strconv.Atoi(minutes)
		if herr != nil || merr != nil || h < 0 || h > 23 || m < 0 || m > 59 {
			return 0, fmt.Errorf("invalid time of day %q", value)
		}
		return h*60 + m, nil
	}
	minute, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", value)
	}
	return minute, nil
}

var dayNames = map[string]int{
	"mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6, "sun": 7,
}

// parseDay accepts 1..7 or a three-letter English day name.
func parseDay(value string) (int, error) {
	key := strings.ToLower(value)
	if len(key) >= 3 {
		if day, ok := dayNames[key[:3]]; ok {
			return day, nil
		}
	}
	day, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid day %q", value)
	}
	return day, nil
}

func parsePermissions(value string) (policy.Permissions, error) {
	var perms policy.Permissions
	for _, raw := range strings.Split(value, ",") {
		switch strings.TrimSpace(raw) {
		case "":
		case "createBillboards":
			perms.CreateBillboards = true
		case "editBillboards":
			perms.EditBillboards = true
		case "scheduleBillboards":
			perms.ScheduleBillboards = true
		case "editUsers":
			perms.EditUsers = true
		case "all":
			perms = policy.All()
		default:
			return policy.Permissions{}, fmt.Errorf("unknown permission %q", raw)
		}
	}
	return perms, nil
}

func readContent(file, content string) (string, error) {
	switch {
	case file != "" && content != "":
		return "", errors.New("use either --file or --content")
	case file == "-":
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", file, err)
		}
		return string(data), nil
	default:
		return content, nil
	}
}

// ------------------------------- session -------------------------------

func runLogin(ctx context.Context, env *cliEnv, args []string) error {
	flags := newFlagSet("login")
	password := flags.StringP("password", "p", os.Getenv("BILLBOARD_PASSWORD"), "account password")
	rest, err := parseArgs(flags, args, 1)
	if err != nil {
		return err
	}
	login, err := env.client.Login(ctx, rest[0], *password)
	if err != nil {
		return err
	}
	return env.print(map[string]any{
		"token":       login.Token,
		"userId":      login.UserID,
		"expiresAt":   login.ExpiresAt,
		"permissions": login.Permissions,
	})
}

func runLogout(ctx context.Context, env *cliEnv, args []string) error {
	if _, err := parseArgs(newFlagSet("logout"), args, 0); err != nil {
		return err
	}
	return env.client.Logout(ctx)
}

func runWhoami(ctx context.Context, env *cliEnv, args []string) error {
	if _, err := parseArgs(newFlagSet("whoami"), args, 0); err != nil {
		return err
	}
	perms, err := env.client.GetOwnPermissions(ctx)
	if err != nil {
		return err
	}
	return env.print(perms)
}

// ------------------------------ billboards ------------------------------

func runListBillboards(ctx context.Context, env *cliEnv, args []string) error {
	if _, err := parseArgs(newFlagSet("billboards"), args, 0); err != nil {
		return err
	}
	billboards, err := env.client.ListBillboards(ctx)
	if err != nil {
		return err
	}
	return env.print(billboards)
}

// resolveBillboard accepts an id or a name.
func resolveBillboard(ctx context.Context, client *transport.Client, ref string) (int64, error) {
	if id, err := parseID(ref); err == nil {
		return id, nil
	}
	return client.GetBillboardID(ctx, ref)
}

func runShowBillboard(ctx context.Context, env *cliEnv, args []string) error {
	rest, err := parseArgs(newFlagSet("show"), args, 1)
	if err != nil {
		return err
	}
	id, err := resolveBillboard(ctx, env.client, rest[0])
	if err != nil {
		return err
	}
	data, err := env.client.GetBillboardData(ctx, id)
	if err != nil {
		return err
	}
	return env.print(data)
}

func runCreateBillboard(ctx context.Context, env *cliEnv, args []string) error {
	flags := newFlagSet("create")
	file := flags.StringP("file", "f", "", "read the billboard document from PATH (- for stdin)")
	content := flags.String("content", "", "billboard document")
	rest, err := parseArgs(flags, args, 1)
	if err != nil {
		return err
	}
	document, err := readContent(*file, *content)
	if err != nil {
		return err
	}
	id, err := env.client.CreateBillboard(ctx, rest[0], document)
	if err != nil {
		return err
	}
	return env.print(map[string]int64{"billboardId": id})
}

func runUpdateBillboard(ctx context.Context, env *cliEnv, args []string) error {
	flags := newFlagSet("update")
	name := flags.String("name", "", "new billboard name")
	file := flags.StringP("file", "f", "", "read the billboard document from PATH (- for stdin)")
	content := flags.String("content", "", "billboard document")
	rest, err := parseArgs(flags, args, 1)
	if err != nil {
		return err
	}
	id, err := parseID(rest[0])
	if err != nil {
		return err
	}

	current, err := env.client.GetBillboardData(ctx, id)
	if err != nil {
		return err
	}
	document := current.Content
	if *file != "" || *content != "" {
		if document, err = readContent(*file, *content); err != nil {
			return err
		}
	}
	newName := current.Name
	if *name != "" {
		newName = *name
	}
	return env.client.UpdateBillboard(ctx, id, newName, document)
}

func runDeleteBillboard(ctx context.Context, env *cliEnv, args []string) error {
	rest, err := parseArgs(newFlagSet("delete"), args, 1)
	if err != nil {
		return err
	}
	id, err := parseID(rest[0])
	if err != nil {
		return err
	}
	return env.client.DeleteBillboard(ctx, id)
}

func runCurrent(ctx context.Context, env *cliEnv, args []string) error {
	if _, err := parseArgs(newFlagSet("current"), args, 0); err != nil {
		return err
	}
	current, err := env.client.GetCurrentBillboard(ctx)
	if err != nil {
		return err
	}
	return env.print(current)
}

// ------------------------------- schedules -------------------------------

func runListSchedules(ctx context.Context, env *cliEnv, args []string) error {
	flags := newFlagSet("schedules")
	billboard := flags.String("billboard", "", "only list schedules of this billboard id or name")
	if _, err := parseArgs(flags, args, 0); err != nil {
		return err
	}

	var (
		schedules []transport.ScheduleInfo
		err       error
	)
	if *billboard != "" {
		var id int64
		if id, err = resolveBillboard(ctx, env.client, *billboard); err != nil {
			return err
		}
		schedules, err = env.client.GetBillboardSchedule(ctx, id)
	} else {
		schedules, err = env.client.GetAllSchedules(ctx)
	}
	if err != nil {
		return err
	}
	return env.print(schedules)
}

func runAddSchedule(ctx context.Context, env *cliEnv, args []string) error {
	flags := newFlagSet("schedule")
	day := flags.String("day", "", "day of week: 1 (Monday) to 7 (Sunday) or a day name")
	start := flags.String("start", "", "start time as HH:MM")
	duration := flags.Int("duration", 0, "minutes on screen")
	every := flags.Int("every", 0, "repeat every N minutes for the rest of the week")
	rest, err := parseArgs(flags, args, 1)
	if err != nil {
		return err
	}

	billboardID, err := resolveBillboard(ctx, env.client, rest[0])
	if err != nil {
		return err
	}
	dayNumber, err := parseDay(*day)
	if err != nil {
		return err
	}
	startMinute, err := parseMinuteOfDay(*start)
	if err != nil {
		return err
	}

	result, err := env.client.AddSchedule(ctx, transport.AddScheduleRequest{
		BillboardID:     billboardID,
		Day:             dayNumber,
		StartMinute:     startMinute,
		DurationMinutes: *duration,
		Repeating:       *every > 0,
		GapMinutes:      *every,
	})
	if err != nil {
		return err
	}
	if len(result.Overridden) > 0 {
		fmt.Fprintf(env.errOut, "warning: overrides schedules %v during the overlap\n", result.Overridden)
	}
	return env.print(result)
}

func runDeleteSchedule(ctx context.Context, env *cliEnv, args []string) error {
	rest, err := parseArgs(newFlagSet("unschedule"), args, 1)
	if err != nil {
		return err
	}
	id, err := parseID(rest[0])
	if err != nil {
		return err
	}
	return env.client.DeleteSchedule(ctx, id)
}

// --------------------------------- users ---------------------------------

func runListUsers(ctx context.Context, env *cliEnv, args []string) error {
	if _, err := parseArgs(newFlagSet("users"), args, 0); err != nil {
		return err
	}
	users, err := env.client.GetUsernames(ctx)
	if err != nil {
		return err
	}
	return env.print(users)
}

func runShowUser(ctx context.Context, env *cliEnv, args []string) error {
	rest, err := parseArgs(newFlagSet("user"), args, 1)
	if err != nil {
		return err
	}
	id, err := parseID(rest[0])
	if err != nil {
		if id, err = env.client.GetUserID(ctx, rest[0]); err != nil {
			return err
		}
	}
	data, err := env.client.GetUserData(ctx, id)
	if err != nil {
		return err
	}
	return env.print(data)
}

func runAddUser(ctx context.Context, env *cliEnv, args []string) error {
	flags := newFlagSet("add-user")
	password := flags.StringP("password", "p", "", "initial password")
	permissions := flags.String("permissions", "", "comma separated permissions or all")
	rest, err := parseArgs(flags, args, 1)
	if err != nil {
		return err
	}
	perms, err := parsePermissions(*permissions)
	if err != nil {
		return err
	}
	id, err := env.client.AddUser(ctx, rest[0], *password, perms)
	if err != nil {
		return err
	}
	return env.print(map[string]int64{"userId": id})
}

func runDeleteUser(ctx context.Context, env *cliEnv, args []string) error {
	rest, err := parseArgs(newFlagSet("delete-user"), args, 1)
	if err != nil {
		return err
	}
	id, err := parseID(rest[0])
	if err != nil {
		return err
	}
	return env.client.DeleteUser(ctx, id)
}

func runSetPermissions(ctx context.Context, env *cliEnv, args []string) error {
	flags := newFlagSet("set-permissions")
	permissions := flags.String("permissions", "", "comma separated permissions or all")
	rest, err := parseArgs(flags, args, 1)
	if err != nil {
		return err
	}
	id, err := parseID(rest[0])
	if err != nil {
		return err
	}
	perms, err := parsePermissions(*permissions)
	if err != nil {
		return err
	}
	applied, err := env.client.UpdateUserPermissions(ctx, id, perms)
	if err != nil {
		return err
	}
	return env.print(applied)
}

func runSetPassword(ctx context.Context, env *cliEnv, args []string) error {
	flags := newFlagSet("set-password")
	password := flags.StringP("password", "p", "", "new password")
	rest, err := parseArgs(flags, args, 1)
	if err != nil {
		return err
	}
	id, err := parseID(rest[0])
	if err != nil {
		return err
	}
	return env.client.UpdatePassword(ctx, id, *password)
}
