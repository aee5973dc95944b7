package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/wealthbuilder-ke/wealthbuilder/internal/account"
	"github.com/wealthbuilder-ke/wealthbuilder/internal/api"
	"github.com/wealthbuilder-ke/wealthbuilder/internal/dashboard"
	"github.com/wealthbuilder-ke/wealthbuilder/internal/invest"
	"github.com/wealthbuilder-ke/wealthbuilder/internal/learning"
	"github.com/wealthbuilder-ke/wealthbuilder/internal/legal"
	"github.com/wealthbuilder-ke/wealthbuilder/internal/report"
	"github.com/wealthbuilder-ke/wealthbuilder/internal/router"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{"login", "sign in with email and password", runLogin},
		{"register", "create an account", runRegister},
		{"logout", "sign out", runLogout},
		{"whoami", "show the signed-in user", runWhoami},
		{"dashboard", "progress summary and learning paths", runDashboard},
		{"paths", "list learning paths with your progress", runPaths},
		{"module", "show a module; -a answers its quiz", runModule},
		{"investments", "list investment opportunities", runInvestments},
		{"investment", "show one investment opportunity", runInvestment},
		{"register-business", "register a business for funding", runRegisterBusiness},
		{"profile", "show your profile and progress", runProfile},
		{"password", "change your password", runPassword},
		{"legal", "show the terms or privacy policy", runLegal},
		{"export", "export progress or investments to XLSX", runExport},
		{"monitor", "watch realtime auth events and serve health checks", runMonitor},
	}
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func newFlags(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

// leadingArg takes a positional argument given before the flags.
func leadingArg(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}

// password reads a flag value, falling back to an environment variable so
// secrets need not appear in shell history.
func password(flagValue, env string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(env)
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlags("login")
	email := fs.String("email", "", "account email")
	pw := fs.String("password", "", "account password (default $WB_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := a.open(router.PathLogin); err != nil {
		return err
	}
	if a.storeErr != nil {
		return a.storeErr
	}

	forms := account.NewForms(a.client, a.session, a.history)
	if err := forms.Login(ctx, account.LoginInput{Email: *email, Password: password(*pw, "WB_PASSWORD")}); err != nil {
		return err
	}
	u, _ := a.session.User()
	fmt.Fprintf(a.out, "Signed in as %s\n", u.DisplayName())
	return nil
}

func runRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlags("register")
	email := fs.String("email", "", "account email")
	pw := fs.String("password", "", "account password (default $WB_PASSWORD)")
	name := fs.String("name", "", "display name")
	level := fs.String("level", string(api.LevelBeginner), "literacy level: BEGINNER, INTERMEDIATE or ADVANCED")
	goal := fs.String("goal", string(api.GoalLearning), "primary goal: LEARNING or INVESTING")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := a.open(router.PathRegister); err != nil {
		return err
	}
	if a.storeErr != nil {
		return a.storeErr
	}

	forms := account.NewForms(a.client, a.session, a.history)
	err := forms.Register(ctx, account.RegisterInput{
		Email:         *email,
		Password:      password(*pw, "WB_PASSWORD"),
		Name:          *name,
		LiteracyLevel: api.LiteracyLevel(strings.ToUpper(*level)),
		PrimaryGoal:   api.Goal(strings.ToUpper(*goal)),
	})
	if err != nil {
		return err
	}
	u, _ := a.session.User()
	fmt.Fprintf(a.out, "Welcome, %s! Your account is ready.\n", u.DisplayName())
	return nil
}

func runLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.shell.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func runWhoami(_ context.Context, a *app, _ []string) error {
	u, ok := a.session.User()
	if !ok || !a.session.IsAuthenticated() {
		fmt.Fprintln(a.out, "Not signed in")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Name\t%s\n", u.DisplayName())
	fmt.Fprintf(tw, "Email\t%s\n", u.Email)
	if u.LiteracyLevel != "" {
		fmt.Fprintf(tw, "Literacy level\t%s\n", u.LiteracyLevel.Label())
	}
	if u.PrimaryGoal != "" {
		fmt.Fprintf(tw, "Primary goal\t%s\n", u.PrimaryGoal)
	}
	return tw.Flush()
}

func runDashboard(ctx context.Context, a *app, _ []string) error {
	if _, err := a.open(router.PathDashboard); err != nil {
		return err
	}
	s, err := dashboard.Open(a.client, a.session).Load(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, s.Greeting)
	fmt.Fprintln(a.out)
	if s.ProgressErr != nil {
		fmt.Fprintln(a.out, "Progress is unavailable right now.")
	}
	writeProgress(a.out, s.Progress)
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Learning paths:")
	if s.PathsErr != nil {
		fmt.Fprintln(a.out, "  Learning paths are unavailable right now.")
	}
	for _, p := range s.Paths {
		fmt.Fprintf(a.out, "  %s (%s, %d modules)\n", p.Title, p.Level.Label(), len(p.Modules))
	}
	return nil
}

func writeProgress(w io.Writer, p api.UserProgress) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Completed modules\t%d\n", p.CompletedModules)
	fmt.Fprintf(tw, "Quizzes taken\t%d\n", p.QuizzesTaken)
	fmt.Fprintf(tw, "Average score\t%s%%\n", strconv.FormatFloat(p.AverageScore, 'f', -1, 64))
	fmt.Fprintf(tw, "Streak\t%d days\n", p.Streak)
	fmt.Fprintf(tw, "Overall progress\t%s%%\n", strconv.FormatFloat(p.OverallProgress, 'f', -1, 64))
	_ = tw.Flush()
}

func runPaths(ctx context.Context, a *app, _ []string) error {
	if _, err := a.open(router.PathLearning); err != nil {
		return err
	}
	paths, err := learning.OpenPathList(a.client, a.session).Load(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	for _, p := range paths {
		fmt.Fprintf(tw, "%s\t%s\t\n", p.Title, p.Level.Label())
		for _, m := range p.Modules {
			status := ""
			if m.Completed {
				status = "done"
			}
			if m.Score != nil {
				status += fmt.Sprintf(" (%s%%)", strconv.FormatFloat(*m.Score, 'f', -1, 64))
			}
			fmt.Fprintf(tw, "  %d. %s [%s]\t%s\t\n", m.Order, m.Title, m.ID, strings.TrimSpace(status))
		}
	}
	return tw.Flush()
}

// answersFlag collects repeated -a values in order.
type answersFlag []string

func (f *answersFlag) String() string { return strings.Join(*f, ", ") }

func (f *answersFlag) Set(v string) error {
	*f = append(*f, v)
	return nil
}

// pickOption accepts an option's text or its 1-based number.
func pickOption(q api.QuizQuestion, answer string) string {
	for _, opt := range q.Options {
		if opt == answer {
			return opt
		}
	}
	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(q.Options) {
		return q.Options[n-1]
	}
	return answer
}

func runModule(ctx context.Context, a *app, args []string) error {
	id, rest := leadingArg(args)
	fs := newFlags("module")
	var answers answersFlag
	fs.Var(&answers, "a", "quiz answer, by option text or number; repeat once per question")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if id == "" {
		id = fs.Arg(0)
	}
	if id == "" {
		return errors.New("usage: wealthbuilder module <id> [-a answer ...]")
	}

	params, err := a.open(router.Build(router.PathModule, map[string]string{"id": id}))
	if err != nil {
		return err
	}
	view := learning.OpenModule(a.client, api.ID(params["id"]))
	m, err := view.Load(ctx)
	if err != nil {
		return err
	}

	if m.Path != nil {
		fmt.Fprintf(a.out, "%s > %s\n\n", m.Path.Title, m.Title)
	} else {
		fmt.Fprintf(a.out, "%s\n\n", m.Title)
	}
	if m.VideoURL != "" {
		fmt.Fprintf(a.out, "Video: %s\n\n", learning.EmbedURL(m.VideoURL))
	}
	fmt.Fprintln(a.out, m.Content)

	if len(answers) == 0 {
		for i, q := range m.QuizQuestions {
			fmt.Fprintf(a.out, "\nQ%d. %s\n", i+1, q.Question)
			for j, opt := range q.Options {
				fmt.Fprintf(a.out, "  %d) %s\n", j+1, opt)
			}
		}
		return nil
	}

	quiz, err := view.Quiz(ctx)
	if err != nil {
		return err
	}
	if err := quiz.Start(); err != nil {
		return err
	}
	questions := quiz.Questions()
	for i, ans := range answers {
		if i >= len(questions) {
			return fmt.Errorf("%d answers given for %d questions", len(answers), len(questions))
		}
		if err := quiz.Answer(i, pickOption(questions[i], ans)); err != nil {
			return err
		}
	}
	result, err := quiz.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, learning.Summary(result))
	return nil
}

func runInvestments(ctx context.Context, a *app, _ []string) error {
	if _, err := a.open(router.PathInvestments); err != nil {
		return err
	}
	items, err := invest.OpenList(a.client).Load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		slog.Warn("investments unavailable", "error", err)
		fmt.Fprintln(a.out, "No investment opportunities available yet.")
		fmt.Fprintf(a.out, "Investments are unavailable right now: %s\n", api.UserMessage(err, "please try again later"))
		return nil
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "No investment opportunities available yet.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tRISK\tRETURN\tREQUESTED\tFUNDED\t")
	for _, inv := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s%%\t%s\t%s\t\n",
			inv.ID, inv.Title, inv.Category, inv.RiskLevel,
			strconv.FormatFloat(inv.ReturnRate, 'f', -1, 64),
			invest.FormatKES(inv.AmountRequested), invest.FundedLabel(inv))
	}
	return tw.Flush()
}

func runInvestment(ctx context.Context, a *app, args []string) error {
	id, rest := leadingArg(args)
	fs := newFlags("investment")
	amount := fs.String("invest", "", "amount in KES to invest")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if id == "" {
		id = fs.Arg(0)
	}
	if id == "" {
		return errors.New("usage: wealthbuilder investment <id> [-invest amount]")
	}

	params, err := a.open(router.Build(router.PathInvestment, map[string]string{"id": id}))
	if err != nil {
		return err
	}
	detail := invest.OpenDetail(a.client, api.ID(params["id"]))
	inv, err := detail.Load(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s\n\n%s\n\n", inv.Title, inv.Description)
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Category\t%s\n", inv.Category)
	fmt.Fprintf(tw, "Risk level\t%s\n", inv.RiskLevel)
	fmt.Fprintf(tw, "Expected return\t%s%%\n", strconv.FormatFloat(inv.ReturnRate, 'f', -1, 64))
	fmt.Fprintf(tw, "Duration\t%s\n", inv.Duration)
	fmt.Fprintf(tw, "Requested\t%s\n", invest.FormatKES(inv.AmountRequested))
	fmt.Fprintf(tw, "Raised\t%s\n", invest.FormatKES(inv.AmountRaised))
	fmt.Fprintf(tw, "Progress\t%s\n", invest.FundedLabel(inv))
	if err := tw.Flush(); err != nil {
		return err
	}

	if *amount == "" {
		return nil
	}
	amt, err := decimal.NewFromString(*amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q", *amount)
	}
	err = detail.Invest(ctx, amt)
	if errors.Is(err, invest.ErrPreview) {
		fmt.Fprintf(a.out, "\nInvesting %s: %v\n", invest.FormatKES(amt), err)
		return nil
	}
	return err
}

func runRegisterBusiness(ctx context.Context, a *app, args []string) error {
	fs := newFlags("register-business")
	name := fs.String("name", "", "business name")
	category := fs.String("category", "", "one of: "+strings.Join(invest.Categories, ", "))
	regNo := fs.String("registration-number", "", "business registration number")
	amount := fs.String("amount", "", "funding amount in KES")
	plan := fs.String("plan", "", "path to the business plan document")
	use := fs.String("use-of-funds", "", "how the funds will be used")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := a.open(router.PathRegisterBusiness); err != nil {
		return err
	}

	amt := decimal.Zero
	if *amount != "" {
		var err error
		if amt, err = decimal.NewFromString(*amount); err != nil {
			return fmt.Errorf("invalid amount %q", *amount)
		}
	}

	var reg invest.BusinessRegistration
	err := reg.Submit(ctx, invest.BusinessInput{
		BusinessName:       *name,
		Category:           *category,
		RegistrationNumber: *regNo,
		FundingAmount:      amt,
		BusinessPlan:       *plan,
		UseOfFunds:         *use,
	})
	if errors.Is(err, invest.ErrPreview) {
		fmt.Fprintf(a.out, "Business registration: %v\n", err)
		return nil
	}
	return err
}

func (a *app) profile() (*account.Profile, error) {
	if _, err := a.open(router.PathProfile); err != nil {
		return nil, err
	}
	return account.OpenProfile(a.session, a.client, a.shell.Logout), nil
}

func runProfile(ctx context.Context, a *app, _ []string) error {
	p, err := a.profile()
	if err != nil {
		return err
	}
	if err := runWhoami(ctx, a, nil); err != nil {
		return err
	}
	fmt.Fprintln(a.out)
	progress, err := p.Progress(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "Progress is unavailable: %s\n", api.UserMessage(err, "please try again later"))
		return nil
	}
	writeProgress(a.out, progress)
	return nil
}

func runPassword(ctx context.Context, a *app, args []string) error {
	fs := newFlags("password")
	current := fs.String("current", "", "current password (default $WB_PASSWORD)")
	next := fs.String("new", "", "new password (default $WB_NEW_PASSWORD)")
	confirm := fs.String("confirm", "", "repeat the new password (default: same as -new)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := a.profile()
	if err != nil {
		return err
	}

	in := account.PasswordInput{
		Current: password(*current, "WB_PASSWORD"),
		New:     password(*next, "WB_NEW_PASSWORD"),
		Confirm: *confirm,
	}
	if in.Confirm == "" {
		in.Confirm = in.New
	}
	if err := p.ChangePassword(ctx, in); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password updated")
	return nil
}

func runLegal(_ context.Context, a *app, args []string) error {
	routes := map[string]string{
		legal.Terms:   router.PathTerms,
		legal.Privacy: router.PathPrivacy,
	}
	if len(args) != 1 || routes[args[0]] == "" {
		return errors.New("usage: wealthbuilder legal terms|privacy")
	}
	path := routes[args[0]]
	if _, err := a.open(path); err != nil {
		return err
	}

	lib, err := legal.Default()
	if err != nil {
		return err
	}
	doc, ok := lib.ByRoute(path)
	if !ok {
		return fmt.Errorf("no document for %s", path)
	}
	return doc.Render(a.out)
}

func runExport(ctx context.Context, a *app, args []string) error {
	kind, rest := leadingArg(args)
	fs := newFlags("export")
	out := fs.String("o", "", "output file, - for stdout (default <kind>.xlsx)")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if kind == "" {
		kind = fs.Arg(0)
	}
	if *out == "" {
		*out = kind + ".xlsx"
	}

	var write func(io.Writer) error
	switch kind {
	case "progress":
		if _, err := a.open(router.PathDashboard); err != nil {
			return err
		}
		s, err := dashboard.Open(a.client, a.session).Load(ctx)
		if err != nil {
			return err
		}
		if s.ProgressErr != nil {
			return fmt.Errorf("loading progress: %w", s.ProgressErr)
		}
		if s.PathsErr != nil {
			return fmt.Errorf("loading learning paths: %w", s.PathsErr)
		}
		u, _ := a.session.User()
		write = func(w io.Writer) error {
			return report.ExportProgress(w, report.ProgressInput{User: u, Progress: s.Progress, Paths: s.Paths})
		}
	case "investments":
		if _, err := a.open(router.PathInvestments); err != nil {
			return err
		}
		items, err := invest.OpenList(a.client).Load(ctx)
		if err != nil {
			return err
		}
		write = func(w io.Writer) error { return report.ExportInvestments(w, items) }
	default:
		return errors.New("usage: wealthbuilder export progress|investments [-o file]")
	}

	if *out == "-" {
		return write(a.out)
	}
	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", *out, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", *out, err)
	}
	fmt.Fprintf(a.out, "Wrote %s\n", *out)
	return nil
}
