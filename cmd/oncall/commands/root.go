package commands

import (
	"context"
	"fmt"
	"net/url"
	"pagerduty-tools/internal/components/chrono"
	"pagerduty-tools/internal/components/telemetry"
	"pagerduty-tools/internal/notify"
	"pagerduty-tools/internal/oncall"
	"pagerduty-tools/internal/pagerduty"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

type flags struct {
	campfire      bool
	campfireTopic bool
	email         bool
	policy        string

	configPath    string
	format        string
	levelDigits   bool
	forceLogin    bool
	noSaveSession bool
	debug         bool
}

// NewRootCmd builds the oncall command. environment replaces the process
// environment when non-nil.
func NewRootCmd(environment map[string]string) *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "oncall [level#]...",
		Short: "oncall lists the people currently on call in PagerDuty.",
		Long: `oncall scrapes the current on call assignments out of the PagerDuty dashboard.

Give one or more level numbers to only show those levels, all levels are shown
by default. The login session is stored in ~/.pagerduty-cookies so credentials
are only asked for when it expires.

Config is read from the nearest oncall.json5 up from the working directory, or
~/.config/pagerduty-tools/oncall.json5.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, f, environment)
		},
	}

	cmd.Flags().BoolVarP(&f.campfire, "campfire", "c", false, "Set the result as the topic of a Campfire room")
	cmd.Flags().BoolVarP(&f.campfireTopic, "campfire-topic", "t", false, "Synonym for -c, kept for compatibility (use -c instead)")
	cmd.Flags().BoolVarP(&f.email, "email", "e", false, "Notify assignees by email (currently does nothing)")
	cmd.Flags().StringVarP(&f.policy, "policy", "p", "", "Only show levels of this escalation policy")

	cmd.Flags().StringVar(&f.configPath, "config", "", "Path to the config file")
	cmd.Flags().StringVar(&f.format, "format", string(notify.FormatText), "Output format when printing, text or table")
	cmd.Flags().BoolVar(&f.levelDigits, "level-digits", false, `Read every digit of a level argument as its own level ("12" is levels 1 and 2)`)
	cmd.Flags().BoolVar(&f.forceLogin, "force-login", false, "Ignore the stored session and log in again")
	cmd.Flags().BoolVar(&f.noSaveSession, "no-save-session", false, "Neither read nor store the login session")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "Log debug information to stderr")

	return cmd
}

var rootCmd = NewRootCmd(nil)

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func levelArgMode(f *flags, cfg Config) (oncall.LevelArgMode, error) {
	if f.levelDigits {
		return oncall.LevelArgsDigits, nil
	}
	return oncall.ParseLevelArgMode(cfg.LevelArgs)
}

func run(cmd *cobra.Command, args []string, f *flags, environment map[string]string) error {
	ctx := cmd.Context()

	telemetry.InitSlogTo(cmd.ErrOrStderr(), f.debug)
	tel := telemetry.SlogAPI{}

	cfg, err := LoadConfig(f.configPath, environment)
	if err != nil {
		return err
	}

	mode, err := levelArgMode(f, cfg)
	if err != nil {
		return err
	}
	levels, err := oncall.ParseLevelArgs(args, mode)
	if err != nil {
		return err
	}
	format, err := notify.ParseFormat(f.format)
	if err != nil {
		return err
	}

	targets := notify.Targets{
		Stdout: notify.Stdout{Out: cmd.OutOrStdout(), Format: format},
		Tel:    tel,
	}
	if f.campfire || f.campfireTopic {
		campfire, err := notify.NewCampfire(notify.CampfireOptions{
			Subdomain: cfg.Campfire.Subdomain,
			BaseUrl:   cfg.Campfire.BaseUrl,
			Token:     cfg.Campfire.Token,
			Room:      cfg.Campfire.Room,
		}, tel)
		if err != nil {
			return fmt.Errorf("%w (configure \"campfire\" in %s)", err, configName)
		}
		targets.Campfire = campfire
	}
	if f.email {
		targets.Email = notify.Email{
			From: cfg.Email,
			Out:  cmd.OutOrStdout(),
			Tel:  tel,
		}
	}

	dashboardUrl, err := cfg.DashboardUrl()
	if err != nil {
		return err
	}
	parsed, err := url.Parse(dashboardUrl)
	if err != nil {
		return fmt.Errorf("invalid dashboard url %q: %w", dashboardUrl, err)
	}

	store, closeStore, err := cfg.OpenStore(ctx, f.noSaveSession, chrono.StandardImpl{})
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer closeStore()

	agent, err := pagerduty.NewAgent(ctx, pagerduty.AgentOptions{
		BaseUrl:          dashboardUrl,
		Store:            store,
		Credentials:      cfg.Credentials(parsed.Host, environment),
		Layout:           cfg.Markup,
		ForceLogin:       f.forceLogin,
		BrowserTransport: cfg.BrowserTransport,
		RateLimit:        rate.Limit(cfg.RateLimit),
	}, tel)
	if err != nil {
		return err
	}
	dashboard := pagerduty.NewDashboard(agent, cfg.Markup, tel)

	filter := oncall.Filter{
		Levels: levels,
		Policy: f.policy,
	}
	_, err = oncall.Run(ctx, dashboard, dashboard, filter, targets, tel)
	return err
}
