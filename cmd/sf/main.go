package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"signflow/internal/app"
	"signflow/internal/config"
	"signflow/internal/db"
	"signflow/internal/domain"
	"signflow/internal/engine"
	"signflow/internal/engine/auth"
	"signflow/internal/jobs"
	"signflow/internal/repo"
	"signflow/internal/server"
	"signflow/internal/templates"
)

var rootCmd = &cobra.Command{
	Use:   "sf",
	Short: "Signflow CLI",
	Long: `Signflow runs multi-party signing forms.
- Templates define typed fields, the party slots that own them and conditions between fields.
- A submission is one signing of a template; each party fills and completes its own form.
- Completing a form resolves defaults and formulas, drops fields whose conditions fail and checks what is left.
- A party may invite the parties it is responsible for; hidden optional parties do not cut the chain.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	// .env is optional
	_ = godotenv.Load()
	viper.SetEnvPrefix("SIGNFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Bool("debug", false, "development logging")
	rootCmd.PersistentFlags().String("account", "", "account id (overrides config default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("account", rootCmd.PersistentFlags().Lookup("account"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(templateCmd())
	rootCmd.AddCommand(submissionCmd())
	rootCmd.AddCommand(submittersCmd())
	rootCmd.AddCommand(submitCmd())
	rootCmd.AddCommand(inviteCmd())
	rootCmd.AddCommand(declineCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Inspect signflow.yml"}
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	})
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := config.FromFile(path); err != nil {
				return err
			}
			fmt.Printf("%s is valid\n", path)
			return nil
		},
	})
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default signflow.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			return os.WriteFile(path, []byte(config.GenerateDefault()), 0o644)
		},
	})
	return cfgCmd
}

func templateCmd() *cobra.Command {
	tpl := &cobra.Command{Use: "template", Short: "Manage templates"}
	tpl.AddCommand(&cobra.Command{
		Use:   "import <file.json>",
		Short: "Validate and store a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				im, err := templates.NewImporter(rt.Engine.Repo)
				if err != nil {
					return err
				}
				t, err := im.Import(ctx, rt.AccountID, raw)
				if err != nil {
					return err
				}
				return printJSONOrText(t, fmt.Sprintf("imported template %s (%d fields, %d parties)", t.ID, len(t.Fields), len(t.Submitters)))
			})
		},
	})
	tpl.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.Repo.ListTemplates(ctx, rt.AccountID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Fields", "Parties", "Archived"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.Name, len(t.Fields), len(t.Submitters), t.ArchivedAt != nil})
				}
				tw.Render()
				return nil
			})
		},
	})
	tpl.AddCommand(&cobra.Command{
		Use:   "archive <id>",
		Short: "Archive a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				return rt.Engine.Repo.ArchiveTemplate(ctx, args[0])
			})
		},
	})
	return tpl
}

func submissionCmd() *cobra.Command {
	sub := &cobra.Command{Use: "submission", Short: "Manage submissions"}
	var templateID, expires string
	var parties []string
	create := &cobra.Command{
		Use:   "create",
		Short: "Open a submission with its first parties",
		Long:  "Each --party is uuid[:email[:name]].",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.SubmissionCreateOptions{TemplateID: templateID, ExpiresAt: expires}
			for _, p := range parties {
				parts := strings.SplitN(p, ":", 3)
				sp := engine.SubmissionParty{UUID: parts[0]}
				if len(parts) > 1 {
					sp.Email = parts[1]
				}
				if len(parts) > 2 {
					sp.Name = parts[2]
				}
				opts.Parties = append(opts.Parties, sp)
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				s, err := rt.Engine.CreateSubmission(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				fmt.Printf("created submission %s\n", s.ID)
				printSubmitters(s.Submitters)
				return nil
			})
		},
	}
	create.Flags().StringVar(&templateID, "template", "", "template id")
	create.Flags().StringArrayVar(&parties, "party", nil, "party uuid[:email[:name]] (repeatable)")
	create.Flags().StringVar(&expires, "expires-at", "", "RFC3339 expiry")
	sub.AddCommand(create)
	sub.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				s, err := rt.Engine.GetSubmission(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				fmt.Printf("submission %s (template %s, frozen=%t)\n", s.ID, s.TemplateID, s.Frozen())
				printSubmitters(s.Submitters)
				return nil
			})
		},
	})
	return sub
}

func submittersCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "submitters", Short: "Inspect parties"}
	var f repo.SubmitterFilters
	list := &cobra.Command{
		Use:   "list",
		Short: "List parties",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				f.AccountID = rt.AccountID
				items, err := rt.Engine.ListSubmitters(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				printSubmitters(items)
				return nil
			})
		},
	}
	list.Flags().StringVar(&f.SubmissionID, "submission", "", "submission id")
	list.Flags().StringVar(&f.Email, "email", "", "email filter")
	list.Flags().StringVar(&f.Status, "status", "", "awaiting|opened|completed|declined")
	list.Flags().IntVar(&f.Limit, "limit", 50, "max rows")
	cmd.AddCommand(list)
	cmd.AddCommand(&cobra.Command{
		Use:   "form-configs <submitter-id>",
		Short: "Show the form toggles for a party",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				configs, err := rt.Engine.FormConfigs(ctx, args[0], nil)
				if err != nil {
					return err
				}
				return printJSON(configs)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "verify <submitter-id>",
		Short: "Record an identity verification for a party",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				return rt.Engine.RecordVerification(ctx, args[0], engine.RequestContext{UserAgent: "sf"})
			})
		},
	})
	return cmd
}

func submitCmd() *cobra.Command {
	var valuesJSON, withReason string
	var completed, castBoolean, castNumber, normalizePhone, skipRequired bool
	cmd := &cobra.Command{
		Use:   "submit <submitter-id>",
		Short: "Save form values for a party",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vals := map[string]any{}
			if valuesJSON != "" {
				if err := json.Unmarshal([]byte(valuesJSON), &vals); err != nil {
					return fmt.Errorf("invalid --values: %w", err)
				}
			}
			in := engine.SubmitInput{Values: vals, Completed: completed, WithReason: withReason}
			in.Boolean, in.Number, in.Phone = castBoolean, castNumber, normalizePhone
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				sub, err := rt.Engine.Submit(ctx, args[0], in, engine.RequestContext{UserAgent: "sf"}, !skipRequired)
				if err != nil {
					return err
				}
				return printJSONOrText(sub, fmt.Sprintf("submitter %s is %s", sub.ID, sub.Status()))
			})
		},
	}
	cmd.Flags().StringVar(&valuesJSON, "values", "", "JSON object of field uuid to value")
	cmd.Flags().BoolVar(&completed, "complete", false, "complete the form")
	cmd.Flags().StringVar(&withReason, "with-reason", "", "reason field uuid for the signature")
	cmd.Flags().BoolVar(&castBoolean, "cast-boolean", false, "coerce values to booleans")
	cmd.Flags().BoolVar(&castNumber, "cast-number", false, "coerce values to numbers")
	cmd.Flags().BoolVar(&normalizePhone, "normalize-phone", false, "normalize phone numbers")
	cmd.Flags().BoolVar(&skipRequired, "skip-required", false, "log blank required fields instead of failing")
	return cmd
}

func inviteCmd() *cobra.Command {
	var parties []string
	cmd := &cobra.Command{
		Use:   "invite <submitter-id>",
		Short: "Invite the parties a party is responsible for",
		Long:  "Each --party is uuid[:email].",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in []engine.InviteParty
			for _, p := range parties {
				uuid, email, _ := strings.Cut(p, ":")
				in = append(in, engine.InviteParty{UUID: uuid, Email: email})
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				res, err := rt.Engine.Invite(ctx, args[0], in, engine.RequestContext{UserAgent: "sf"})
				if err != nil && !errors.Is(err, engine.ErrInviteIncomplete) {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("invited %d parties, completed=%t\n", len(res.Created), res.Completed)
				printSubmitters(res.Created)
				return err
			})
		},
	}
	cmd.Flags().StringArrayVar(&parties, "party", nil, "party uuid[:email] (repeatable)")
	return cmd
}

func declineCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "decline <submitter-id>",
		Short: "Decline a party's form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				sub, err := rt.Engine.Decline(ctx, args[0], reason, engine.RequestContext{UserAgent: "sf"})
				if err != nil {
					return err
				}
				return printJSONOrText(sub, fmt.Sprintf("submitter %s declined", sub.ID))
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "decline reason")
	return cmd
}

func eventsCmd() *cobra.Command {
	evt := &cobra.Command{Use: "events", Short: "Tracking events"}
	var f repo.EventFilters
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.Repo.LatestEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Time", "Type", "Submission", "Submitter", "Payload"})
				for _, e := range items {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.SubmissionID, e.SubmitterID, e.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&f.Limit, "n", 20, "number of events")
	tail.Flags().StringVar(&f.Type, "type", "", "event type filter")
	tail.Flags().StringVar(&f.SubmissionID, "submission", "", "submission id")
	tail.Flags().StringVar(&f.SubmitterID, "submitter", "", "submitter id")
	evt.AddCommand(tail)
	return evt
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <submitter-id>",
		Short: "Mint a form token for a party",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				sub, err := rt.Engine.GetSubmitter(ctx, args[0])
				if err != nil {
					return err
				}
				secret := authSecret(rt.Config)
				if ttl == 0 {
					if ttl, err = rt.Config.Auth.TTL(); err != nil {
						return err
					}
				}
				tok, err := auth.Issue(secret, sub.ID, sub.SubmissionID, ttl, time.Now())
				if err != nil {
					return err
				}
				fmt.Println(tok)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.token_ttl)")
	return cmd
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run background jobs and webhook delivery",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				return runBackground(ctx, rt)
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var withWorker bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				secret := authSecret(rt.Config)
				if secret == "" {
					return fmt.Errorf("SIGNFLOW_AUTH_SECRET or auth.secret is required for form tokens")
				}
				handler, err := server.New(server.Config{
					Engine:   rt.Engine,
					BasePath: basePath,
					Auth:     server.AuthConfig{Secret: secret},
					Logger:   rt.Logger,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				g, gctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					<-gctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				})
				if withWorker {
					g.Go(func() error { return runBackground(gctx, rt) })
				}
				g.Go(func() error {
					rt.Logger.Info("serving signflow api",
						zap.String("addr", "http://"+addr+basePath), zap.String("openapi", basePath+"/openapi.json"))
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				})
				return g.Wait()
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&withWorker, "worker", true, "run background jobs in-process")
	return cmd
}

// --- helpers ---

func runBackground(ctx context.Context, rt *app.Runtime) error {
	hooks := server.NewWebhookDispatcher(rt.Engine, rt.Logger)
	w := rt.Worker(map[string]jobs.Handler{engine.JobSendCompletedWebhook: hooks.DeliverSubmissionCompleted})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	g.Go(func() error {
		hooks.Run(gctx)
		return nil
	})
	return g.Wait()
}

func withRuntime(ctx context.Context, fn func(context.Context, *app.Runtime) error) error {
	logger, err := newLogger(viper.GetBool("debug"))
	if err != nil {
		return err
	}
	defer logger.Sync()
	rt, err := app.Open(ctx, app.Options{
		Workspace: viper.GetString("workspace"),
		Account:   viper.GetString("account"),
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func authSecret(cfg *config.Config) string {
	if s := strings.TrimSpace(viper.GetString("auth_secret")); s != "" {
		return s
	}
	return strings.TrimSpace(cfg.Auth.Secret)
}

func printSubmitters(items []domain.Submitter) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Party", "Email", "Status", "Values"})
	for _, s := range items {
		tw.AppendRow(table.Row{s.ID, s.UUID, s.Email, s.Status(), len(s.Values)})
	}
	tw.Render()
}

func printJSONOrText(v any, text string) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	fmt.Println(text)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
