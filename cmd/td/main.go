package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskdesk/internal/config"
	"taskdesk/internal/db"
	"taskdesk/internal/domain"
	"taskdesk/internal/engine"
	"taskdesk/internal/migrate"
	"taskdesk/internal/repo"
	"taskdesk/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "td",
	Short: "Taskdesk CLI",
	Long: `Taskdesk is a helpdesk-style task tracker with project-level ACLs.
The workspace holds a .taskdesk directory with the SQLite database and a
taskdesk.yml config describing roles, their ACL tokens and seed statuses.`,
}

func main() {
	cobra.OnInitialize(initViper)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initViper() {
	viper.SetEnvPrefix("TASKDESK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Int64("user", 0, "act as this user id")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(roleCmd())
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create workspace config and database",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			if err := engine.New(conn, cfg).Seed(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("Initialized workspace: %s and %s\n", path, db.Path(workspace))
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			v, err := migrate.Version(conn)
			if err != nil {
				return err
			}
			fmt.Printf("schema version %d\n", v)
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed roles and statuses from taskdesk.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Seed(ctx)
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var devHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			secret := os.Getenv("TASKDESK_JWT_SECRET")
			if secret == "" {
				secret = cfg.Server.JWTSecret
			}
			if secret == "" && !devHeader {
				return fmt.Errorf("TASKDESK_JWT_SECRET is required for bearer auth")
			}
			e := engine.New(conn, cfg)
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: secret, AllowDevUserHeader: devHeader},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Taskdesk API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from config)")
	cmd.Flags().BoolVar(&devHeader, "dev-header", false, "accept the X-User-Id dev header")
	return cmd
}

func tokenCmd() *cobra.Command {
	token := &cobra.Command{Use: "token", Short: "Manage auth tokens"}
	token.AddCommand(tokenMintCmd())
	return token
}

func tokenMintCmd() *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint a dev JWT for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			secret := os.Getenv("TASKDESK_JWT_SECRET")
			if secret == "" {
				secret = cfg.Server.JWTSecret
			}
			token, err := server.MintToken(secret, userID)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "user id for the subject claim")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users"}
	user.AddCommand(userAddCmd())
	user.AddCommand(userListCmd())
	user.AddCommand(userKeyCmd())
	return user
}

func userAddCmd() *cobra.Command {
	var email, name, role string
	var companyID int64
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u := domain.User{Email: email, Name: name}
				if role != "" {
					r, err := e.Repo.GetRoleByTitle(ctx, role)
					if err != nil {
						return fmt.Errorf("role %q: %w", role, err)
					}
					u.RoleID = &r.ID
				}
				if companyID != 0 {
					u.CompanyID = &companyID
				}
				created, err := e.CreateUser(ctx, u, viper.GetInt64("user"))
				if err != nil {
					return err
				}
				return printJSON(created)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "", "role title")
	cmd.Flags().Int64Var(&companyID, "company-id", 0, "company id")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				users, err := r.ListUsers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Email", "Name", "Role", "Company"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Email, u.Name, idOrEmpty(u.RoleID), idOrEmpty(u.CompanyID)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func userKeyCmd() *cobra.Command {
	var label string
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Mint an API key for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := viper.GetInt64("user")
			if userID == 0 {
				return fmt.Errorf("--user required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				plaintext, key, err := e.MintAPIKey(ctx, userID, label)
				if err != nil {
					return err
				}
				fmt.Printf("api key %d for user %d (store it now, shown once):\n%s\n", key.ID, userID, plaintext)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "key label")
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectGrantCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project owned by --user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := viper.GetInt64("user")
			if userID == 0 {
				return fmt.Errorf("--user required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProject(ctx, title, userID)
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "project title")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				projects, err := r.ListProjects(ctx, nil)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(projects)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Owner", "Active"})
				for _, p := range projects {
					tw.AppendRow(table.Row{p.ID, p.Title, p.CreatorID, p.IsActive})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func projectGrantCmd() *cobra.Command {
	var projectID, userID int64
	var tokens []string
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Grant project ACL tokens to a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.GrantProjectAcl(ctx, domain.ProjectAclGrant{
					ProjectID: projectID,
					UserID:    userID,
					Acl:       tokens,
				}, viper.GetInt64("user"))
			})
		},
	}
	cmd.Flags().Int64Var(&projectID, "project-id", 0, "project id")
	cmd.Flags().Int64Var(&userID, "user-id", 0, "grantee user id")
	cmd.Flags().StringSliceVar(&tokens, "acl", nil, "ACL tokens, comma separated")
	_ = cmd.MarkFlagRequired("project-id")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}
	task.AddCommand(taskListCmd())
	task.AddCommand(taskCreateCmd())
	return task
}

func taskListCmd() *cobra.Command {
	var limit, page int
	cmd := &cobra.Command{
		Use:   "list [field=value ...]",
		Short: "List tasks visible to --user, with filter arguments",
		Long: `Filter arguments use the API's filter mini-language, for example:
  td task list status=1,2 assigned=current-user createdTime='FROM=1756300000 TO=NOW'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := viper.GetInt64("user")
			if userID == 0 {
				return fmt.Errorf("--user required")
			}
			params := map[string][]string{}
			for _, arg := range args {
				key, value, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("invalid filter argument %q, want field=value", arg)
				}
				params[key] = append(params[key], value)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Repo.LoadActor(ctx, userID)
				if err != nil {
					return err
				}
				result, err := e.ListTasks(ctx, params, a, "td://tasks", limit, page)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(result)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Project", "Status", "Assigned", "Important"})
				for _, t := range result.Tasks {
					tw.AppendRow(table.Row{t.ID, t.Title, t.ProjectID, idOrEmpty(t.StatusID), idOrEmpty(t.AssignedID), t.Important})
				}
				tw.Render()
				fmt.Printf("page %d/%d, %d total\n", result.Envelope.Page, result.Envelope.NumberOfPages, result.Envelope.Total)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 25, "page size")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}

func taskCreateCmd() *cobra.Command {
	var title, description string
	var projectID, assignedID int64
	var important bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := viper.GetInt64("user")
			if userID == 0 {
				return fmt.Errorf("--user required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.TaskCreateOptions{
					Title:       title,
					Description: description,
					ProjectID:   projectID,
					Important:   important,
				}
				if assignedID != 0 {
					opts.AssignedID = &assignedID
				}
				t, err := e.CreateTask(ctx, opts, userID)
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&description, "description", "", "task description")
	cmd.Flags().Int64Var(&projectID, "project-id", 0, "project id")
	cmd.Flags().Int64Var(&assignedID, "assigned-id", 0, "assignee user id")
	cmd.Flags().BoolVar(&important, "important", false, "mark important")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("project-id")
	return cmd
}

func statusCmd() *cobra.Command {
	status := &cobra.Command{Use: "status", Short: "Manage statuses"}
	status.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List statuses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				statuses, err := r.ListStatuses(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(statuses)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Default", "Closed"})
				for _, s := range statuses {
					tw.AppendRow(table.Row{s.ID, s.Title, s.Default, s.Closed})
				}
				tw.Render()
				return nil
			})
		},
	})
	return status
}

func roleCmd() *cobra.Command {
	role := &cobra.Command{Use: "role", Short: "Inspect roles"}
	role.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List roles and their ACL tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				roles, err := r.ListRoles(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(roles)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Admin", "Tokens"})
				for _, role := range roles {
					tw.AppendRow(table.Row{role.ID, role.Title, role.Admin, strings.Join(role.Acl, ",")})
				}
				tw.Render()
				return nil
			})
		},
	})
	return role
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	return fn(ctx, engine.New(conn, cfg))
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func idOrEmpty(id *int64) string {
	if id == nil {
		return ""
	}
	return fmt.Sprintf("%d", *id)
}
