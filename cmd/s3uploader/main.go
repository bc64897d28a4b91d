// s3uploader is the operator CLI: manage users, provision folders and
// inspect what a user has stored.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/cyberchip-wang/s3uploader-ui/internal/auth"
	"github.com/cyberchip-wang/s3uploader-ui/internal/config"
	"github.com/cyberchip-wang/s3uploader-ui/internal/explorer"
	"github.com/cyberchip-wang/s3uploader-ui/internal/logging"
	"github.com/cyberchip-wang/s3uploader-ui/internal/metadata/postgres"
	"github.com/cyberchip-wang/s3uploader-ui/internal/paths"
	"github.com/cyberchip-wang/s3uploader-ui/internal/provision"
	"github.com/cyberchip-wang/s3uploader-ui/internal/storage"
	"github.com/cyberchip-wang/s3uploader-ui/internal/storage/factory"
)

func main() {
	app := &cli.App{
		Name:  "s3uploader",
		Usage: "Administer the s3uploader server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"CLI_LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			return logging.Init(logging.Config{Level: c.String("log-level"), Format: "console"})
		},
		After: func(*cli.Context) error {
			logging.Sync()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "user",
				Usage: "Manage users stored in PostgreSQL",
				Subcommands: []*cli.Command{
					{
						Name:      "add",
						Usage:     "Create a user",
						ArgsUsage: "<username> <password>",
						Flags: []cli.Flag{
							&cli.BoolFlag{Name: "admin", Usage: "Grant admin rights"},
						},
						Action: userAdd,
					},
					{
						Name:   "list",
						Usage:  "List users",
						Action: userList,
					},
				},
			},
			{
				Name:      "provision",
				Usage:     "Create the input and output folders of a user",
				ArgsUsage: "<username>",
				Action:    provisionUser,
			},
			{
				Name:      "ls",
				Usage:     "List the files in one of a user's folders",
				ArgsUsage: "<username> <input|output>",
				Action:    listFolder,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore connects to PostgreSQL and applies pending migrations.
func openStore(ctx context.Context, cfg *config.Config) (*postgres.Store, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required for user management")
	}
	store, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func userAdd(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: s3uploader user add [--admin] <username> <password>", 2)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(c.Context, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	user, err := auth.New(store, cfg.JWTSecret, cfg.TokenTTL).
		CreateUser(c.Context, c.Args().Get(0), c.Args().Get(1), c.Bool("admin"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "created user %s (id %d)\n", user.Username, user.ID)
	return nil
}

func userList(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(c.Context, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	users, err := store.ListUsers(c.Context)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tADMIN\tCREATED")
	for _, u := range users {
		fmt.Fprintf(w, "%d\t%s\t%t\t%s\n", u.ID, u.Username, u.IsAdmin, u.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

// openClient returns a storage client acting for username.
func openClient(ctx context.Context, username string) (*storage.IdentityClient, func() error, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	backend, err := factory.New(ctx, cfg.Storage())
	if err != nil {
		return nil, nil, err
	}
	return storage.ForIdentity(backend, username), backend.Close, nil
}

func provisionUser(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: s3uploader provision <username>", 2)
	}
	username := c.Args().First()
	client, closeFn, err := openClient(c.Context, username)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := provision.New().EnsureUserFolders(c.Context, client, username); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "provisioned folders for %s\n", username)
	return nil
}

func listFolder(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: s3uploader ls <username> <input|output>", 2)
	}
	username := c.Args().Get(0)
	folder, err := paths.ParseFolderType(c.Args().Get(1))
	if err != nil {
		return err
	}
	client, closeFn, err := openClient(c.Context, username)
	if err != nil {
		return err
	}
	defer closeFn()

	panel, err := explorer.NewPanel(client, username, folder)
	if err != nil {
		return err
	}
	if err := panel.Load(c.Context); err != nil {
		return err
	}

	st := panel.Snapshot()
	if len(st.Files) == 0 {
		fmt.Fprintln(c.App.Writer, "No files found in this folder.")
		return nil
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE NAME\tLAST MODIFIED\tSIZE")
	for _, f := range st.Files {
		fmt.Fprintf(w, "%s\t%s\t%s\n", f.Name, f.DisplayModified(), f.DisplaySize())
	}
	return w.Flush()
}
