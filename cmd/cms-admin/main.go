package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cms "github.com/goliatone/go-cms-admin"
	"github.com/goliatone/go-cms-admin/internal/accounts"
	"github.com/goliatone/go-cms-admin/internal/commands/pagescmd"
	cmshttp "github.com/goliatone/go-cms-admin/internal/http"
	"github.com/goliatone/go-cms-admin/internal/sites"
	"github.com/goliatone/go-cms-admin/pkg/interfaces"
	"github.com/goliatone/go-command/dispatcher"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		log.Fatalf("cms-admin: %v", err)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, server, err := loadConfig()
	if err != nil {
		return err
	}

	var opts []cms.Option
	if cfg.Storage.Provider == "bun" {
		db, err := cms.OpenDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, cms.WithBunDB(db))
	}

	module, err := cms.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer module.Close(context.Background())
	logger := module.Logger("cms.cmd")

	admin, err := seed(ctx, module, server)
	if err != nil {
		return err
	}

	if len(args) > 0 && args[0] == "publish" {
		return publish(ctx, module, admin, args[1:])
	}
	if len(args) > 0 && args[0] == "serve" {
		args = args[1:]
	}
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	printToken := fs.Bool("print-token", false, "print a 12h bearer token for the admin user to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *printToken {
		if err := writeAdminToken(os.Stderr, module.Config(), admin); err != nil {
			return err
		}
	}
	return serve(ctx, module, server, logger)
}

// writeAdminToken prints a bearer token for admin when a JWT secret is set.
func writeAdminToken(w io.Writer, cfg cms.Config, admin *accounts.User) error {
	if cfg.Admin.JWTSecret == "" {
		return errors.New("print-token needs CMS_ADMIN_JWT_SECRET")
	}
	token, err := cmshttp.IssueToken([]byte(cfg.Admin.JWTSecret), "", admin.ID.String(), 12*time.Hour)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

// seed makes sure the configured site and a superuser exist.
func seed(ctx context.Context, module *cms.Module, server serverConfig) (*accounts.User, error) {
	cfg := module.Config()
	if _, err := module.Sites().GetByID(ctx, cfg.SiteID); err != nil {
		var notFound *sites.NotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		if _, err := module.Sites().Create(ctx, &sites.Site{ID: cfg.SiteID, Domain: server.SiteDomain, Name: server.SiteName}); err != nil {
			return nil, fmt.Errorf("seed site: %w", err)
		}
	}

	admin, err := module.Accounts().GetByUsername(ctx, server.AdminUsername)
	if err == nil {
		return admin, nil
	}
	var notFound *accounts.NotFoundError
	if !errors.As(err, &notFound) {
		return nil, err
	}
	admin, err = module.Accounts().CreateUser(ctx, accounts.CreateUserRequest{
		Username:  server.AdminUsername,
		Staff:     true,
		Superuser: true,
	})
	if err != nil {
		return nil, fmt.Errorf("seed admin: %w", err)
	}
	return admin, nil
}

func serve(ctx context.Context, module *cms.Module, server serverConfig, logger interfaces.Logger) error {
	cfg := module.Config()
	adminHandler, err := module.AdminHandler()
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Mount(cfg.Admin.BasePath, adminHandler)

	srv := &http.Server{
		Addr:              server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("cms.admin.listening", "addr", server.Addr, "base_path", cfg.Admin.BasePath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("cms.admin.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// publish dispatches a publish command for one page language as the seeded
// superuser.
func publish(ctx context.Context, module *cms.Module, admin *accounts.User, args []string) error {
	fset := flag.NewFlagSet("publish", flag.ContinueOnError)
	pageFlag := fset.String("page", "", "draft page id")
	language := fset.String("language", module.Config().DefaultLanguage, "language to publish")
	if err := fset.Parse(args); err != nil {
		return err
	}
	pageID, err := uuid.Parse(*pageFlag)
	if err != nil {
		return fmt.Errorf("publish: -page: %w", err)
	}

	module.SubscribeCommands()
	return dispatcher.Dispatch(ctx, pagescmd.PublishPageCommand{
		Actor:    admin.Principal(),
		PageID:   pageID,
		Language: *language,
	})
}
