// Command edushop runs the EduShop HTTP API and its operator subcommands.
//
//	edushop [serve]              run the API (default)
//	edushop healthcheck          probe a running instance, for container checks
//	edushop createsuperuser      create a staff account
//	edushop completion <shell>   print a shell completion script
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EduShopX/edushop/internal/app/runtime"
	"github.com/EduShopX/edushop/internal/cli"
	"github.com/EduShopX/edushop/internal/config"
	"github.com/EduShopX/edushop/internal/httputil"
)

func main() {
	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = serve(args)
	case "healthcheck":
		err = healthcheck(args)
	case "createsuperuser":
		err = createSuperuser(args)
	case "completion":
		err = completion(args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		cli.NewPrinter(os.Stderr).Error(err.Error())
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: edushop [serve|healthcheck|createsuperuser|completion] [flags]")
}

func serve(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "listen address (overrides HTTP_ADDR)")
	_ = fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}

	application, err := runtime.NewApplication(cfg, runtime.ModeAPI)
	if err != nil {
		return err
	}
	return runUntilSignal(application)
}

func runUntilSignal(application *runtime.Application) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := application.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("shutdown: %w", err)
	}
	return runErr
}

func healthcheck(args []string) error {
	fs := flag.NewFlagSet("healthcheck", flag.ExitOnError)
	url := fs.String("url", "http://127.0.0.1:8000", "base URL of the instance")
	timeout := fs.Duration("timeout", 5*time.Second, "request timeout")
	quiet := fs.Bool("quiet", false, "print nothing on success")
	_ = fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	client := httputil.NewClient(httputil.ClientConfig{BaseURL: *url, Timeout: *timeout, MaxRetries: 1})
	checks, err := client.Health(ctx)
	out := cli.Stdout()
	if err != nil {
		out.Checks(checks)
		return err
	}
	if !*quiet {
		out.Checks(checks)
	}
	return nil
}

func createSuperuser(args []string) error {
	fs := flag.NewFlagSet("createsuperuser", flag.ExitOnError)
	username := fs.String("username", os.Getenv("SUPERUSER_USERNAME"), "login name")
	email := fs.String("email", os.Getenv("SUPERUSER_EMAIL"), "email address")
	password := fs.String("password", os.Getenv("SUPERUSER_PASSWORD"), "password (or SUPERUSER_PASSWORD)")
	_ = fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required: the in-memory store does not outlive this command")
	}
	application, err := runtime.NewApplication(cfg, runtime.ModeWorker)
	if err != nil {
		return err
	}
	defer func() { _ = application.Shutdown(context.Background()) }()

	user, err := application.App().Accounts.CreateSuperuser(context.Background(), *username, *email, *password)
	if err != nil {
		return err
	}
	cli.Stdout().Success(fmt.Sprintf("Superuser %q created (id %d)", user.Username, user.ID))
	return nil
}

func completion(args []string) error {
	fs := flag.NewFlagSet("completion", flag.ExitOnError)
	install := fs.Bool("install", false, "write the script under the home directory")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: edushop completion [--install] bash|zsh|fish")
	}
	shell := fs.Arg(0)
	if !*install {
		return cli.GenerateCompletion(os.Stdout, shell)
	}
	path, err := cli.InstallCompletion(shell, "")
	if err != nil {
		return err
	}
	cli.Stdout().Success("Completion script installed to " + path)
	return nil
}
