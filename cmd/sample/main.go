// Command sample serves, documents, and calls an item API built from
// github.com/bjaus/contract endpoints.
//
// Run:
//
//	go run ./cmd/sample serve --token secret
//
// Generate the OpenAPI document:
//
//	go run ./cmd/sample spec                      (JSON to stdout)
//	go run ./cmd/sample spec --format yaml -o openapi.yaml
//
// Call a running server:
//
//	go run ./cmd/sample --token secret create --name widget --tag blue
//	go run ./cmd/sample --token secret list --tag blue
//
// Flags can also be set through SAMPLE_* environment variables or a .env
// file.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/bjaus/contract"
)

var version = "dev"

func main() {
	if err := godotenv.Load(envFile()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: load env file: %v\n", err)
		os.Exit(1)
	}

	app := &cli.App{
		Name:    "sample",
		Usage:   "Item API built from typed endpoint contracts",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"SAMPLE_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Bearer token required by (serve) or sent with (client commands) every request",
				EnvVars: []string{"SAMPLE_TOKEN"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			specCommand(),
			listCommand(),
			createCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func envFile() string {
	if f := os.Getenv("SAMPLE_ENV_FILE"); f != "" {
		return f
	}
	return ".env"
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})), nil
}

// newServer mounts the item API under /v1 together with its document,
// docs page, and metrics.
func newServer(svc *service, metrics *contract.Metrics, logger *slog.Logger) (*contract.Server, error) {
	srv := contract.NewServer(
		contract.WithTitle("Item API"),
		contract.WithVersion(version),
		contract.WithServers(contract.ServerURL{URL: "http://localhost:8080", Description: "Local"}),
		contract.WithLogger(logger),
		contract.WithMaskInternalErrors(),
	)
	srv.Use(
		contract.Recovery(logger),
		srv.CORS(contract.CORSConfig{ExposeHeaders: []string{"X-Request-ID"}, MaxAge: 600}),
		contract.RequestID(),
		contract.Logger(logger),
		metrics.Middleware(),
		contract.RateLimit(contract.RateLimitConfig{Rate: 50, Burst: 100}),
		contract.Timeout(10*time.Second),
		contract.BodyLimit(1<<20),
	)

	v1 := srv.Group("/v1", contract.WithGroupTags("v1"))
	if err := v1.Mount(svc.routes()...); err != nil {
		return nil, err
	}

	for _, register := range []func() error{
		func() error { return srv.ServeSpec("/openapi.json") },
		func() error { return srv.ServeSpecYAML("/openapi.yaml") },
		func() error { return srv.ServeDocs("/docs", contract.WithDocsSpecURL("/openapi.json")) },
		func() error { return srv.Handle("GET /metrics", metrics.Handler()) },
	} {
		if err := register(); err != nil {
			return nil, err
		}
	}
	return srv, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the item API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Value:   ":8080",
				Usage:   "Listen address",
				EnvVars: []string{"SAMPLE_ADDR"},
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	logger, err := newLogger(c.String("log-level"))
	if err != nil {
		return err
	}
	token := c.String("token")
	if token == "" {
		return errors.New("a --token is required to serve")
	}

	svc := &service{store: NewStore(), token: token, logger: logger}
	srv, err := newServer(svc, contract.NewMetrics("sample"), logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := c.String("addr")
	logger.Info("starting server", "addr", addr, "docs", "/docs")
	if err := srv.ListenAndServe(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func specCommand() *cli.Command {
	return &cli.Command{
		Name:  "spec",
		Usage: "Print the OpenAPI document",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "format",
				Value: "json",
				Usage: "Output format (json, yaml)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to this file instead of stdout",
			},
		},
		Action: runSpec,
	}
}

func runSpec(c *cli.Context) error {
	svc := &service{store: NewStore(), logger: slog.New(slog.DiscardHandler)}
	srv, err := newServer(svc, contract.NewMetrics("sample"), svc.logger)
	if err != nil {
		return err
	}

	var w io.Writer = c.App.Writer
	if out := c.String("output"); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch strings.ToLower(c.String("format")) {
	case "json":
		return srv.WriteSpec(w)
	case "yaml", "yml":
		return srv.WriteSpecYAML(w)
	default:
		return fmt.Errorf("unknown format %q", c.String("format"))
	}
}

// clientFlags are shared by the commands that call a running server.
func clientFlags(extra ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{
			Name:    "url",
			Value:   "http://localhost:8080/v1",
			Usage:   "Base URL of the item API",
			EnvVars: []string{"SAMPLE_URL"},
		},
	}, extra...)
}

func newClient(c *cli.Context) (*contract.Client, error) {
	logger, err := newLogger(c.String("log-level"))
	if err != nil {
		return nil, err
	}
	return contract.NewClient(c.String("url"),
		contract.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
		contract.WithUserAgent("sample/"+version),
		contract.WithClientRateLimit(10, 1),
		contract.WithClientLogger(logger),
	)
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List items of a running server",
		Flags: clientFlags(
			&cli.StringFlag{Name: "tag", Usage: "Only items with this tag"},
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "Page size"},
			&cli.IntFlag{Name: "offset", Usage: "Items to skip"},
		),
		Action: runList,
	}
}

func runList(c *cli.Context) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}
	list, err := contract.NewStub(client, listItems)
	if err != nil {
		return err
	}

	res, err := list(c.Context, ListItems{
		Auth: Auth{Token: c.String("token")},
		Page: Page{Tag: c.String("tag"), Limit: c.Int("limit"), Offset: c.Int("offset")},
	})
	if err != nil {
		return err
	}
	if apiErr, failed := res.Failure(); failed {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}

	page, _ := res.Value()
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(page)
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create an item on a running server",
		Flags: clientFlags(
			&cli.StringFlag{Name: "name", Required: true, Usage: "Item name"},
			&cli.StringSliceFlag{Name: "tag", Usage: "Item tag (repeatable)"},
		),
		Action: runCreate,
	}
}

func runCreate(c *cli.Context) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}

	res, err := contract.Call(c.Context, client, createItem, CreateItem{
		Auth: Auth{Token: c.String("token")},
		Body: NewItem{Name: c.String("name"), Tags: c.StringSlice("tag")},
	})
	if err != nil {
		return err
	}
	if apiErr, failed := res.Failure(); failed {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	fmt.Fprintln(c.App.Writer, "created")
	return nil
}
