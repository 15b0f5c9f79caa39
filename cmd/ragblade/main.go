package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/flarexio/ragblade"

	mcpE "github.com/flarexio/ragblade/mcp"
	httpT "github.com/flarexio/ragblade/transport/http"
	natsT "github.com/flarexio/ragblade/transport/nats"
)

func main() {
	cmd := &cli.Command{
		Name:  "ragblade",
		Usage: "Company policy retrieval service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "path",
				Usage:   "Directory holding config.yaml, .env and relative document paths",
				Sources: cli.EnvVars("RAGBLADE_PATH"),
			},
			&cli.BoolFlag{
				Name:  "log-json",
				Usage: "Emit production JSON logs",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Serve retrieval over NATS and/or HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "nats",
						Usage:   "NATS server URL, empty disables the NATS transport",
						Sources: cli.EnvVars("NATS_URL"),
					},
					&cli.StringFlag{
						Name:    "nats-creds",
						Usage:   "NATS user credentials file",
						Sources: cli.EnvVars("NATS_CREDS"),
					},
					&cli.StringFlag{
						Name:  "topic",
						Usage: "NATS subject prefix of the service endpoints",
						Value: "ragblade",
					},
					&cli.BoolFlag{
						Name:  "http",
						Usage: "Enable HTTP transport",
						Value: false,
					},
					&cli.StringFlag{
						Name:  "http-addr",
						Usage: "HTTP server address",
						Value: ":8080",
					},
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Re-ingest the configured documents when they change",
					},
					&cli.BoolFlag{
						Name:  "ingest",
						Usage: "Ingest the configured documents before serving",
					},
				},
				Action: serve,
			},
			{
				Name:      "ingest",
				Usage:     "Build the index from documents (defaults to the configured paths)",
				ArgsUsage: "[file...]",
				Action:    ingest,
			},
			{
				Name:      "query",
				Usage:     "Search the index the way the search_company_policy tool does",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of passages",
						Value: ragblade.DefaultLimit,
					},
					&cli.BoolFlag{
						Name:  "raw",
						Usage: "Print the exact tool output",
					},
				},
				Action: query,
			},
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err.Error())
	}
}

func setup(cmd *cli.Command) (*zap.Logger, ragblade.Config, error) {
	path := cmd.String("path")
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, ragblade.Config{}, err
		}

		path = filepath.Join(homeDir, ".flarex", "ragblade")
	}

	var (
		log *zap.Logger
		err error
	)

	if cmd.Bool("log-json") {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}

	if err != nil {
		return nil, ragblade.Config{}, err
	}

	zap.ReplaceGlobals(log)

	cfg, err := loadConfig(path)
	if err != nil {
		return log, cfg, err
	}

	log.Debug("config loaded",
		zap.String("path", path),
		zap.String("backend", string(cfg.Index.Backend)),
		zap.String("location", cfg.Index.Location),
		zap.String("embedder", string(cfg.Embedder.Provider)),
	)

	return log, cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	log, cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cmd.Bool("watch") {
		cfg.Ingest.Watch = true
	}

	svc, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	svc = ragblade.LoggingMiddleware(log)(svc)

	if cmd.Bool("ingest") {
		if _, err := svc.Ingest(ctx, nil); err != nil {
			return err
		}
	}

	endpoints := ragblade.MakeEndpoints(svc)

	natsURL := cmd.String("nats")
	httpEnabled := cmd.Bool("http")

	if natsURL == "" && !httpEnabled && !cfg.Ingest.Watch {
		return errors.New("nothing to serve: enable --nats, --http or --watch")
	}

	// Add NATS Transport
	if natsURL != "" {
		opts := []nats.Option{
			nats.Name("RAGBlade Server"),
		}

		if creds := cmd.String("nats-creds"); creds != "" {
			opts = append(opts, nats.UserCredentials(creds))
		}

		nc, err := nats.Connect(natsURL, opts...)
		if err != nil {
			return err
		}
		defer nc.Drain()

		srv, err := micro.AddService(nc, micro.Config{
			Name:    "ragblade",
			Version: "1.0.0",
		})

		if err != nil {
			return err
		}
		defer srv.Stop()

		root := srv.AddGroup(cmd.String("topic"))
		if err := natsT.AddEndpoints(root, endpoints); err != nil {
			return err
		}
	}

	if httpEnabled {
		r := gin.Default()
		httpT.AddRouters(r, endpoints)
		httpT.AddStreamableRouters(r, mcpE.MakeEndpoints(svc))

		httpAddr := cmd.String("http-addr")
		go r.Run(httpAddr)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sign := <-quit

	log.Info("graceful shutdown", zap.String("signal", sign.String()))
	return nil
}

func ingest(ctx context.Context, cmd *cli.Command) error {
	log, cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	svc, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	count, err := svc.Ingest(ctx, cmd.Args().Slice())
	if err != nil {
		return err
	}

	color.Green("Indexed the documents successfully: %d chunks stored in %s", count, cfg.Index.Location)
	return nil
}

func query(ctx context.Context, cmd *cli.Command) error {
	q := cmd.Args().First()
	if q == "" {
		return ragblade.ErrEmptyQuery
	}

	log, cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	svc, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	limit := int(cmd.Int("limit"))

	if cmd.Bool("raw") {
		text, err := svc.SearchCompanyPolicy(ctx, q, limit)
		if err != nil {
			return err
		}

		fmt.Print(text)
		return nil
	}

	passages, err := svc.Retrieve(ctx, q, limit)
	if err != nil {
		return err
	}

	source := color.New(color.FgCyan, color.Bold).SprintFunc()
	rank := color.New(color.FgYellow).SprintFunc()

	for i, p := range passages {
		location := p.Source
		if p.Page > 0 {
			location = fmt.Sprintf("%s (page %d)", p.Source, p.Page)
		}

		fmt.Printf("%s %s\n%s\n\n", rank(fmt.Sprintf("[%d]", i+1)), source(location), p.Text)
	}

	color.HiBlack("sources: %v", ragblade.Sources(passages))
	return nil
}
