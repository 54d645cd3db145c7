package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"

	"github.com/jacentio/grove/api"
	"github.com/jacentio/grove/internal/config"
	"github.com/jacentio/grove/internal/logging"
	"github.com/jacentio/grove/store"
)

// rootFlags holds the flags of the root command.
type rootFlags struct {
	configPath  string
	name        string
	uidPrefix   string
	port        int
	table       string
	tableSuffix string
	memory      bool
	endpoint    string
	region      string
	shards      int
	createTable bool
	readOnly    bool
	logLevel    string
	logFormat   string
}

func newRootCmd() *cobra.Command {
	cmd, _ := buildRootCmd()
	return cmd
}

// buildRootCmd returns the root command together with its bound flags.
func buildRootCmd() (*cobra.Command, *rootFlags) {
	f := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "groved",
		Short: "Serve UID-addressed CRUD APIs over a document table",
		Long: `Serve one or more grove APIs over HTTP.

Every API owns a uid prefix and maps HTTP verbs on /{uid} to actions:
GET and HEAD read, POST creates, PUT updates and DELETE deletes.
Documents are kept in a DynamoDB table, or in memory with --memory.`,
		Example: `  # Single API on port 3001
  groved --uid-prefix user:acmecorp.users --table grove_posts

  # Several APIs from a config file, against DynamoDB Local
  groved --config grove.yaml --endpoint http://localhost:8000 --create-table

  # Throwaway in-memory store
  groved --memory --uid-prefix product:acmecorp.products`,
		Version:       fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.configPath, "config", "c", "", "Path to YAML config file")
	fs.StringVar(&f.name, "name", "grove", "API name used with --uid-prefix")
	fs.StringVar(&f.uidPrefix, "uid-prefix", "", "Serve a single API with this uid prefix at /")
	fs.IntVarP(&f.port, "port", "p", 3001, "HTTP server port")
	fs.StringVar(&f.table, "table", "", "DynamoDB table name")
	fs.StringVar(&f.tableSuffix, "table-suffix", "", "Suffix appended to the table name")
	fs.BoolVar(&f.memory, "memory", false, "Keep documents in memory instead of DynamoDB")
	fs.StringVar(&f.endpoint, "endpoint", "", "DynamoDB endpoint override")
	fs.StringVar(&f.region, "region", "", "AWS region")
	fs.IntVar(&f.shards, "shards", 0, "Scope index shards per class and realm")
	fs.BoolVar(&f.createTable, "create-table", false, "Create the table if it does not exist")
	fs.BoolVar(&f.readOnly, "read-only", false, "Reject create, update and delete on every API")
	fs.StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.logFormat, "log-format", "text", "Log format (text, json)")

	return cmd, f
}

// loadConfig reads the config file, if any, and applies explicitly set flags
// on top of it.
func loadConfig(cmd *cobra.Command, f *rootFlags) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if changed("port") || cfg.Listen == "" {
		cfg.Listen = ":" + strconv.Itoa(f.port)
	}
	if changed("table") {
		cfg.Store.Table = f.table
	}
	if changed("table-suffix") {
		cfg.Store.TableSuffix = f.tableSuffix
	}
	if changed("memory") {
		cfg.Store.Memory = f.memory
	}
	if changed("endpoint") {
		cfg.Store.Endpoint = f.endpoint
	}
	if changed("region") {
		cfg.Store.Region = f.region
	}
	if changed("shards") {
		cfg.Store.Shards = f.shards
	}
	if changed("create-table") {
		cfg.Store.CreateTable = f.createTable
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if f.uidPrefix != "" {
		cfg.APIs = []config.API{{Name: f.name, Mount: "/", UIDPrefix: f.uidPrefix}}
	}
	if f.readOnly {
		for i := range cfg.APIs {
			cfg.APIs[i].ReadOnly = true
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(cfg.Log.Format)
	if err != nil {
		return err
	}
	logger := logging.New(logging.Config{Level: level, Format: format})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	coll, err := openCollection(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}

	handler, err := buildHandler(cfg.APIs, coll, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Listen, err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Info("groved listening", "addr", ln.Addr().String(), "apis", len(cfg.APIs))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openCollection returns the collection every API shares.
func openCollection(ctx context.Context, s config.Store, logger *slog.Logger) (store.Collection, error) {
	if s.Memory {
		logger.Info("using in-memory store")
		return store.NewMemory(), nil
	}

	var opts []func(*awsconfig.LoadOptions) error
	if s.Region != "" {
		opts = append(opts, awsconfig.WithRegion(s.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if s.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.Endpoint)
		}
	})

	coll := store.NewDynamo(client, s.DynamoConfig())
	if s.CreateTable {
		if err := coll.EnsureTable(ctx); err != nil {
			return nil, err
		}
	}
	logger.Info("using dynamodb store", "table", coll.Config().Table, "shards", coll.Config().NumShards)
	return coll, nil
}

// buildHandler assembles one API per entry and mounts them on a mux.
func buildHandler(apis []config.API, coll store.Collection, logger *slog.Logger) (http.Handler, error) {
	mux := http.NewServeMux()
	for _, entry := range apis {
		// Later sources run first, so the logger sees denied requests too.
		var middleware []api.Source
		if entry.ReadOnly {
			deny := []api.Step{api.Deny("Read only")}
			middleware = append(middleware, api.Override(map[string][]api.Step{
				"create": deny,
				"update": deny,
				"delete": deny,
			}))
		}
		middleware = append(middleware, api.Use(api.RequestLogger(logger.With("api", entry.Name))))

		a, err := api.New(api.Config{
			Name:       entry.Name,
			UIDPrefix:  entry.UIDPrefix,
			Collection: coll,
			Middleware: middleware,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("api %q: %w", entry.Name, err)
		}
		api.Mount(mux, entry.Mount, a)
		logger.Info("mounted api", "name", a.Name(), "mount", entry.Mount, "uid_prefix", a.Prefix())
	}
	return mux, nil
}
