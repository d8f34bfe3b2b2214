package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/config"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/db"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/graphql"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/importapi"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/repository"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/session"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/sourcestore"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/tabular"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var seedEmployees string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the import HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, seedEmployees)
		},
	}
	cmd.Flags().StringVar(&seedEmployees, "seed-employees", "", "CSV of employees to load into the memory directory (memory driver only)")
	return cmd
}

func serve(parent context.Context, cfg config.Config, seedEmployees string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := cfg.NewLogger()

	deps, cleanup, err := buildDependencies(ctx, cfg, logger, seedEmployees)
	if err != nil {
		return err
	}
	defer cleanup()

	service := session.NewService(deps, cfg.Import)
	handler := importapi.NewHandler(service, logger, cfg.Server.MaxUploadBytes)
	router := importapi.NewRouter(handler, importapi.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
		GraphQL:        graphql.NewHandler(graphql.NewResolver(service), logger),
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":    cfg.Server.Addr,
			"storage": cfg.StorageDriver,
		}).Info("starting import API")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down import API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}

// buildDependencies wires repositories and the source store for the
// configured storage driver.
func buildDependencies(ctx context.Context, cfg config.Config, logger *logrus.Logger, seedEmployees string) (session.Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := session.Dependencies{Logger: logger}

	switch cfg.StorageDriver {
	case config.DriverMemory:
		directory := repository.NewMemoryEmployeeDirectory()
		if seedEmployees != "" {
			employees, err := loadEmployees(seedEmployees)
			if err != nil {
				return session.Dependencies{}, cleanup, err
			}
			directory.Add(employees...)
			logger.WithField("employees", len(employees)).Info("seeded memory employee directory")
		}
		deps.Sessions = repository.NewMemorySessionRepository(repository.WithCommitClaimTTL(cfg.CommitClaimTTL))
		deps.Templates = repository.NewMemoryTemplateRepository()
		deps.ImportLog = repository.NewMemoryImportLogRepository()
		deps.Directory = directory
		deps.Committer = repository.NewMemoryCommitter()
	default:
		if cfg.MigrateOnStart {
			if err := db.RunMigrations(cfg.Database, logger); err != nil {
				return session.Dependencies{}, cleanup, err
			}
		}
		conn, err := db.NewConnection(ctx, cfg.Database)
		if err != nil {
			return session.Dependencies{}, cleanup, err
		}
		closers = append(closers, conn.Close)

		deps.Sessions = repository.NewImportSessionRepository(conn.Pool, repository.WithCommitClaimTTL(cfg.CommitClaimTTL))
		deps.Templates = repository.NewTemplateRepository(conn.Pool)
		deps.ImportLog = repository.NewImportLogRepository(conn.Pool)
		deps.Directory = repository.NewEmployeeDirectory(conn.Pool)
		deps.Committer = repository.NewHoursCommitter(conn)
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return session.Dependencies{}, cleanup, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		closers = append(closers, func() { _ = client.Close() })
		deps.Sources = sourcestore.NewRedisStore(client, cfg.SourceTTL)
	} else {
		logger.Warn("redis.addr not set; source tables are kept in process memory")
		deps.Sources = sourcestore.NewMemoryStore(cfg.SourceTTL)
	}

	return deps, cleanup, nil
}

// loadEmployees reads a directory seed file with the columns employer_id,
// employee_id, ssn, email, first_name and last_name.
func loadEmployees(path string) ([]domain.Employee, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	parsed, err := tabular.Parse(path, payload, tabular.Options{})
	if err != nil {
		return nil, err
	}

	table := parsed.Table
	index := func(name string) int {
		for i, header := range table.Headers {
			if strings.EqualFold(strings.TrimSpace(header), name) {
				return i
			}
		}
		return -1
	}
	employerCol := index("employer_id")
	if employerCol < 0 {
		return nil, fmt.Errorf("%s: missing employer_id column", path)
	}
	idCol, ssnCol, emailCol := index("employee_id"), index("ssn"), index("email")
	firstCol, lastCol := index("first_name"), index("last_name")

	employees := make([]domain.Employee, 0, len(table.Rows))
	for _, row := range table.Rows {
		employerID, err := uuid.Parse(row.Cell(employerCol))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: invalid employer_id: %w", path, row.Number, err)
		}
		employees = append(employees, domain.Employee{
			EmployerID: employerID,
			EmployeeID: row.Cell(idCol),
			SSN:        row.Cell(ssnCol),
			Email:      row.Cell(emailCol),
			FirstName:  row.Cell(firstCol),
			LastName:   row.Cell(lastCol),
		})
	}
	return employees, nil
}
