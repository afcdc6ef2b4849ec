// Command orderctl imports, restores and backs up orders against the
// database named by DATABASE_URL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/rathunderbird-creator/romdoul1-sub000/internal/config"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/domain"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/importer"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/logging"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/service"
	pgstore "github.com/rathunderbird-creator/romdoul1-sub000/internal/store/postgres"
)

const usage = `usage: orderctl <command> [flags] <file>

commands:
  import  [-reconcile-shipped] <orders.xlsx|orders.csv>
  restore [-reconcile-shipped] <backup.json>
  backup  <out.json|out.xlsx>
`

var errUsage = errors.New("invalid usage")

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		logger.Error("orderctl failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	command, path, opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL must be set")
	}

	repo, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := repo.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	svc := service.New(repo, service.Options{
		Logger:           logger,
		DeleteBatchSize:  cfg.DeleteBatchSize,
		PageSize:         cfg.PageSize,
		StrictStockGuard: cfg.StrictStockGuard,
	})
	// Imports run as an operator action.
	ctx = service.WithActor(ctx, domain.Actor{Username: "orderctl", Role: "admin"})

	switch command {
	case "import":
		return importFile(ctx, svc, path, opts, out)
	case "restore":
		return restoreFile(ctx, svc, path, opts, out)
	default:
		return backupFile(ctx, svc, path, out)
	}
}

func parseArgs(args []string) (string, string, domain.ImportOptions, error) {
	command := args[0]
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	reconcile := fs.Bool("reconcile-shipped", false, "deduct stock for shipped and delivered orders that were never deducted")
	switch command {
	case "import", "restore", "backup":
	default:
		return "", "", domain.ImportOptions{}, errUsage
	}
	if err := fs.Parse(args[1:]); err != nil {
		return "", "", domain.ImportOptions{}, errUsage
	}
	if fs.NArg() != 1 {
		return "", "", domain.ImportOptions{}, errUsage
	}
	if command == "backup" && *reconcile {
		return "", "", domain.ImportOptions{}, errUsage
	}
	return command, fs.Arg(0), domain.ImportOptions{ReconcileShipped: *reconcile}, nil
}

func readRows(path string) ([]importer.Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return importer.ReadXLSX(file)
	case ".csv":
		return importer.ReadCSV(file)
	default:
		return nil, fmt.Errorf("unsupported file type %q: expected .xlsx or .csv", filepath.Ext(path))
	}
}

func importFile(ctx context.Context, svc *service.Service, path string, opts domain.ImportOptions, out io.Writer) error {
	rows, err := readRows(path)
	if err != nil {
		return err
	}
	result, err := svc.ImportOrders(ctx, rows, opts)
	if err != nil {
		return err
	}
	printResult(out, result)
	return nil
}

func restoreFile(ctx context.Context, svc *service.Service, path string, opts domain.ImportOptions, out io.Writer) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	orders, err := importer.ReadBackup(file)
	if err != nil {
		return err
	}
	result, err := svc.RestoreOrders(ctx, orders, opts)
	if err != nil {
		return err
	}
	printResult(out, result)
	return nil
}

func backupFile(ctx context.Context, svc *service.Service, path string, out io.Writer) error {
	orders, err := svc.ExportOrders(ctx)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		err = importer.WriteXLSX(file, orders)
	} else {
		err = importer.WriteBackup(file, orders)
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(out, "wrote %d orders to %s\n", len(orders), path)
	return nil
}

func printResult(out io.Writer, result domain.ImportResult) {
	fmt.Fprintf(out, "imported %d orders\n", result.Imported)
	for _, f := range result.Failed {
		fmt.Fprintf(out, "  failed %s: %s\n", f.ID, f.Reason)
	}
	if result.InventoryReconciled {
		fmt.Fprintf(out, "stock deducted for %d shipped orders\n", len(result.Reconciled))
	}
	if result.Note != "" {
		fmt.Fprintf(out, "note: %s\n", result.Note)
	}
}
