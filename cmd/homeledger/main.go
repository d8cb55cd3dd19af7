package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"homeledger/internal/accrual"
	"homeledger/internal/config"
	"homeledger/internal/core"
	"homeledger/internal/events"
	"homeledger/internal/importer"
	"homeledger/internal/integrity"
	"homeledger/internal/ledger"
	applog "homeledger/internal/log"
	"homeledger/internal/reconcile"
	"homeledger/internal/storage"
	"homeledger/internal/suggest"
)

const usage = `usage: homeledger <command> [flags]

commands:
  import      import a statement CSV for an account
  autoassign  link unassigned statement lines to matching transactions
  accrue      apply pending monthly budget accruals
  audit       check ledger integrity and report findings
`

// app bundles the wiring every command shares.
type app struct {
	cfg       *config.Config
	store     *storage.Store
	engine    *ledger.Engine
	publisher *events.Publisher
	logger    *applog.Logger
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg := config.Load()
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Component: applog.ComponentApp,
	})
	applog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		logger.Error("Failed to open database", "error", err, "path", cfg.DBPath)
		os.Exit(1)
	}
	defer store.Close()

	var publisher *events.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP publisher, continuing without events", "error", err)
			publisher = nil
		} else {
			defer publisher.Close()
		}
	}

	a := &app{
		cfg:       cfg,
		store:     store,
		engine:    ledger.NewEngine(store, publisher),
		publisher: publisher,
		logger:    logger,
	}

	ctx := context.Background()
	switch os.Args[1] {
	case "import":
		err = a.runImport(ctx, os.Args[2:])
	case "autoassign":
		err = a.runAutoAssign(ctx, os.Args[2:])
	case "accrue":
		err = a.runAccrue(ctx)
	case "audit":
		err = a.runAudit(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("Command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func (a *app) runImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	accountID := fs.Int64("account", 0, "account id the statement belongs to")
	month := fs.Int("month", 0, "statement month (1-12)")
	year := fs.Int("year", 0, "statement year")
	file := fs.String("file", "", "path to the statement CSV")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *accountID == 0 || *month == 0 || *year == 0 || *file == "" {
		fs.Usage()
		return fmt.Errorf("import: -account, -month, -year and -file are required")
	}

	f, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf("open statement file: %w", err)
	}
	defer f.Close()

	lines, err := importer.ReadCSV(f)
	if err != nil {
		return err
	}

	result, err := importer.NewImporter(a.store).ImportStatement(ctx, *accountID, *month, *year, lines)
	if err != nil {
		return err
	}
	fmt.Printf("imported batch %s: %d added, %d skipped\n", result.BatchID, result.Added, result.Skipped)

	if a.cfg.SuggestOnImport {
		if err := a.printSuggestions(ctx, *accountID); err != nil {
			// Suggestions are advisory; the import already committed.
			a.logger.Warn("Category suggestions unavailable", "error", err)
		}
	}
	return nil
}

// printSuggestions proposes a category for each unassigned line on the
// account, based on descriptions already reconciled.
func (a *app) printSuggestions(ctx context.Context, accountID int64) error {
	s := suggest.NewSuggester(a.store)
	if err := s.Retrain(ctx); err != nil {
		return err
	}
	pending, err := a.store.Queries().ListStatementLines(ctx, storage.StatementFilter{
		Unassigned: true,
		AccountID:  accountID,
	})
	if err != nil {
		return err
	}
	for _, line := range pending {
		if categoryID, ok := s.Predict(line.Description); ok {
			category, err := a.store.Queries().GetCategory(ctx, categoryID)
			if err != nil {
				return err
			}
			fmt.Printf("line %d %q looks like %q\n", line.ID, line.Description, category.Name)
		}
	}
	return nil
}

func (a *app) runAutoAssign(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("autoassign", flag.ExitOnError)
	accountID := fs.Int64("account", 0, "restrict to one account (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	matcher := reconcile.NewMatcher(a.store, a.engine)
	sum, err := matcher.AutoAssignUnassigned(ctx, *accountID)
	if err != nil {
		return err
	}
	fmt.Printf("assigned %d, no match %d, ambiguous %d, already taken %d\n",
		sum.Assigned, sum.NoMatch, sum.Ambiguous, sum.AlreadyTaken)
	return nil
}

func (a *app) runAccrue(ctx context.Context) error {
	scheduler := accrual.NewScheduler(a.store, a.engine)
	months, err := scheduler.CatchUp(ctx, core.DateOf(time.Now()))
	if err != nil {
		return err
	}
	fmt.Printf("applied %d month(s) of accrual\n", months)
	return nil
}

func (a *app) runAudit(ctx context.Context) error {
	report, err := integrity.NewChecker(a.store).Check(ctx)
	if err != nil {
		return err
	}
	if report.Clean() {
		fmt.Println("ledger is clean")
		return nil
	}

	for _, d := range report.DuplicateLinks {
		fmt.Printf("duplicate link: transaction %d held by lines %v\n", d.TransactionID, d.LineIDs)
	}
	for _, s := range report.OrphanSplits {
		fmt.Printf("orphan split: %d (transaction %d)\n", s.ID, s.TransactionID)
	}
	for _, id := range report.EmptyTransactions {
		fmt.Printf("empty transaction: %d\n", id)
	}
	for _, m := range report.AccountMismatches {
		fmt.Printf("account %q (%d): cached %s, computed %s\n", m.Name, m.ID, m.Cached, m.Computed)
	}
	for _, m := range report.BudgetMismatches {
		fmt.Printf("budget %q (%d): cached %s, computed %s\n", m.Name, m.ID, m.Cached, m.Computed)
	}
	return nil
}
