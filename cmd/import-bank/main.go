// Command import-bank loads one worksheet of an .xlsx workbook into the
// question bank tables, the same way the admin upload endpoint does.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/stemsi/litmusq-backend/internal/config"
	"github.com/stemsi/litmusq-backend/internal/database"
	"github.com/stemsi/litmusq-backend/internal/logger"
	"github.com/stemsi/litmusq-backend/internal/model"
	"github.com/stemsi/litmusq-backend/internal/repository"
	"github.com/stemsi/litmusq-backend/internal/service"
	"github.com/stemsi/litmusq-backend/internal/source"
)

func main() {
	var (
		path       string
		req        model.ImportBankRequest
		listSheets bool
	)
	flag.StringVar(&path, "file", "", "Path to the .xlsx workbook")
	flag.StringVar(&req.Name, "name", "", "Bank name (re-using a name replaces that bank)")
	flag.StringVar(&req.Description, "description", "", "Bank description")
	flag.StringVar(&req.SheetName, "sheet", "", "Worksheet to import (default: first sheet)")
	flag.BoolVar(&listSheets, "list-sheets", false, "Print the workbook's sheet names and exit")
	flag.Parse()

	if path == "" {
		fmt.Fprintln(os.Stderr, "Error: -file is required")
		flag.Usage()
		os.Exit(2)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if listSheets {
		names, err := source.SheetNames(bytes.NewReader(raw))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(strings.Join(names, "\n"))
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		fmt.Fprintln(os.Stderr, "Error: -name is required")
		os.Exit(2)
	}

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	// Needed to drop the cached copy of a bank being replaced.
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Service ────────────────────────────────────────────
	questions := service.NewCachedQuestionSource(repository.NewQuestionRepository(pool), rdb, cfg.BankCacheTTL, log)
	bankService := service.NewBankService(repository.NewQuestionBankRepository(pool), questions, log)

	bank, err := bankService.Import(ctx, req, bytes.NewReader(raw))
	if err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}

	fmt.Printf("Imported %d questions into bank '%s' (%s)\n", bank.QuestionCount, bank.Name, bank.ID)
}
