package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/lessonforge/lessonforge/internal/api"
	"github.com/lessonforge/lessonforge/internal/common"
	"github.com/lessonforge/lessonforge/internal/content"
	"github.com/lessonforge/lessonforge/internal/extract"
	"github.com/lessonforge/lessonforge/internal/job"
	"github.com/lessonforge/lessonforge/internal/llm"
	"github.com/lessonforge/lessonforge/internal/sqlite"
	"github.com/lessonforge/lessonforge/internal/vector"
	"github.com/lessonforge/lessonforge/internal/workflow"
)

func main() {
	logger := common.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil {
		logger.Warn("lessonforge: .env file not loaded", "error", err)
	} else {
		logger.Info("lessonforge: environment loaded from .env")
	}

	addr := flag.String("addr", ":8082", "listen address")
	dbPath := flag.String("db", defaultDBPath(), "path to the SQLite database (empty for in-memory state)")
	sourceRoot := flag.String("sources", defaultSourceRoot(), "directory holding uploaded source material")
	flag.Parse()

	logger.Info("lessonforge: startup initiated", "addr", *addr, "db", *dbPath, "sources", *sourceRoot)

	var (
		jobStore  job.Store
		publisher content.Publisher
	)
	if trimmed := strings.TrimSpace(*dbPath); trimmed != "" {
		store, err := sqlite.Open(trimmed)
		if err != nil {
			logger.Error("lessonforge: open database failed", "error", err, "path", trimmed)
			fmt.Println("database error:", err)
			os.Exit(1)
		}
		defer store.Close()
		jobStore = sqlite.NewJobStore(store)
		publisher = sqlite.NewContentStore(store)
	} else {
		logger.Warn("lessonforge: no database configured, job state will not survive restarts")
		jobStore = job.NewMemoryStore()
		publisher = content.NewMemoryPublisher()
	}

	vectorStore, err := vector.NewFromEnv(ctx)
	if err != nil {
		logger.Error("lessonforge: vector store unavailable", "error", err)
		fmt.Println("vector store error:", err)
		os.Exit(1)
	}

	provider := llm.NewProvider()
	extractor := extract.NewFileExtractor(*sourceRoot)
	engine := workflow.NewEngine(jobStore, extractor, vectorStore, provider, publisher, workflow.LoadConfig())
	service := workflow.NewService(jobStore, engine, publisher)

	server, err := api.NewServer(service)
	if err != nil {
		logger.Error("lessonforge: server init failed", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}

	logger.Info("lessonforge: listening", "addr", *addr, "provider", provider.Name())
	if err := http.ListenAndServe(*addr, server); err != nil {
		logger.Error("lessonforge: server stopped", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}
}

func defaultDBPath() string {
	if env := strings.TrimSpace(os.Getenv("LESSONFORGE_DB_PATH")); env != "" {
		return env
	}
	return "lessonforge.db"
}

func defaultSourceRoot() string {
	if env := strings.TrimSpace(os.Getenv("LESSONFORGE_SOURCE_ROOT")); env != "" {
		return env
	}
	return "sources"
}
