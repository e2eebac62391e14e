package main

import (
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"ragstore/internal/auth"
	"ragstore/internal/chunker"
	"ragstore/internal/config"
	"ragstore/internal/domain"
	"ragstore/internal/embedding/local"
	"ragstore/internal/embedding/ollama"
	"ragstore/internal/embedding/openai"
	"ragstore/internal/service"
	"ragstore/internal/tui"
	"ragstore/internal/vectorstore/memory"
	"ragstore/internal/vectorstore/pinecone"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/ragstore/config.yaml if not provided)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Assemble components via interfaces
	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "ollama", "":
		emb, err = ollama.NewClient(ollama.Config{
			BaseURL:   cfg.Embedder.Ollama.URL,
			Model:     cfg.Embedder.Ollama.Model,
			Dimension: cfg.Dimension,
			Timeout:   time.Duration(cfg.Embedder.Ollama.TimeoutSecs) * time.Second,
		})
		if err != nil {
			log.Fatalf("ollama embedder init failed: %v", err)
		}
	case "openai":
		emb, err = openai.New(openai.Config{
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Dimension: cfg.Dimension,
		})
		if err != nil {
			log.Fatalf("openai embedder init failed: %v", err)
		}
	case "local":
		emb = local.New(cfg.Dimension)
	default:
		log.Fatalf("unknown embedder: %s", cfg.Embedder.Type)
	}

	var ragStore, userStore domain.VectorStore
	switch cfg.VectorStore.Type {
	case "memory", "":
		ragStore = memory.New(cfg.Dimension)
		userStore = memory.New(cfg.Dimension)
	case "pinecone":
		pc := cfg.VectorStore.Pinecone
		apiKey := os.Getenv(pc.APIKeyEnv)
		timeout := time.Duration(pc.TimeoutSecs) * time.Second
		ragStore, err = pinecone.New(pinecone.Config{
			Host: pc.Host, APIKey: apiKey, Index: pc.Index,
			Dimension: cfg.Dimension, Timeout: timeout,
		})
		if err != nil {
			log.Fatalf("pinecone init failed: %v", err)
		}
		userStore, err = pinecone.New(pinecone.Config{
			Host: pc.Host, APIKey: apiKey, Index: pc.UserIndex,
			Dimension: cfg.Dimension, Timeout: timeout,
		})
		if err != nil {
			log.Fatalf("pinecone user index init failed: %v", err)
		}
	default:
		log.Fatalf("unknown vector store: %s", cfg.VectorStore.Type)
	}

	splitter := chunker.New(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
	pipeline := service.NewPipeline(splitter, emb, ragStore, logger)
	retrieval := service.NewRetrieval(emb, ragStore, logger)
	users := auth.NewStore(userStore, cfg.Dimension, logger)

	m := tui.New(pipeline, retrieval, users, cfg.Retrieval.TopK)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
