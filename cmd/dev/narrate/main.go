// Command narrate drafts a narrative for a project file against a local
// Ollama instance, without starting the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"os"

	dbfs "github.com/garnizeh/dosecert/db"
	"github.com/garnizeh/dosecert/internal/ai"
	"github.com/garnizeh/dosecert/internal/config"
	"github.com/garnizeh/dosecert/internal/db"
	"github.com/garnizeh/dosecert/internal/projectfile"
	"github.com/garnizeh/dosecert/internal/repository/sqlite"
	"github.com/garnizeh/dosecert/internal/schemas"
	"github.com/garnizeh/dosecert/pkg/models"
	"github.com/garnizeh/dosecert/pkg/ollama"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	file := flag.String("file", "", "Project file to narrate (a sample job when empty)")
	flag.Parse()

	ctx := context.Background()
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	ollama.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	database, err := db.New(ctx, cfg.DatabasePath, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()
	if err := db.Migrate(ctx, database, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		log.Fatal(err)
	}

	repo := sqlite.New(database, nil)
	loader, err := schemas.NewLoader(ctx, repo)
	if err != nil {
		log.Fatal(err)
	}
	client, err := ollama.NewDefaultClient(cfg.Ollama)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	engine, err := ai.NewEngine(ctx, client, cfg.EngineConfig, repo, loader)
	if err != nil {
		log.Fatal(err)
	}

	job := sampleJob()
	if *file != "" {
		b, err := os.ReadFile(*file)
		if err != nil {
			log.Fatal(err)
		}
		if job, _, err = projectfile.NewImporter(loader).Import(ctx, b); err != nil {
			log.Fatal(err)
		}
	}

	n, err := engine.GenerateNarrative(ctx, job)
	if err != nil {
		log.Fatal(err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(n); err != nil {
		log.Fatal(err)
	}
}

func sampleJob() *models.JobRecord {
	job := models.NewJobRecord()
	job.ClientName = "Sample Client"
	job.SiteName = "Plant Room 1"
	job.SystemVolume = "1200"
	job.IncomingMainsPh = "7.9"
	job.InjectionPoint = "Incoming main after stopcock"
	tp := job.AddTestPoint()
	for i := range job.TestPoints {
		if job.TestPoints[i].ID == tp {
			job.TestPoints[i].Location = "Kitchen sink"
			job.TestPoints[i].InitialPPM = "50"
			job.TestPoints[i].PPM1Hour = "48"
		}
	}
	return job
}
