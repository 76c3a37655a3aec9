package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/voaccess/vocloud/access"
	"github.com/voaccess/vocloud/dal"
	"github.com/voaccess/vocloud/provider"
	"github.com/voaccess/vocloud/store"
	"github.com/voaccess/vocloud/ui"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	var (
		input        string
		providerName string
		mode         string
		urlColumn    string
		descColumn   string
		awsProfile   string
		dest         string
		stateDir     string
		list         bool
		noCache      bool
		verbose      bool
		tuiEnabled   bool
	)

	flag.StringVar(&input, "input", "", "JSON table file describing the data products")
	flag.StringVar(&providerName, "provider", "prem", "Provider to download from (prem, aws)")
	flag.StringVar(&mode, "mode", "all", "Discovery mode: json, ucd, datalink or all")
	flag.StringVar(&urlColumn, "url-column", "auto", "Column holding the on-prem URL ('auto', a name, or 'none')")
	flag.StringVar(&descColumn, "descriptor-column", access.DefaultDescriptorColumn, "Column holding the provider-keyed JSON descriptor")
	flag.StringVar(&awsProfile, "aws-profile", "", "AWS credential profile (empty for anonymous access)")
	flag.StringVar(&dest, "dest", ".", "Destination directory for downloads")
	flag.StringVar(&stateDir, "state-dir", "./.vofetch-state", "Directory for the download journal")
	flag.BoolVar(&list, "list", false, "List access points instead of downloading")
	flag.BoolVar(&noCache, "no-cache", false, "Re-download even when a matching local file exists")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	flag.BoolVar(&tuiEnabled, "tui", false, "Show an interactive progress display")
	flag.Parse()

	if input == "" {
		fmt.Println("Usage: vofetch -input <table.json> [options]")
		fmt.Println("\nOptions:")
		flag.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Println("  vofetch -input products.json -list")
		fmt.Println("  vofetch -input products.json -provider aws -aws-profile science -dest ./data")
		os.Exit(1)
	}

	var logger *slog.Logger
	if verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	table, err := dal.LoadTable(input)
	if err != nil {
		log.Fatalf("Failed to load table: %v", err)
	}

	opts := access.Options{
		Mode:             access.Mode(mode),
		URLColumn:        urlColumn,
		DescriptorColumn: descColumn,
		Logger:           logger,
	}
	if awsProfile != "" {
		opts.Meta = map[provider.ID]provider.Meta{
			provider.AWS: {"profile": awsProfile},
		}
	}

	ctx := context.Background()
	orch, err := access.Discover(ctx, table, opts)
	if err != nil {
		log.Fatalf("Discovery failed: %v", err)
	}

	if list {
		for i, c := range orch.Containers() {
			fmt.Printf("row %d %s\n%s", i, c, c.Summary())
		}
		return
	}

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		log.Fatalf("Failed to create state directory: %v", err)
	}
	journal, err := store.Open(filepath.Join(stateDir, "downloads.db"))
	if err != nil {
		log.Fatalf("Failed to open download journal: %v", err)
	}
	defer journal.Close()

	dlOpts := access.DownloadOptions{
		Dir:     dest,
		Cache:   !noCache,
		Journal: journal,
	}

	var results []access.Result
	if tuiEnabled {
		results = downloadWithTUI(ctx, orch, provider.ID(providerName), dlOpts)
	} else {
		results, err = orch.Download(ctx, provider.ID(providerName), dlOpts)
		if err != nil {
			log.Fatalf("Download failed: %v", err)
		}
	}

	failures := 0
	for i, res := range results {
		if res.Failed() {
			failures++
			fmt.Printf("row %d: no file retrieved\n", i)
			for _, msg := range res.Messages {
				fmt.Printf("  %s\n", msg)
			}
			continue
		}
		fmt.Printf("row %d: %s\n", i, res.Path)
	}
	if failures > 0 {
		os.Exit(1)
	}
}

// downloadWithTUI runs the download on a goroutine and feeds progress into a
// bubbletea program until it finishes.
func downloadWithTUI(ctx context.Context, orch *access.Orchestrator, id provider.ID, opts access.DownloadOptions) []access.Result {
	state := &ui.DownloadState{
		Provider:  string(id),
		TotalRows: orch.Len(),
		Total:     -1,
	}
	program := tea.NewProgram(ui.NewModel(state))

	var mu sync.Mutex
	opts.OnPoint = func(row int, uid string) {
		mu.Lock()
		state.CurrentRow = row
		state.CurrentUID = uid
		state.Transferred, state.Total = 0, -1
		mu.Unlock()
	}
	opts.Progress = func(transferred, total int64) {
		mu.Lock()
		state.Transferred, state.Total = transferred, total
		mu.Unlock()
	}

	var results []access.Result
	var dlErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		results, dlErr = orch.Download(ctx, id, opts)
	}()

	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				mu.Lock()
				state.Done = true
				mu.Unlock()
				program.Send(ui.StateMsg{State: state})
				return
			case <-ticker.C:
				program.Send(ui.StateMsg{State: state})
			}
		}
	}()

	if _, err := program.Run(); err != nil {
		log.Fatalf("TUI failed: %v", err)
	}
	<-done
	if dlErr != nil {
		log.Fatalf("Download failed: %v", dlErr)
	}
	return results
}
