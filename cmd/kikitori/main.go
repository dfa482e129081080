// Package main is the kikitori CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/kikitori/kikitori/internal/cli"
	"github.com/kikitori/kikitori/internal/config"
	"github.com/kikitori/kikitori/internal/corpus"
	"github.com/kikitori/kikitori/internal/indexer"
	"github.com/kikitori/kikitori/internal/keyword"
	"github.com/kikitori/kikitori/internal/models"
	"github.com/kikitori/kikitori/internal/search"
	"github.com/kikitori/kikitori/internal/server"
	"github.com/kikitori/kikitori/internal/storage"
	"github.com/kikitori/kikitori/internal/transcribe"
	"github.com/kikitori/kikitori/internal/watcher"
	"github.com/kikitori/kikitori/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kikitori/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "kikitori server" from the project dir uses the
// project's config (including debug). Returns the config and the path that
// was actually loaded (for saving, etc.).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "regexp":
		runRegexp()
	case "timestamps":
		runTimestamps()
	case "index":
		runIndex()
	case "delete":
		runDelete()
	case "watch":
		runWatch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kikitori version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (directory changes, file indexing, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	idx := components.Indexer
	watchOpts := []watcher.Option{}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	if cfg.Watch.DebounceMS > 0 {
		watchOpts = append(watchOpts, watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMS)*time.Millisecond))
	}
	watchSvc := watcher.New(
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		func(path string) {
			if err := idx.IndexFile(context.Background(), path); err != nil {
				logger.Warn("watch index file failed", zap.String("path", path), zap.Error(err))
			}
		},
		func(path string) {
			if err := idx.DeleteFile(context.Background(), filepath.Base(path)); err != nil {
				logger.Warn("watch delete by path failed", zap.String("path", path), zap.Error(err))
			}
		},
		watchOpts...,
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(
		components.Engine,
		components.Indexer,
		components.Corpus,
		components.Storage,
		watchSvc,
		cfg,
		resolvedConfigPath,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	watchSvc.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// printSearchUsage prints search subcommand usage and tolerance hints.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kikitori search [flags] <phrase>\n\n")
	fmt.Fprintf(fs.Output(), "Phrase is all remaining arguments joined by spaces. Multi-word phrases work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Each result is the time interval the phrase spans in an audio file.
  * --timing-error tolerates silence gaps between consecutive words (seconds).
  * --missing-words tolerates that many query words being absent.
  * --subsequence allows extra spoken words between the matched ones.
  * --supersequence allows extra spoken words inside a contiguous region.
  * --file restricts the search to one audio file.

Examples:
  kikitori search thank you very much
  kikitori search "thank you very much"            # same as above
  kikitori search --timing-error 0.5 hello world
  kikitori search --missing-words 1 the quick brown fox
  kikitori search --file talk.wav --case-sensitive Tokyo
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word
// phrases work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchConfigPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func searchConfigPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return defaultPath
}

// searchDefaultsFromConfig loads config at path and returns the default
// timing error and missing word tolerance for phrase queries. On load
// failure, returns strict defaults (0, 0). Zero values from config are
// accepted (meaning exact matching).
func searchDefaultsFromConfig(path string) (timingError float64, missingWords int) {
	cfg, _, err := loadConfig(path)
	if err != nil || cfg == nil {
		return 0, 0
	}
	return cfg.Search.TimingError, cfg.Search.MissingWordTolerance
}

// searchArgsReorder moves any flags (and their values) that appear after the
// phrase to the front of the slice so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument, so "kikitori search \"hello
// world\" -timing-error 0.5" would otherwise leave -timing-error unparsed.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// outputFormatFromFlag maps the -output flag value to a cli format.
func outputFormatFromFlag(v string) (cli.OutputFormat, error) {
	switch v {
	case "text":
		return cli.OutputText, nil
	case "json":
		return cli.OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", v)
	}
}

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])
	configPath := searchConfigPathFromArgs(searchArgs, defaultConfigPath)
	defaultTiming, defaultMissing := searchDefaultsFromConfig(configPath)

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPathFlag := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage when server is not running)")
	timingError := fs.Float64("timing-error", defaultTiming, "max tolerated silence gap between consecutive words, in seconds")
	missingWords := fs.Int("missing-words", defaultMissing, "number of query words allowed to be absent")
	subsequence := fs.Bool("subsequence", false, "allow extra spoken words between matched words")
	supersequence := fs.Bool("supersequence", false, "allow extra spoken words inside a contiguous region")
	caseSensitive := fs.Bool("case-sensitive", false, "match case exactly")
	file := fs.String("file", "", "restrict search to one audio file")
	outputFormat := fs.String("output", "text", "output format: text (human-readable) or json (parseable)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	if fs.NArg() < 1 {
		printSearchUsage(fs)
		os.Exit(1)
	}
	pattern := buildSearchQuery(fs.Args())
	if pattern == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}

	format, err := outputFormatFromFlag(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	query := &models.Query{
		Pattern:              pattern,
		TimingError:          *timingError,
		MissingWordTolerance: *missingWords,
		AllowSubsequence:     *subsequence,
		AllowSupersequence:   *supersequence,
		CaseSensitive:        *caseSensitive,
		File:                 *file,
	}

	response, err := searchResponse(*serverURL, *configPathFlag, query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteMatches(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// searchResponse runs the query over HTTP when serverURL is set, otherwise
// against direct storage.
func searchResponse(serverURL, configPath string, query *models.Query) (*models.SearchResponse, error) {
	if serverURL != "" {
		// Use the HTTP API when the server is running (avoids a Bleve/SQLite
		// lock conflict with the server process).
		return searchViaHTTP(serverURL, query)
	}
	components, err := openComponents(configPath)
	if err != nil {
		return nil, err
	}
	defer components.Close()
	return components.Engine.Respond(query)
}

func searchViaHTTP(serverURL string, query *models.Query) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runRegexp() {
	regexpArgs := searchArgsReorder(os.Args[2:])
	fs := flag.NewFlagSet("regexp", flag.ExitOnError)
	configPathFlag := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	file := fs.String("file", "", "restrict search to one audio file")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(regexpArgs)

	if fs.NArg() < 1 {
		fmt.Println("Usage: kikitori regexp [flags] <pattern>")
		os.Exit(1)
	}
	pattern := fs.Arg(0)

	format, err := outputFormatFromFlag(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	var response *models.RegexpResponse
	if *serverURL != "" {
		response, err = regexpViaHTTP(*serverURL, pattern, *file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		components, err := openComponents(*configPathFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		start := time.Now()
		results, err := components.Engine.SearchRegexp(pattern, *file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		response = &models.RegexpResponse{
			Pattern:   pattern,
			Results:   results,
			QueryTime: time.Since(start).Milliseconds(),
		}
	}
	if err := cli.WriteRegexpResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func regexpViaHTTP(serverURL, pattern, file string) (*models.RegexpResponse, error) {
	body, err := json.Marshal(map[string]string{"pattern": pattern, "file": file})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search/regexp", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.RegexpResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runTimestamps() {
	fs := flag.NewFlagSet("timestamps", flag.ExitOnError)
	configPathFlag := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kikitori timestamps [flags] <file>")
		os.Exit(1)
	}
	file := filepath.Base(fs.Arg(0))

	format, err := outputFormatFromFlag(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	var spans []models.WordSpan
	if *serverURL != "" {
		spans, err = transcriptViaHTTP(*serverURL, file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Fetch failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		components, err := openComponents(*configPathFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		tr, ok := components.Corpus.Get(file)
		if !ok {
			fmt.Fprintf(os.Stderr, "Transcript not found: %s\n", file)
			os.Exit(1)
		}
		spans = tr.Spans()
	}
	if err := cli.WriteTranscript(os.Stdout, file, spans, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func transcriptViaHTTP(serverURL, file string) ([]models.WordSpan, error) {
	resp, err := http.Get(serverURL + "/api/v1/transcripts/" + url.PathEscape(file))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Words []models.WordSpan `json:"words"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Words, nil
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Files          int            `json:"files"`
	Words          int            `json:"words"`
	StoredFiles    int64          `json:"stored_files,omitempty"`
	StoredWords    int64          `json:"stored_words,omitempty"`
	DiskUsageBytes *int64         `json:"disk_usage_bytes,omitempty"`
	Config         map[string]any `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		components, err := openComponentsWithConfig(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		ctx := context.Background()
		storedFiles, err := components.Storage.CountFiles(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count files failed: %v\n", err)
			os.Exit(1)
		}
		storedWords, err := components.Storage.CountSpans(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count words failed: %v\n", err)
			os.Exit(1)
		}
		status = statusResponse{
			Files:       components.Corpus.Len(),
			Words:       components.Corpus.TokenCount(),
			StoredFiles: storedFiles,
			StoredWords: storedWords,
			Config: map[string]any{
				"database_path":      cfg.Storage.DatabasePath,
				"keyword_index_path": cfg.Storage.KeywordIndexPath,
				"transcriber_model":  cfg.Transcriber.Model,
			},
		}
		diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.KeywordIndexPath)
		if err == nil {
			status.DiskUsageBytes = &diskBytes
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("files:            %d   # transcripts loaded in memory\n", status.Files)
		fmt.Printf("words:            %d   # timestamped words loaded in memory\n", status.Words)
		fmt.Printf("stored_files:     %d   # transcripts persisted on disk\n", status.StoredFiles)
		fmt.Printf("stored_words:     %d   # timestamped words persisted on disk\n", status.StoredWords)
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes: %d   # database + keyword index on disk\n", *status.DiskUsageBytes)
		}
		if len(status.Config) > 0 {
			fmt.Println()
			fmt.Println("# configuration")
			for _, key := range []string{"database_path", "keyword_index_path", "transcriber_model"} {
				if v, ok := status.Config[key]; ok && v != "" {
					fmt.Printf("%-19s %v\n", key+":", v)
				}
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kikitori index [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	components, err := openComponents(*configPath)
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		n, failures, err := components.Indexer.IndexDirectory(ctx, path)
		if err != nil {
			fmt.Printf("Indexing directory failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Indexed %d file(s) from %s\n", n, path)
		for file, ferr := range failures {
			fmt.Printf("  failed: %s: %v\n", file, ferr)
		}
		if len(failures) > 0 {
			os.Exit(1)
		}
		return
	}
	if err := components.Indexer.IndexFile(ctx, path); err != nil {
		fmt.Printf("Indexing failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("File indexed successfully: %s\n", filepath.Base(path))
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: kikitori watch <add|remove|list> [path]")
		fmt.Println("  kikitori watch add <path>     Add directory to watch")
		fmt.Println("  kikitori watch remove <path>  Remove directory from watch")
		fmt.Println("  kikitori watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[3:])
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: kikitori watch add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body, _ := json.Marshal(map[string]interface{}{"path": path, "sync": true})
		resp, err := http.Post(*serverURL+"/api/v1/watch/directories", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Add failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: kikitori watch remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/watch/directories?path="+url.QueryEscape(path), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Remove failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		resp, err := http.Get(*serverURL + "/api/v1/watch/directories")
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("List failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Printf("Parse failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kikitori delete [flags] <file>")
		os.Exit(1)
	}
	file := filepath.Base(fs.Arg(0))

	components, err := openComponents(*configPath)
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	if err := components.Indexer.DeleteFile(context.Background(), file); err != nil {
		fmt.Printf("Deletion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Transcript deleted: %s\n", file)
}

// Components holds initialized services.
type Components struct {
	Corpus       *corpus.Corpus
	Storage      storage.Storage
	KeywordIndex *keyword.Index
	Engine       *search.Engine
	Indexer      *indexer.Indexer
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

// openComponents loads config at path and initializes components with
// persisted transcripts restored into the corpus.
func openComponents(configPath string) (*Components, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return openComponentsWithConfig(cfg)
}

func openComponentsWithConfig(cfg *config.Config) (*Components, error) {
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		return nil, err
	}
	_, failures, err := components.Indexer.LoadPersisted(context.Background())
	if err != nil {
		components.Close()
		return nil, fmt.Errorf("failed to load persisted transcripts: %w", err)
	}
	for file, ferr := range failures {
		logger.Warn("stored transcript skipped", zap.String("file", file), zap.Error(ferr))
	}
	return components, nil
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	keywordIndex, err := keyword.NewIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	c := corpus.New()
	engine := search.NewEngine(c, search.WithCandidateFilter(keywordIndex))

	transcriber := transcribe.NewWatsonClient(transcribe.WatsonConfig{
		Endpoint: cfg.Transcriber.Endpoint,
		Username: cfg.Transcriber.Username,
		Password: cfg.Transcriber.Password,
		Model:    cfg.Transcriber.Model,
		Timeout:  time.Duration(cfg.Transcriber.TimeoutSeconds) * time.Second,
	}, logger)

	idxOpts := []indexer.Option{
		indexer.WithStorage(store),
		indexer.WithKeywordIndex(keywordIndex),
		indexer.WithMaxSegmentBytes(cfg.Transcriber.MaxUploadBytes),
	}
	if cfg.Storage.SegmentDir != "" {
		idxOpts = append(idxOpts, indexer.WithSegmentDir(cfg.Storage.SegmentDir))
	}
	if debug && logger != nil {
		idxOpts = append(idxOpts, indexer.WithLogger(logger))
	}
	idx := indexer.NewIndexer(c, transcriber, idxOpts...)

	return &Components{
		Corpus:       c,
		Storage:      store,
		KeywordIndex: keywordIndex,
		Engine:       engine,
		Indexer:      idx,
	}, nil
}

func printUsage() {
	fmt.Println(`kikitori - Timestamped audio transcript search

Usage:
  kikitori server [flags]              Start the HTTP server
  kikitori search [flags] <phrase>     Find where a phrase is spoken
  kikitori regexp [flags] <pattern>    Find regexp matches with timestamps
  kikitori timestamps [flags] <file>   Show one file's word timings
  kikitori index [flags] <path>        Transcribe and index an audio file or directory
  kikitori delete [flags] <file>       Delete a transcript
  kikitori status [flags]              Show corpus/storage status
  kikitori watch <add|remove|list>     Manage watched directories
  kikitori version                     Show version
  kikitori help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kikitori/config.yaml)
  --debug            Enable debug logging (directory changes, file indexing, etc.)

Search Flags:
  --config string         Config file path (for direct storage mode; also supplies default tolerances)
  --server string         Server URL (default: http://localhost:8080). Use empty (--server "") when the server is not running.
  --timing-error float    Max tolerated silence gap between consecutive words, in seconds
  --missing-words int     Number of query words allowed to be absent
  --subsequence           Allow extra spoken words between matched words
  --supersequence         Allow extra spoken words inside a contiguous region
  --case-sensitive        Match case exactly
  --file string           Restrict search to one audio file
  --output string         Output format: text or json (default: text)

Examples:
  kikitori server
  kikitori search "thank you very much"
  kikitori search --timing-error 0.5 hello world
  kikitori search --missing-words 1 the quick brown fox
  kikitori regexp 'toky\w+'
  kikitori timestamps talk.wav
  kikitori index recordings/talk.wav
  kikitori index recordings/
  kikitori delete talk.wav
  kikitori status --output json
  kikitori watch add /path/to/recordings
  kikitori watch list`)
}
