// PubGuard - multi-source security risk assessment for open-source projects
//
// One-shot usage:
//
//	pubguard -target owner/name
//	pubguard -target github.com/tukaani/xz -out report.json -db reports.db
//	pubguard -target acme/left-pad -config pubguard.yaml -no-social
//
// Exit codes: 0 green/amber verdict, 2 red verdict, 1 error.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pubguard/engine/pkg/audit"
	"github.com/pubguard/engine/pkg/catalogs"
	"github.com/pubguard/engine/pkg/logging"
	"github.com/pubguard/engine/pkg/report"
	"github.com/pubguard/engine/pkg/scan"
	"github.com/pubguard/engine/pkg/scoring"
	"github.com/pubguard/engine/pkg/store"
)

const (
	appName    = "pubguard"
	appVersion = "1.0.0"
)

// Config is the yaml configuration file shape. Every field has a flag or
// environment fallback; the file is optional.
type Config struct {
	Engine struct {
		GitHubToken   string        `yaml:"github_token"`
		GitLabToken   string        `yaml:"gitlab_token"`
		NVDAPIKey     string        `yaml:"nvd_api_key"`
		SearchBaseURL string        `yaml:"search_base_url"`
		SearchAPIKey  string        `yaml:"search_api_key"`
		SourceTimeout time.Duration `yaml:"source_timeout"`
	} `yaml:"engine"`

	// Catalogs optionally overlays the embedded lookup tables.
	Catalogs string `yaml:"catalogs"`

	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`

	Audit struct {
		Path string `yaml:"path"`
	} `yaml:"audit"`

	Verbose bool `yaml:"verbose"`
}

func main() {
	targetRef := flag.String("target", "", "Scan target (owner/name or github.com/gitlab.com URL)")
	configPath := flag.String("config", "", "Path to yaml config file")
	noSocial := flag.Bool("no-social", false, "Skip the social-signals source")
	outFile := flag.String("out", "", "Write the full report JSON to a file")
	dbPath := flag.String("db", "", "Archive the report in a SQLite database")
	auditPath := flag.String("audit", "", "Append scan lifecycle events to a JSONL file")
	catalogsPath := flag.String("catalogs", "", "Overlay catalog yaml file")
	timeout := flag.Duration("timeout", 0, "Per-source timeout (default 45s)")
	verbose := flag.Bool("verbose", false, "Verbose output")
	showVersion := flag.Bool("version", false, "Show version")

	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", appName, appVersion)
		os.Exit(0)
	}

	if *targetRef == "" {
		fmt.Fprintln(os.Stderr, "Error: -target is required.")
		fmt.Fprintln(os.Stderr, "Usage: pubguard -target owner/name [-config pubguard.yaml]")
		os.Exit(1)
	}

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nAborting scan...")
		cancel()
	}()

	var cfg Config
	if *configPath != "" {
		if err := loadConfig(*configPath, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	// Flags and environment override the file.
	cfg.Engine.GitHubToken = firstOf(cfg.Engine.GitHubToken, os.Getenv("PUBGUARD_GITHUB_TOKEN"))
	cfg.Engine.GitLabToken = firstOf(cfg.Engine.GitLabToken, os.Getenv("PUBGUARD_GITLAB_TOKEN"))
	cfg.Engine.NVDAPIKey = firstOf(cfg.Engine.NVDAPIKey, os.Getenv("PUBGUARD_NVD_API_KEY"))
	cfg.Engine.SearchBaseURL = firstOf(cfg.Engine.SearchBaseURL, os.Getenv("PUBGUARD_SEARCH_URL"))
	cfg.Engine.SearchAPIKey = firstOf(cfg.Engine.SearchAPIKey, os.Getenv("PUBGUARD_SEARCH_API_KEY"))
	cfg.Catalogs = firstOf(*catalogsPath, cfg.Catalogs)
	cfg.Store.Path = firstOf(*dbPath, cfg.Store.Path)
	cfg.Audit.Path = firstOf(*auditPath, cfg.Audit.Path)
	if *timeout > 0 {
		cfg.Engine.SourceTimeout = *timeout
	}
	if *verbose {
		cfg.Verbose = true
	}

	cat, err := catalogs.Load(cfg.Catalogs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading catalogs: %v\n", err)
		os.Exit(1)
	}

	log := logging.FromVerbose(appName, cfg.Verbose)
	engine, err := scan.New(scan.Config{
		GitHubToken:   cfg.Engine.GitHubToken,
		GitLabToken:   cfg.Engine.GitLabToken,
		NVDAPIKey:     cfg.Engine.NVDAPIKey,
		SearchBaseURL: cfg.Engine.SearchBaseURL,
		SearchAPIKey:  cfg.Engine.SearchAPIKey,
		Catalogs:      cat,
		Logger:        log,
		SourceTimeout: cfg.Engine.SourceTimeout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building engine: %v\n", err)
		os.Exit(1)
	}

	opts := []scan.Option{scan.WithSocialSignals(!*noSocial)}
	if cfg.Audit.Path != "" {
		trail, err := audit.OpenTrail(cfg.Audit.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening audit trail: %v\n", err)
			os.Exit(1)
		}
		defer trail.Close()
		opts = append(opts, scan.WithAudit(trail))
	}

	rep, err := engine.Run(ctx, *targetRef, opts...)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Scan aborted.")
		} else {
			fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
		}
		os.Exit(1)
	}

	printVerdict(rep)

	if *outFile != "" {
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding report: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*outFile, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nReport written to %s\n", *outFile)
	}

	if cfg.Store.Path != "" {
		db, err := store.Open(store.Config{Path: cfg.Store.Path})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening report store: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()
		if _, err := db.Save(ctx, rep); err != nil {
			fmt.Fprintf(os.Stderr, "Error archiving report: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Report %s archived in %s\n", rep.ID, cfg.Store.Path)
	}

	if rep.TrafficLight == scoring.Red {
		os.Exit(2)
	}
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func loadConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables in config
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func printVerdict(rep *report.PubGuardReport) {
	fmt.Printf("\n%s — %s\n", rep.Target.Slug(), rep.Target.URL)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Verdict:        %s [%s]\n", rep.Recommendation, rep.TrafficLight)
	fmt.Printf("  Overall score:  %d/100\n", rep.OverallScore)
	fmt.Println()
	for _, cat := range rep.RiskCategories {
		fmt.Printf("  %-26s %3d  (weight %.2f)\n", cat.Name, cat.Score, cat.Weight)
	}
	fmt.Println()
	for _, check := range rep.SourcesChecked {
		line := fmt.Sprintf("  %-14s %s", check.Name, check.Status)
		if check.Note != "" {
			line += " — " + check.Note
		}
		fmt.Println(line)
	}
	if total := rep.Findings.Total(); total > 0 {
		fmt.Println()
		fmt.Printf("  Findings: %d critical, %d high, %d medium, %d low, %d positive\n",
			len(rep.Findings.Critical), len(rep.Findings.High),
			len(rep.Findings.Medium), len(rep.Findings.Low), len(rep.Findings.Positive))
	}
	if rep.Guidance != nil && len(rep.Guidance.MandatoryDisclosures) > 0 {
		fmt.Println()
		fmt.Println("  Mandatory disclosures:")
		for _, d := range rep.Guidance.MandatoryDisclosures {
			fmt.Printf("    - %s\n", d)
		}
	}
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  %s\n", rep.Disclaimer)
}
