package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	vc "github.com/structcms/versioned-content/pkg/versionedcontent"
	"github.com/structcms/versioned-content/pkg/versionedcontent/config"
)

const usage = `Versioned Content Admin CLI

An operator tool for inspecting and maintaining the content store. It
connects to the same database the server uses.

USAGE:
  admin <command> [options]

COMMANDS:
  content     Show one content item with its versions and locations
  versions    List versions by status across all content
  drafts      List draft versions owned by a user
  languages   List the registered languages
  prune       Remove aged archived versions (dry run by default)

ENVIRONMENT VARIABLES:
  DATABASE_URL        Connection string (postgresql://... or "memory")
  CONTENT_ENV_PREFIX  Optional prefix for the variables above

  Configuration can be loaded from a .env file in the current directory.

EXAMPLES:
  # Show one content item
  admin content --id=42

  # List archived versions older than 30 days
  admin versions --status=archived --before=720h

  # List a user's open drafts
  admin drafts --user-id=14

  # See what a prune would remove, then apply it
  admin prune --retention=720h
  admin prune --retention=720h --apply

  # Output as JSON
  admin versions --status=archived --json

OPTIONS:
  --id=<n>             Content id (content)
  --status=<status>    Version status: draft, published, archived (versions)
  --before=<duration>  Only versions modified longer ago than this (versions)
  --limit=<n>          Maximum results (default: 100)
  --user-id=<n>        Creator id (drafts)
  --retention=<duration>  Age threshold for pruning (prune, default: 720h)
  --apply              Actually delete instead of listing (prune)
  --json               Output as JSON
`

type flags struct {
	id        int64
	status    string
	before    time.Duration
	limit     int
	userID    int64
	retention time.Duration
	apply     bool
	useJSON   bool
}

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Print(usage, "\n")
		os.Exit(1)
	}

	command := os.Args[1]
	if command == "help" || command == "--help" || command == "-h" {
		fmt.Print(usage, "\n")
		os.Exit(0)
	}

	app, err := buildApp()
	if err != nil {
		log.Fatalf("Failed to connect to the content store: %v", err)
	}
	defer app.Close()

	ctx := context.Background()
	f := parseFlags(os.Args[2:])

	switch command {
	case "content":
		handleContent(ctx, app, f)
	case "versions":
		handleVersions(ctx, app, f)
	case "drafts":
		handleDrafts(ctx, app, f)
	case "languages":
		handleLanguages(ctx, app, f)
	case "prune":
		handlePrune(ctx, app, f)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage, "\n")
		os.Exit(1)
	}
}

func buildApp() (*config.App, error) {
	cfg, err := config.Load(
		config.WithEnv(os.Getenv("CONTENT_ENV_PREFIX")),
		config.WithTypeCache(false, 0),
	)
	if err != nil {
		return nil, err
	}
	return cfg.Build(context.Background(), nil)
}

func parseFlags(args []string) flags {
	f := flags{
		limit:     100,
		retention: 720 * time.Hour,
	}

	for _, arg := range args {
		key, value := parseFlag(arg)
		switch key {
		case "id":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				f.id = n
			}
		case "status":
			f.status = value
		case "before":
			if d, err := time.ParseDuration(value); err == nil {
				f.before = d
			}
		case "limit":
			if n, err := strconv.Atoi(value); err == nil {
				f.limit = n
			}
		case "user-id":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				f.userID = n
			}
		case "retention":
			if d, err := time.ParseDuration(value); err == nil {
				f.retention = d
			}
		case "apply":
			f.apply = true
		case "json":
			f.useJSON = true
		}
	}

	return f
}

func parseFlag(arg string) (string, string) {
	if len(arg) > 2 && arg[:2] == "--" {
		arg = arg[2:]
		for i, c := range arg {
			if c == '=' {
				return arg[:i], arg[i+1:]
			}
		}
		return arg, "true"
	}
	return "", ""
}

func handleContent(ctx context.Context, app *config.App, f flags) {
	if f.id == 0 {
		log.Fatal("content requires --id")
	}

	info, err := app.Gateway.LoadContentInfo(ctx, f.id)
	if err != nil {
		log.Fatalf("Failed to load content: %v", err)
	}
	versions, err := app.Gateway.ListVersions(ctx, f.id, vc.VersionFilter{})
	if err != nil {
		log.Fatalf("Failed to list versions: %v", err)
	}
	locations, err := app.Gateway.LocationsByContent(ctx, f.id)
	if err != nil {
		log.Fatalf("Failed to list locations: %v", err)
	}

	if f.useJSON {
		printJSON(map[string]any{
			"content":   info,
			"versions":  versions,
			"locations": locations,
		})
		return
	}

	fmt.Printf("Content %d: %q\n", info.ID, info.Name)
	fmt.Printf("  Type: %d  Section: %d  Owner: %d\n", info.TypeID, info.SectionID, info.OwnerID)
	fmt.Printf("  Status: %s  Current version: %d  Main language: %s\n",
		info.Status, info.CurrentVersionNo, info.MainLanguageCode)
	fmt.Printf("  Remote id: %s\n", info.RemoteID)
	fmt.Printf("  Modified: %s\n", info.Modified.Format("2006-01-02 15:04:05"))

	fmt.Println("\nVersions:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  NO\tSTATUS\tCREATOR\tMODIFIED\n")
	for _, v := range versions {
		fmt.Fprintf(w, "  %d\t%s\t%d\t%s\n",
			v.VersionNo, v.Status, v.CreatorID, v.Modified.Format("2006-01-02 15:04:05"))
	}
	w.Flush()

	if len(locations) > 0 {
		fmt.Println("\nLocations:")
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "  ID\tPARENT\tDEPTH\tMAIN\n")
		for _, loc := range locations {
			fmt.Fprintf(w, "  %d\t%d\t%d\t%t\n", loc.ID, loc.ParentID, loc.Depth, loc.IsMain())
		}
		w.Flush()
	}
}

func handleVersions(ctx context.Context, app *config.App, f flags) {
	if f.status == "" {
		log.Fatal("versions requires --status")
	}

	cutoff := time.Now().UTC()
	if f.before > 0 {
		cutoff = cutoff.Add(-f.before)
	}

	versions, err := app.Gateway.ListVersionsByStatus(ctx, vc.VersionStatus(f.status), cutoff, f.limit)
	if err != nil {
		log.Fatalf("Failed to list versions: %v", err)
	}

	printVersions(versions, f.useJSON)
}

func handleDrafts(ctx context.Context, app *config.App, f flags) {
	if f.userID == 0 {
		log.Fatal("drafts requires --user-id")
	}

	versions, err := app.Gateway.ListVersionsForUser(ctx, f.userID, vc.VersionStatusDraft)
	if err != nil {
		log.Fatalf("Failed to list drafts: %v", err)
	}

	printVersions(versions, f.useJSON)
}

func handleLanguages(ctx context.Context, app *config.App, f flags) {
	languages, err := app.Gateway.ListLanguages(ctx)
	if err != nil {
		log.Fatalf("Failed to list languages: %v", err)
	}

	if f.useJSON {
		printJSON(languages)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tCODE\n")
	for _, lang := range languages {
		fmt.Fprintf(w, "%d\t%s\n", lang.ID, lang.Code)
	}
	w.Flush()
}

func handlePrune(ctx context.Context, app *config.App, f flags) {
	cutoff := time.Now().UTC().Add(-f.retention)
	versions, err := app.Gateway.ListVersionsByStatus(ctx, vc.VersionStatusArchived, cutoff, f.limit)
	if err != nil {
		log.Fatalf("Failed to list archived versions: %v", err)
	}

	if !f.apply {
		fmt.Printf("Dry run: %d archived version(s) older than %s would be removed.\n",
			len(versions), f.retention)
		printVersions(versions, f.useJSON)
		return
	}

	pruned := 0
	for _, v := range versions {
		if err := app.Service.DeleteVersion(ctx, v.ContentID, v.VersionNo); err != nil {
			fmt.Fprintf(os.Stderr, "failed to prune content %d version %d: %v\n",
				v.ContentID, v.VersionNo, err)
			continue
		}
		pruned++
	}
	fmt.Printf("Pruned %d of %d archived version(s).\n", pruned, len(versions))
}

func printVersions(versions []*vc.VersionInfo, useJSON bool) {
	if useJSON {
		printJSON(versions)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "CONTENT\tVERSION\tSTATUS\tCREATOR\tMODIFIED\n")
	for _, v := range versions {
		fmt.Fprintf(w, "%d\t%d\t%s\t%d\t%s\n",
			v.ContentID, v.VersionNo, v.Status, v.CreatorID,
			v.Modified.Format("2006-01-02 15:04:05"))
	}
	w.Flush()

	fmt.Printf("\nTotal: %d\n", len(versions))
}

func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
