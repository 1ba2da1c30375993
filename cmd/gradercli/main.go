package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forgecheck/grader/internal/domain"
	"github.com/forgecheck/grader/pkg/graderclient"
)

// Exit codes, per the front service's CLI contract: 0 success, 1
// configuration error, 2 I/O error.
const (
	exitOK          = 0
	exitConfigError = 1
	exitIOError     = 2
)

type cliConfig struct {
	APIBaseURL string `json:"api_base_url"`
}

var buildVersion = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		printUsage()
		return exitConfigError
	}
	cmd := args[0]
	rest := args[1:]

	switch cmd {
	case "project":
		return commandProject(rest)
	case "submit":
		return commandSubmit(rest)
	case "status":
		return commandStatus(rest)
	case "version", "--version", "-v":
		printVersion()
		return exitOK
	case "help", "-h", "--help":
		printUsage()
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		return exitConfigError
	}
}

func commandProject(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: gradercli project [upload|remove]")
		return exitConfigError
	}
	switch args[0] {
	case "upload":
		return projectUpload(args[1:])
	case "remove":
		return projectRemove(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown project command: %s\n", args[0])
		return exitConfigError
	}
}

func projectUpload(args []string) int {
	fs := flag.NewFlagSet("project upload", flag.ContinueOnError)
	name := fs.String("name", "", "Project name")
	archivePath := fs.String("archive", "", "Path to the project template zip archive")
	apiBase := fs.String("api", "", "Front service base URL")
	if err := fs.Parse(args); err != nil {
		return exitConfigError
	}
	if strings.TrimSpace(*name) == "" {
		fmt.Fprintln(os.Stderr, "--name is required")
		return exitConfigError
	}
	if strings.TrimSpace(*archivePath) == "" {
		fmt.Fprintln(os.Stderr, "--archive is required")
		return exitConfigError
	}

	client, err := newClient(*apiBase)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return exitConfigError
	}

	archive, err := os.ReadFile(*archivePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read archive: %v\n", err)
		return exitIOError
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	execution, err := client.UploadProject(ctx, *name, archive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "upload failed: %v\n", err)
		return exitIOError
	}
	printExecution(execution)
	return exitOK
}

func projectRemove(args []string) int {
	fs := flag.NewFlagSet("project remove", flag.ContinueOnError)
	name := fs.String("name", "", "Project name")
	apiBase := fs.String("api", "", "Front service base URL")
	if err := fs.Parse(args); err != nil {
		return exitConfigError
	}
	if strings.TrimSpace(*name) == "" {
		fmt.Fprintln(os.Stderr, "--name is required")
		return exitConfigError
	}

	client, err := newClient(*apiBase)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return exitConfigError
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.RemoveProject(ctx, *name); err != nil {
		fmt.Fprintf(os.Stderr, "removal failed: %v\n", err)
		return exitIOError
	}
	fmt.Println("project removed")
	return exitOK
}

func commandSubmit(args []string) int {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	project := fs.String("project", "", "Project name")
	archivePath := fs.String("archive", "", "Path to the submission source zip archive")
	apiBase := fs.String("api", "", "Front service base URL")
	var execArgs argList
	fs.Var(&execArgs, "arg", "Execution argument as key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return exitConfigError
	}
	if strings.TrimSpace(*project) == "" {
		fmt.Fprintln(os.Stderr, "--project is required")
		return exitConfigError
	}
	if strings.TrimSpace(*archivePath) == "" {
		fmt.Fprintln(os.Stderr, "--archive is required")
		return exitConfigError
	}

	parsedArgs, err := execArgs.toMap()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return exitConfigError
	}

	client, err := newClient(*apiBase)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return exitConfigError
	}

	archive, err := os.ReadFile(*archivePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read archive: %v\n", err)
		return exitIOError
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	execution, err := client.ExecuteSubmission(ctx, *project, archive, parsedArgs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "submit failed: %v\n", err)
		return exitIOError
	}
	printExecution(execution)
	return exitOK
}

func commandStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	apiBase := fs.String("api", "", "Front service base URL")
	if err := fs.Parse(args); err != nil {
		return exitConfigError
	}

	client, err := newClient(*apiBase)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return exitConfigError
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "front service unreachable: %v\n", err)
		return exitIOError
	}
	fmt.Println("front service reachable")
	return exitOK
}

// argList collects repeated -arg key=value flags.
type argList []string

func (a *argList) String() string { return strings.Join(*a, ",") }

func (a *argList) Set(value string) error {
	*a = append(*a, value)
	return nil
}

func (a argList) toMap() (map[string]string, error) {
	if len(a) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(a))
	for _, entry := range a {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("malformed --arg %q, expected key=value", entry)
		}
		out[key] = value
	}
	return out, nil
}

func printExecution(execution domain.ContainerExecution) {
	data, err := json.MarshalIndent(execution, "", "  ")
	if err != nil {
		fmt.Printf("%+v\n", execution)
		return
	}
	fmt.Println(string(data))
}

func newClient(apiBase string) (*graderclient.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(apiBase) != "" {
		cfg.APIBaseURL = apiBase
	}
	return graderclient.New(cfg.APIBaseURL)
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: "http://localhost:8080"}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://localhost:8080"
	}
	return cfg, nil
}

func configPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "gradercli", "config.json"), nil
}

func printUsage() {
	fmt.Printf("gradercli %s\n\n", buildVersion)
	fmt.Print(`Usage:
	gradercli project upload --name <project> --archive <path.zip> [--api http://localhost:8080]
	gradercli project remove --name <project> [--api http://localhost:8080]
	gradercli submit --project <project> --archive <path.zip> [--arg key=value ...] [--api http://localhost:8080]
	gradercli status [--api http://localhost:8080]
	gradercli version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
