// Package main is the docdex operator CLI.
//
// docdex inspects and mutates a document store directory: create indices,
// put or merge documents, run searches, and watch for external changes.
// Configuration comes from CLI flags and an optional YAML config file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/maruel/docdex"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"
)

const usage = `usage: docdex [flags] <command> [args]

commands:
  create <index> <mapping-json>     create an index (never wipes documents)
  put <index> <id> <body-json>      store a document (replace)
  merge <index> <id> <body-json>    merge fields into a document
  get <index> <id>                  print a document by id
  exists <index> <id>               report whether a document exists
  search <index> <query-json>       run a filter/sort query
  get-node <index> <node-id>        find a document by its node_id field
  stat                              per-index document counts
  watch                             report external data file changes
`

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "docdex: %v\n", err)
		os.Exit(1)
	}
}

// config is the optional YAML config file. Flags win over file values.
type config struct {
	Root     string `yaml:"root"`
	LogLevel string `yaml:"log_level"`
}

func mainImpl() error {
	root := flag.String("root", "./data", "Storage root directory")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	configPath := flag.String("config", "", "Optional YAML config file")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return errors.New("missing command")
	}

	cfg := config{Root: *root, LogLevel: *logLevel}
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		var fileCfg config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
		if fileCfg.Root != "" && !flagSet("root") {
			cfg.Root = fileCfg.Root
		}
		if fileCfg.LogLevel != "" && !flagSet("log-level") {
			cfg.LogLevel = fileCfg.LogLevel
		}
	}

	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	store, err := docdex.New(cfg.Root, docdex.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	return runCommand(ctx, store, args[0], args[1:])
}

func runCommand(ctx context.Context, store *docdex.Store, cmd string, args []string) error {
	switch cmd {
	case "create":
		if len(args) != 2 {
			return errors.New("create: want <index> <mapping-json>")
		}
		mapping, err := parseObject(args[1])
		if err != nil {
			return err
		}
		ack, err := store.CreateIndex(args[0], mapping)
		if err != nil {
			return err
		}
		return printJSON(ack)
	case "put", "merge":
		if len(args) != 3 {
			return fmt.Errorf("%s: want <index> <id> <body-json>", cmd)
		}
		body, err := parseObject(args[2])
		if err != nil {
			return err
		}
		var res docdex.DocResult
		if cmd == "put" {
			res, err = store.Index(args[0], args[1], body)
		} else {
			res, err = store.Update(args[0], args[1], body)
		}
		if err != nil {
			return err
		}
		return printJSON(res)
	case "get":
		if len(args) != 2 {
			return errors.New("get: want <index> <id>")
		}
		res, err := store.Search(args[0], docdex.Query{
			Query: &docdex.Filter{Term: map[string]any{"_id": args[1]}},
			Size:  1,
		})
		if err != nil {
			return err
		}
		if len(res.Hits.Hits) == 0 {
			return fmt.Errorf("document %s not found in %s", args[1], args[0])
		}
		return printJSON(res.Hits.Hits[0])
	case "exists":
		if len(args) != 2 {
			return errors.New("exists: want <index> <id>")
		}
		ok, err := store.Exists(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Println(ok)
		return nil
	case "search":
		if len(args) != 2 {
			return errors.New("search: want <index> <query-json>")
		}
		var q docdex.Query
		if err := json.Unmarshal([]byte(args[1]), &q); err != nil {
			return fmt.Errorf("invalid query: %w", err)
		}
		res, err := store.Search(args[0], q)
		if err != nil {
			return err
		}
		return printJSON(res)
	case "get-node":
		if len(args) != 2 {
			return errors.New("get-node: want <index> <node-id>")
		}
		hit, found, err := store.GetByNodeID(args[0], args[1])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no document with node_id %s in %s", args[1], args[0])
		}
		return printJSON(hit)
	case "stat":
		stats, err := store.Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(stats)
	case "watch":
		slog.Info("watching storage root", "root", store.Root())
		return store.Watch(ctx, func(index string) {
			slog.Info("index changed", "index", index)
		})
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func parseObject(s string) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	return m, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// flagSet reports whether the named flag was set explicitly on the command
// line, so file config only fills in unset flags.
func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
