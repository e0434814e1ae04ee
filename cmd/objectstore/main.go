// Command objectstore is an operational CLI around a kvstore.Backend: open
// a store by path, inspect keys, dump or load raw values, and serve it over
// HTTP for ad-hoc debugging. Application code embeds the object/index/raw
// packages directly; this binary exists for the same reason Warren ships a
// standalone manager binary alongside its library packages: operators need
// a way to poke at a store without writing Go.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/loqor/objectstore/config"
	"github.com/loqor/objectstore/index"
	"github.com/loqor/objectstore/kvstore"
	"github.com/loqor/objectstore/kvstore/boltdb"
	"github.com/loqor/objectstore/kvstore/fsstore"
	"github.com/loqor/objectstore/kvstore/memory"
	"github.com/loqor/objectstore/log"
	"github.com/loqor/objectstore/metrics"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "objectstore",
	Short: "Inspect and serve an objectstore-backed kvstore",
	Long: `objectstore operates on the raw key/value layer beneath the
object, index and raw packages: it opens a backend by kind and path,
and lets you list, get, put, remove, dump and serve its keys directly,
plus rebuild a forward/backward index over one field of a class.

Typed object access (schemas, relations, filter hooks) is a library
concern for the embedding application; this CLI only sees bytes and the
field name you give rebuild-indexes.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("objectstore version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("backend", "fsstore", "Backend kind: memory, fsstore, boltdb")
	rootCmd.PersistentFlags().String("path", "./data", "Backend path (directory for fsstore, file for boltdb)")
	rootCmd.PersistentFlags().String("config", "", "YAML config file; overrides --backend and --path when set")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(rebuildIndexesCmd)
	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// openBackend opens the backend named by the --backend/--path persistent
// flags. boltdb and fsstore own on-disk state at path; memory always starts
// empty and exists mainly for smoke-testing CLI invocations.
func openBackend(cmd *cobra.Command) (kvstore.Backend, func(), error) {
	kind, _ := cmd.Flags().GetString("backend")
	path, _ := cmd.Flags().GetString("path")

	if configPath, _ := cmd.Flags().GetString("config"); configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
		kind, path = cfg.Backend.Kind, cfg.Backend.Path
	}

	switch kind {
	case "memory":
		return memory.New(), func() {}, nil
	case "fsstore":
		store, err := fsstore.New(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open fsstore at %s: %w", path, err)
		}
		return store, func() {}, nil
	case "boltdb":
		store, err := boltdb.New(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open boltdb at %s: %w", path, err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend kind %q (want memory, fsstore or boltdb)", kind)
	}
}

var getCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print the raw value stored under KEY",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, closer, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer closer()

		ctx := context.Background()
		data, err := backend.Get(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(prettyPrint(data))
		return nil
	},
}

var putCmd = &cobra.Command{
	Use:   "put KEY",
	Short: "Write JSON read from stdin to KEY, creating or overwriting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, closer, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer closer()

		var body json.RawMessage
		if err := json.NewDecoder(os.Stdin).Decode(&body); err != nil {
			return fmt.Errorf("decode stdin: %w", err)
		}

		ctx := context.Background()
		key := args[0]
		exists, err := backend.Has(ctx, key)
		if err != nil {
			return err
		}
		timer := metrics.NewTimer()
		if exists {
			err = backend.Update(ctx, key, body)
			timer.ObserveDurationVec(metrics.BackendOpDuration, "cli", "update")
		} else {
			err = backend.Add(ctx, key, body)
			timer.ObserveDurationVec(metrics.BackendOpDuration, "cli", "add")
		}
		if err != nil {
			return err
		}
		fmt.Printf("✓ wrote %s\n", key)
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm KEY",
	Short: "Remove KEY",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, closer, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer closer()
		if err := backend.Remove(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ removed %s\n", args[0])
		return nil
	},
}

var keysCmd = &cobra.Command{
	Use:   "keys [PREFIX]",
	Short: "List keys, optionally restricted to PREFIX",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, closer, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer closer()

		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		it, err := backend.Keys(context.Background(), prefix, kvstore.OrderAscending)
		if err != nil {
			return err
		}
		keys, err := kvstore.CollectKeys(it)
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return nil
	},
}

var countCmd = &cobra.Command{
	Use:   "count [PREFIX]",
	Short: "Count keys, optionally restricted to PREFIX",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, closer, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer closer()

		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		n, err := backend.Count(context.Background(), prefix)
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump CLASS",
	Short: "Print every stored instance of CLASS as pretty-printed JSON",
	Long: `dump lists every key under the "CLASS." prefix object.Storage
writes to and prints, for each, a line with its oid and a colon followed by
its decoded value as indented JSON.
It reads the same wire primitives object.Base.export produces, without
needing the embedding application's registered Go types.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, closer, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer closer()

		ctx := context.Background()
		prefix := args[0] + "."
		it, err := backend.Keys(ctx, prefix, kvstore.OrderAscending)
		if err != nil {
			return err
		}
		keys, err := kvstore.CollectKeys(it)
		if err != nil {
			return err
		}
		for _, key := range keys {
			data, err := backend.Get(ctx, key)
			if err != nil {
				return fmt.Errorf("dump %s: %w", key, err)
			}
			fmt.Printf("%s:\n%s\n", strings.TrimPrefix(key, prefix), prettyPrint(data))
		}
		return nil
	},
}

// openIndexBackends opens the three backends one named Index needs (forward,
// backward, meta), derived from the same --backend kind the main store uses
// so a rebuild-indexes run against a fsstore or boltdb store persists
// alongside it rather than only in memory.
func openIndexBackends(kind, basePath string) (forward, backward, meta kvstore.Backend, closer func(), err error) {
	switch kind {
	case "memory":
		return memory.New(), memory.New(), memory.New(), func() {}, nil
	case "fsstore":
		fwd, err := fsstore.New(basePath + ".forward")
		if err != nil {
			return nil, nil, nil, nil, err
		}
		bwd, err := fsstore.New(basePath + ".backward")
		if err != nil {
			return nil, nil, nil, nil, err
		}
		mt, err := fsstore.New(basePath + ".meta")
		if err != nil {
			return nil, nil, nil, nil, err
		}
		return fwd, bwd, mt, func() {}, nil
	case "boltdb":
		fwd, err := boltdb.New(basePath + ".forward.db")
		if err != nil {
			return nil, nil, nil, nil, err
		}
		bwd, err := boltdb.New(basePath + ".backward.db")
		if err != nil {
			return nil, nil, nil, nil, err
		}
		mt, err := boltdb.New(basePath + ".meta.db")
		if err != nil {
			return nil, nil, nil, nil, err
		}
		return fwd, bwd, mt, func() { _ = fwd.Close(); _ = bwd.Close(); _ = mt.Close() }, nil
	default:
		return nil, nil, nil, nil, fmt.Errorf("unknown backend kind %q (want memory, fsstore or boltdb)", kind)
	}
}

// extractorByName resolves the --extractor flag to an index.Extractor, each
// wrapping a value read out of the decoded JSON primitive as a string (the
// only shape a generic, schema-less CLI can safely assume).
func extractorByName(name, pathsSep string) (index.Extractor, error) {
	asString := func(value any) string {
		s, _ := value.(string)
		return s
	}
	switch name {
	case "keyword":
		return func(value any) []string { return []string{index.Keyword(asString(value))} }, nil
	case "keywords":
		return func(value any) []string { return index.Keywords(asString(value)) }, nil
	case "paths":
		pathsFn := index.Paths(pathsSep)
		return func(value any) []string { return pathsFn(asString(value)) }, nil
	default:
		return nil, fmt.Errorf("unknown extractor %q (want keyword, keywords or paths)", name)
	}
}

var rebuildIndexesCmd = &cobra.Command{
	Use:   "rebuild-indexes CLASS FIELD",
	Short: "Rebuild the forward/backward index over one field of CLASS",
	Long: `rebuild-indexes walks every stored instance of CLASS, extracts
FIELD from its decoded JSON value with the chosen --extractor, and
replays the result into a fresh index.Index — the CLI-level escape
hatch for the cold-index case index.Index.Rebuild exists for, when the
embedding application itself isn't available to drive it.

The index is stored under --index-path (default: --path plus a
".idx.CLASS.FIELD" suffix), using the same --backend kind as the main
store.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		class, field := args[0], args[1]

		backend, closer, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer closer()

		kind, _ := cmd.Flags().GetString("backend")
		path, _ := cmd.Flags().GetString("path")
		if configPath, _ := cmd.Flags().GetString("config"); configPath != "" {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			kind, path = cfg.Backend.Kind, cfg.Backend.Path
		}
		indexPath, _ := cmd.Flags().GetString("index-path")
		if indexPath == "" {
			indexPath = fmt.Sprintf("%s.idx.%s.%s", path, class, field)
		}
		extractorName, _ := cmd.Flags().GetString("extractor")
		pathsSep, _ := cmd.Flags().GetString("paths-sep")
		extractor, err := extractorByName(extractorName, pathsSep)
		if err != nil {
			return err
		}

		forward, backward, meta, indexCloser, err := openIndexBackends(kind, indexPath)
		if err != nil {
			return err
		}
		defer indexCloser()

		indexStorage := index.NewStorage(forward, backward, meta)
		idx := index.New(class+"."+field, indexStorage, extractor)

		ctx := context.Background()
		prefix := class + "."
		it, err := backend.Keys(ctx, prefix, kvstore.OrderAscending)
		if err != nil {
			return err
		}
		keys, err := kvstore.CollectKeys(it)
		if err != nil {
			return err
		}

		var readErr error
		count := 0
		err = idx.Rebuild(ctx, func(yield func(key string, value any) bool) {
			for _, key := range keys {
				data, err := backend.Get(ctx, key)
				if err != nil {
					readErr = fmt.Errorf("rebuild-indexes: read %s: %w", key, err)
					return
				}
				var primitive map[string]any
				if err := json.Unmarshal(data, &primitive); err != nil {
					readErr = fmt.Errorf("rebuild-indexes: decode %s: %w", key, err)
					return
				}
				oid := strings.TrimPrefix(key, prefix)
				if !yield(oid, primitive[field]) {
					return
				}
				count++
			}
		})
		if readErr != nil {
			return readErr
		}
		if err != nil {
			return fmt.Errorf("rebuild-indexes: %w", err)
		}
		if err := indexStorage.Sync(ctx); err != nil {
			return err
		}
		fmt.Printf("✓ rebuilt %s.%s from %d object(s) into %s\n", class, field, count, indexPath)
		return nil
	},
}

func init() {
	rebuildIndexesCmd.Flags().String("index-path", "", "Where the rebuilt index lives (default: --path plus a class/field suffix)")
	rebuildIndexesCmd.Flags().String("extractor", "keyword", "Signature extractor: keyword, keywords or paths")
	rebuildIndexesCmd.Flags().String("paths-sep", "/", "Path separator used by --extractor=paths")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve /metrics for a running backend process",
	Long: `serve starts only the Prometheus metrics endpoint. Typed object
access over HTTP (web.Handler) requires an embedding application that has
registered its own StoredObject classes, so it is wired up by that
application's own main package, not by this generic CLI.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())

		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info(fmt.Sprintf("serving metrics on %s", addr))
		return srv.ListenAndServe()
	},
}

func init() {
	serveCmd.Flags().String("addr", ":9090", "Listen address for the metrics endpoint")
}

func prettyPrint(data []byte) string {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(data)
	}
	return string(out)
}
