package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/hydroframe/scenario-engine/pkg/config"
	"github.com/hydroframe/scenario-engine/pkg/dataset"
	"github.com/hydroframe/scenario-engine/pkg/differ"
	"github.com/hydroframe/scenario-engine/pkg/graph"
	"github.com/hydroframe/scenario-engine/pkg/log"
	"github.com/hydroframe/scenario-engine/pkg/mapping"
	"github.com/hydroframe/scenario-engine/pkg/metrics"
	"github.com/hydroframe/scenario-engine/pkg/permission"
	"github.com/hydroframe/scenario-engine/pkg/query"
	"github.com/hydroframe/scenario-engine/pkg/scenario"
	"github.com/hydroframe/scenario-engine/pkg/store"
	"github.com/hydroframe/scenario-engine/pkg/types"
)

// components bundles every wired package, standing in for the
// authenticated-caller boundary the real RPC transport (out of scope)
// would own. Each subcommand opens the store for the duration of one
// call, the same per-request lifetime a server handler would give it.
type components struct {
	cfg        config.Config
	db         *store.DB
	guard      *permission.Guard
	graph      *graph.Graph
	datasets   *dataset.Store
	scenarios  *scenario.Engine
	differ     *differ.Differ
	mapping    *mapping.Applier
	query      *query.Query
	metricsAddr string
}

func wire(cfg config.Config, metricsAddr string) (*components, error) {
	db, err := store.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening store at %s: %w", cfg.DataDir, err)
	}

	guard := permission.New()
	g := graph.New()
	ds := dataset.New(cfg.CompressionThreshold)

	return &components{
		cfg:         cfg,
		db:          db,
		guard:       guard,
		graph:       g,
		datasets:    ds,
		scenarios:   scenario.New(guard, g, ds),
		differ:      differ.New(guard),
		mapping:     mapping.New(),
		query:       query.New(guard),
		metricsAddr: metricsAddr,
	}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "scenariod",
	Short: "Scenario engine for water-resource network modeling",
	Long: `scenariod hosts the scenario, dataset, and permission engines for a
water-resource network modeling platform: content-addressed datasets,
per-request permission-gated scenario mutation, and scenario comparison
and mapping propagation.`,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (defaults to built-in config.Default())")
	rootCmd.PersistentFlags().String("data-dir", "", "Override the configured data directory")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().Int64("user-id", 1, "Acting user id for permission checks")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scenarioCmd)
	rootCmd.AddCommand(datasetCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}

func userID(cmd *cobra.Command) int64 {
	id, _ := cmd.Flags().GetInt64("user-id")
	return id
}

// serveCmd starts the metrics HTTP server and blocks, the daemon mode a
// real RPC front end would wrap around the wired components.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scenario engine with a metrics endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		c, err := wire(cfg, metricsAddr)
		if err != nil {
			return err
		}
		defer c.db.Close()

		fmt.Printf("Data directory: %s\n", cfg.DataDir)
		fmt.Printf("Compression threshold: %d bytes\n", cfg.CompressionThreshold)

		metrics.RegisterComponent("store", true, "bbolt store opened")

		http.Handle("/metrics", metrics.Handler())
		http.Handle("/health", metrics.HealthHandler())
		http.Handle("/ready", metrics.ReadyHandler())
		http.Handle("/live", metrics.LivenessHandler())
		fmt.Printf("Metrics endpoint: http://%s/metrics\n", metricsAddr)
		return http.ListenAndServe(metricsAddr, nil)
	},
}

func init() {
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Metrics HTTP listen address")
}

// --- Scenario commands ---

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Manage scenarios",
}

var scenarioAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a new scenario to a network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		networkID, _ := cmd.Flags().GetInt64("network")

		c, err := wire(cfg, "")
		if err != nil {
			return err
		}
		defer c.db.Close()

		var scenarioID int64
		err = c.db.Update(func(sess *store.Session) error {
			created, err := c.scenarios.AddScenario(sess, networkID, scenario.Spec{Name: args[0]}, userID(cmd))
			if err != nil {
				return err
			}
			scenarioID = created.ScenarioID
			return nil
		})
		if err != nil {
			return err
		}

		fmt.Printf("Scenario created: %s\n", args[0])
		fmt.Printf("  ID: %d\n", scenarioID)
		return nil
	},
}

var scenarioCloneCmd = &cobra.Command{
	Use:   "clone SCENARIO_ID",
	Short: "Clone an existing scenario",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		scenarioID, err := parseID(args[0])
		if err != nil {
			return err
		}

		c, err := wire(cfg, "")
		if err != nil {
			return err
		}
		defer c.db.Close()

		var cloneID int64
		var cloneName string
		err = c.db.Update(func(sess *store.Session) error {
			clone, err := c.scenarios.CloneScenario(sess, scenarioID, userID(cmd), "scenariod")
			if err != nil {
				return err
			}
			cloneID, cloneName = clone.ScenarioID, clone.Name
			return nil
		})
		if err != nil {
			return err
		}

		fmt.Printf("Scenario cloned: %s\n", cloneName)
		fmt.Printf("  ID: %d\n", cloneID)
		return nil
	},
}

var scenarioLockCmd = &cobra.Command{
	Use:   "lock SCENARIO_ID",
	Short: "Lock a scenario against further mutation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScenarioID(cmd, args[0], func(c *components, sess *store.Session, id int64) error {
			return c.scenarios.Lock(sess, id, userID(cmd))
		}, "locked")
	},
}

var scenarioUnlockCmd = &cobra.Command{
	Use:   "unlock SCENARIO_ID",
	Short: "Unlock a scenario",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScenarioID(cmd, args[0], func(c *components, sess *store.Session, id int64) error {
			return c.scenarios.Unlock(sess, id, userID(cmd))
		}, "unlocked")
	},
}

var scenarioCompareCmd = &cobra.Command{
	Use:   "compare SCENARIO_ID_1 SCENARIO_ID_2",
	Short: "Diff two scenarios' resource data and group membership",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		id1, err := parseID(args[0])
		if err != nil {
			return err
		}
		id2, err := parseID(args[1])
		if err != nil {
			return err
		}

		c, err := wire(cfg, "")
		if err != nil {
			return err
		}
		defer c.db.Close()

		var diff *differ.Diff
		err = c.db.View(func(sess *store.Session) error {
			diff, err = c.differ.Compare(sess, id1, id2, userID(cmd))
			return err
		})
		if err != nil {
			return err
		}

		fmt.Printf("Resource scenarios differing: %d\n", len(diff.ResourceScenarios))
		for _, d := range diff.ResourceScenarios {
			fmt.Printf("  resource_attr %d: scenario 1 dataset=%v, scenario 2 dataset=%v\n",
				d.ResourceAttrID, datasetID(d.Dataset1), datasetID(d.Dataset2))
		}
		fmt.Printf("Group items only in scenario 1: %d\n", len(diff.Groups.Scenario1Only))
		fmt.Printf("Group items only in scenario 2: %d\n", len(diff.Groups.Scenario2Only))
		return nil
	},
}

func datasetID(d *types.Dataset) int64 {
	if d == nil {
		return 0
	}
	return d.DatasetID
}

func init() {
	scenarioCmd.AddCommand(scenarioAddCmd, scenarioCloneCmd, scenarioLockCmd, scenarioUnlockCmd, scenarioCompareCmd)
	scenarioAddCmd.Flags().Int64("network", 0, "Network id to create the scenario in")
	scenarioAddCmd.MarkFlagRequired("network")
}

// --- Dataset commands ---

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Inspect datasets",
}

var datasetGetCmd = &cobra.Command{
	Use:   "get DATASET_ID",
	Short: "Show a dataset's decompressed value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		c, err := wire(cfg, "")
		if err != nil {
			return err
		}
		defer c.db.Close()

		var value []byte
		var hidden bool
		err = c.db.View(func(sess *store.Session) error {
			d, err := sess.GetDataset(id)
			if err != nil {
				return err
			}
			visible, err := c.guard.CanViewDataset(sess, userID(cmd), d)
			if err != nil {
				return err
			}
			hidden = !visible
			if visible {
				value = dataset.Decompress(d.Value)
			}
			return nil
		})
		if err != nil {
			return err
		}

		if hidden {
			fmt.Println("<hidden: insufficient permission>")
			return nil
		}
		fmt.Println(string(value))
		return nil
	},
}

func init() {
	datasetCmd.AddCommand(datasetGetCmd)
}

// --- helpers ---

func withScenarioID(cmd *cobra.Command, arg string, fn func(c *components, sess *store.Session, id int64) error, verb string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	id, err := parseID(arg)
	if err != nil {
		return err
	}

	c, err := wire(cfg, "")
	if err != nil {
		return err
	}
	defer c.db.Close()

	if err := c.db.Update(func(sess *store.Session) error { return fn(c, sess, id) }); err != nil {
		return err
	}
	fmt.Printf("Scenario %d %s\n", id, verb)
	return nil
}

func parseID(s string) (int64, error) {
	var id int64
	_, err := fmt.Sscanf(s, "%d", &id)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}
