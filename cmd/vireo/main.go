// Command vireo inspects databases and renders schema statements from
// table definition files.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vireosql/vireo"
	"github.com/vireosql/vireo/dialect"
	"github.com/vireosql/vireo/dialect/sql"
	"github.com/vireosql/vireo/schema/load"

	_ "modernc.org/sqlite"
)

var (
	flagDialect    string
	flagHost       string
	flagPort       int
	flagUser       string
	flagPassword   string
	flagDatabase   string
	flagFile       string
	flagSchemaPath string
	flagEnvFile    string
	flagVerbose    bool
)

func main() {
	root := &cobra.Command{
		Use:           "vireo",
		Short:         "Inspect databases and render schema statements",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagEnvFile != "" {
				if err := godotenv.Load(flagEnvFile); err != nil {
					return fmt.Errorf("loading %s: %w", flagEnvFile, err)
				}
			} else {
				// A .env beside the working directory is optional.
				_ = godotenv.Load()
			}
			applyEnvDefaults()
			level := slog.LevelInfo
			if flagVerbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flagDialect, "dialect", dialect.SQLite, "database dialect (mysql, postgres, sqlite, sqlserver)")
	pf.StringVar(&flagHost, "host", "localhost", "database host")
	pf.IntVar(&flagPort, "port", 0, "database port (0 uses the dialect default)")
	pf.StringVar(&flagUser, "user", "", "database user")
	pf.StringVar(&flagPassword, "password", "", "database password")
	pf.StringVar(&flagDatabase, "database", "", "database name")
	pf.StringVar(&flagFile, "file", "", "database file (sqlite)")
	pf.StringVar(&flagSchemaPath, "schema", "", "path to the schema definition file")
	pf.StringVar(&flagEnvFile, "env", "", "path to an env file with connection settings")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(versionCmd(), ddlCmd(), describeCmd(), indexesCmd(), validateCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "vireo:", err)
		os.Exit(1)
	}
}

// applyEnvDefaults fills unset flags from VIREO_* variables. Explicit
// flags beat environment values, which beat defaults.
func applyEnvDefaults() {
	if v := os.Getenv("VIREO_DIALECT"); v != "" && flagDialect == dialect.SQLite {
		flagDialect = v
	}
	if v := os.Getenv("VIREO_HOST"); v != "" && flagHost == "localhost" {
		flagHost = v
	}
	if v := os.Getenv("VIREO_PORT"); v != "" && flagPort == 0 {
		if p, err := strconv.Atoi(v); err == nil {
			flagPort = p
		}
	}
	if v := os.Getenv("VIREO_USER"); v != "" && flagUser == "" {
		flagUser = v
	}
	if v := os.Getenv("VIREO_PASSWORD"); v != "" && flagPassword == "" {
		flagPassword = v
	}
	if v := os.Getenv("VIREO_DATABASE"); v != "" && flagDatabase == "" {
		flagDatabase = v
	}
	if v := os.Getenv("VIREO_FILE"); v != "" && flagFile == "" {
		flagFile = v
	}
}

func connect(cmd *cobra.Command) (*vireo.Client, error) {
	cfg := &sql.ConnectConfig{
		Dialect:        flagDialect,
		Host:           flagHost,
		Port:           flagPort,
		User:           flagUser,
		Password:       flagPassword,
		Database:       flagDatabase,
		File:           flagFile,
		ConnectTimeout: 10 * time.Second,
	}
	drv, err := sql.Connect(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	var d dialect.Driver = drv
	if flagVerbose {
		d = sql.NewDebugDriver(drv)
	}
	return vireo.NewClient(d)
}

func loadTables(c *vireo.Client) error {
	if flagSchemaPath == "" {
		return fmt.Errorf("--schema is required")
	}
	tables, err := load.Read(flagSchemaPath)
	if err != nil {
		return err
	}
	for _, t := range tables {
		if err := c.AddTable(t); err != nil {
			return err
		}
	}
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd)
			if err != nil {
				return err
			}
			defer c.Close()
			v, err := c.Version(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(v)
			return nil
		},
	}
}

func ddlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ddl [table...]",
		Short: "Render CREATE TABLE statements from the schema file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagSchemaPath == "" {
				return fmt.Errorf("--schema is required")
			}
			tables, err := load.Read(flagSchemaPath)
			if err != nil {
				return err
			}
			g, err := sql.GrammarFor(flagDialect)
			if err != nil {
				return err
			}
			gen := sql.NewGenerator(g)
			want := make(map[string]bool, len(args))
			for _, a := range args {
				want[a] = true
			}
			for _, t := range tables {
				if len(want) > 0 && !want[t.Name] {
					continue
				}
				stmt, err := gen.CreateTable(t)
				if err != nil {
					return err
				}
				fmt.Println(stmt.Text + ";")
				for _, idx := range t.Indexes {
					if idx.Unique {
						continue
					}
					stmt, err := gen.CreateIndex(t, idx)
					if err != nil {
						return err
					}
					fmt.Println(stmt.Text + ";")
				}
			}
			return nil
		},
	}
}

func describeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <table>",
		Short: "Print the live column definitions of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := loadTables(c); err != nil {
				return err
			}
			cols, err := c.Describe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, col := range cols {
				null := "not null"
				if col.Nullable {
					null = "null"
				}
				fmt.Printf("%-24s %-12s %s\n", col.Name, col.Type, null)
			}
			return nil
		},
	}
}

func indexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indexes <table>",
		Short: "Print the live index definitions of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := loadTables(c); err != nil {
				return err
			}
			indexes, err := c.Indexes(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, idx := range indexes {
				kind := "index"
				if idx.Unique {
					kind = "unique"
				}
				fmt.Printf("%-32s %-8s", idx.Name, kind)
				for _, col := range idx.Columns {
					fmt.Printf(" %s:%d:%s", col.Name, col.Ordinal, col.Direction)
				}
				fmt.Println()
			}
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the schema definition file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagSchemaPath == "" {
				return fmt.Errorf("--schema is required")
			}
			tables, err := load.Read(flagSchemaPath)
			if err != nil {
				return err
			}
			for _, t := range tables {
				res := t.Validate()
				for _, w := range res.Warnings {
					fmt.Printf("warning: %s: %s\n", t.Name, w.Message)
				}
			}
			fmt.Printf("%d tables ok\n", len(tables))
			return nil
		},
	}
}
