package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oarkflow/squealx"
	_ "modernc.org/sqlite"

	"github.com/permithq/permit"
	"github.com/permithq/permit/celeval"
	"github.com/permithq/permit/logger"
	"github.com/permithq/permit/stores"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "convert":
		handleConvert()
	case "validate":
		handleValidate()
	case "stats":
		handleStats()
	case "apply":
		handleApply()
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("permit-config - Configuration tool for permit")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  permit-config convert <input> <output>   - Convert between formats")
	fmt.Println("  permit-config validate <file>            - Validate configuration")
	fmt.Println("  permit-config stats <file>               - Show configuration statistics")
	fmt.Println("  permit-config apply <file> [sqlite-db]   - Apply configuration to stores")
	fmt.Println()
	fmt.Println("Supported formats: .yaml, .yml, .json")
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: permit-config convert <input> <output>")
		os.Exit(1)
	}

	inputFile := os.Args[2]
	outputFile := os.Args[3]

	cfg, err := loadConfig(inputFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := saveConfig(cfg, outputFile); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Converted %s -> %s\n", inputFile, outputFile)
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: permit-config validate <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Configuration is valid\n")
	fmt.Printf("  Version: %d\n", cfg.Version)
	fmt.Printf("  Roles: %d\n", len(cfg.Roles))
	fmt.Printf("  Permissions: %d\n", len(cfg.Permissions))
	fmt.Printf("  Assignments: %d\n", len(cfg.Assignments))
	fmt.Printf("  Policies: %d\n", len(cfg.Policies))
	fmt.Printf("  Groups: %d\n", len(cfg.Groups))
	fmt.Printf("  Ownerships: %d\n", len(cfg.Ownerships))
	fmt.Printf("  Dynamic permissions: %d\n", len(cfg.Dynamic))
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: permit-config stats <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	stat, _ := os.Stat(filename)

	fmt.Println("Configuration Statistics")
	fmt.Println("========================")
	if stat != nil {
		fmt.Printf("File size: %d bytes\n", stat.Size())
	}
	fmt.Printf("Version: %d\n", cfg.Version)
	fmt.Println()

	fmt.Println("Components:")
	fmt.Printf("  Roles:        %d\n", len(cfg.Roles))
	fmt.Printf("  Permissions:  %d\n", len(cfg.Permissions))
	fmt.Printf("  Assignments:  %d\n", len(cfg.Assignments))
	fmt.Printf("  Policies:     %d\n", len(cfg.Policies))
	fmt.Printf("  Groups:       %d\n", len(cfg.Groups))
	fmt.Printf("  Ownerships:   %d\n", len(cfg.Ownerships))
	fmt.Printf("  Dynamic:      %d\n", len(cfg.Dynamic))
	fmt.Println()

	if len(cfg.Policies) > 0 {
		allowRules := 0
		denyRules := 0
		for _, p := range cfg.Policies {
			for _, r := range p.Rules {
				if r.Decision == permit.DecisionAllow {
					allowRules++
				} else {
					denyRules++
				}
			}
		}
		fmt.Println("Policy Details:")
		fmt.Printf("  Allow rules: %d\n", allowRules)
		fmt.Printf("  Deny rules:  %d\n", denyRules)
		fmt.Println()
	}

	if len(cfg.Roles) > 0 {
		totalPerms := 0
		withParent := 0
		for _, r := range cfg.Roles {
			totalPerms += len(r.PermissionIDs)
			if r.ParentID != "" {
				withParent++
			}
		}
		fmt.Println("Role Details:")
		fmt.Printf("  Total permission links: %d\n", totalPerms)
		fmt.Printf("  Roles with a parent:    %d\n", withParent)
		fmt.Println()
	}

	fmt.Println("Engine Configuration:")
	fmt.Printf("  Decision TTL:     %dms\n", cfg.Engine.DecisionTTL)
	fmt.Printf("  Aggregation TTL:  %dms\n", cfg.Engine.AggregationTTL)
}

func handleApply() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: permit-config apply <file> [sqlite-db]")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	st := stores.NewMemoryStores()
	if len(os.Args) > 3 {
		st, err = openSQLiteStores(os.Args[3])
		if err != nil {
			fmt.Printf("Error opening database: %v\n", err)
			os.Exit(1)
		}
	}

	evaluator, err := celeval.New()
	if err != nil {
		fmt.Printf("Error building evaluator: %v\n", err)
		os.Exit(1)
	}

	engine, err := permit.NewEngine(st,
		permit.WithLogger(logger.NewPhuslu()),
		permit.WithEvaluator(evaluator),
	)
	if err != nil {
		fmt.Printf("Error building engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx := context.Background()
	if err := engine.ApplyConfig(ctx, cfg); err != nil {
		fmt.Printf("Error applying config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Configuration applied successfully\n")
	fmt.Printf("  Roles loaded: %d\n", len(cfg.Roles))
	fmt.Printf("  Permissions loaded: %d\n", len(cfg.Permissions))
	fmt.Printf("  Policies loaded: %d\n", len(cfg.Policies))
}

func openSQLiteStores(path string) (permit.Stores, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return permit.Stores{}, err
	}
	db := squealx.NewDb(sqlDB, "sqlite", "permit")
	if err := stores.Migrate(db); err != nil {
		return permit.Stores{}, err
	}
	return permit.Stores{
		Roles:       stores.NewSQLRoleStore(db),
		Permissions: stores.NewSQLPermissionStore(db),
		Policies:    stores.NewSQLPolicyStore(db),
		Groups:      stores.NewSQLGroupStore(db),
		Resources:   stores.NewSQLResourceStore(db),
		Assignments: stores.NewSQLAssignmentStore(db),
		Dynamic:     stores.NewSQLDynamicStore(db),
		Users:       stores.NewSQLUserDirectory(db),
	}, nil
}

func loadConfig(filename string) (*permit.Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	loader := permit.NewConfigLoader()
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return loader.LoadYAML(data)
	case ".json":
		return loader.LoadJSON(data)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", filepath.Ext(filename))
	}
}

func saveConfig(cfg *permit.Config, filename string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		data, err = cfg.ToYAML()
	case ".json":
		data, err = cfg.ToJSON()
	default:
		return fmt.Errorf("unsupported file format: %s", filepath.Ext(filename))
	}
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}
