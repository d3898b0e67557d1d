package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jo-hoe/sitegallery/internal/backend/database"
	"github.com/jo-hoe/sitegallery/internal/core"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// defaultMappings are the identifiers every fresh installation starts with.
var defaultMappings = []database.MappingEntry{
	{Identifier: "605004", Site: "pondicherry.com"},
	{Identifier: "605106", Site: "cuddalore.com"},
	{Identifier: "627003", Site: "tirunelveli.com"},
}

type seedFile struct {
	Mappings []database.MappingEntry `yaml:"mappings"`
}

func defaultConfigPath() string {
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		return configPath
	}
	return filepath.Join(".", "config.yaml")
}

func newRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "seeder",
		Short: "Manage identifier mappings of the site gallery",
		Long: `Seeder maintains the identifier to website mapping table used by the
upload service and reports on the consistency of stored uploads.

It reads the same configuration file as the server.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to the service configuration file")

	open := func() (*core.CoreService, error) {
		config, err := core.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		return core.NewCoreService(config)
	}

	rootCmd.AddCommand(newSeedCommand(open))
	rootCmd.AddCommand(newMappingsCommand(open))
	rootCmd.AddCommand(newLookupCommand(open))
	rootCmd.AddCommand(newAuditCommand(open))
	return rootCmd
}

type serviceOpener func() (*core.CoreService, error)

// newSeedCommand creates the 'seed' subcommand
// Usage: seeder seed [--defaults] [--entry id=site ...] [--file mappings.yaml]
func newSeedCommand(open serviceOpener) *cobra.Command {
	var entries []string
	var file string
	var useDefaults bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert identifier to website mappings",
		Long: `Insert mappings into the database. Identifiers that already exist keep
their current website.

Example:
  seeder seed --defaults
  seeder seed --entry 605004=pondicherry.com --entry 605106=cuddalore.com
  seeder seed --file mappings.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mappings, err := collectMappings(entries, file, useDefaults)
			if err != nil {
				return err
			}
			if len(mappings) == 0 {
				return fmt.Errorf("nothing to seed: use --defaults, --entry or --file")
			}

			service, err := open()
			if err != nil {
				return err
			}
			defer func() {
				_ = service.Close()
			}()

			inserted, err := service.SeedMappings(cmd.Context(), mappings)
			if err != nil {
				return fmt.Errorf("failed to seed mappings: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Inserted %d of %d mappings\n", inserted, len(mappings))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&entries, "entry", "e", nil, "Mapping in the form id=website (repeatable)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with a 'mappings' list of {id, website}")
	cmd.Flags().BoolVar(&useDefaults, "defaults", false, "Seed the built-in default mappings")
	return cmd
}

func collectMappings(entries []string, file string, useDefaults bool) ([]database.MappingEntry, error) {
	var mappings []database.MappingEntry
	if useDefaults {
		mappings = append(mappings, defaultMappings...)
	}
	for _, entry := range entries {
		mapping, err := parseEntry(entry)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, mapping)
	}
	if file != "" {
		fromFile, err := loadSeedFile(file)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, fromFile...)
	}
	return mappings, nil
}

func parseEntry(entry string) (database.MappingEntry, error) {
	identifier, site, ok := strings.Cut(entry, "=")
	identifier = strings.TrimSpace(identifier)
	site = strings.TrimSpace(site)
	if !ok || identifier == "" || site == "" {
		return database.MappingEntry{}, fmt.Errorf("invalid entry %q, expected id=website", entry)
	}
	return database.MappingEntry{Identifier: identifier, Site: site}, nil
}

func loadSeedFile(path string) ([]database.MappingEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	var parsed seedFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return parsed.Mappings, nil
}

func newMappingsCommand(open serviceOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "mappings",
		Short: "List all identifier to website mappings",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := open()
			if err != nil {
				return err
			}
			defer func() {
				_ = service.Close()
			}()

			mappings, err := service.Mappings(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list mappings: %w", err)
			}
			return printMappings(cmd.OutOrStdout(), mappings)
		},
	}
}

func printMappings(w io.Writer, mappings []database.MappingEntry) error {
	if len(mappings) == 0 {
		_, err := fmt.Fprintln(w, "No mappings")
		return err
	}
	for _, mapping := range mappings {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", mapping.Identifier, mapping.Site); err != nil {
			return err
		}
	}
	return nil
}

func newLookupCommand(open serviceOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <id>",
		Short: "Resolve an identifier to its website",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := open()
			if err != nil {
				return err
			}
			defer func() {
				_ = service.Close()
			}()

			site, err := service.ResolveSite(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), site)
			return nil
		},
	}
}

// newAuditCommand compares a site's storage directory with its upload log.
func newAuditCommand(open serviceOpener) *cobra.Command {
	var site string

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report files and upload log rows that do not match",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := open()
			if err != nil {
				return err
			}
			defer func() {
				_ = service.Close()
			}()

			report, err := service.AuditSite(cmd.Context(), site)
			if err != nil {
				return fmt.Errorf("failed to audit %s: %w", site, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Site: %s\nLogged uploads: %d\nStored files: %d\n", report.Site, report.Logged, report.Stored)
			for _, name := range report.MissingFiles {
				fmt.Fprintf(out, "missing file: %s\n", name)
			}
			for _, name := range report.UnloggedFiles {
				fmt.Fprintf(out, "unlogged file: %s\n", name)
			}
			if !report.Consistent() {
				return fmt.Errorf("site %s is inconsistent", site)
			}
			fmt.Fprintln(out, "OK")
			return nil
		},
	}

	cmd.Flags().StringVarP(&site, "site", "s", "", "Website to audit (required)")
	_ = cmd.MarkFlagRequired("site")
	return cmd
}
