package main

import (
	"database/sql"
	"fmt"
	"net"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"voicebot/internal/config"
	"voicebot/internal/memory"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your VoiceBot installation",
		Long: `Verifies that VoiceBot's configuration, credentials, database and
listen port are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("VoiceBot Doctor v%s\n\n", version)

			passed, failed, warned := 0, 0, 0

			if _, err := os.Stat(config.ExpandPath(cfgPath)); err != nil {
				printWarn("Config file", fmt.Sprintf("not found at %s, using defaults", cfgPath))
				warned++
			} else {
				printPass("Config file", cfgPath)
				passed++
			}

			cfg, err := loadConfig()
			if err != nil {
				printFail("Config validation", err.Error())
				fmt.Printf("\n%d passed, %d failed\n", passed, failed+1)
				return nil
			}
			printPass("Config validation", "valid")
			passed++

			if cfg.OpenAI.APIKey == "" {
				printFail("OpenAI key", "missing (set openai.apiKey or OPENAI_API_KEY)")
				failed++
			} else {
				printPass("OpenAI key", "set")
				passed++
			}

			optional := []struct{ name, value, env string }{
				{"Weather key", cfg.Tools.Weather.APIKey, "OPENWEATHER_API_KEY"},
				{"Search key", cfg.Tools.Search.APIKey, "EXA_API_KEY"},
			}
			for _, o := range optional {
				if o.value == "" {
					printWarn(o.name, "missing, tool calls will fail ("+o.env+")")
					warned++
				} else {
					printPass(o.name, "set")
					passed++
				}
			}
			if cfg.Tools.Music.YouTubeAPIKey == "" && cfg.Tools.Music.SpotifyClientID == "" {
				printWarn("Music providers", "none configured, search_music returns simulated results")
				warned++
			} else {
				printPass("Music providers", "configured")
				passed++
			}

			if v, err := checkDatabase(cfg.Memory.DBPath); err != nil {
				printFail("Database", err.Error())
				failed++
			} else {
				printPass("Database", fmt.Sprintf("%s (schema v%d)", cfg.Memory.DBPath, v))
				passed++
			}

			if err := checkPort(cfg.Server.Host, cfg.Server.Port); err != nil {
				printWarn("Server port", fmt.Sprintf("%d unavailable: %v", cfg.Server.Port, err))
				warned++
			} else {
				printPass("Server port", fmt.Sprintf("%d available", cfg.Server.Port))
				passed++
			}

			fmt.Printf("\n%d passed, %d failed, %d warnings\n", passed, failed, warned)
			if failed == 0 {
				fmt.Printf("\nAll checks passed! VoiceBot is ready to run.\n")
			}
			return nil
		},
	}
}

// checkDatabase opens the store, which runs pending migrations, and reports
// the schema version.
func checkDatabase(dbPath string) (int, error) {
	store, err := memory.NewSQLiteStore(dbPath, logger)
	if err != nil {
		return 0, err
	}
	store.Close()
	return schemaVersion(dbPath)
}

func schemaVersion(dbPath string) (int, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()
	return memory.GetSchemaVersion(db)
}

func checkPort(host string, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

var (
	passTag = color.New(color.FgGreen).Sprint("[PASS]")
	failTag = color.New(color.FgRed).Sprint("[FAIL]")
	warnTag = color.New(color.FgYellow).Sprint("[WARN]")
)

func printPass(check, detail string) {
	fmt.Printf("  %s %-20s %s\n", passTag, check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  %s %-20s %s\n", failTag, check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  %s %-20s %s\n", warnTag, check, detail)
}
