package util

import (
	"strings"

	"github.com/ValentinKolb/dLayer/lib/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupStoreFlags adds the storage and root adapter flags to a command
func SetupStoreFlags(cmd *cobra.Command) {
	defaults := common.DefaultConfig()

	key := "engine"
	cmd.PersistentFlags().String(key, string(defaults.Engine), WrapString("The database behind the overlay chain (pebble, maple)"))

	key = "data-dir"
	cmd.PersistentFlags().String(key, defaults.DataDir, WrapString("Directory of the pebble database"))

	key = "in-memory"
	cmd.PersistentFlags().Bool(key, defaults.InMemory, WrapString("Keep the pebble database in memory (nothing is persisted)"))

	key = "sync"
	cmd.PersistentFlags().Bool(key, defaults.SyncWrites, WrapString("Fsync the pebble write-ahead log on every batch"))

	key = "snapshot-file"
	cmd.PersistentFlags().String(key, "", WrapString("File the maple engine is loaded from and saved to (empty = no persistence)"))

	key = "max-batch"
	cmd.PersistentFlags().Int(key, defaults.MaxBatch, WrapString("Number of buffered root writes that force a flush to the database"))

	key = "log-level"
	cmd.PersistentFlags().String(key, defaults.LogLevel, WrapString("The log level (debug, info, warn, error)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dlayer")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetConfig reads the store configuration from viper
func GetConfig() *common.Config {
	return &common.Config{
		Engine:       common.Engine(viper.GetString("engine")),
		DataDir:      viper.GetString("data-dir"),
		InMemory:     viper.GetBool("in-memory"),
		SyncWrites:   viper.GetBool("sync"),
		SnapshotFile: viper.GetString("snapshot-file"),
		MaxBatch:     viper.GetInt("max-batch"),
		LogLevel:     viper.GetString("log-level"),
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
