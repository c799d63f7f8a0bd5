package util

import (
	"strings"

	"github.com/andy-ce-taylor/reslock/lib/reslock"
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

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

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

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("reslock")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// SetupLockFlags adds the shared lock-store flags to a command
func SetupLockFlags(cmd *cobra.Command) {
	key := "store"
	cmd.PersistentFlags().String(key, reslock.DefaultStoreDir(), WrapString("Lock store root directory shared by all cooperating processes"))

	key = "max-pause"
	cmd.PersistentFlags().Duration(key, reslock.DefaultMaxPause, WrapString("Upper bound of one randomized wait between acquisition attempts"))

	key = "max-attempts"
	cmd.PersistentFlags().Int(key, reslock.DefaultMaxAttempts, WrapString("Bounds the total acquisition time budget as max-pause times max-attempts"))

	key = "max-hold"
	cmd.PersistentFlags().Duration(key, reslock.DefaultMaxHold, WrapString("Age at which a lock counts as abandoned and may be reclaimed by any contender"))
}

// GetLockConfig reads the lock configuration from viper
func GetLockConfig() reslock.Config {
	return reslock.Config{
		StoreDir:    viper.GetString("store"),
		MaxPause:    viper.GetDuration("max-pause"),
		MaxAttempts: viper.GetInt("max-attempts"),
		MaxHold:     viper.GetDuration("max-hold"),
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
