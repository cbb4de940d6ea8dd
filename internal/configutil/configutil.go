// Package configutil resolves settings that may come from either a cobra flag
// or viper. A flag the user changed on the command line wins; otherwise a key
// set in viper (config file, environment, .env) wins; otherwise the flag default.
package configutil

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func lookup[T any](cmd *cobra.Command, flagName, viperKey string, fromFlag func(*pflag.FlagSet, string) (T, error), fromViper func(string) T) T {
	var v T
	if cmd != nil && flagName != "" {
		if f := cmd.Flags().Lookup(flagName); f != nil {
			v, _ = fromFlag(cmd.Flags(), flagName)
			if f.Changed {
				return v
			}
		}
	}
	viperKey = strings.TrimSpace(viperKey)
	if viperKey != "" && viper.IsSet(viperKey) {
		return fromViper(viperKey)
	}
	return v
}

func FlagOrViperString(cmd *cobra.Command, flagName, viperKey string) string {
	return lookup(cmd, flagName, viperKey, (*pflag.FlagSet).GetString, viper.GetString)
}

func FlagOrViperStringArray(cmd *cobra.Command, flagName, viperKey string) []string {
	return lookup(cmd, flagName, viperKey, (*pflag.FlagSet).GetStringArray, viper.GetStringSlice)
}

func FlagOrViperInt(cmd *cobra.Command, flagName, viperKey string) int {
	return lookup(cmd, flagName, viperKey, (*pflag.FlagSet).GetInt, viper.GetInt)
}

func FlagOrViperDuration(cmd *cobra.Command, flagName, viperKey string) time.Duration {
	return lookup(cmd, flagName, viperKey, (*pflag.FlagSet).GetDuration, viper.GetDuration)
}
