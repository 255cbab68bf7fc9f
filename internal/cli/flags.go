package cli

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Flags applied through the clamping setters
const (
	flagMaxParallel = "max-parallel"
	flagRetries     = "retries"
)

// bindFlag binds a flag to a settings key. A flag only overrides the config
// file and environment when it is set on the command line.
func bindFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if flag == nil {
		panic("cli: binding unknown flag for " + key)
	}
	if err := v.BindPFlag(key, flag); err != nil {
		panic("cli: " + err.Error())
	}
}

// applyLimits copies the concurrency flags that were set on the command line
// into the settings, clamped to their limits
func (a *app) applyLimits(flags *pflag.FlagSet) error {
	if flag := flags.Lookup(flagMaxParallel); flag != nil && flag.Changed {
		n, err := flags.GetInt(flagMaxParallel)
		if err != nil {
			return err
		}
		a.settings.SetMaxParallelDownloads(n)
	}
	if flag := flags.Lookup(flagRetries); flag != nil && flag.Changed {
		n, err := flags.GetInt(flagRetries)
		if err != nil {
			return err
		}
		a.settings.SetRetries(n)
	}
	return nil
}
