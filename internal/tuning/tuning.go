// Package tuning loads the optional on-disk tuning.yaml that an
// embedding application may drop into a store's directory to override
// the Transaction Worker's queue depth and shutdown drain deadline.
// Built on a viper.Viper instance with SetDefault-backed defaults,
// narrowed to the two knobs this store actually exposes — there is no
// CLI or environment variable surface owned by this core, so
// AutomaticEnv/SetEnvPrefix are deliberately not used.
package tuning

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Values holds the resolved tuning knobs, after defaults and any
// tuning.yaml override have been applied.
type Values struct {
	QueueSize    int
	DrainTimeout time.Duration
}

const (
	defaultQueueSize    = 1024
	defaultDrainTimeout = 30 * time.Second
)

// Defaults returns the compiled-in tuning values, used when no
// tuning.yaml is present.
func Defaults() Values {
	return Values{QueueSize: defaultQueueSize, DrainTimeout: defaultDrainTimeout}
}

// Load reads "<dir>/tuning.yaml" if present and returns the resolved
// values, falling back to Defaults() for any key the file doesn't set.
// Absence of the file is not an error.
func Load(dir string) (Values, error) {
	path := filepath.Join(dir, "tuning.yaml")

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("queue_size", defaultQueueSize)
	v.SetDefault("drain_timeout", defaultDrainTimeout.String())

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Values{}, err
		}
	}

	drain, err := time.ParseDuration(v.GetString("drain_timeout"))
	if err != nil {
		drain = defaultDrainTimeout
	}

	return Values{
		QueueSize:    v.GetInt("queue_size"),
		DrainTimeout: drain,
	}, nil
}
