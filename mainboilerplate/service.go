package mainboilerplate

import (
	"os"

	petname "github.com/dustinkirkland/golang-petname"
)

// ProcessConfig identifies this process to its peers, such as the database.
type ProcessConfig struct {
	ID string `long:"id" env:"ID" description:"Unique ID of this process. Auto-generated if not set"`
}

// ProcessID returns the configured ID, or generates, stores and returns a
// readable two-word name if none was set. The hostname is used as a prefix
// of generated names when it's available.
func (cfg *ProcessConfig) ProcessID() string {
	if cfg.ID != "" {
		return cfg.ID
	}
	cfg.ID = petname.Generate(2, "-")

	if host, err := os.Hostname(); err == nil && host != "" {
		cfg.ID = host + "-" + cfg.ID
	}
	return cfg.ID
}
