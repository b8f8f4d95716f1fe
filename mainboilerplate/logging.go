package mainboilerplate

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// LogConfig configures handling of application log events.
type LogConfig struct {
	Level  string `long:"level" env:"LEVEL" default:"info" choice:"trace" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Logging level"`
	Format string `long:"format" env:"FORMAT" default:"text" choice:"json" choice:"text" choice:"color" description:"Logging output format"`
}

// InitLog configures the standard logger from |cfg|. It's fatal if the
// configuration can't be applied.
func InitLog(cfg LogConfig) {
	if err := applyLogConfig(log.StandardLogger(), cfg); err != nil {
		log.WithField("err", err).Fatal("invalid log configuration")
	}
}

func applyLogConfig(logger *log.Logger, cfg LogConfig) error {
	switch cfg.Format {
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&log.TextFormatter{})
	case "color":
		logger.SetFormatter(&log.TextFormatter{ForceColors: true})
	default:
		return errors.Errorf("unrecognized log format %q", cfg.Format)
	}

	if cfg.Level == "" {
		return nil
	} else if lvl, err := log.ParseLevel(cfg.Level); err != nil {
		return errors.WithMessage(err, "parsing log level")
	} else {
		logger.SetLevel(lvl)
	}
	return nil
}
