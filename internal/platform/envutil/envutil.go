package envutil

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

// String returns the trimmed value of name or def when unset/blank.
func String(name, def string, log *logger.Logger) string {
	v, ok := lookup(name)
	if !ok {
		debugDefault(log, name, def)
		return def
	}
	return v
}

func Int(name string, def int, log *logger.Logger) int {
	v, ok := lookup(name)
	if !ok {
		debugDefault(log, name, def)
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		if log != nil {
			log.Warn("Environment variable could not be parsed as int, using default", "env_var", name, "default", def, "error", err)
		}
		return def
	}
	return i
}

func Float(name string, def float64, log *logger.Logger) float64 {
	v, ok := lookup(name)
	if !ok {
		debugDefault(log, name, def)
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		if log != nil {
			log.Warn("Environment variable could not be parsed as float, using default", "env_var", name, "default", def, "error", err)
		}
		return def
	}
	return f
}

func Bool(name string, def bool, log *logger.Logger) bool {
	v, ok := lookup(name)
	if !ok {
		debugDefault(log, name, def)
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

// Duration accepts Go duration strings ("5s") or bare integers, read as seconds.
func Duration(name string, def time.Duration, log *logger.Logger) time.Duration {
	v, ok := lookup(name)
	if !ok {
		debugDefault(log, name, def)
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		if log != nil {
			log.Warn("Environment variable could not be parsed as duration, using default", "env_var", name, "default", def.String(), "error", err)
		}
		return def
	}
	return d
}

// List splits a comma separated value, dropping blanks.
func List(name string, def []string, log *logger.Logger) []string {
	v, ok := lookup(name)
	if !ok {
		debugDefault(log, name, def)
		return def
	}
	out := make([]string, 0, 4)
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}

func debugDefault(log *logger.Logger, name string, def interface{}) {
	if log != nil {
		log.Debug("Environment variable not found, using default", "env_var", name, "default", def)
	}
}
