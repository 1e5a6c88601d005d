package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ApplyEnv overrides selected settings from the environment. PORT follows the
// convention of hosted web apps and only sets the port part of server.addr.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		return nil
	}
	if port := strings.TrimSpace(getenv("PORT")); port != "" {
		if _, err := strconv.Atoi(port); err != nil {
			return fmt.Errorf("PORT must be numeric (got %q)", port)
		}
		c.Server.Addr = ":" + port
	}
	if addr := strings.TrimSpace(getenv("SCRAPEHUB_ADDR")); addr != "" {
		c.Server.Addr = addr
	}
	if raw := strings.TrimSpace(getenv("SCRAPEHUB_WORKERS")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return fmt.Errorf("SCRAPEHUB_WORKERS must be a positive integer (got %q)", raw)
		}
		c.Worker.Concurrency = v
	}
	if browser := strings.TrimSpace(getenv("SCRAPEHUB_BROWSER")); browser != "" {
		c.Fetch.Browser = strings.ToLower(browser)
	}
	if level := strings.TrimSpace(getenv("SCRAPEHUB_LOG_LEVEL")); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}
	return c.Validate()
}
