package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// errUsage is returned when the command line is incomplete. The usage text
// has already been printed by then.
var errUsage = errors.New("usage")

// Config is built once at startup and handed to the Server by value.
type Config struct {
	Port           string
	DocumentRoot   string
	Timeout        time.Duration
	MetricsAddress string
}

// parseArgs reads [flags] <port> <root_directory>. Values from -config are
// applied first, explicit flags override them.
func parseArgs(args []string, stderr io.Writer) (Config, error) {
	fs := flag.NewFlagSet("minihttpd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [flags] <port> <root_directory>\n", fs.Name())
		fs.PrintDefaults()
	}

	configPath := fs.String("config", "", "path to a Key=Value config file")
	timeout := fs.Duration("timeout", defaultTimeout, "per-connection deadline for reading the request and writing the response")
	metricsAddress := fs.String("metrics", "", "address to serve Prometheus metrics on (disabled when empty)")

	if err := fs.Parse(args); err != nil {
		return Config{}, errUsage
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return Config{}, errUsage
	}

	c := Config{Timeout: defaultTimeout}
	if *configPath != "" {
		var err error
		c, err = loadConfig(*configPath, c)
		if err != nil {
			return Config{}, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "timeout":
			c.Timeout = *timeout
		case "metrics":
			c.MetricsAddress = *metricsAddress
		}
	})

	c.Port = fs.Arg(0)
	c.DocumentRoot = fs.Arg(1)

	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	if _, err := net.LookupPort("tcp", c.Port); err != nil {
		return fmt.Errorf("invalid port '%s': %w", c.Port, err)
	}

	info, err := os.Stat(c.DocumentRoot)
	if err != nil {
		return fmt.Errorf("invalid document root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("invalid document root: '%s' is not a directory", c.DocumentRoot)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("invalid timeout: %s", c.Timeout)
	}
	return nil
}

func loadConfig(configPath string, c Config) (Config, error) {
	fileContent, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return parseConfig(string(fileContent), c)
}

// parseConfig applies Key=Value lines on top of c. Blank lines and lines
// starting with # are skipped.
func parseConfig(content string, c Config) (Config, error) {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return Config{}, fmt.Errorf("invalid config line %d: %s", i+1, line)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch key {
		case "Timeout":
			seconds, err := strconv.Atoi(value)
			if err != nil || seconds < 0 {
				return Config{}, fmt.Errorf("invalid timeout: %s", value)
			}
			c.Timeout = time.Duration(seconds) * time.Second
		case "MetricsAddress":
			c.MetricsAddress = value
		default:
			return Config{}, fmt.Errorf("invalid config key: %s", key)
		}
	}
	return c, nil
}
