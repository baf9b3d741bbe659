// Package config loads the daemon's neighbor list and listening port from
// the line-oriented roteadores.txt configuration file.
package config

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// NeighborSpec is one configured direct neighbor.
type NeighborSpec struct {
	NodeID string
	Port   int
}

// Config is the result of loading a configuration file: the listening
// port (defaulted, or overridden by a PORTA= line) and the configured
// direct neighbors.
type Config struct {
	Port      int
	Neighbors []NeighborSpec
}

// Load reads and parses the configuration file at path. self is the
// daemon's own node id: a neighbor line naming self is skipped, and so is
// a neighbor already seen earlier in the file. defaultPort seeds Port
// before any PORTA= line is seen. Neighbor lines without an explicit
// ":<port>" inherit the final Port: the PORTA= value if the file has one
// (wherever it appears), defaultPort otherwise.
//
// Only a missing or unreadable file is a fatal (returned) error, per the
// daemon's error taxonomy: malformed individual lines are logged via log
// and skipped, not propagated.
func Load(path, self string, defaultPort int, log logrus.FieldLogger) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "open config file %q", path)
	}
	defer f.Close()

	cfg, err := parse(f, self, defaultPort, log)
	if err != nil {
		return Config{}, errors.Wrapf(err, "parse config file %q", path)
	}
	return cfg, nil
}

func parse(r io.Reader, self string, defaultPort int, log logrus.FieldLogger) (Config, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	cfg := Config{Port: defaultPort}
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := stripComment(scanner.Text())
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if key, val, ok := strings.Cut(line, "="); ok && strings.EqualFold(strings.TrimSpace(key), "PORTA") {
			port, err := strconv.Atoi(strings.TrimSpace(val))
			if err != nil {
				log.WithField("event", "[AVISO]").Warnf("invalid PORTA line: %q", line)
				continue
			}
			cfg.Port = port
			continue
		}

		nodeID, portStr, hasPort := strings.Cut(line, ":")
		nodeID = strings.TrimSpace(nodeID)
		if nodeID == "" || nodeID == self || seen[nodeID] {
			continue
		}

		// Port 0 is a sentinel meaning "use the daemon's own listening
		// port", resolved below once the whole file (and any PORTA=
		// override, which may appear after neighbor lines) is known.
		port := 0
		if hasPort {
			p, err := strconv.Atoi(strings.TrimSpace(portStr))
			if err != nil {
				log.WithField("event", "[AVISO]").Warnf("invalid neighbor port for %s: %q", nodeID, portStr)
				continue
			}
			port = p
		}

		cfg.Neighbors = append(cfg.Neighbors, NeighborSpec{NodeID: nodeID, Port: port})
		seen[nodeID] = true
	}
	if err := scanner.Err(); err != nil {
		return Config{}, err
	}

	for i, n := range cfg.Neighbors {
		if n.Port == 0 {
			cfg.Neighbors[i].Port = cfg.Port
		}
	}

	return cfg, nil
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}
	return line
}
