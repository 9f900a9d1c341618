package main

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"

	dnsrelay "github.com/Cabonhydrate/DNS-Local-Server"
)

// loadRules reads the override rule file: whitespace-separated
// "domain type target" lines. Blank lines and "#" comments are ignored.
// A malformed line is a warning, not a fatal error, so a single typo
// doesn't take down the whole rule set.
func loadRules(filename string, log dnsrelay.Logger) ([]dnsrelay.Rule, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open rule file")
	}
	defer f.Close()

	var rules []dnsrelay.Rule
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 3 {
			log.Warningf("rule file %s:%d: expected 3 fields, got %d, skipping", filename, lineNo, len(fields))
			continue
		}

		qtype, ok := dnsrelay.ParseType(fields[1])
		if !ok {
			log.Warningf("rule file %s:%d: unsupported record type %q, skipping", filename, lineNo, fields[1])
			continue
		}

		rule := dnsrelay.Rule{
			Domain: fields[0],
			Type:   qtype,
			Target: fields[2],
		}
		if _, err := dnsrelay.NewOverrideTable([]dnsrelay.Rule{rule}, 0); err != nil {
			log.Warningf("rule file %s:%d: %v, skipping", filename, lineNo, err)
			continue
		}
		rules = append(rules, rule)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read rule file")
	}
	return rules, nil
}
