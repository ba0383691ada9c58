// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package config loads the YAML file describing one or more repositories
// and turns it into repository.Config values, per SPEC_FULL.md §4.5.
package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hkoerber/snapbackupd/internal/cronsched"
	"github.com/hkoerber/snapbackupd/internal/exitcode"
	"github.com/hkoerber/snapbackupd/internal/repository"
)

// DefaultPath is the conventional config location, overridable via the
// --config flag on every internal/cli command.
const DefaultPath = "/etc/snapbackupd/config.yaml"

// Replicator is the on-disk shape of a repository's replicator settings.
type Replicator struct {
	Cmd     string   `yaml:"cmd"`
	Args    []string `yaml:"args"`
	Filter  string   `yaml:"filter"`
	LogOpts []string `yaml:"log_opts"`
}

// repositoryFile is the on-disk shape of one repositories[] entry.
type repositoryFile struct {
	Name        string            `yaml:"name"`
	Sources     []string          `yaml:"sources"`
	Destination string            `yaml:"destination"`
	Replicator  Replicator        `yaml:"replicator"`
	Intervals   map[string]string `yaml:"intervals"`
	Keep        map[string]int    `yaml:"keep"`
	KeepAge     map[string]string `yaml:"keep_age"`
}

// file is the on-disk shape of the whole config file.
type file struct {
	Repositories []repositoryFile `yaml:"repositories"`
	TickInterval string           `yaml:"tick_interval"`
	StatusAddr   string           `yaml:"status_addr"`
}

// Config is the parsed, validated configuration for one daemon instance.
type Config struct {
	Repositories []repository.Config
	TickInterval time.Duration
	StatusAddr   string // empty disables internal/statusd
}

// Load reads and validates the YAML config at path. Every repository's
// keep/keep_age/intervals key sets must match (REPO-INV 3); this is checked
// here, once, at startup, rather than deferred to the first HandleExpired
// call.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg := &Config{StatusAddr: f.StatusAddr}

	cfg.TickInterval = time.Minute
	if f.TickInterval != "" {
		d, err := time.ParseDuration(f.TickInterval)
		if err != nil {
			return nil, fmt.Errorf("config %s: tick_interval: %w", path, err)
		}
		cfg.TickInterval = d
	}

	for _, rf := range f.Repositories {
		rc, err := parseRepository(rf)
		if err != nil {
			return nil, fmt.Errorf("config %s: repository %q: %w", path, rf.Name, err)
		}
		cfg.Repositories = append(cfg.Repositories, rc)
	}

	return cfg, nil
}

func parseRepository(rf repositoryFile) (repository.Config, error) {
	rc := repository.Config{
		Name:              rf.Name,
		Sources:           rf.Sources,
		Destination:       rf.Destination,
		ReplicatorCmd:     rf.Replicator.Cmd,
		ReplicatorArgs:    rf.Replicator.Args,
		ReplicatorFilter:  rf.Replicator.Filter,
		ReplicatorLogOpts: rf.Replicator.LogOpts,
		Keep:              rf.Keep,
		KeepAge:           make(map[string]time.Duration, len(rf.KeepAge)),
	}
	if rc.ReplicatorCmd == "" {
		rc.ReplicatorCmd = "rsync"
	}

	// Intervals is kept as an ordered slice; the order intervals appear in
	// the YAML map is not guaranteed, so configured order is taken from a
	// stable sort of the map keys instead of relying on it. The primary
	// interval on a simultaneous tick is then a function of the config
	// file's interval names, not of map iteration order.
	names := make([]string, 0, len(rf.Intervals))
	for name := range rf.Intervals {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		expr := rf.Intervals[name]
		sched, err := cronsched.Parse(expr)
		if err != nil {
			return rc, fmt.Errorf("interval %q: cron %q: %w", name, expr, err)
		}
		rc.Intervals = append(rc.Intervals, repository.Interval{Name: name, Cron: sched})
	}

	for name, ageStr := range rf.KeepAge {
		age, err := time.ParseDuration(ageStr)
		if err != nil {
			return rc, fmt.Errorf("keep_age %q: %w", name, err)
		}
		rc.KeepAge[name] = age
	}

	if err := rc.Validate(); err != nil {
		return rc, err
	}
	// Validate only checks intervals -> keep/keep_age; the reverse direction
	// (an entry naming no configured interval) is rejected here, at load time.
	for name := range rf.Keep {
		if _, ok := rf.Intervals[name]; !ok {
			return rc, &repository.ConfigError{Interval: name, Reason: "keep entry has no corresponding interval", Code: exitcode.ConfigInvalid}
		}
	}
	for name := range rf.KeepAge {
		if _, ok := rf.Intervals[name]; !ok {
			return rc, &repository.ConfigError{Interval: name, Reason: "keep_age entry has no corresponding interval", Code: exitcode.ConfigInvalid}
		}
	}
	return rc, nil
}
