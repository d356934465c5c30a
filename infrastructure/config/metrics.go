package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

const (
	FormatPlain  = "plain"
	FormatInflux = "influx"
)

type MetricsConfig struct {
	Prefix   string            `toml:"prefix" mapstructure:"prefix"`
	TagKey   string            `toml:"tagkey" mapstructure:"tagkey"`
	Identity string            `toml:"identity" mapstructure:"identity"`
	Tags     map[string]string `toml:"tags" mapstructure:"tags"`
	Format   string            `toml:"format" mapstructure:"format"`
	Validate bool              `toml:"validate" mapstructure:"validate"`
	Schema   string            `toml:"schema" mapstructure:"schema"`
	Queries  []string          `toml:"queries" mapstructure:"queries"`
}

func (conf *MetricsConfig) MetricsInit() error {
	if conf.Prefix == "" {
		conf.Prefix = "pgbouncer"
	}
	if conf.TagKey == "" {
		conf.TagKey = "server"
	}
	if conf.Format == "" {
		conf.Format = FormatPlain
	}
	conf.Format = strings.ToLower(conf.Format)
	if conf.Format != FormatPlain && conf.Format != FormatInflux {
		return fmt.Errorf("unsupported output format %q, expect %s or %s", conf.Format, FormatPlain, FormatInflux)
	}
	if conf.Identity == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("can not get hostname: %w", err)
		}
		conf.Identity = hostname
	}
	if strings.TrimSpace(conf.Identity) == "" {
		return fmt.Errorf("identity tag %q has an empty value", conf.TagKey)
	}
	if _, exist := conf.Tags[conf.TagKey]; exist {
		return fmt.Errorf("tag %q is reserved for the identity tag", conf.TagKey)
	}
	for k, v := range conf.Tags {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			return fmt.Errorf("tag %q=%q has an empty key or value", k, v)
		}
	}
	for i, q := range conf.Queries {
		conf.Queries[i] = strings.ToLower(strings.TrimSpace(q))
	}
	return nil
}

// StaticTags returns the identity tag followed by the configured tags sorted by key.
func (conf *MetricsConfig) StaticTags() [][2]string {
	tags := make([][2]string, 0, len(conf.Tags)+1)
	tags = append(tags, [2]string{conf.TagKey, conf.Identity})
	keys := make([]string, 0, len(conf.Tags))
	for k := range conf.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		tags = append(tags, [2]string{k, conf.Tags[k]})
	}
	return tags
}
