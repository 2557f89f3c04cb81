package config

import (
	"flag"
	"fmt"
	"net/url"
	"strings"
)

type Cli struct {
	PromPort             int
	RedisURL             string
	DatabaseURL          string
	BlobStoreURL         string
	SourceOutput         string
	WorkDir              string
	ModelsDir            string
	ConsumerName         string
	JobStream            string
	ConsumerGroup        string
	DLQStream            string
	PrivateBucketURL     *url.URL
	EnableStaleDetection bool
	SelfCheck            bool
}

// URLVarFlag registers a flag that parses into a *url.URL.
func URLVarFlag(fs *flag.FlagSet, dest **url.URL, name, value, usage string) {
	*dest = mustParseURL(value)
	fs.Func(name, usage, func(s string) error {
		if s == "" {
			*dest = nil
			return nil
		}
		u, err := url.Parse(s)
		if err != nil {
			return fmt.Errorf("cannot parse URL flag %s: %w", name, err)
		}
		*dest = u
		return nil
	})
}

// CommaSliceFlag registers a flag holding a comma-delimited list.
func CommaSliceFlag(fs *flag.FlagSet, dest *[]string, name string, value []string, usage string) {
	*dest = value
	fs.Func(name, usage, func(s string) error {
		if s == "" {
			*dest = nil
			return nil
		}
		*dest = strings.Split(s, ",")
		return nil
	})
}

func mustParseURL(s string) *url.URL {
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		panic(fmt.Sprintf("invalid default URL %q: %v", s, err))
	}
	return u
}
