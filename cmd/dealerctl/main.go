package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/iTrooz/dealership-client/internal/api"
	"github.com/iTrooz/dealership-client/internal/cache"
	"github.com/iTrooz/dealership-client/internal/config"
)

const usage = `Usage: dealerctl [-config file] [-base-url url] <command> [options] <path> [key=value...]

Commands:
  get      fetch path once
  repeat   fetch path twice, the second answer comes from the cache

Options:
  -force      skip the cached response
  -no-cache   neither read nor write the cache
  -ttl        lifetime of the stored response, e.g. 30s
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		logrus.Fatalf("Error: %v", err)
	}
}

type result struct {
	Path      string `yaml:"path"`
	Status    int    `yaml:"status"`
	FromCache bool   `yaml:"from_cache"`
	RequestID string `yaml:"request_id"`
	Bytes     int    `yaml:"bytes"`
	Body      string `yaml:"body,omitempty"`
}

type entrySummary struct {
	Key       string    `yaml:"key"`
	Status    int       `yaml:"status"`
	Bytes     int       `yaml:"bytes"`
	ExpiresAt time.Time `yaml:"expires_at"`
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	global := flag.NewFlagSet("dealerctl", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	configPath := global.String("config", "", "config file")
	baseURL := global.String("base-url", "", "backend base URL")
	if err := global.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	rest := global.Args()
	if len(rest) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}
	command := rest[0]
	if command != "get" && command != "repeat" {
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}

	sub := flag.NewFlagSet(command, flag.ContinueOnError)
	sub.SetOutput(io.Discard)
	force := sub.Bool("force", false, "skip the cached response")
	noCache := sub.Bool("no-cache", false, "bypass the cache")
	ttl := sub.Duration("ttl", 0, "lifetime of the stored response")
	if err := sub.Parse(rest[1:]); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if sub.NArg() == 0 {
		return fmt.Errorf("%w: missing path", errUsage)
	}
	path := sub.Arg(0)
	params, err := parseParams(sub.Args()[1:])
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *baseURL != "" {
		cfg.API.BaseURL = *baseURL
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.SetupLogging()

	client, err := api.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	var opts []api.CallOption
	if *force {
		opts = append(opts, api.ForceRefresh())
	}
	if *noCache {
		opts = append(opts, api.NoCache())
	}
	if *ttl > 0 {
		opts = append(opts, api.CacheFor(*ttl))
	}

	calls := 1
	if command == "repeat" {
		calls = 2
	}

	var results []result
	for i := 0; i < calls; i++ {
		resp, err := client.Get(ctx, path, params, nil, opts...)
		if err != nil {
			return err
		}
		results = append(results, result{
			Path:      path,
			Status:    resp.StatusCode,
			FromCache: resp.FromCache,
			RequestID: resp.RequestID,
			Bytes:     len(resp.Body),
			Body:      string(resp.Body),
		})
	}

	out := map[string]any{"responses": results}
	if c := client.Cache(); c != nil {
		out["cache"] = summarize(c.Entries())
	}

	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return enc.Close()
}

// parseParams reads key=value arguments. A key given twice becomes a list.
func parseParams(args []string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("parameter %q is not key=value", arg)
		}
		switch existing := params[key].(type) {
		case nil:
			params[key] = value
		case []any:
			params[key] = append(existing, value)
		default:
			params[key] = []any{existing, value}
		}
	}
	return params, nil
}

func summarize(entries map[string]*cache.Entry) []entrySummary {
	summaries := make([]entrySummary, 0, len(entries))
	for key, e := range entries {
		summaries = append(summaries, entrySummary{
			Key:       key,
			Status:    e.Status,
			Bytes:     len(e.Data),
			ExpiresAt: e.ExpiresAt(),
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Key < summaries[j].Key })
	return summaries
}
