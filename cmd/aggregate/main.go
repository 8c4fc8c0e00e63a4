// Command aggregate combines preference documents from disk without a server.
//
//	aggregate -guests a.json,b.json [-host host.json] [-previous combined.json] [-policy permissive]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/angelmondragon/forkcast-backend/internal/clarification"
	"github.com/angelmondragon/forkcast-backend/internal/preferences"
	"github.com/angelmondragon/forkcast-backend/pkg/logger"
)

func main() {
	guests := flag.String("guests", "", "comma separated guest preference files")
	host := flag.String("host", "", "optional host preference file")
	previous := flag.String("previous", "", "optional earlier combined document, used for the iteration count")
	policy := flag.String("policy", "strict", "parse policy: strict|permissive")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	logg := logger.New(logger.Options{
		ServiceName: "aggregate",
		Level:       logger.ParseLevel(*logLevel),
		Format:      "console",
		Output:      os.Stderr,
	})
	ctx := context.Background()

	if err := run(ctx, logg, os.Stdout, options{
		guests:   splitList(*guests),
		host:     *host,
		previous: *previous,
		policy:   *policy,
	}); err != nil {
		logg.Error(ctx, "aggregate failed", err)
		os.Exit(1)
	}
}

type options struct {
	guests   []string
	host     string
	previous string
	policy   string
}

func run(ctx context.Context, logg *logger.Logger, out io.Writer, opts options) error {
	policy, err := preferences.ParsePolicy(opts.policy)
	if err != nil {
		return err
	}
	if len(opts.guests) == 0 {
		return errors.New("at least one -guests file is required")
	}

	records := make([]preferences.PreferenceRecord, 0, len(opts.guests))
	for _, path := range opts.guests {
		rec, err := readGuest(path, policy)
		if err != nil {
			return err
		}
		for _, issue := range rec.Issues {
			logg.Warn(logg.WithFields(ctx, map[string]any{"file": path, "field": issue.Field, "reason": issue.Reason}), "guest.field_dropped")
		}
		records = append(records, rec)
	}

	base, err := preferences.Aggregate(records)
	if err != nil {
		return err
	}

	var mergeOpts []preferences.MergeOption
	if opts.previous != "" {
		raw, err := os.ReadFile(opts.previous)
		if err != nil {
			return fmt.Errorf("read previous: %w", err)
		}
		prev, err := preferences.DecodeCombined(raw)
		if err != nil {
			return fmt.Errorf("decode previous %s: %w", opts.previous, err)
		}
		mergeOpts = append(mergeOpts, preferences.WithPrevious(&prev))
	}

	var hostRec *preferences.PreferenceRecord
	if opts.host != "" {
		raw, err := os.ReadFile(opts.host)
		if err != nil {
			return fmt.Errorf("read host: %w", err)
		}
		rec, err := preferences.ParseHostRecord(raw, policy)
		if err != nil {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "host.preferences_invalid")
			mergeOpts = append(mergeOpts, preferences.WithHostError(err))
		} else {
			hostRec = &rec
		}
	}

	combined := preferences.Merge(base, hostRec, mergeOpts...)
	readiness := preferences.Assess(combined)
	combined = combined.WithReadiness(readiness)
	question := clarification.NewService(clarification.ServiceParams{Logger: logg}).
		Suggest(ctx, readiness.Missing, combined.Preferences)
	combined = combined.WithClarificationQuestion(question)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(combined)
}

func readGuest(path string, policy preferences.Policy) (preferences.PreferenceRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return preferences.PreferenceRecord{}, fmt.Errorf("read guest: %w", err)
	}
	body, err := preferences.ExtractPreferences(raw)
	if err != nil {
		return preferences.PreferenceRecord{}, fmt.Errorf("guest %s: %w", path, err)
	}
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return preferences.ParseRecord(id, body, policy)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
