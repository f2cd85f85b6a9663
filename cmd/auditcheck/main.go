// Command auditcheck verifies every record in the ingest audit log against
// the record contracts and reports violations.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"

	"b3ingest/internal/config"
	"b3ingest/internal/ingest"
	"b3ingest/pkg/contracts/domain"
)

func main() {
	logPath := flag.String("log", "", "audit log path (default from config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}

	path := cfg.Paths.MetadataFile
	if *logPath != "" {
		path = *logPath
	}

	records, err := ingest.NewAuditLog(path).Records()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read audit log %s: %v\n", path, err)
		os.Exit(1)
	}
	if len(records) == 0 {
		fmt.Printf("%s: no records\n", path)
		return
	}

	validate := validator.New()
	violations := 0
	for i, raw := range records {
		if err := checkRecord(validate, raw); err != nil {
			violations++
			fmt.Printf("record %d: %v\n", i, err)
		}
	}

	fmt.Printf("%s: %d records, %d violations\n", path, len(records), violations)
	if violations > 0 {
		os.Exit(1)
	}
}

// checkRecord validates one audit entry. Entries carrying a "provider" key
// are invalid-rows records; everything else must be an ingest-attempt
// record.
func checkRecord(validate *validator.Validate, raw json.RawMessage) error {
	var probe struct {
		Provider string `json:"provider"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return fmt.Errorf("not a JSON object: %w", err)
	}

	if probe.Provider != "" {
		var entry domain.InvalidRowsEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return fmt.Errorf("malformed invalid-rows record: %w", err)
		}
		if entry.JobID == "" || entry.Ticker == "" {
			return fmt.Errorf("invalid-rows record missing job_id or ticker")
		}
		if entry.InvalidCount < 1 {
			return fmt.Errorf("invalid-rows record with invalid_count %d", entry.InvalidCount)
		}
		return nil
	}

	var result domain.IngestJobResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("malformed ingest record: %w", err)
	}
	if err := validate.Struct(&result); err != nil {
		return fmt.Errorf("ingest record violates contract: %w", err)
	}
	return nil
}
