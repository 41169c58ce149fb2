package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/outreachai/internal/domain"
	"github.com/cloo-solutions/outreachai/internal/logging"
)

// OutreachFilePattern matches pipeline result files in the outreach directory.
const OutreachFilePattern = "outreach_*.json"

const fileTimestampLayout = "20060102_150405"

// OutreachIndexer adds outreach records to the knowledge store.
type OutreachIndexer interface {
	IndexOutreachRecord(ctx context.Context, record *domain.OutreachRecord) (string, error)
	HasMetadata(key, value string) bool
}

// outreachFile is the layout of a pipeline result file.
type outreachFile struct {
	Query     string             `json:"query"`
	Timestamp string             `json:"timestamp"`
	Prospects []outreachProspect `json:"prospects"`
}

type outreachProspect struct {
	Company       string `json:"company"`
	ResearchBrief string `json:"research_brief"`
	Sent          bool   `json:"sent"`
	DealEstimate  struct {
		Industry     string `json:"industry"`
		DealCategory string `json:"deal_category"`
	} `json:"deal_estimate"`
}

// ImportResult summarizes one import pass.
type ImportResult struct {
	Files    int
	Indexed  int
	Existing int
	Skipped  int
}

// OutreachImporter indexes prospects from past outreach files, once each.
type OutreachImporter struct {
	dir     string
	indexer OutreachIndexer
	logger  *zap.Logger
}

func NewOutreachImporter(dir string, indexer OutreachIndexer, logger *zap.Logger) *OutreachImporter {
	return &OutreachImporter{dir: dir, indexer: indexer, logger: logging.OrNop(logger)}
}

// Run performs one import pass for the worker.
func (i *OutreachImporter) Run(ctx context.Context) error {
	_, err := i.Import(ctx)
	return err
}

// Import scans the directory and indexes every prospect not yet stored.
// Unreadable files are skipped; a failed store write aborts the pass.
func (i *OutreachImporter) Import(ctx context.Context) (ImportResult, error) {
	var res ImportResult
	paths, err := filepath.Glob(filepath.Join(i.dir, OutreachFilePattern))
	if err != nil {
		return res, fmt.Errorf("failed to list outreach files: %w", err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Files++

		file, modTime, err := readOutreachFile(path)
		if err != nil {
			i.logger.Warn("skipping unreadable outreach file", zap.String("path", path), zap.Error(err))
			res.Skipped++
			continue
		}

		ts := parseFileTimestamp(file.Timestamp, modTime)
		base := filepath.Base(path)
		for j, p := range file.Prospects {
			origin := fmt.Sprintf("%s#%d", base, j)
			if i.indexer.HasMetadata(domain.MetaSourceFile, origin) {
				res.Existing++
				continue
			}

			record := domain.NewOutreachRecord(p.Company, p.DealEstimate.Industry, p.DealEstimate.DealCategory, p.ResearchBrief, ts)
			record.Query = file.Query
			record.EmailSent = p.Sent
			record.Origin = origin
			if record.Company == "" {
				record.Company = "Unknown"
			}

			if _, err := i.indexer.IndexOutreachRecord(ctx, record); err != nil {
				return res, fmt.Errorf("failed to index %s: %w", origin, err)
			}
			res.Indexed++
		}
	}

	if res.Indexed > 0 {
		i.logger.Info("imported outreach history",
			zap.Int("files", res.Files),
			zap.Int("indexed", res.Indexed),
			zap.Int("existing", res.Existing))
	}
	return res, nil
}

func readOutreachFile(path string) (*outreachFile, time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	var f outreachFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, time.Time{}, err
	}
	return &f, info.ModTime(), nil
}

func parseFileTimestamp(value string, fallback time.Time) time.Time {
	if t, err := time.ParseInLocation(fileTimestampLayout, value, time.Local); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return fallback
}
