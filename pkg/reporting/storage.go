package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Storage handles persistence of tick and route reports as JSON files with
// a bounded retention count, so operators can diff two ticks after the fact.
type Storage struct {
	outputDir string
	keepLastN int
	logger    *Logger
}

// NewStorage creates a new storage instance
func NewStorage(outputDir string, keepLastN int, logger *Logger) (*Storage, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Storage{
		outputDir: outputDir,
		keepLastN: keepLastN,
		logger:    logger,
	}, nil
}

// SaveTickReport saves a tick report to a JSON file named
// tick-<timestamp>-<tickID>.json.
func (s *Storage) SaveTickReport(report *TickReport) (string, error) {
	timestamp := report.StartTime.Format("20060102-150405")
	filename := fmt.Sprintf("tick-%s-%s.json", timestamp, report.TickID)
	return s.writeJSON(filename, report)
}

// SaveRouteReport saves a route report to a JSON file named
// route-<timestamp>-<routeID>.json.
func (s *Storage) SaveRouteReport(report *RouteReport) (string, error) {
	timestamp := report.Timestamp.Format("20060102-150405")
	filename := fmt.Sprintf("route-%s-%s.json", timestamp, report.RouteID)
	return s.writeJSON(filename, report)
}

func (s *Storage) writeJSON(filename string, v interface{}) (string, error) {
	path := filepath.Join(s.outputDir, filename)

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	s.logger.Info("Report saved", "path", path)

	if s.keepLastN > 0 {
		if err := s.cleanupOldReports(); err != nil {
			s.logger.Warn("Failed to cleanup old reports", "error", err)
		}
	}

	return path, nil
}

// LoadTickReport loads a tick report from a JSON file
func (s *Storage) LoadTickReport(path string) (*TickReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	var report TickReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}

	return &report, nil
}

// ReportSummary contains a directory listing entry for a stored report
type ReportSummary struct {
	Kind      string    `json:"kind"` // "tick" or "route"
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Filepath  string    `json:"filepath"`
}

// ListReports lists all stored reports, newest first
func (s *Storage) ListReports() ([]ReportSummary, error) {
	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	summaries := make([]ReportSummary, 0)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		kind := ""
		switch {
		case strings.HasPrefix(entry.Name(), "tick-"):
			kind = "tick"
		case strings.HasPrefix(entry.Name(), "route-"):
			kind = "route"
		default:
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ".json")
		parts := strings.SplitN(name, "-", 4)
		id := ""
		if len(parts) == 4 {
			id = parts[3]
		}

		summaries = append(summaries, ReportSummary{
			Kind:      kind,
			ID:        id,
			Timestamp: info.ModTime(),
			Filepath:  filepath.Join(s.outputDir, entry.Name()),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Timestamp.After(summaries[j].Timestamp)
	})

	return summaries, nil
}

// cleanupOldReports removes old report files, keeping only the last N
func (s *Storage) cleanupOldReports() error {
	summaries, err := s.ListReports()
	if err != nil {
		return err
	}

	if len(summaries) <= s.keepLastN {
		return nil
	}

	toDelete := summaries[s.keepLastN:]
	for _, summary := range toDelete {
		if err := os.Remove(summary.Filepath); err != nil {
			s.logger.Warn("Failed to delete old report", "path", summary.Filepath, "error", err)
		} else {
			s.logger.Debug("Deleted old report", "path", summary.Filepath)
		}
	}

	return nil
}

// GetOutputDir returns the output directory path
func (s *Storage) GetOutputDir() string {
	return s.outputDir
}
