// Package scan lists and profiles the documents in a job directory before
// any analysis happens: which files are candidates, what the job name and
// number look like, and what a full run would cost.
package scan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/contractscan/backend/pkg/logger"
)

var (
	ErrInvalidPath       = errors.New("invalid directory path")
	ErrDirectoryNotFound = errors.New("directory not found")
	ErrDirectoryEmpty    = errors.New("no matching files found in directory")
)

// FilenameHints are cheap, oracle-free signals read off the filename alone.
// The UI shows them before a scan is paid for.
type FilenameHints struct {
	LikelyMainContract bool     `json:"likely_main_contract"`
	LikelyExecuted     bool     `json:"likely_executed"`
	LikelyDraft        bool     `json:"likely_draft"`
	HasVersion         bool     `json:"has_version"`
	ContractIndicators []string `json:"contract_indicators"`
	StatusIndicators   []string `json:"status_indicators"`
	VersionIndicators  []string `json:"version_indicators"`
}

type FileInfo struct {
	Filename      string        `json:"filename"`
	FilePath      string        `json:"file_path"`
	FileSizeBytes int64         `json:"file_size_bytes"`
	FileSizeKB    int64         `json:"file_size_kb"`
	FileSizeMB    float64       `json:"file_size_mb"`
	ModifiedTime  int64         `json:"modified_time"`
	IsReadable    bool          `json:"is_readable"`
	Hints         FilenameHints `json:"filename_hints"`
}

type Result struct {
	DirectoryPath      string     `json:"directory_path"`
	JobName            string     `json:"job_name"`
	JobNumber          string     `json:"job_number"`
	TotalFiles         int        `json:"total_files"`
	TotalSizeBytes     int64      `json:"total_size_bytes"`
	TotalSizeMB        float64    `json:"total_size_mb"`
	EstimatedScanCost  float64    `json:"estimated_scan_cost"`
	EstimatedScanTime  float64    `json:"estimated_scan_time_seconds"`
	Files              []FileInfo `json:"files"`
}

// Summary is the lightweight validity check used before committing to a run.
type Summary struct {
	DirectoryPath string `json:"directory_path"`
	JobName       string `json:"job_name"`
	JobNumber     string `json:"job_number"`
	FileCount     int    `json:"file_count"`
	IsValid       bool   `json:"is_valid"`
	Error         string `json:"error,omitempty"`
}

type Scanner struct {
	allowedExtensions map[string]bool
	costPerDocument   float64
	timePerDocument   float64
}

func NewScanner(allowedExtensions []string, costPerDocument, timePerDocument float64) *Scanner {
	exts := make(map[string]bool, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		exts[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	return &Scanner{
		allowedExtensions: exts,
		costPerDocument:   costPerDocument,
		timePerDocument:   timePerDocument,
	}
}

// Scan validates the directory, lists candidate documents sorted by
// lowercased filename, and attaches per-file hints and run estimates.
func (s *Scanner) Scan(directoryPath string) (*Result, error) {
	path, entries, err := s.validate(directoryPath)
	if err != nil {
		return nil, err
	}

	files, err := s.candidateFiles(path, entries)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryEmpty, directoryPath)
	}

	jobName, jobNumber := extractJobInfo(path)

	var totalBytes int64
	for _, f := range files {
		totalBytes += f.FileSizeBytes
	}

	sort.Slice(files, func(i, j int) bool {
		return strings.ToLower(files[i].Filename) < strings.ToLower(files[j].Filename)
	})

	result := &Result{
		DirectoryPath:     path,
		JobName:           jobName,
		JobNumber:         jobNumber,
		TotalFiles:        len(files),
		TotalSizeBytes:    totalBytes,
		TotalSizeMB:       roundMB(totalBytes),
		EstimatedScanCost: float64(len(files)) * s.costPerDocument,
		EstimatedScanTime: float64(len(files)) * s.timePerDocument,
		Files:             files,
	}

	logger.Info("scanned directory",
		zap.String("job_name", jobName),
		zap.Int("files", len(files)),
		zap.Float64("total_mb", result.TotalSizeMB),
	)

	return result, nil
}

// Summarize is Scan without the per-file detail; it never returns an error,
// reporting validity in the result instead.
func (s *Scanner) Summarize(directoryPath string) Summary {
	result, err := s.Scan(directoryPath)
	if err != nil {
		return Summary{
			DirectoryPath: directoryPath,
			JobName:       "Unknown",
			JobNumber:     "Unknown",
			Error:         err.Error(),
		}
	}
	return Summary{
		DirectoryPath: result.DirectoryPath,
		JobName:       result.JobName,
		JobNumber:     result.JobNumber,
		FileCount:     result.TotalFiles,
		IsValid:       true,
	}
}

func (s *Scanner) validate(directoryPath string) (string, []os.DirEntry, error) {
	trimmed := strings.TrimSpace(directoryPath)
	if trimmed == "" {
		return "", nil, fmt.Errorf("%w: path is empty", ErrInvalidPath)
	}

	info, err := os.Stat(trimmed)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, trimmed)
		}
		return "", nil, fmt.Errorf("%w: %s: %v", ErrInvalidPath, trimmed, err)
	}
	if !info.IsDir() {
		return "", nil, fmt.Errorf("%w: not a directory: %s", ErrInvalidPath, trimmed)
	}

	entries, err := os.ReadDir(trimmed)
	if err != nil {
		return "", nil, fmt.Errorf("%w: cannot read %s: %v", ErrInvalidPath, trimmed, err)
	}

	return trimmed, entries, nil
}

// candidateFiles keeps regular files with an allowed extension, deduplicated
// by lowercased name so case variants of the same document count once.
func (s *Scanner) candidateFiles(dir string, entries []os.DirEntry) ([]FileInfo, error) {
	var files []FileInfo
	seen := map[string]bool{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(entry.Name()), "."))
		if !s.allowedExtensions[ext] {
			continue
		}
		lower := strings.ToLower(entry.Name())
		if seen[lower] {
			continue
		}
		seen[lower] = true

		files = append(files, s.fileInfo(dir, entry))
	}

	return files, nil
}

func (s *Scanner) fileInfo(dir string, entry os.DirEntry) FileInfo {
	fullPath := filepath.Join(dir, entry.Name())

	fi := FileInfo{
		Filename: entry.Name(),
		FilePath: fullPath,
		Hints:    AnalyzeFilename(entry.Name()),
	}

	info, err := entry.Info()
	if err != nil {
		logger.Warn("could not stat file", zap.String("path", fullPath), zap.Error(err))
		return fi
	}

	fi.FileSizeBytes = info.Size()
	fi.FileSizeKB = info.Size() / 1024
	fi.FileSizeMB = roundMB(info.Size())
	fi.ModifiedTime = info.ModTime().Unix()
	fi.IsReadable = readable(fullPath)

	return fi
}

func readable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

var (
	jobNumberRe = regexp.MustCompile(`\b(\d{3,6})\b`)
	jobPrefixRe = regexp.MustCompile(`(?:job|project|contract|ctdot)[-_\s]*(\d+)`)
	versionRe   = regexp.MustCompile(`(?:r\d+|rev\d+|revision\s*\d+|v\d+|version\s*\d+)`)
)

// extractJobInfo derives the job name and number from the directory itself.
// The name is the directory basename. Number patterns are tried from weakest
// to strongest: a leading 4-digit prefix, then any 3-6 digit run, then a
// digit run after a job/project/contract/ctdot prefix.
func extractJobInfo(dir string) (string, string) {
	jobName := filepath.Base(filepath.Clean(dir))
	jobNumber := "UNKNOWN"

	if len(jobName) >= 4 && allDigits(jobName[:4]) {
		jobNumber = jobName[:4]
	}
	if m := jobNumberRe.FindStringSubmatch(jobName); m != nil {
		jobNumber = m[1]
	}
	if m := jobPrefixRe.FindStringSubmatch(strings.ToLower(jobName)); m != nil {
		jobNumber = m[1]
	}

	return jobName, jobNumber
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

var (
	mainIndicators      = []string{"executed", "signed", "final", "clean", "fully executed"}
	executionIndicators = []string{"executed", "signed", "fully executed"}
	draftIndicators     = []string{"draft", "markup", "redline", "comments", "review"}
)

// AnalyzeFilename reads classification hints off a filename without touching
// the file contents.
func AnalyzeFilename(filename string) FilenameHints {
	lower := strings.ToLower(filename)

	hints := FilenameHints{
		ContractIndicators: matchIndicators(lower, mainIndicators),
		StatusIndicators:   matchIndicators(lower, executionIndicators),
		VersionIndicators:  versionRe.FindAllString(lower, -1),
	}
	hints.LikelyMainContract = len(hints.ContractIndicators) > 0
	hints.LikelyExecuted = len(hints.StatusIndicators) > 0
	hints.LikelyDraft = len(matchIndicators(lower, draftIndicators)) > 0
	hints.HasVersion = len(hints.VersionIndicators) > 0

	return hints
}

func matchIndicators(s string, indicators []string) []string {
	found := []string{}
	for _, ind := range indicators {
		if strings.Contains(s, ind) {
			found = append(found, ind)
		}
	}
	return found
}

func roundMB(bytes int64) float64 {
	mb := float64(bytes) / (1024 * 1024)
	return float64(int64(mb*100+0.5)) / 100
}
