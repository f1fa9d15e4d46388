package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/you/bokohub/domain"
)

const thinkEndTag = "</think>"

// CodeScanServiceImpl implements domain.CodeScanService
type CodeScanServiceImpl struct {
	analyzer domain.CodeAnalyzer
}

// NewCodeScanService creates a new code scan service
func NewCodeScanService(analyzer domain.CodeAnalyzer) *CodeScanServiceImpl {
	return &CodeScanServiceImpl{analyzer: analyzer}
}

// Scan implements domain.CodeScanService
func (s *CodeScanServiceImpl) Scan(ctx context.Context, code string) ([]domain.Vulnerability, error) {
	if strings.TrimSpace(code) == "" {
		return nil, domain.ErrNoCode
	}

	raw, err := s.analyzer.Analyze(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrAnalyzerUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrAnalyzerUnavailable, err)
	}
	return ParseVulnerabilities(raw)
}

// ParseVulnerabilities extracts the JSON array of findings from a model
// answer. Reasoning output up to </think> is dropped, and when the remainder
// is not pure JSON the outermost [...] is tried.
func ParseVulnerabilities(raw string) ([]domain.Vulnerability, error) {
	content := strings.TrimSpace(raw)
	if idx := strings.Index(content, thinkEndTag); idx != -1 {
		content = strings.TrimSpace(content[idx+len(thinkEndTag):])
	}

	var vulns []domain.Vulnerability
	if err := json.Unmarshal([]byte(content), &vulns); err != nil {
		start := strings.Index(content, "[")
		end := strings.LastIndex(content, "]")
		if start == -1 || end < start {
			return nil, domain.ErrAnalyzerOutput
		}
		if err := json.Unmarshal([]byte(content[start:end+1]), &vulns); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrAnalyzerOutput, err)
		}
	}

	if vulns == nil {
		vulns = []domain.Vulnerability{}
	}
	for i := range vulns {
		severity, ok := normalizeSeverity(string(vulns[i].Severity))
		if !ok {
			return nil, fmt.Errorf("%w: unknown severity %q", domain.ErrAnalyzerOutput, vulns[i].Severity)
		}
		vulns[i].Severity = severity
	}
	return vulns, nil
}

// normalizeSeverity folds the model's wording onto high, medium and low
func normalizeSeverity(raw string) (domain.Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high", "critical":
		return domain.SeverityHigh, true
	case "medium", "moderate":
		return domain.SeverityMedium, true
	case "low", "info", "informational":
		return domain.SeverityLow, true
	default:
		return "", false
	}
}

var _ domain.CodeScanService = (*CodeScanServiceImpl)(nil)
