// Package derive builds a normalized provision draft from the loosely typed
// upstream event payload, the optionally fetched claim, and the deployer job
// variables. Every fallback chain between those sources lives here.
package derive

import (
	"fmt"
	"strings"
	"time"
)

// Vocabulary values shared with the persistence layer.
const (
	ChargebackOpen     = "open"
	ChargebackRegional = "regional"

	CategoryTraining         = "Training"
	CategoryDevelopment      = "Development"
	CategoryCustomerActivity = "Customer Activity"
	CategoryOthers           = "Others"

	InfraDedicated = "Dedicated"
	InfraShared    = "Shared"
	InfraSandbox   = "Sandbox"
)

// DefaultPurpose is recorded when neither the claim nor the job variables
// carry a purpose.
const DefaultPurpose = "Development - Catalog item creation / maintenance"

// NormalizeCloud maps deployer cloud-provider names onto the reporting
// vocabulary. Unmapped values pass through.
func NormalizeCloud(cloud string) string {
	switch cloud {
	case "ec2":
		return "aws"
	case "osp":
		return "openstack"
	case "none":
		return "shared"
	default:
		return cloud
	}
}

// NormalizeDatasource upper-cases the originating platform name. The legacy
// LABS platform reports as OPENTLC.
func NormalizeDatasource(platform string) string {
	ds := strings.ToUpper(platform)
	if ds == "LABS" {
		return "OPENTLC"
	}
	return ds
}

// CategorizePurpose buckets a free-text purpose into its reporting category.
func CategorizePurpose(purpose string) string {
	switch {
	case strings.HasPrefix(purpose, "Training"):
		return CategoryTraining
	case strings.HasPrefix(purpose, "Development"), strings.Contains(purpose, "Content dev"):
		return CategoryDevelopment
	case strings.Contains(purpose, "Customer Activity"):
		return CategoryCustomerActivity
	default:
		return CategoryOthers
	}
}

// GovernorParts is the decomposition of a dotted governor identifier
// "account.item-name.environment".
type GovernorParts struct {
	Account     string
	ShortName   string
	Environment string
	ClassName   string
}

// ParseGovernor splits a governor string. The class name groups records
// downstream, so a governor without the expected three segments is an error
// rather than a best-effort guess.
func ParseGovernor(governor string) (GovernorParts, error) {
	segments := strings.Split(governor, ".")
	if len(segments) < 3 {
		return GovernorParts{}, fmt.Errorf("parse governor %q: want at least 3 dot-separated segments, got %d", governor, len(segments))
	}
	className := strings.ToUpper(segments[2] + "_" + strings.ReplaceAll(segments[1], "-", "_"))
	return GovernorParts{
		Account:     segments[0],
		ShortName:   segments[1],
		Environment: segments[2],
		ClassName:   className,
	}, nil
}

// ShortCatalogName reduces a dotted catalog identifier to its item segment.
// Undotted names pass through trimmed.
func ShortCatalogName(name string) string {
	if strings.Contains(name, ".") {
		parts := strings.Split(name, ".")
		name = parts[1]
	}
	return strings.TrimSpace(name)
}

// InfraType derives the infrastructure classification from naming
// conventions: shared classes and sandbox accounts are flagged as such,
// everything else is a dedicated environment.
func InfraType(className, account string) string {
	switch {
	case strings.Contains(className, "SHARED"):
		return InfraShared
	case strings.Contains(account, "sandbox"):
		return InfraSandbox
	default:
		return InfraDedicated
	}
}

// timestampLayouts covers the deployer's job timestamp variants.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses a deployer timestamp and normalizes it to UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, lastErr)
}
