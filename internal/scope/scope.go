// Package scope implements the blast radius check applied before every batch run.
// Runs addressing accounts or regions outside the configured scope are blocked.
package scope

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xiansir-zhe/cloud-tool/internal/core"
)

// Checker evaluates whether a run falls within the configured scope.
type Checker struct {
	scope core.Scope
}

// NewChecker creates a scope checker for the given scope.
func NewChecker(scope core.Scope) *Checker {
	return &Checker{scope: scope}
}

// CheckAccount verifies an account id (uin) is in scope.
func (c *Checker) CheckAccount(accountID string) error {
	if len(c.scope.AccountIDs) == 0 {
		return nil // No account restriction
	}
	for _, id := range c.scope.AccountIDs {
		if id == accountID {
			return nil
		}
	}
	return &ScopeViolation{
		Resource: "account:" + accountID,
		Reason:   fmt.Sprintf("account %s is not in scope (allowed: %s)", accountID, strings.Join(c.scope.AccountIDs, ", ")),
	}
}

// CheckRegion verifies a region is in scope.
func (c *Checker) CheckRegion(region string) error {
	if len(c.scope.Regions) == 0 {
		return nil // No region restriction
	}
	for _, r := range c.scope.Regions {
		if r == region {
			return nil
		}
	}
	return &ScopeViolation{
		Resource: "region:" + region,
		Reason:   fmt.Sprintf("region %s is not in scope (allowed: %s)", region, strings.Join(c.scope.Regions, ", ")),
	}
}

// CheckTarget validates the account and, when set, the region of a run.
// Block-storage runs carry no region and only have their account checked.
func (c *Checker) CheckTarget(accountID, region string) error {
	if err := c.CheckAccount(accountID); err != nil {
		return err
	}
	if region != "" {
		if err := c.CheckRegion(region); err != nil {
			return err
		}
	}
	return nil
}

// ScopeViolation represents an out-of-scope run attempt.
type ScopeViolation struct {
	Resource string
	Reason   string
}

func (sv *ScopeViolation) Error() string {
	return fmt.Sprintf("scope violation [%s]: %s", sv.Resource, sv.Reason)
}

// IsScopeViolation checks if an error is a scope violation.
func IsScopeViolation(err error) bool {
	var sv *ScopeViolation
	return errors.As(err, &sv)
}
