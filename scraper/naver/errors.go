package naver

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"land-crawler/models"
	"land-crawler/scraper/browser"
)

var (
	ErrInvalidTarget     = errors.New("invalid target")
	ErrContainerNotFound = errors.New("article list container not found")
	// ErrMalformedOverview means the overview body arrived but could not be decoded.
	// Retrying cannot fix it.
	ErrMalformedOverview = errors.New("malformed overview payload")
)

// contextFatalMarkers are CDP/driver messages meaning the page can no longer be used.
var contextFatalMarkers = []string{
	"execution context was destroyed",
	"cannot find context with specified id",
	"inspected target navigated or closed",
	"target closed",
	"session closed",
	"no target with given id",
	"invalid context",
	"websocket: close",
	"use of closed network connection",
}

// IsContextFatal reports whether err means the automation surface must be recreated.
func IsContextFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, browser.ErrSurfaceLost) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range contextFatalMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// isPermanent reports errors that no retry of the same phase can change.
func isPermanent(err error) bool {
	return IsContextFatal(err) || errors.Is(err, ErrMalformedOverview)
}

var targetPattern = regexp.MustCompile(`^[0-9A-Za-z_-]{1,32}$`)

// ValidateTarget rejects identifiers that cannot be placed in a URL path segment.
func ValidateTarget(t models.Target) error {
	if !targetPattern.MatchString(string(t)) {
		return fmt.Errorf("%w: %q", ErrInvalidTarget, string(t))
	}
	return nil
}
