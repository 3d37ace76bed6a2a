package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/sitegate-io/sitegate/internal/db"
	"github.com/sitegate-io/sitegate/internal/repositories"
)

// defaultTarget is the redirect issued whenever a post-login target cannot be
// proven safe.
const defaultTarget = "/"

// RedirectValidator decides whether a caller-supplied post-login target is
// safe to redirect to. The target is attacker-controlled input — it is chosen
// by the visitor and echoed back through the identity provider — so a
// cross-origin target is honored only when it points at a tenant site the
// authenticated user is allowed to edit.
type RedirectValidator struct {
	sites  repositories.SiteRepository
	logger *zap.Logger
}

// NewRedirectValidator creates a RedirectValidator.
func NewRedirectValidator(sites repositories.SiteRepository, logger *zap.Logger) *RedirectValidator {
	return &RedirectValidator{
		sites:  sites,
		logger: logger.Named("redirect"),
	}
}

// Validate returns a safe redirect target derived from target. It never
// fails: anything that cannot be proven safe degrades to the root path.
//
//   - Empty or unparseable targets become the root path.
//   - Path-relative targets are same-origin and returned unchanged.
//   - Targets naming another origin (including protocol-relative "//host"
//     forms) are returned unchanged only when a site with that domain exists
//     and user is in its editor set.
func (v *RedirectValidator) Validate(ctx context.Context, target string, user *db.User) string {
	if target == "" {
		return defaultTarget
	}

	// Browsers follow the WHATWG parser, which treats "\" as "/" and
	// collapses runs of leading slashes, so "/\evil.com" and "///evil.com"
	// navigate cross-origin even though net/url sees a host-less path.
	if strings.Contains(target, `\`) {
		return defaultTarget
	}

	u, err := url.Parse(target)
	if err != nil {
		return defaultTarget
	}

	// Same-origin: no host and no scheme. The scheme check matters — a
	// "javascript:" or "data:" target has an empty host but is not a path.
	// Anything starting with "//" is a network-path reference regardless of
	// what the parser made of it, and takes the cross-origin route below.
	if u.Host == "" && !u.IsAbs() && !strings.HasPrefix(target, "//") {
		return target
	}

	if user == nil || u.Hostname() == "" {
		return defaultTarget
	}

	site, err := v.sites.GetByDomain(ctx, u.Hostname())
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			v.logger.Warn("site lookup failed, degrading redirect", zap.Error(err))
		}
		return defaultTarget
	}

	editor, err := v.sites.IsEditor(ctx, site.ID, user.ID)
	if err != nil {
		v.logger.Warn("editor lookup failed, degrading redirect", zap.Error(err))
		return defaultTarget
	}
	if !editor {
		return defaultTarget
	}

	return target
}
