// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package risk

import (
	"net/netip"
	"strconv"
	"strings"

	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/models"
)

// Exemptions matches subjects that must never be escalated past monitoring.
type Exemptions struct {
	roles    map[models.Role]struct{}
	subjects map[string]struct{}
	networks []netip.Prefix
}

// NewExemptions compiles the exemption rules.
func NewExemptions(cfg config.ExemptionConfig) (*Exemptions, error) {
	e := &Exemptions{
		roles:    make(map[models.Role]struct{}, len(cfg.Roles)),
		subjects: make(map[string]struct{}, len(cfg.SubjectIDs)),
		networks: make([]netip.Prefix, 0, len(cfg.TrustedCIDRs)),
	}
	for _, r := range cfg.Roles {
		e.roles[models.Role(strings.ToLower(r))] = struct{}{}
	}
	for _, id := range cfg.SubjectIDs {
		e.subjects[id] = struct{}{}
	}
	for i, cidr := range cfg.TrustedCIDRs {
		p, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, &config.ConfigurationError{
				Field:  "exemptions.trusted_cidrs[" + strconv.Itoa(i) + "]",
				Reason: err.Error(),
			}
		}
		e.networks = append(e.networks, p.Masked())
	}
	return e, nil
}

// IsExempt reports whether the subject matches any exemption rule. IP subjects
// ("ip:<addr>") are matched against the trusted networks by their id.
func (e *Exemptions) IsExempt(s models.Subject) bool {
	if s.Exempt {
		return true
	}
	if _, ok := e.roles[s.Role]; ok {
		return true
	}
	if _, ok := e.subjects[s.ID]; ok {
		return true
	}
	if len(e.networks) == 0 {
		return false
	}

	ip := s.IPAddress
	if ip == "" && models.IsIPSubject(s.ID) {
		ip = strings.TrimPrefix(s.ID, models.IPSubjectPrefix)
	}
	return e.TrustedIP(ip)
}

// TrustedIP reports whether ip falls inside a trusted network.
func (e *Exemptions) TrustedIP(ip string) bool {
	if ip == "" {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, n := range e.networks {
		if n.Contains(addr) {
			return true
		}
	}
	return false
}
