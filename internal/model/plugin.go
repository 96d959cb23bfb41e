package model

import (
	"time"
)

// PluginService enumerates supported third-party integrations.
type PluginService string

const (
	PluginServiceVapi PluginService = "vapi"
)

// Valid reports whether s is a known plugin service.
func (s PluginService) Valid() bool {
	return s == PluginServiceVapi
}

// PluginSecret holds tenant-scoped credentials for one integration. At most
// one record exists per (OrgID, Service) pair. Key material never leaves the
// backend; only PluginStatus is surfaced.
type PluginSecret struct {
	OrgID     string        `json:"org_id"`
	Service   PluginService `json:"service"`
	Secret    string        `json:"-"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// PluginStatus is the caller-visible view of a plugin secret.
type PluginStatus struct {
	Service    PluginService `json:"service"`
	Configured bool          `json:"configured"`
	UpdatedAt  *time.Time    `json:"updated_at,omitempty"`
}

// UpsertPluginRequest sets or replaces a plugin secret.
type UpsertPluginRequest struct {
	Secret string `json:"secret"`
}
