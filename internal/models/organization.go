package models

import (
	"time"

	"github.com/google/uuid"
)

// ContainerPrefix prefixes every tenant storage container name.
const ContainerPrefix = "org_"

// Organization represents an organization (tenant) in the system.
// Each organization owns exactly one admin and one storage container.
type Organization struct {
	OrgID            uuid.UUID // UUIDv7
	OrganizationName string    // unique, validated before it addresses storage
	CollectionName   string    // always ContainerName(OrganizationName)
	AdminID          uuid.UUID // UUIDv7, the owning admin
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ContainerName derives the storage container name for an organization.
func ContainerName(organizationName string) string {
	return ContainerPrefix + organizationName
}

// OrganizationSummary is the public view of an organization joined with its admin email.
type OrganizationSummary struct {
	OrganizationName string    `json:"organization_name"`
	CollectionName   string    `json:"collection_name"`
	AdminEmail       string    `json:"admin_email"`
	CreatedAt        time.Time `json:"created_at"`
}

// DeleteResult is returned once an organization and its tenant data are removed.
type DeleteResult struct {
	Deleted          bool   `json:"deleted"`
	OrganizationName string `json:"organization_name"`
}
