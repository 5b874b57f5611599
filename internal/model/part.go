// Package model defines the domain types shared across the harvester:
// canonical catalog records (Part, Supplier, Availability), the transient
// RawItem produced by source adapters, and API key records for the query API.
package model

import "time"

// Part is a canonical spare part identified by its business reference.
// The reference is globally unique and immutable once assigned.
type Part struct {
	ID          string    `json:"id"`
	Reference   string    `json:"reference"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Supplier is one external catalog the harvester scrapes. Suppliers are
// created once during registry bootstrap and never deleted while referenced.
type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Website   string    `json:"website"`
	CreatedAt time.Time `json:"created_at"`
}

// Availability links exactly one Part to one Supplier. At most one row
// exists per (part, supplier) pair.
type Availability struct {
	ID           string    `json:"id"`
	PartID       string    `json:"part_id"`
	SupplierID   string    `json:"supplier_id"`
	SupplierName string    `json:"supplier_name,omitempty"`
	Price        *float64  `json:"price,omitempty"`
	InStock      bool      `json:"in_stock"`
	URL          string    `json:"url,omitempty"`
	LastChecked  time.Time `json:"last_checked"`
}

// APIKey grants read access to the query API.
type APIKey struct {
	ID        string     `json:"id"`
	Key       string     `json:"key"`
	Name      string     `json:"name"`
	Email     string     `json:"email,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
}
