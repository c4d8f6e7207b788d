// package models defines the data model for the content network media client
package models

import (
	"fmt"
	"strings"
)

// Service is the resource type segment of a network resource address.
type Service string

const (
	ServiceAudio     Service = "AUDIO"
	ServiceVideo     Service = "VIDEO"
	ServicePlaylist  Service = "PLAYLIST"
	ServiceDocument  Service = "DOCUMENT"
	ServiceThumbnail Service = "THUMBNAIL"
)

// String returns the string representation of Service
func (s Service) String() string {
	return string(s)
}

// Valid reports whether s is one of the known services.
func (s Service) Valid() bool {
	switch s {
	case ServiceAudio, ServiceVideo, ServicePlaylist, ServiceDocument, ServiceThumbnail:
		return true
	default:
		return false
	}
}

// ParseService converts a case-insensitive service name into a [Service].
func ParseService(s string) (Service, error) {
	svc := Service(strings.ToUpper(strings.TrimSpace(s)))
	if !svc.Valid() {
		return "", fmt.Errorf("unknown service %q", s)
	}
	return svc, nil
}

// ResourceRef addresses a published resource by owner name, service and identifier.
//
// Refs are values; a new version of a resource is published under the same ref.
type ResourceRef struct {
	Name       string  `json:"name"`
	Service    Service `json:"service"`
	Identifier string  `json:"identifier"`
}

// NewResourceRef builds a [ResourceRef].
func NewResourceRef(name string, service Service, identifier string) ResourceRef {
	return ResourceRef{Name: name, Service: service, Identifier: identifier}
}

// Key returns the value used to index per-resource state (the identifier).
func (r ResourceRef) Key() string {
	return r.Identifier
}

// Validate checks that all address parts are present.
func (r ResourceRef) Validate() error {
	if r.Identifier == "" {
		return fmt.Errorf("resource identifier is required")
	}
	if r.Name == "" {
		return fmt.Errorf("resource owner name is required")
	}
	if !r.Service.Valid() {
		return fmt.Errorf("unknown service %q", r.Service)
	}
	return nil
}

func (r ResourceRef) String() string {
	return fmt.Sprintf("%s/%s/%s", r.Service, r.Name, r.Identifier)
}
