package catalog

import (
	"context"
	"errors"
)

// FormatWMS is the format value of a resource confirmed to be a WMS.
const FormatWMS = "WMS"

var ErrNotFound = errors.New("resource not found")

// Resource is a catalog resource record. Only the fields the probe reads or
// writes are modelled; everything else survives in raw.
type Resource struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Format      string `json:"format"`
	WMSBaseURLs string `json:"wms_base_urls"`

	raw []byte
}

// Annotation is the part of a Resource the probe may change. It is
// comparable, so a snapshot can be checked with ==.
type Annotation struct {
	Format      string
	WMSBaseURLs string
}

func (r *Resource) Annotation() Annotation {
	return Annotation{Format: r.Format, WMSBaseURLs: r.WMSBaseURLs}
}

// Store is the owner of resource records.
type Store interface {
	Show(ctx context.Context, id string) (*Resource, error)
	Update(ctx context.Context, resource *Resource) error
}
