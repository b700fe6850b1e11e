package models

import "time"

// Category is a requested category token together with its canonical slug.
type Category struct {
	Code string
	Slug string
}

// WorkItem is one (date, category) unit of ingestion work.
type WorkItem struct {
	Date     time.Time
	Category Category
}

// ISODate returns the item date in storage form.
func (w WorkItem) ISODate() string {
	return w.Date.Format(DateLayout)
}

// UpstreamDate returns the item date in the form posted upstream.
func (w WorkItem) UpstreamDate() string {
	return w.Date.Format(UpstreamDateLayout)
}

func (w WorkItem) String() string {
	return w.ISODate() + "/" + w.Category.Slug
}
