package domain

import "context"

type StarLister interface {
	FetchStarred(ctx context.Context, username, listName string) ([]RepoDescriptor, error)
}

// VCS performs clone and update operations on a single local path.
// Implementations report every failure; retry policy belongs to the caller.
type VCS interface {
	Clone(ctx context.Context, url, dest string, shallow bool) error
	Update(ctx context.Context, dest string) error
	ConfigureForLargeRepo(ctx context.Context, dest string) error
}

type ReportStore interface {
	Write(ctx context.Context, r RunReport) error
}

type Notifier interface {
	Notify(ctx context.Context, title, body, url string) error
}
