package domain

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// ListFilter selects donations or expenses of one ledger.
type ListFilter struct {
	Ledger LedgerRef
	Status string
	Limit  int
	Offset int
}

type ListOption func(*ListFilter)

func WithStatus(status string) ListOption {
	return func(f *ListFilter) { f.Status = status }
}

func WithPage(limit, offset int) ListOption {
	return func(f *ListFilter) {
		f.Limit = limit
		f.Offset = offset
	}
}

// NewListFilter applies opts and clamps paging.
func NewListFilter(ledger LedgerRef, opts ...ListOption) ListFilter {
	f := ListFilter{Ledger: ledger}
	for _, opt := range opts {
		opt(&f)
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
