package paging

const (
	DefaultLimit = 100
	MaxLimit     = 100
)

// Params is page/limit pagination as sent in the query string.
type Params struct {
	Page  int `query:"page" json:"page" validate:"omitempty,min=1" example:"1"`
	Limit int `query:"limit" json:"limit" validate:"omitempty,min=1,max=100" example:"20"`
}

// Normalize fills zero values with defaults and clamps the limit.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Skip is the number of documents before the requested page.
func (p Params) Skip() int64 {
	p = p.Normalize()
	return int64(p.Page-1) * int64(p.Limit)
}
