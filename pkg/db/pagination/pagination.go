package pagination

// Page carries offset pagination parameters bound from query strings.
type Page struct {
	Skip  int `form:"skip,default=0"`
	Limit int `form:"limit,default=100" validate:"gte=1,lte=1000"` // Min 1, Max 1000
}

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}
