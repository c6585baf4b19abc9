package shared

// Page describes a limit/offset slice of a filtered listing together with
// the total count computed from the same predicate.
type Page struct {
	Limit   int
	Offset  int
	Total   int
	HasMore bool
}

// NewPage normalises paging inputs and computes HasMore.
func NewPage(limit, offset, total int) Page {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return Page{
		Limit:   limit,
		Offset:  offset,
		Total:   total,
		HasMore: offset+limit < total,
	}
}
