package domain

// FillMissing replaces every missing numeric value with 0 and an empty DATE
// with "0". It must run after derivation and rolling, which treat missing
// values differently from zero.
func FillMissing(records []Record) {
	for i := range records {
		r := &records[i]
		if r.Date == "" {
			r.Date = "0"
		}
		for _, c := range numericColumns {
			if p := c.field(r); IsMissing(*p) {
				*p = 0
			}
		}
	}
}

// HasMissing reports whether any numeric value of r is missing.
func (r *Record) HasMissing() bool {
	for _, c := range numericColumns {
		if IsMissing(*c.field(r)) {
			return true
		}
	}
	return false
}
