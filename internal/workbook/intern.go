package workbook

// maxInterned bounds the pool for one workbook. Past it, new values are
// returned as is.
const maxInterned = 100000

// interner deduplicates cell text within one workbook load. Exports repeat
// the same status, severity and hostname values across thousands of rows,
// so equal cells share one backing string.
type interner struct {
	pool map[string]string
}

func newInterner() *interner {
	return &interner{pool: make(map[string]string, 1024)}
}

func (in *interner) intern(s string) string {
	if pooled, ok := in.pool[s]; ok {
		return pooled
	}
	if len(in.pool) >= maxInterned {
		return s
	}
	in.pool[s] = s
	return s
}

func (in *interner) len() int {
	return len(in.pool)
}
