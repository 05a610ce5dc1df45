package retrieval

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Fixed protocol constants sent with every search request.
const (
	entityTypes      = "page,obituary,marriage,birth,enslavement"
	productID        = "1"
	sortOrder        = "score-desc"
	initialCursor    = "*"
	cursorKey        = "start"
	facetYear        = "1000"
	facetCountry     = "200"
	facetRegion      = "300"
	facetCounty      = "260"
	facetCity        = "150"
	facetEntity      = "6"
	facetPublication = "5"
	facetYearMonth   = "12"
	facetYearDay     = "365"
)

var locationPattern = regexp.MustCompile(`^[a-z]{2}(-[a-z0-9]{1,3})?$`)

// Param is one ordered request parameter.
type Param struct {
	Key   string
	Value string
}

// Params is the ordered request-parameter set compiled from a Query. Key
// order is fixed at compile time so Encode is deterministic; only the
// cursor value is mutated between pagination iterations.
type Params struct {
	pairs []Param
}

// Encode renders the parameters as a URL query string, preserving the
// compiled key order.
func (p *Params) Encode() string {
	var b strings.Builder
	for i, pair := range p.pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(pair.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(pair.Value))
	}
	return b.String()
}

// Get returns the value for key, or "" when absent.
func (p *Params) Get(key string) string {
	for _, pair := range p.pairs {
		if pair.Key == key {
			return pair.Value
		}
	}
	return ""
}

// SetCursor replaces the pagination cursor in place.
func (p *Params) SetCursor(cursor string) {
	for i := range p.pairs {
		if p.pairs[i].Key == cursorKey {
			p.pairs[i].Value = cursor
			return
		}
	}
}

// Cursor returns the current pagination cursor.
func (p *Params) Cursor() string {
	return p.Get(cursorKey)
}

func (p *Params) add(key, value string) {
	p.pairs = append(p.pairs, Param{Key: key, Value: value})
}

// CompileQuery validates the query and builds the remote service's request
// parameters. Compilation is pure and deterministic: the same query always
// yields a byte-identical Encode result. Invalid input fails with a
// KindInvalidQuery error and never produces partial parameters.
func CompileQuery(q Query, resultsPerPage int) (*Params, error) {
	if err := validateQuery(q, resultsPerPage); err != nil {
		return nil, err
	}

	p := &Params{}
	p.add("keyword", q.Keyword)
	p.add("entity-types", entityTypes)
	p.add("product", productID)
	p.add("sort", sortOrder)
	p.add(cursorKey, initialCursor)
	p.add("count", strconv.Itoa(resultsPerPage))
	p.add("facet-year", facetYear)
	p.add("facet-country", facetCountry)
	p.add("facet-region", facetRegion)
	p.add("facet-county", facetCounty)
	p.add("facet-city", facetCity)
	p.add("facet-entity", facetEntity)
	p.add("facet-publication", facetPublication)
	p.add("include-publication-metadata", "true")

	switch len(q.Years) {
	case 1:
		// A single-year query narrows facet granularity to month/day.
		p.add("date", strconv.Itoa(q.Years[0]))
		p.add("facet-year-month", facetYearMonth)
		p.add("facet-year-month-day", facetYearDay)
		p.add("disable-multi-select-facets", "true")
	case 2:
		p.add("date-start", strconv.Itoa(q.Years[0]))
		p.add("date-end", strconv.Itoa(q.Years[1]))
	}

	if q.Location != "" {
		loc := strings.ToLower(q.Location)
		if len(loc) == 2 {
			p.add("country", loc)
		} else {
			p.add("region", loc)
		}
	}

	return p, nil
}

func validateQuery(q Query, resultsPerPage int) error {
	if strings.TrimSpace(q.Keyword) == "" {
		return InvalidQueryf("keyword must not be empty")
	}
	if resultsPerPage <= 0 {
		return InvalidQueryf("results per page must be > 0, got %d", resultsPerPage)
	}
	switch len(q.Years) {
	case 0, 1:
	case 2:
		if q.Years[0] > q.Years[1] {
			return InvalidQueryf("date range start %d is after end %d", q.Years[0], q.Years[1])
		}
	default:
		return InvalidQueryf("date filter takes at most two years, got %d", len(q.Years))
	}
	if q.Location != "" {
		loc := strings.ToLower(q.Location)
		if !locationPattern.MatchString(loc) {
			return InvalidQueryf("location %q is not a country or country-region code", q.Location)
		}
	}
	if q.MaxPages < 0 {
		return InvalidQueryf("max pages must be >= 0, got %d", q.MaxPages)
	}
	return nil
}
