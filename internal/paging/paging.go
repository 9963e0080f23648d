// Package paging renders the pagination envelope for list responses.
// Format is a pure function of the request URL, page geometry and the
// compiled filter's canonical query fragment, so regenerated links are
// byte-for-byte stable.
package paging

import "fmt"

// Links are the navigation URLs of one result page. Absent directions
// are omitted from the JSON body.
type Links struct {
	Self  string `json:"self"`
	First string `json:"first,omitempty"`
	Prev  string `json:"prev,omitempty"`
	Next  string `json:"next,omitempty"`
	Last  string `json:"last,omitempty"`
}

// Envelope wraps a page of results the way list endpoints return them.
type Envelope struct {
	Links         Links `json:"_links"`
	Total         int   `json:"total"`
	Page          int   `json:"page"`
	NumberOfPages int   `json:"numberOfPages"`
}

// Format builds the envelope for a listing of count rows, limit rows
// per page, currently on page. fragment is the compiled filter's
// canonical "&field=value..." suffix and is appended verbatim to every
// link.
func Format(url string, limit, page, count int, fragment string) Envelope {
	if limit <= 0 {
		limit = 1
	}
	if page <= 0 {
		page = 1
	}
	pages := (count + limit - 1) / limit
	if pages < 1 {
		pages = 1
	}
	link := func(p int) string {
		return fmt.Sprintf("%s?page=%d&limit=%d%s", url, p, limit, fragment)
	}
	env := Envelope{
		Total:         count,
		Page:          page,
		NumberOfPages: pages,
	}
	env.Links.Self = link(page)
	if page > 1 {
		env.Links.First = link(1)
		env.Links.Prev = link(page - 1)
	}
	if page < pages {
		env.Links.Next = link(page + 1)
		env.Links.Last = link(pages)
	}
	return env
}
