package gateway

import (
	"encoding/json"
	"fmt"
	"time"
)

// Location is a named place reference on a character.
type Location struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Character is one entity of the list. The list core treats it as opaque.
type Character struct {
	ID       int       `json:"id"`
	Name     string    `json:"name"`
	Status   string    `json:"status"`
	Species  string    `json:"species"`
	Type     string    `json:"type"`
	Gender   string    `json:"gender"`
	Origin   Location  `json:"origin"`
	Location Location  `json:"location"`
	Image    string    `json:"image"`
	Episode  []string  `json:"episode"`
	URL      string    `json:"url"`
	Created  time.Time `json:"created"`
}

// PageResponse is one page of characters.
type PageResponse struct {
	// Results in API order.
	Results []Character `json:"results"`

	// TotalCount is the number of characters matching the filter across all pages.
	TotalCount int `json:"total_count"`

	// Pages is the number of pages reported by the API.
	Pages int `json:"pages"`

	// Page is the 1-based page number this response answers.
	Page int `json:"page"`
}

// apiInfo is the pagination envelope of the character API.
type apiInfo struct {
	Count int     `json:"count"`
	Pages int     `json:"pages"`
	Next  *string `json:"next"`
	Prev  *string `json:"prev"`
}

type apiPage struct {
	Info    apiInfo     `json:"info"`
	Results []Character `json:"results"`
}

// decodePage parses an API page body.
func decodePage(data []byte, page int) (*PageResponse, error) {
	var body apiPage
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	if body.Info.Count < 0 {
		return nil, fmt.Errorf("decode page: negative count %d", body.Info.Count)
	}
	return &PageResponse{
		Results:    body.Results,
		TotalCount: body.Info.Count,
		Pages:      body.Info.Pages,
		Page:       page,
	}, nil
}
