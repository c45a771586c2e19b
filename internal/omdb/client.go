// Package omdb looks up films on the OMDb API.
package omdb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
	"github.com/weastcoast/weastcoastbot/internal/cache"
	"github.com/weastcoast/weastcoastbot/internal/httpclient"
	"github.com/weastcoast/weastcoastbot/internal/models"
	"github.com/weastcoast/weastcoastbot/internal/render"
)

// BaseURL is the OMDb API endpoint
const BaseURL = "https://www.omdbapi.com/"

// Film is an OMDb title record
type Film struct {
	Title    string `json:"Title"`
	Year     string `json:"Year"`
	Released string `json:"Released"`
	Genre    string `json:"Genre"`
	Director string `json:"Director"`
	Actors   string `json:"Actors"`
	Writer   string `json:"Writer"`
	Runtime  string `json:"Runtime"`
	IMDbID   string `json:"imdbID"`
	Rating   string `json:"imdbRating"`
	Plot     string `json:"Plot"`
	Poster   string `json:"Poster"`
}

// URL is the film's IMDb page
func (f *Film) URL() string {
	return "https://www.imdb.com/title/" + f.IMDbID
}

// PosterURL returns the poster image, or "" when OMDb has none
func (f *Film) PosterURL() string {
	if f.Poster == "N/A" {
		return ""
	}
	return f.Poster
}

// Query selects a film by title or IMDb id, optionally narrowed by year
type Query struct {
	Title  string
	IMDbID string
	Year   int
}

func (q Query) params() url.Values {
	v := url.Values{}
	if q.IMDbID != "" {
		v.Set("i", q.IMDbID)
	}
	if q.Title != "" {
		v.Set("t", q.Title)
	}
	if q.Year > 0 {
		v.Set("y", strconv.Itoa(q.Year))
	}
	return v
}

func (q Query) cacheKey() string {
	return strings.ToLower(q.params().Encode())
}

// Client is an OMDb API client
type Client struct {
	http    *httpclient.Client
	cache   *cache.Manager
	baseURL string
	apiKey  string
}

// NewClient creates a client. An empty baseURL uses the public API; cm may be nil.
func NewClient(http *httpclient.Client, cm *cache.Manager, baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	return &Client{http: http, cache: cm, baseURL: baseURL, apiKey: apiKey}
}

// Find looks up a single film. OMDb answers unknown titles with
// Response "False", which is reported as NotFound.
func (c *Client) Find(ctx context.Context, q Query) (*Film, error) {
	q.Title = strings.TrimSpace(q.Title)
	q.IMDbID = strings.TrimSpace(q.IMDbID)
	if q.Title == "" && q.IMDbID == "" {
		return nil, apperrors.NewValidation("title or IMDb ID required")
	}
	if c.apiKey == "" {
		return nil, apperrors.NewValidation("film lookups are not configured")
	}

	film, err := cache.Fetch(ctx, c.cache, models.CacheTypeOMDbTitle, q.cacheKey(), func(ctx context.Context) (*Film, error) {
		params := q.params()
		params.Set("apikey", c.apiKey)

		var resp struct {
			Film
			Response string `json:"Response"`
			Error    string `json:"Error"`
		}
		if err := c.http.GetJSON(ctx, c.baseURL, params, nil, &resp); err != nil {
			return nil, fmt.Errorf("failed to query omdb: %w", err)
		}
		if resp.Response == "False" {
			msg := resp.Error
			if msg == "" {
				msg = "Movie not found!"
			}
			return nil, apperrors.NewNotFound("film", msg)
		}
		return &resp.Film, nil
	})
	if err != nil {
		return nil, err
	}
	return film, nil
}

// Fields summarizes a film for display
func Fields(f *Film) []render.Field {
	return []render.Field{
		{Name: "Released", Value: f.Released, Inline: true},
		{Name: "Genre", Value: f.Genre, Inline: true},
		{Name: "Director", Value: f.Director, Inline: true},
		{Name: "Actors", Value: f.Actors, Inline: true},
		{Name: "Writers", Value: f.Writer, Inline: true},
		{Name: "Runtime", Value: f.Runtime, Inline: true},
		{Name: "ID", Value: f.IMDbID, Inline: true},
		{Name: "Rating", Value: f.Rating, Inline: true},
	}
}
