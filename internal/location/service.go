package location

import (
	"context"
	stdErrors "errors"
	"strings"

	"github.com/angelmondragon/forkcast-backend/pkg/errors"
	"github.com/angelmondragon/forkcast-backend/pkg/maps"
)

type Service interface {
	Suggest(ctx context.Context, req SuggestRequest) ([]Suggestion, error)
	Resolve(ctx context.Context, req ResolveRequest) (Location, error)
	Geocode(ctx context.Context, query string) (Location, error)
}

type placesClient interface {
	Autocomplete(ctx context.Context, req maps.AutocompleteRequest) ([]maps.AutocompleteSuggestion, error)
	SearchText(ctx context.Context, req maps.SearchTextRequest) (*maps.Place, error)
	ResolvePlace(ctx context.Context, placeID string) (*maps.Place, error)
}

type service struct {
	places placesClient
}

// NewService returns a Service backed by the Places client. A nil client yields a
// service whose calls fail with a dependency error.
func NewService(client *maps.Client) Service {
	if client == nil {
		return &service{}
	}
	return &service{places: client}
}

func (s *service) Suggest(ctx context.Context, req SuggestRequest) ([]Suggestion, error) {
	if s == nil || s.places == nil {
		return nil, errors.New(errors.CodeDependency, "maps client unavailable")
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, errors.New(errors.CodeValidation, "query is required")
	}

	payload := maps.AutocompleteRequest{
		Input: strings.TrimSpace(req.Query),
	}
	if country := strings.TrimSpace(req.Country); country != "" {
		payload.IncludedRegionCodes = []string{strings.ToUpper(country)}
	}
	if lang := strings.TrimSpace(req.Language); lang != "" {
		payload.LanguageCode = lang
	}

	resp, err := s.places.Autocomplete(ctx, payload)
	if err != nil {
		return nil, err
	}

	suggestions := make([]Suggestion, 0, len(resp))
	for _, item := range resp {
		suggestions = append(suggestions, Suggestion{
			PlaceID:     item.PlaceID,
			Description: item.Description,
		})
	}
	return suggestions, nil
}

func (s *service) Resolve(ctx context.Context, req ResolveRequest) (Location, error) {
	if s == nil || s.places == nil {
		return Location{}, errors.New(errors.CodeDependency, "maps client unavailable")
	}
	if strings.TrimSpace(req.PlaceID) == "" {
		return Location{}, errors.New(errors.CodeValidation, "place_id is required")
	}

	place, err := s.places.ResolvePlace(ctx, req.PlaceID)
	if err != nil {
		return Location{}, err
	}
	return mapPlace(place)
}

// Geocode turns a free-text area such as "downtown San Jose" into coordinates.
func (s *service) Geocode(ctx context.Context, query string) (Location, error) {
	if s == nil || s.places == nil {
		return Location{}, errors.New(errors.CodeDependency, "maps client unavailable")
	}
	if strings.TrimSpace(query) == "" {
		return Location{}, errors.New(errors.CodeValidation, "query is required")
	}

	place, err := s.places.SearchText(ctx, maps.SearchTextRequest{TextQuery: query})
	if err != nil {
		if stdErrors.Is(err, maps.ErrNoMatch) {
			return Location{}, errors.Wrap(errors.CodeNotFound, err, "location not found").
				WithDetails(map[string]any{"query": query})
		}
		return Location{}, err
	}
	return mapPlace(place)
}

func mapPlace(place *maps.Place) (Location, error) {
	if place == nil {
		return Location{}, errors.New(errors.CodeDependency, "place details missing")
	}
	lat, lng := place.Location.Latitude, place.Location.Longitude
	if lat == 0 && lng == 0 {
		return Location{}, errors.New(errors.CodeDependency, "place location missing")
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Location{}, errors.New(errors.CodeDependency, "place location out of range")
	}
	return Location{
		PlaceID:          place.PlaceID,
		FormattedAddress: strings.TrimSpace(place.FormattedAddress),
		Latitude:         lat,
		Longitude:        lng,
	}, nil
}

type SuggestRequest struct {
	Query    string
	Country  string
	Language string
}

type ResolveRequest struct {
	PlaceID string
}

type Suggestion struct {
	PlaceID     string `json:"place_id"`
	Description string `json:"description"`
}

// Location is a resolved point with its display address.
type Location struct {
	PlaceID          string  `json:"place_id"`
	FormattedAddress string  `json:"formatted_address"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
}
