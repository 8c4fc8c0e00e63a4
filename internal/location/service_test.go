package location

import (
	"context"
	"errors"
	"testing"

	pkgerrors "github.com/angelmondragon/forkcast-backend/pkg/errors"
	"github.com/angelmondragon/forkcast-backend/pkg/maps"
)

type fakePlaces struct {
	autocompleteReq maps.AutocompleteRequest
	searchReq       maps.SearchTextRequest
	suggestions     []maps.AutocompleteSuggestion
	place           *maps.Place
	err             error
}

func (f *fakePlaces) Autocomplete(_ context.Context, req maps.AutocompleteRequest) ([]maps.AutocompleteSuggestion, error) {
	f.autocompleteReq = req
	return f.suggestions, f.err
}

func (f *fakePlaces) SearchText(_ context.Context, req maps.SearchTextRequest) (*maps.Place, error) {
	f.searchReq = req
	return f.place, f.err
}

func (f *fakePlaces) ResolvePlace(context.Context, string) (*maps.Place, error) {
	return f.place, f.err
}

func TestSuggestBuildsRequest(t *testing.T) {
	places := &fakePlaces{suggestions: []maps.AutocompleteSuggestion{{PlaceID: "p1", Description: "Soho, London"}}}
	svc := &service{places: places}

	got, err := svc.Suggest(context.Background(), SuggestRequest{Query: " soho ", Country: "gb", Language: "en"})
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if places.autocompleteReq.Input != "soho" || places.autocompleteReq.IncludedRegionCodes[0] != "GB" || places.autocompleteReq.LanguageCode != "en" {
		t.Fatalf("unexpected request %+v", places.autocompleteReq)
	}
	if len(got) != 1 || got[0].PlaceID != "p1" {
		t.Fatalf("unexpected suggestions %+v", got)
	}
}

func TestSuggestRequiresQuery(t *testing.T) {
	svc := &service{places: &fakePlaces{}}
	if _, err := svc.Suggest(context.Background(), SuggestRequest{}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGeocode(t *testing.T) {
	places := &fakePlaces{place: &maps.Place{PlaceID: "p9", FormattedAddress: " San Jose, CA ", Location: maps.LatLng{Latitude: 37.33, Longitude: -121.88}}}
	svc := &service{places: places}

	loc, err := svc.Geocode(context.Background(), "downtown San Jose")
	if err != nil {
		t.Fatalf("geocode: %v", err)
	}
	if places.searchReq.TextQuery != "downtown San Jose" {
		t.Fatalf("unexpected query %q", places.searchReq.TextQuery)
	}
	if loc.FormattedAddress != "San Jose, CA" || loc.Latitude != 37.33 || loc.Longitude != -121.88 {
		t.Fatalf("unexpected location %+v", loc)
	}
}

func TestGeocodeNoMatchIsNotFound(t *testing.T) {
	svc := &service{places: &fakePlaces{err: maps.ErrNoMatch}}
	_, err := svc.Geocode(context.Background(), "atlantis")
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if !errors.Is(err, maps.ErrNoMatch) {
		t.Fatalf("expected wrapped ErrNoMatch")
	}
}

func TestMapPlaceRejectsMissingLocation(t *testing.T) {
	if _, err := mapPlace(&maps.Place{PlaceID: "p1"}); err == nil {
		t.Fatal("expected error for zero location")
	}
	if _, err := mapPlace(nil); err == nil {
		t.Fatal("expected error for nil place")
	}
}

func TestNilClientIsDependencyError(t *testing.T) {
	svc := NewService(nil)
	if _, err := svc.Geocode(context.Background(), "soho"); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
