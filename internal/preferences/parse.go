package preferences

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Policy selects how strictly preference documents are parsed.
type Policy int

const (
	// Strict rejects a record as soon as any field has the wrong type or an invalid value.
	Strict Policy = iota
	// Permissive drops offending fields, treating them as absent, and records a FieldIssue.
	Permissive
)

func (p Policy) String() string {
	if p == Permissive {
		return "permissive"
	}
	return "strict"
}

// ParsePolicy converts a configuration value into a Policy.
func ParsePolicy(value string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "strict":
		return Strict, nil
	case "permissive", "lenient":
		return Permissive, nil
	}
	return Strict, fmt.Errorf("invalid parse policy %q", value)
}

const (
	minPriceLevel = 1
	maxPriceLevel = 4
	minRating     = 1.0
	maxRating     = 5.0
)

// ParseRecord decodes a bare preference document (the object holding context_preferences,
// location_preferences, ...). A document that is not a JSON object always fails; other
// problems fail or are recorded as issues depending on policy.
func ParseRecord(id string, raw []byte, policy Policy) (PreferenceRecord, error) {
	doc, err := decodeObject(raw)
	if err != nil {
		return PreferenceRecord{}, &MalformedRecordError{RecordID: id, Err: err}
	}
	d := &recordDecoder{id: id, policy: policy}
	prefs := d.preferences(doc)
	if d.err != nil {
		return PreferenceRecord{}, d.err
	}
	return PreferenceRecord{ID: id, Preferences: prefs, Issues: d.issues}, nil
}

// ParseHostRecord decodes the host's document. It accepts either a bare preference document
// or a full query-details document carrying it under "preferences". Failures are wrapped in
// HostRecordInvalidError.
func ParseHostRecord(raw []byte, policy Policy) (PreferenceRecord, error) {
	body, err := ExtractPreferences(raw)
	if err != nil {
		return PreferenceRecord{}, &HostRecordInvalidError{Err: err}
	}
	rec, err := ParseRecord("host", body, policy)
	if err != nil {
		return PreferenceRecord{}, &HostRecordInvalidError{Err: err}
	}
	return rec, nil
}

// ExtractPreferences returns the preference object of a document, unwrapping the
// "preferences" key of a query-details document when present.
func ExtractPreferences(raw []byte) ([]byte, error) {
	doc, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	if nested, ok := doc["preferences"]; ok {
		return nested, nil
	}
	return bytes.TrimSpace(raw), nil
}

func decodeObject(raw []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("expected a JSON object")
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

type recordDecoder struct {
	id     string
	policy Policy
	issues []FieldIssue
	err    error
}

func (d *recordDecoder) reject(field string, err error) {
	if d.err != nil {
		return
	}
	if d.policy == Strict {
		d.err = &MalformedRecordError{RecordID: d.id, Field: field, Err: err}
		return
	}
	d.issues = append(d.issues, FieldIssue{Field: field, Reason: err.Error()})
}

func (d *recordDecoder) section(doc map[string]json.RawMessage, key string) map[string]json.RawMessage {
	raw, ok := doc[key]
	if !ok || isNull(raw) {
		return nil
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		d.reject(key, errors.New("expected an object"))
		return nil
	}
	return out
}

// field decodes obj[key] into dst. Missing keys and JSON null leave dst untouched.
func field[T any](d *recordDecoder, obj map[string]json.RawMessage, path string, key string, dst *T) bool {
	if d.err != nil || obj == nil {
		return false
	}
	raw, ok := obj[key]
	if !ok || isNull(raw) {
		return false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		d.reject(joinPath(path, key), err)
		return false
	}
	*dst = v
	return true
}

func (d *recordDecoder) preferences(doc map[string]json.RawMessage) Preferences {
	var p Preferences

	ctx := d.section(doc, "context_preferences")
	d.text(ctx, "context_preferences", "occasion", &p.Context.Occasion)
	var groupSize int
	if d.wholeNumber(ctx, "context_preferences", "group_size", &groupSize) {
		if groupSize < 0 {
			d.reject("context_preferences.group_size", fmt.Errorf("must not be negative, got %d", groupSize))
		} else {
			p.Context.GroupSize = &groupSize
		}
	}
	if ctx != nil {
		dt := d.section(ctx, "date_time")
		d.text(dt, "context_preferences.date_time", "date_preference", &p.Context.DateTime.DatePreference)
		d.text(dt, "context_preferences.date_time", "time_preference", &p.Context.DateTime.TimePreference)
	}

	loc := d.section(doc, "location_preferences")
	const locPath = "location_preferences"
	d.text(loc, locPath, "text_input_primary", &p.Location.PrimaryText)
	d.text(loc, locPath, "text_input_secondary", &p.Location.SecondaryText)
	if loc != nil {
		coords := d.section(loc, "coordinates_primary")
		d.bounded(coords, locPath+".coordinates_primary", "latitude", -90, 90, &p.Location.Coordinates.Latitude)
		d.bounded(coords, locPath+".coordinates_primary", "longitude", -180, 180, &p.Location.Coordinates.Longitude)
	}
	var radius float64
	if field(d, loc, locPath, "search_radius_km", &radius) {
		if radius <= 0 {
			d.reject(locPath+".search_radius_km", fmt.Errorf("must be positive, got %v", radius))
		} else {
			p.Location.SearchRadiusKM = &radius
		}
	}
	var travel int
	if d.wholeNumber(loc, locPath, "max_travel_time_minutes", &travel) {
		if travel <= 0 {
			d.reject(locPath+".max_travel_time_minutes", fmt.Errorf("must be positive, got %d", travel))
		} else {
			p.Location.MaxTravelTimeMinutes = &travel
		}
	}
	d.labels(loc, locPath, "avoid_areas", &p.Location.AvoidAreas)

	cuisine := d.section(doc, "cuisine_type_preferences")
	const cuisinePath = "cuisine_type_preferences"
	d.labels(cuisine, cuisinePath, "desired", &p.Cuisine.Desired)
	d.labels(cuisine, cuisinePath, "avoid", &p.Cuisine.Avoid)
	field(d, cuisine, cuisinePath, "open_to_suggestions", &p.Cuisine.OpenToSuggestions)

	dietary := d.section(doc, "dietary_preferences")
	d.labels(dietary, "dietary_preferences", "needs", &p.Dietary.Needs)
	d.text(dietary, "dietary_preferences", "general_notes", &p.Dietary.GeneralNotes)

	restaurant := d.section(doc, "restaurant_specific_preferences")
	const restPath = "restaurant_specific_preferences"
	d.priceLevels(restaurant, restPath, &p.Restaurant.PriceLevels)
	d.bounded(restaurant, restPath, "min_rating", minRating, maxRating, &p.Restaurant.MinRating)
	d.labels(restaurant, restPath, "attribute_preferences", &p.Restaurant.AttributePreferences)
	field(d, restaurant, restPath, "exclude_chains", &p.Restaurant.ExcludeChains)
	d.labels(restaurant, restPath, "specific_restaurants_mentioned", &p.Restaurant.SpecificRestaurants)

	ambiance := d.section(doc, "ambiance_and_amenities")
	d.labels(ambiance, "ambiance_and_amenities", "ambiances", &p.Ambiance.Ambiances)
	d.labels(ambiance, "ambiance_and_amenities", "amenities", &p.Ambiance.Amenities)

	d.labels(doc, "", "willing_to_compromise_on", &p.WillingToCompromiseOn)
	d.labels(doc, "", "deal_breakers", &p.DealBreakers)

	return p
}

// text decodes a free-text field; blank strings count as absent.
func (d *recordDecoder) text(obj map[string]json.RawMessage, path, key string, dst **string) {
	var s string
	if !field(d, obj, path, key, &s) {
		return
	}
	if trimmed := strings.TrimSpace(s); trimmed != "" {
		*dst = &trimmed
	}
}

// labels decodes a list of strings. Entries may also be objects carrying "type" or "name"
// (the structured dietary-need and attribute forms). Blank entries are dropped; an explicit
// empty list stays non-nil.
func (d *recordDecoder) labels(obj map[string]json.RawMessage, path, key string, dst *[]string) {
	var raw []label
	if !field(d, obj, path, key, &raw) {
		return
	}
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		if s := strings.TrimSpace(string(l)); s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}

func (d *recordDecoder) bounded(obj map[string]json.RawMessage, path, key string, lo, hi float64, dst **float64) {
	var v float64
	if !field(d, obj, path, key, &v) {
		return
	}
	if v < lo || v > hi {
		d.reject(joinPath(path, key), fmt.Errorf("must be between %v and %v, got %v", lo, hi, v))
		return
	}
	*dst = &v
}

// wholeNumber decodes an integer field. Whole floats such as 2.0 are accepted.
func (d *recordDecoder) wholeNumber(obj map[string]json.RawMessage, path, key string, dst *int) bool {
	var v float64
	if !field(d, obj, path, key, &v) {
		return false
	}
	n, ok := asInt(v)
	if !ok {
		d.reject(joinPath(path, key), fmt.Errorf("must be a whole number, got %v", v))
		return false
	}
	*dst = n
	return true
}

func (d *recordDecoder) priceLevels(obj map[string]json.RawMessage, path string, dst *[]int) {
	var levels []float64
	if !field(d, obj, path, "price_levels", &levels) {
		return
	}
	out := make([]int, 0, len(levels))
	for _, raw := range levels {
		level, ok := asInt(raw)
		if !ok || level < minPriceLevel || level > maxPriceLevel {
			d.reject(joinPath(path, "price_levels"), fmt.Errorf("price level %v outside %d-%d", raw, minPriceLevel, maxPriceLevel))
			if d.err != nil {
				return
			}
			continue
		}
		out = append(out, level)
	}
	*dst = out
}

func asInt(v float64) (int, bool) {
	if v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}

type label string

func (l *label) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*l = label(s)
		return nil
	}
	var obj struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return errors.New("expected a string or an object with type or name")
	}
	if obj.Type != "" {
		*l = label(obj.Type)
		return nil
	}
	*l = label(obj.Name)
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
