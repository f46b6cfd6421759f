package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Target names one complex to collect. It is supplied by the caller and never mutated.
type Target string

// FlexString decodes from either a JSON string or a JSON number.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(b)
	return nil
}

// FlexNumber holds a numeric field that the API sends as a number, a numeric
// string, an empty string or null. The zero value means absent.
type FlexNumber string

func (n *FlexNumber) UnmarshalJSON(b []byte) error {
	var s FlexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	*n = FlexNumber(strings.TrimSpace(string(s)))
	return nil
}

func (n FlexNumber) MarshalJSON() ([]byte, error) {
	switch {
	case n == "":
		return []byte("null"), nil
	case n.valid():
		return []byte(n), nil
	default:
		return json.Marshal(string(n))
	}
}

func (n FlexNumber) valid() bool {
	_, err := strconv.ParseFloat(string(n), 64)
	return err == nil
}

func (n FlexNumber) String() string { return string(n) }

// Int returns the value truncated to an integer. ok is false when the field is absent or not numeric.
func (n FlexNumber) Int() (v int64, ok bool) {
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return 0, false
	}
	return int64(f), true
}

// OverviewRecord describes a complex as returned by the overview endpoint.
// Raw keeps the full payload, including fields the typed view does not model,
// and is what gets exported.
type OverviewRecord struct {
	ComplexNo           FlexString `json:"complexNo"`
	ComplexName         string     `json:"complexName"`
	TotalHouseHoldCount FlexNumber `json:"totalHouseHoldCount"`
	TotalDongCount      FlexNumber `json:"totalDongCount"`
	UseApproveYmd       FlexString `json:"useApproveYmd"`
	Latitude            FlexNumber `json:"latitude,omitempty"`
	Longitude           FlexNumber `json:"longitude,omitempty"`
	MinArea             FlexNumber `json:"minArea,omitempty"`
	MaxArea             FlexNumber `json:"maxArea,omitempty"`
	MinPrice            FlexNumber `json:"minPrice,omitempty"`
	MaxPrice            FlexNumber `json:"maxPrice,omitempty"`
	MinPriceByLetter    string     `json:"minPriceByLetter,omitempty"`
	MaxPriceByLetter    string     `json:"maxPriceByLetter,omitempty"`
	RealPrice           *RealPrice `json:"realPrice,omitempty"`
	Pyeongs             []Pyeong   `json:"pyeongs,omitempty"`
	Dongs               []Dong     `json:"dongs,omitempty"`

	Raw json.RawMessage `json:"-"`
}

func (o *OverviewRecord) UnmarshalJSON(b []byte) error {
	type plain OverviewRecord
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*o = OverviewRecord(p)
	o.Raw = append(json.RawMessage(nil), b...)
	return nil
}

func (o OverviewRecord) MarshalJSON() ([]byte, error) {
	if len(o.Raw) > 0 {
		return o.Raw, nil
	}
	type plain OverviewRecord
	return json.Marshal(plain(o))
}

// RealPrice summarises the most recent recorded transaction.
type RealPrice struct {
	TradeType      string     `json:"tradeType,omitempty"`
	TradeYear      FlexString `json:"tradeYear,omitempty"`
	TradeMonth     FlexString `json:"tradeMonth,omitempty"`
	TradeDate      FlexString `json:"tradeDate,omitempty"`
	DealPrice      FlexNumber `json:"dealPrice,omitempty"`
	FormattedPrice string     `json:"formattedPrice,omitempty"`
	Floor          FlexString `json:"floor,omitempty"`
}

// Pyeong is one unit-size variant of a complex.
type Pyeong struct {
	PyeongNo      FlexString `json:"pyeongNo"`
	PyeongName    string     `json:"pyeongName,omitempty"`
	SupplyArea    FlexNumber `json:"supplyArea,omitempty"`
	ExclusiveArea FlexNumber `json:"exclusiveArea,omitempty"`
}

// Dong is one building of a complex. The API sends either an object or a bare name.
type Dong struct {
	BildNo   FlexString `json:"bildNo,omitempty"`
	BildName string     `json:"bildName"`
}

func (d *Dong) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] != '{' {
		var name FlexString
		if err := name.UnmarshalJSON(b); err != nil {
			return err
		}
		*d = Dong{BildName: string(name)}
		return nil
	}
	type plain Dong
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*d = Dong(p)
	return nil
}

// Item is one listing. ID is its dedup identity; Raw is the untouched payload.
type Item struct {
	ID  string
	Raw json.RawMessage
}

// identityKeys are tried in order when computing an item's identity.
var identityKeys = []string{"id", "number", "articleNo"}

// NewItem builds an Item from a raw payload. ok is false when no identity field is present.
func NewItem(raw json.RawMessage) (item Item, ok bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Item{}, false
	}
	for _, key := range identityKeys {
		v, present := fields[key]
		if !present {
			continue
		}
		var id FlexString
		if err := id.UnmarshalJSON(v); err != nil || strings.TrimSpace(string(id)) == "" {
			continue
		}
		return Item{ID: string(id), Raw: append(json.RawMessage(nil), raw...)}, true
	}
	return Item{}, false
}

func (i Item) MarshalJSON() ([]byte, error) {
	if len(i.Raw) == 0 {
		return []byte("null"), nil
	}
	return i.Raw, nil
}

func (i *Item) UnmarshalJSON(b []byte) error {
	item, ok := NewItem(b)
	if !ok {
		*i = Item{Raw: append(json.RawMessage(nil), b...)}
		return nil
	}
	*i = item
	return nil
}

// Field returns a top-level scalar field of the payload as a string.
func (i Item) Field(name string) (string, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(i.Raw, &fields); err != nil {
		return "", false
	}
	v, ok := fields[name]
	if !ok {
		return "", false
	}
	var s FlexString
	if err := s.UnmarshalJSON(v); err != nil {
		return "", false
	}
	return string(s), true
}

// CollectionResult is the deduplicated article list for one Target.
type CollectionResult struct {
	Items             []Item `json:"articleList"`
	TotalCount        int    `json:"totalCount"`
	MoreDataAvailable bool   `json:"isMoreData"`
}

// TargetResult is the per-Target record handed to exporters: either populated or error-tagged.
type TargetResult struct {
	Target    Target            `json:"complexNo"`
	Overview  *OverviewRecord   `json:"overview,omitempty"`
	Articles  *CollectionResult `json:"articles,omitempty"`
	CrawledAt time.Time         `json:"crawledAt"`
	Attempts  int               `json:"attempts"`
	Error     string            `json:"error,omitempty"`
}

// Failed reports whether the record carries an error marker.
func (r TargetResult) Failed() bool {
	return r.Error != ""
}

// ArticleCount returns the number of collected items, zero when articles are absent.
func (r TargetResult) ArticleCount() int {
	if r.Articles == nil {
		return 0
	}
	return r.Articles.TotalCount
}
