package sensors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/netip"

	"github.com/oschwald/geoip2-golang/v2"

	"argus/internal/types"
)

// GeoResolver is satisfied by *geoip2.Reader.
type GeoResolver interface {
	City(ip netip.Addr) (*geoip2.City, error)
}

// GeoIP resolves the network origin of a client address with a GeoIP
// database. A lookup error aborts the collection; an unusable address is
// reported as a Failure. Without a resolver only the address is recorded.
type GeoIP struct {
	Resolver GeoResolver
	ClientIP string
}

func (s GeoIP) Collect(ctx context.Context) (types.Result, error) {
	addr, err := netip.ParseAddr(s.ClientIP)
	if err != nil {
		return types.Failure{Err: fmt.Sprintf("invalid client address %q", s.ClientIP)}, nil
	}
	addr = addr.Unmap()
	fields := types.Fields{
		"address":       addr.String(),
		"country":       nil,
		"continent":     nil,
		"timezone":      nil,
		"cityGeonameId": nil,
	}
	if s.Resolver == nil {
		return types.Success{Fields: fields}, nil
	}

	rec, err := s.Resolver.City(addr)
	if err != nil {
		return nil, fmt.Errorf("geoip lookup %s: %w", addr, err)
	}
	fields["country"] = nonEmpty(rec.Country.ISOCode)
	fields["continent"] = nonEmpty(rec.Continent.Code)
	fields["timezone"] = nonEmpty(rec.Location.TimeZone)
	if rec.City.GeoNameID != 0 {
		fields["cityGeonameId"] = rec.City.GeoNameID
	}
	return types.Success{Fields: fields}, nil
}

// DefaultIPInfoEndpoint reports the caller's own public address.
const DefaultIPInfoEndpoint = "https://ipinfo.io/json"

// IPInfo asks an ipinfo-style HTTP endpoint for the caller's network origin.
// Transport errors and non-2xx responses abort the collection.
type IPInfo struct {
	Client   *http.Client
	Endpoint string
}

type ipInfoResponse struct {
	IP       string `json:"ip"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Org      string `json:"org"`
	Timezone string `json:"timezone"`
	Loc      string `json:"loc"`
}

func (s IPInfo) Collect(ctx context.Context) (types.Result, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = DefaultIPInfoEndpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("IP collection failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("IP collection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("IP collection failed: %s returned %d", endpoint, resp.StatusCode)
	}
	var body ipInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("IP collection failed: %w", err)
	}
	return types.Success{Fields: types.Fields{
		"address":  nonEmpty(body.IP),
		"city":     nonEmpty(body.City),
		"region":   nonEmpty(body.Region),
		"country":  nonEmpty(body.Country),
		"org":      nonEmpty(body.Org),
		"timezone": nonEmpty(body.Timezone),
		"loc":      nonEmpty(body.Loc),
	}}, nil
}
