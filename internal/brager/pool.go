package brager

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Field channels within a pool. Each parameter number has up to three
// wire keys: its value, its status bits, and its unit number.
const (
	ChannelValue  = "v"
	ChannelStatus = "s"
	ChannelUnit   = "u"
)

// FieldRef addresses a single channel of a pool parameter,
// e.g. "P4.v0" is the value channel of parameter 0 in pool 4.
type FieldRef struct {
	Pool    int
	Channel string
	Field   int
}

// ParseFieldRef parses a reference string like "P4.v0".
func ParseFieldRef(s string) (FieldRef, error) {
	pool, rest, found := strings.Cut(s, ".")
	if !found || len(pool) < 2 || pool[0] != 'P' || len(rest) < 2 {
		return FieldRef{}, fmt.Errorf("%w: %q", ErrInvalidFieldRef, s)
	}

	poolNo, err := strconv.Atoi(pool[1:])
	if err != nil || poolNo < 0 {
		return FieldRef{}, fmt.Errorf("%w: bad pool in %q", ErrInvalidFieldRef, s)
	}

	channel := string(rest[0])
	switch channel {
	case ChannelValue, ChannelStatus, ChannelUnit:
	default:
		return FieldRef{}, fmt.Errorf("%w: bad channel in %q", ErrInvalidFieldRef, s)
	}

	fieldNo, err := strconv.Atoi(rest[1:])
	if err != nil || fieldNo < 0 {
		return FieldRef{}, fmt.Errorf("%w: bad field in %q", ErrInvalidFieldRef, s)
	}

	return FieldRef{Pool: poolNo, Channel: channel, Field: fieldNo}, nil
}

// String formats the reference in wire form ("P4.v0").
func (r FieldRef) String() string {
	return fmt.Sprintf("P%d.%s%d", r.Pool, r.Channel, r.Field)
}

// Pool holds a device's parameter pools indexed as
// data[pool][field][channel].
//
// A Pool is assembled once per snapshot and read afterwards; it is not
// safe for concurrent mutation.
type Pool struct {
	data map[int]map[int]map[string]any
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{data: make(map[int]map[int]map[string]any)}
}

// ParsePoolData converts the s_getAllPoolData wire payload into a Pool.
//
// The wire shape is {"P4": {"v0": 61.5, "s0": 5, "u0": 1, ...}, ...}:
// the outer key names the pool, the inner key prefixes the channel
// letter onto the parameter number.
func ParsePoolData(raw map[string]any) (*Pool, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty pool data", ErrInvalidResponse)
	}

	p := NewPool()
	for poolKey, fieldsAny := range raw {
		if len(poolKey) < 2 || poolKey[0] != 'P' {
			continue
		}
		poolNo, err := strconv.Atoi(poolKey[1:])
		if err != nil {
			continue
		}

		fields, ok := fieldsAny.(map[string]any)
		if !ok {
			continue
		}
		for fieldKey, value := range fields {
			if len(fieldKey) < 2 {
				continue
			}
			channel := string(fieldKey[0])
			fieldNo, err := strconv.Atoi(fieldKey[1:])
			if err != nil {
				continue
			}
			p.Set(poolNo, fieldNo, channel, value)
		}
	}

	if len(p.data) == 0 {
		return nil, fmt.Errorf("%w: no parseable pool entries", ErrInvalidResponse)
	}
	return p, nil
}

// Get returns the raw value of a pool field channel.
func (p *Pool) Get(pool, field int, channel string) (any, bool) {
	fields, ok := p.data[pool]
	if !ok {
		return nil, false
	}
	channels, ok := fields[field]
	if !ok {
		return nil, false
	}
	v, ok := channels[channel]
	return v, ok
}

// GetRef returns the raw value addressed by a FieldRef.
func (p *Pool) GetRef(ref FieldRef) (any, bool) {
	return p.Get(ref.Pool, ref.Field, ref.Channel)
}

// GetNumber returns a field channel as a float64.
// JSON numbers arrive as float64; integer wire values are accepted too.
func (p *Pool) GetNumber(pool, field int, channel string) (float64, bool) {
	v, ok := p.Get(pool, field, channel)
	if !ok {
		return 0, false
	}
	return asNumber(v)
}

// GetInt returns a field channel as an int.
func (p *Pool) GetInt(pool, field int, channel string) (int, bool) {
	f, ok := p.GetNumber(pool, field, channel)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Set stores a field channel value, creating intermediate maps.
func (p *Pool) Set(pool, field int, channel string, value any) {
	fields, ok := p.data[pool]
	if !ok {
		fields = make(map[int]map[string]any)
		p.data[pool] = fields
	}
	channels, ok := fields[field]
	if !ok {
		channels = make(map[string]any)
		fields[field] = channels
	}
	channels[channel] = value
}

// HasPool reports whether the pool number appeared in the snapshot.
func (p *Pool) HasPool(pool int) bool {
	_, ok := p.data[pool]
	return ok
}

// Fields returns the parameter numbers present in a pool.
func (p *Pool) Fields(pool int) []int {
	fields, ok := p.data[pool]
	if !ok {
		return nil
	}
	out := make([]int, 0, len(fields))
	for n := range fields {
		out = append(out, n)
	}
	return out
}

// asNumber coerces JSON scalar types to float64.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
