package latest

import (
	"context"
	"encoding/json"

	"github.com/valkey-io/valkey-go"

	"github.com/mizunoto/tankwatch/internal/model"
)

// Cache keeps the newest reading of each kind in a Valkey-compatible store so
// the realtime endpoint can answer without touching Postgres.
type Cache struct {
	client valkey.Client
	prefix string
}

// New constructs a Cache. An empty prefix defaults to "latest".
func New(client valkey.Client, prefix string) *Cache {
	if prefix == "" {
		prefix = "latest"
	}
	return &Cache{client: client, prefix: prefix}
}

// SetWater stores the newest water reading.
func (c *Cache) SetWater(ctx context.Context, reading model.WaterReading) error {
	return c.set(ctx, c.prefix+":water", reading)
}

// Water returns the cached water reading, reporting false when none is set.
func (c *Cache) Water(ctx context.Context) (model.WaterReading, bool, error) {
	var reading model.WaterReading
	ok, err := c.get(ctx, c.prefix+":water", &reading)
	return reading, ok, err
}

// SetAtmospheric stores the newest atmospheric reading.
func (c *Cache) SetAtmospheric(ctx context.Context, reading model.AtmosphericReading) error {
	return c.set(ctx, c.prefix+":atmospheric", reading)
}

// Atmospheric returns the cached atmospheric reading, reporting false when
// none is set.
func (c *Cache) Atmospheric(ctx context.Context) (model.AtmosphericReading, bool, error) {
	var reading model.AtmosphericReading
	ok, err := c.get(ctx, c.prefix+":atmospheric", &reading)
	return reading, ok, err
}

func (c *Cache) set(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	cmd := c.client.B().Set().Key(key).Value(string(payload)).Build()
	return c.client.Do(ctx, cmd).Error()
}

func (c *Cache) get(ctx context.Context, key string, out any) (bool, error) {
	cmd := c.client.B().Get().Key(key).Build()
	payload, err := c.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return false, err
	}
	return true, nil
}
