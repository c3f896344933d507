// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/ffutop/renogy-monitor/internal/config"
	"github.com/ffutop/renogy-monitor/internal/solar"
)

// InfluxSink writes every snapshot as a point to an InfluxDB v2 bucket.
type InfluxSink struct {
	client      influxdb2.Client
	writer      api.WriteAPIBlocking
	measurement string
	tags        map[string]string
}

// NewInfluxSink creates a sink for cfg. tags are added to every point.
func NewInfluxSink(cfg config.InfluxConfig, tags map[string]string) *InfluxSink {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxSink{
		client:      client,
		writer:      client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		measurement: cfg.Measurement,
		tags:        tags,
	}
}

func (i *InfluxSink) Store(ctx context.Context, s solar.Snapshot) error {
	fields := map[string]interface{}{
		"array_v": s.ArrayVolts,
		"array_a": s.ArrayAmps,
		"array_w": s.ArrayWatts,
		"soc":     s.SOC,
		"bat_v":   s.BatteryVolts,
		"bat_a":   s.BatteryAmps,
		"load_v":  s.LoadVolts,
		"load_a":  s.LoadAmps,
	}
	p := influxdb2.NewPoint(i.measurement, i.tags, fields, s.Time)
	if err := i.writer.WritePoint(ctx, p); err != nil {
		return fmt.Errorf("failed to write point: %w", err)
	}
	return nil
}

func (i *InfluxSink) Close() error {
	i.client.Close()
	return nil
}
