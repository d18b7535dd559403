package notify

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/watsh-io/backend/internal/model"
)

const defaultPingTimeout = 5 * time.Second

// InfluxConfig describes the InfluxDB v2 target.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

type pointWriter interface {
	WritePoint(p *write.Point)
}

// InfluxRecorder writes one "commits" point per commit.
type InfluxRecorder struct {
	w     pointWriter
	flush func()
	close func()
}

// DialInflux connects, pings and returns a recorder on the non-blocking write API.
// Asynchronous write failures are passed to onError.
func DialInflux(ctx context.Context, cfg InfluxConfig, onError func(error)) (*InfluxRecorder, error) {
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, influxdb2.DefaultOptions())

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influx ping: %w", err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("influx ping: server not healthy")
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func() {
		for err := range writeAPI.Errors() {
			if onError != nil {
				onError(err)
			}
		}
	}()

	return &InfluxRecorder{
		w:     writeAPI,
		flush: writeAPI.Flush,
		close: client.Close,
	}, nil
}

// NewInfluxRecorder wraps an existing write API.
func NewInfluxRecorder(w pointWriter) *InfluxRecorder { return &InfluxRecorder{w: w} }

// Publish implements Notifier.
func (r *InfluxRecorder) Publish(_ context.Context, ev model.CommitEvent) error {
	p := influxdb2.NewPoint("commits",
		map[string]string{
			"project":     ev.Scope.Project.String(),
			"environment": ev.Scope.Environment.String(),
			"branch":      ev.Scope.Branch.String(),
		},
		map[string]interface{}{
			"rows":   int64(ev.Rows),
			"author": ev.Author.String(),
		},
		time.UnixMilli(ev.Timestamp),
	)
	r.w.WritePoint(p)
	return nil
}

// Close flushes pending points and releases the client.
func (r *InfluxRecorder) Close() {
	if r.flush != nil {
		r.flush()
	}
	if r.close != nil {
		r.close()
	}
}
